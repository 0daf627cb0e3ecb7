// Package main provides the control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/structpb"

	apiconnect "github.com/osa030/soundqueue/internal/api/connect"
	"github.com/osa030/soundqueue/internal/app/playback"
	"github.com/osa030/soundqueue/internal/infra/spotify"
)

var (
	app    = kingpin.New("soundqueue-ctl", "soundqueue control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("SOUNDQUEUE_SERVER").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Show the queue and player state")

	// play command
	playCmd    = app.Command("play", "Play a sound")
	playTarget = playCmd.Arg("target", "current, next, previous, first, last, or a sound id").Default("current").String()
	playOffset = playCmd.Flag("offset", "Start offset in seconds").Float64()

	pauseCmd    = app.Command("pause", "Pause the playing sound")
	stopCmd     = app.Command("stop", "Stop the playing sound")
	nextCmd     = app.Command("next", "Play the next sound")
	previousCmd = app.Command("previous", "Play the previous sound").Alias("prev")
	firstCmd    = app.Command("first", "Play the first sound")
	lastCmd     = app.Command("last", "Play the last sound")

	// enqueue command
	enqueueCmd       = app.Command("enqueue", "Add a sound to the queue").Alias("add")
	enqueueURLs      = enqueueCmd.Arg("url", "Source URLs of the sound, or one Spotify reference").Required().Strings()
	enqueueID        = enqueueCmd.Flag("id", "Sound id").String()
	enqueueTitle     = enqueueCmd.Flag("title", "Sound title").String()
	enqueuePlacement = enqueueCmd.Flag("placement", "append, prepend or afterCurrent").Default("append").String()
	enqueueLoop      = enqueueCmd.Flag("loop", "Loop the sound").Bool()

	resetCmd = app.Command("reset", "Clear the queue")

	// volume command
	volumeCmd   = app.Command("volume", "Set the volume")
	volumeValue = volumeCmd.Arg("volume", "Volume 0..100").Required().Int()

	muteCmd   = app.Command("mute", "Mute the output")
	unmuteCmd = app.Command("unmute", "Restore the volume before mute")

	// seek commands
	seekCmd            = app.Command("seek", "Seek the playing sound to a percentage")
	seekPercent        = seekCmd.Arg("percent", "Position 0..100").Required().Float64()
	seekSecondsCmd     = app.Command("seek-seconds", "Seek a sound to a position in seconds")
	seekSecondsValue   = seekSecondsCmd.Arg("seconds", "Position in seconds").Required().Float64()
	seekSecondsSoundID = seekSecondsCmd.Flag("id", "Sound id (default: current)").String()

	// loop command
	loopCmd   = app.Command("loop", "Toggle queue looping")
	loopValue = loopCmd.Arg("state", "on or off").Required().Enum("on", "off")

	// visibility command
	visibilityCmd   = app.Command("visibility", "Report page visibility")
	visibilityValue = visibilityCmd.Arg("state", "visible or hidden").Required().Enum("visible", "hidden")

	// preload command
	preloadCmd    = app.Command("preload", "Fetch and decode a sound without playing it")
	preloadTarget = preloadCmd.Arg("target", "current, next, previous, first, last, or a sound id").Default("next").String()

	watchCmd = app.Command("watch", "Stream sound events")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	ctx := context.Background()

	switch command {
	case statusCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureGetStatus, nil))
	case playCmd.FullCommand():
		body := targetBody(*playTarget)
		if *playOffset > 0 {
			body["offset_sec"] = *playOffset
		}
		printStatus(call(ctx, apiconnect.ProcedurePlay, body))
	case pauseCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedurePause, nil))
	case stopCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureStop, nil))
	case nextCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureNext, nil))
	case previousCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedurePrevious, nil))
	case firstCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureFirst, nil))
	case lastCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureLast, nil))
	case enqueueCmd.FullCommand():
		enqueue(ctx)
	case resetCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureResetQueue, nil))
	case volumeCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureSetVolume, map[string]any{"volume": *volumeValue}))
	case muteCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureMute, nil))
	case unmuteCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureUnMute, nil))
	case seekCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureSetPosition, map[string]any{"percent": *seekPercent}))
	case seekSecondsCmd.FullCommand():
		body := map[string]any{"seconds": *seekSecondsValue}
		if *seekSecondsSoundID != "" {
			body["id"] = idValue(*seekSecondsSoundID)
		}
		printStatus(call(ctx, apiconnect.ProcedureSetPositionInSeconds, body))
	case loopCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureSetLoopQueue, map[string]any{"enabled": *loopValue == "on"}))
	case visibilityCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedureSetVisibility, map[string]any{"visible": *visibilityValue == "visible"}))
	case preloadCmd.FullCommand():
		printStatus(call(ctx, apiconnect.ProcedurePreload, targetBody(*preloadTarget)))
	case watchCmd.FullCommand():
		watch(ctx)
	}
}

func newClient(procedure string) *connect.Client[structpb.Struct, structpb.Struct] {
	return connect.NewClient[structpb.Struct, structpb.Struct](
		http.DefaultClient,
		strings.TrimRight(*server, "/")+procedure,
	)
}

func call(ctx context.Context, procedure string, body map[string]any) map[string]any {
	msg, err := structpb.NewStruct(body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	req := connect.NewRequest(msg)
	req.Header().Set(apiconnect.AdminTokenHeader, *token)
	resp, err := newClient(procedure).CallUnary(ctx, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return resp.Msg.AsMap()
}

// targetBody turns a direction keyword or a sound id into a request body.
func targetBody(target string) map[string]any {
	if _, err := playback.ParseSelector(target); err == nil {
		return map[string]any{"selector": target}
	}
	return map[string]any{"id": idValue(target)}
}

// idValue sends integer-looking ids as numbers.
func idValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func enqueue(ctx context.Context) {
	body := map[string]any{
		"placement": *enqueuePlacement,
	}
	switch {
	case len(*enqueueURLs) == 1 && spotify.IsSpotifyRef((*enqueueURLs)[0]):
		body["spotify"] = (*enqueueURLs)[0]
	case len(*enqueueURLs) == 1:
		body["url"] = (*enqueueURLs)[0]
	default:
		body["sources"] = lo.ToAnySlice(*enqueueURLs)
	}
	if *enqueueID != "" {
		body["id"] = idValue(*enqueueID)
	}
	if *enqueueTitle != "" {
		body["title"] = *enqueueTitle
	}
	if *enqueueLoop {
		body["loop"] = true
	}

	res := call(ctx, apiconnect.ProcedureEnqueue, body)
	ids, _ := res["ids"].([]any)
	fmt.Printf("Queued %d sound(s): %v\n", len(ids), ids)
}

func watch(ctx context.Context) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req := connect.NewRequest(&structpb.Struct{})
	req.Header().Set(apiconnect.AdminTokenHeader, *token)
	stream, err := newClient(apiconnect.ProcedureSubscribeEvents).CallServerStream(ctx, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	for stream.Receive() {
		event := stream.Msg().AsMap()
		if event["type"] == "initial_state" {
			status, _ := event["status"].(map[string]any)
			printStatus(status)
			continue
		}
		printEvent(event)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printEvent(e map[string]any) {
	fmt.Printf("[%v] %-8v sound=%v", e["sequence_no"], e["type"], e["sound_id"])
	switch e["type"] {
	case "loading":
		fmt.Printf(" %.0f%% (%v/%v bytes)", e["percent"], e["loaded"], e["total"])
	case "playing":
		fmt.Printf(" %.1f%% %.1fs/%.1fs", e["percent"], e["play_time_sec"], e["duration_sec"])
	case "ended":
		fmt.Printf(" will_play_next=%v", e["will_play_next"])
	case "error":
		fmt.Printf(" error=%v", e["error"])
	default:
		fmt.Printf(" offset=%.1fs", e["offset_sec"])
	}
	fmt.Println()
}

func printStatus(s map[string]any) {
	fmt.Println("\n=== PLAYER STATUS ===")
	fmt.Printf("Volume: %v (muted: %v)\n", s["volume"], s["muted"])
	fmt.Printf("Loop queue: %v\n", s["loop_queue"])

	queue, _ := s["queue"].([]any)
	fmt.Printf("\nQueue (%d):\n", len(queue))
	for i, item := range queue {
		info, _ := item.(map[string]any)
		marker := " "
		if float64(i) == s["current_index"] {
			marker = ">"
		}
		fmt.Printf(" %s %v: %v [%v, %v] %.1fs\n",
			marker, info["id"], lo.CoalesceOrEmpty(fmt.Sprint(info["title"]), fmt.Sprint(info["url"])),
			info["state"], info["pipeline"], info["duration_sec"])
	}

	if cur, ok := s["current"].(map[string]any); ok {
		fmt.Printf("\nCurrent: %v (%v)\n", cur["id"], cur["state"])
		fmt.Printf("  Position: %.1fs / %.1fs (%.0f%%)\n",
			cur["play_time_sec"], cur["duration_sec"], cur["played_percentage"])
	} else {
		fmt.Println("\nNo current sound")
	}
	fmt.Println()
}
