package connect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/osa030/soundqueue/internal/app/notification"
	"github.com/osa030/soundqueue/internal/app/playback"
	"github.com/osa030/soundqueue/internal/domain/playlist"
	"github.com/osa030/soundqueue/internal/domain/sound"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the control service.
const ServiceName = "soundqueue.v1.ControlService"

// Procedure paths of the control service.
const (
	ProcedurePlay                 = "/" + ServiceName + "/Play"
	ProcedurePause                = "/" + ServiceName + "/Pause"
	ProcedureStop                 = "/" + ServiceName + "/Stop"
	ProcedureNext                 = "/" + ServiceName + "/Next"
	ProcedurePrevious             = "/" + ServiceName + "/Previous"
	ProcedureFirst                = "/" + ServiceName + "/First"
	ProcedureLast                 = "/" + ServiceName + "/Last"
	ProcedureEnqueue              = "/" + ServiceName + "/Enqueue"
	ProcedureResetQueue           = "/" + ServiceName + "/ResetQueue"
	ProcedureGetStatus            = "/" + ServiceName + "/GetStatus"
	ProcedureSetVolume            = "/" + ServiceName + "/SetVolume"
	ProcedureMute                 = "/" + ServiceName + "/Mute"
	ProcedureUnMute               = "/" + ServiceName + "/UnMute"
	ProcedureSetPosition          = "/" + ServiceName + "/SetPosition"
	ProcedureSetPositionInSeconds = "/" + ServiceName + "/SetPositionInSeconds"
	ProcedureSetLoopQueue         = "/" + ServiceName + "/SetLoopQueue"
	ProcedureSetVisibility        = "/" + ServiceName + "/SetVisibility"
	ProcedurePreload              = "/" + ServiceName + "/Preload"
	ProcedureSubscribeEvents      = "/" + ServiceName + "/SubscribeEvents"
)

// Player is the playback surface exposed over RPC.
type Player interface {
	Play(ctx context.Context, opts playback.PlayOptions) error
	Pause()
	Stop()
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	First(ctx context.Context) error
	Last(ctx context.Context) error
	ResetQueue()
	Snapshot() ([]playback.Info, int)
	SetVolume(volume int)
	GetVolume() int
	Mute()
	UnMute()
	IsMuted() bool
	SetPosition(ctx context.Context, percent float64) error
	SetPositionInSeconds(ctx context.Context, position time.Duration, id *sound.ID) error
	SetLoopQueue(loop bool)
	GetLoopQueue() bool
	SetVisibility(visible bool)
	Preload(ctx context.Context, sel playback.Selector) error
}

// Enqueuer resolves playlist entries and adds them to the queue.
type Enqueuer interface {
	Add(ctx context.Context, e playlist.Entry, placement playback.Placement) ([]sound.ID, error)
}

// ControlService implements the ControlService RPC.
type ControlService struct {
	player   Player
	enqueuer Enqueuer
	notifier *notification.Manager
}

// NewControlService creates a new ControlService.
func NewControlService(player Player, enqueuer Enqueuer, notifier *notification.Manager) *ControlService {
	return &ControlService{
		player:   player,
		enqueuer: enqueuer,
		notifier: notifier,
	}
}

type unaryFunc func(ctx context.Context, msg map[string]any) (map[string]any, error)

// Handler returns the service path and its handler.
func (s *ControlService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	unary := map[string]unaryFunc{
		ProcedurePlay:                 s.play,
		ProcedurePause:                s.command(s.player.Pause),
		ProcedureStop:                 s.command(s.player.Stop),
		ProcedureNext:                 s.navigate(s.player.Next),
		ProcedurePrevious:             s.navigate(s.player.Previous),
		ProcedureFirst:                s.navigate(s.player.First),
		ProcedureLast:                 s.navigate(s.player.Last),
		ProcedureEnqueue:              s.enqueue,
		ProcedureResetQueue:           s.command(s.player.ResetQueue),
		ProcedureGetStatus:            s.getStatus,
		ProcedureSetVolume:            s.setVolume,
		ProcedureMute:                 s.command(s.player.Mute),
		ProcedureUnMute:               s.command(s.player.UnMute),
		ProcedureSetPosition:          s.setPosition,
		ProcedureSetPositionInSeconds: s.setPositionInSeconds,
		ProcedureSetLoopQueue:         s.setLoopQueue,
		ProcedureSetVisibility:        s.setVisibility,
		ProcedurePreload:              s.preload,
	}

	mux := http.NewServeMux()
	for procedure, fn := range unary {
		mux.Handle(procedure, newUnaryHandler(procedure, fn, opts))
	}
	mux.Handle(ProcedureSubscribeEvents, connect.NewServerStreamHandler(
		ProcedureSubscribeEvents, s.subscribeEvents, opts...,
	))
	return "/" + ServiceName + "/", mux
}

func newUnaryHandler(procedure string, fn unaryFunc, opts []connect.HandlerOption) http.Handler {
	return connect.NewUnaryHandler(procedure, func(
		ctx context.Context,
		req *connect.Request[structpb.Struct],
	) (*connect.Response[structpb.Struct], error) {
		res, err := fn(ctx, req.Msg.AsMap())
		if err != nil {
			zlog.Debug().Err(err).Msgf("api: %s failed", procedure)
			return nil, toConnectError(err)
		}
		msg, err := structpb.NewStruct(res)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		return connect.NewResponse(msg), nil
	}, opts...)
}

func (s *ControlService) command(fn func()) unaryFunc {
	return func(context.Context, map[string]any) (map[string]any, error) {
		fn()
		return s.statusFields(), nil
	}
}

func (s *ControlService) navigate(fn func(context.Context) error) unaryFunc {
	return func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		if err := fn(ctx); err != nil {
			return nil, err
		}
		return s.statusFields(), nil
	}
}

func (s *ControlService) play(ctx context.Context, msg map[string]any) (map[string]any, error) {
	var req playRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	sel, err := parseSelector(req.Selector, req.ID)
	if err != nil {
		return nil, err
	}

	opts := playback.PlayOptions{Selector: sel}
	if req.OffsetSec != nil {
		opts.Offset = lo.ToPtr(seconds(*req.OffsetSec))
	}
	if err := s.player.Play(ctx, opts); err != nil {
		return nil, err
	}
	return s.statusFields(), nil
}

func (s *ControlService) enqueue(ctx context.Context, msg map[string]any) (map[string]any, error) {
	placement, err := playback.ParsePlacement(stringField(msg, "placement"))
	if err != nil {
		return nil, invalidArgument(err)
	}
	entry, err := playlist.ParseEntry(lo.OmitByKeys(msg, []string{"placement"}))
	if err != nil {
		return nil, invalidArgument(err)
	}

	ids, err := s.enqueuer.Add(ctx, entry, placement)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"ids": lo.Map(ids, func(id sound.ID, _ int) any { return id.Value() }),
	}, nil
}

func (s *ControlService) getStatus(context.Context, map[string]any) (map[string]any, error) {
	return s.statusFields(), nil
}

func (s *ControlService) setVolume(_ context.Context, msg map[string]any) (map[string]any, error) {
	var req volumeRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	if req.Volume == nil {
		return nil, invalidArgumentf("volume is required")
	}
	s.player.SetVolume(*req.Volume)
	return s.statusFields(), nil
}

func (s *ControlService) setPosition(ctx context.Context, msg map[string]any) (map[string]any, error) {
	var req positionRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	if req.Percent == nil {
		return nil, invalidArgumentf("percent is required")
	}
	if err := s.player.SetPosition(ctx, *req.Percent); err != nil {
		return nil, err
	}
	return s.statusFields(), nil
}

func (s *ControlService) setPositionInSeconds(ctx context.Context, msg map[string]any) (map[string]any, error) {
	var req positionSecondsRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	if req.Seconds == nil {
		return nil, invalidArgumentf("seconds is required")
	}
	id, err := sound.ParseID(req.ID)
	if err != nil {
		return nil, invalidArgument(err)
	}

	var target *sound.ID
	if !id.IsZero() {
		target = &id
	}
	if err := s.player.SetPositionInSeconds(ctx, seconds(*req.Seconds), target); err != nil {
		return nil, err
	}
	return s.statusFields(), nil
}

func (s *ControlService) setLoopQueue(_ context.Context, msg map[string]any) (map[string]any, error) {
	var req toggleRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	if req.Enabled == nil {
		return nil, invalidArgumentf("enabled is required")
	}
	s.player.SetLoopQueue(*req.Enabled)
	return s.statusFields(), nil
}

func (s *ControlService) setVisibility(_ context.Context, msg map[string]any) (map[string]any, error) {
	var req visibilityRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	if req.Visible == nil {
		return nil, invalidArgumentf("visible is required")
	}
	s.player.SetVisibility(*req.Visible)
	return s.statusFields(), nil
}

func (s *ControlService) preload(ctx context.Context, msg map[string]any) (map[string]any, error) {
	var req selectorRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	sel, err := parseSelector(req.Selector, req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.player.Preload(ctx, sel); err != nil {
		return nil, err
	}
	return s.statusFields(), nil
}

// subscribeEvents sends the current status, then every sound event until the client
// goes away or the notifier closes.
func (s *ControlService) subscribeEvents(
	ctx context.Context,
	_ *connect.Request[structpb.Struct],
	stream *connect.ServerStream[structpb.Struct],
) error {
	initial, err := structpb.NewStruct(map[string]any{
		"sequence_no": float64(s.notifier.NextSequenceNo()),
		"type":        "initial_state",
		"status":      s.statusFields(),
	})
	if err != nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	adapter := &streamAdapter{stream: stream}
	subscriptionID := s.notifier.Subscribe(adapter)
	defer func() {
		s.notifier.Unsubscribe(subscriptionID)
		adapter.close()
	}()

	select {
	case <-ctx.Done():
	case <-s.notifier.Done():
	}
	return nil
}

// streamAdapter serializes sends to a server stream and drops them once the handler returned.
type streamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
	closed bool
}

func (a *streamAdapter) Send(msg *structpb.Struct) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.stream.Send(msg)
}

func (a *streamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

func (s *ControlService) statusFields() map[string]any {
	infos, index := s.player.Snapshot()
	fields := map[string]any{
		"volume":        s.player.GetVolume(),
		"muted":         s.player.IsMuted(),
		"loop_queue":    s.player.GetLoopQueue(),
		"current_index": index,
		"queue":         lo.Map(infos, func(info playback.Info, _ int) any { return infoFields(info) }),
	}
	if index >= 0 && index < len(infos) {
		fields["current"] = infoFields(infos[index])
	}
	return fields
}

func infoFields(info playback.Info) map[string]any {
	return map[string]any{
		"id":                   info.ID.Value(),
		"title":                info.Title,
		"url":                  info.URL,
		"codec":                info.Codec,
		"state":                info.State.String(),
		"pipeline":             info.Pipeline.String(),
		"loop":                 info.Loop,
		"duration_sec":         info.Duration.Seconds(),
		"play_time_offset_sec": info.PlayTimeOffset.Seconds(),
		"play_time_sec":        info.PlayTime.Seconds(),
		"played_percentage":    info.PlayedPercentage,
		"loading_progress":     info.LoadingProgress,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
