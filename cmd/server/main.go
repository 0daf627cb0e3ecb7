// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/soundqueue/internal/api/connect"
	"github.com/osa030/soundqueue/internal/app/notification"
	"github.com/osa030/soundqueue/internal/app/playback"
	"github.com/osa030/soundqueue/internal/app/seed"
	"github.com/osa030/soundqueue/internal/domain/playlist"
	"github.com/osa030/soundqueue/internal/domain/sound"
	"github.com/osa030/soundqueue/internal/infra/audio"
	"github.com/osa030/soundqueue/internal/infra/config"
	"github.com/osa030/soundqueue/internal/infra/logger"
	"github.com/osa030/soundqueue/internal/infra/spotify"
	"github.com/osa030/soundqueue/internal/infra/store"
	"github.com/osa030/soundqueue/internal/infra/transport"
)

var (
	app        = kingpin.New("soundqueue-server", "soundqueue playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").Envar("SOUNDQUEUE_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	autoplay   = app.Flag("autoplay", "Play the first sound once the playlist is queued").Bool()

	// check command
	checkCmd = app.Command("check", "Validate the config and playlist, then exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkCmd.FullCommand() {
		if err := check(cfg); err != nil {
			zlog.Error().Msgf("Check failed: %v", err)
			os.Exit(1)
		}
		return
	}

	// run keeps the deferred cleanups on the error path
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := audio.New(audio.Config{
		Output:          cfg.Audio.Output,
		SampleRate:      cfg.Audio.SampleRate,
		Buffer:          cfg.AudioBuffer(),
		ResampleQuality: cfg.Audio.ResampleQuality,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create audio engine")
	}
	defer engine.Close()

	fetcher := transport.New(transport.Config{
		Timeout:   cfg.TransportTimeout(),
		MaxBytes:  cfg.Transport.MaxBytes,
		UserAgent: cfg.Transport.UserAgent,
	})

	var opts []playback.Option
	if cfg.Player.PersistVolume {
		opts = append(opts, playback.WithVolumeStore(store.NewFile(cfg.State.Path)))
	}
	player, err := playback.NewPlayer(cfg.PlaybackConfig(), engine, fetcher, opts...)
	if err != nil {
		return errors.Wrap(err, "failed to create player")
	}
	defer player.Close()

	notifier := notification.NewManager()
	defer notifier.Close()

	resolver, err := newResolver(ctx, cfg)
	if err != nil {
		return err
	}
	seeder := seed.New(player, resolver, func(id sound.ID) playback.Callbacks {
		return notifier.Callbacks(id, cfg.Player.ProgressEvents)
	})

	if err := seedPlaylist(ctx, cfg, seeder); err != nil {
		return err
	}
	if *autoplay || cfg.Playlist.Autoplay {
		go func() {
			if err := player.First(ctx); err != nil {
				zlog.Error().Err(err).Msg("Autoplay failed")
			}
		}()
	}

	controlService := apiconnect.NewControlService(player, seeder, notifier)
	controlPath, controlHandler := controlService.Handler(
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)),
	)

	mux := http.NewServeMux()
	mux.Handle(controlPath, controlHandler)

	// h2c (HTTP/2 cleartext) lets connect clients stream without TLS
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Close the notifier first so event streams end before Shutdown waits on them
	notifier.Close()
	player.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return nil
}

// newResolver returns a Spotify resolver, or nil when no credentials are configured.
func newResolver(ctx context.Context, cfg *config.Config) (seed.Resolver, error) {
	if !cfg.SpotifyEnabled() {
		zlog.Info().Msg("Spotify not configured, spotify entries will be skipped")
		return nil, nil
	}
	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Spotify client")
	}
	return client, nil
}

func seedPlaylist(ctx context.Context, cfg *config.Config, seeder *seed.Seeder) error {
	if cfg.Playlist.Path == "" {
		zlog.Info().Msg("Playlist not configured, queue starts empty")
		return nil
	}
	pl, err := playlist.Load(cfg.Playlist.Path)
	if err != nil {
		return errors.Wrapf(err, "failed to load playlist %s", cfg.Playlist.Path)
	}
	_, err = seeder.Seed(ctx, pl)
	return err
}

// check validates the playlist and prints a summary of the configuration.
func check(cfg *config.Config) error {
	printSummary(os.Stdout, cfg)
	if cfg.Playlist.Path == "" {
		return nil
	}

	pl, err := playlist.Load(cfg.Playlist.Path)
	if err != nil {
		return err
	}
	spotifyEntries := 0
	for _, e := range pl.Entries {
		if e.IsSpotify() {
			spotifyEntries++
		}
	}
	fmt.Printf("Playlist %q: %d entries (%d spotify)\n", pl.Name, len(pl.Entries), spotifyEntries)
	if spotifyEntries > 0 && !cfg.SpotifyEnabled() {
		fmt.Println("Warning: spotify entries will be skipped, credentials are not configured")
	}
	return nil
}

func printSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Server: %s\n", cfg.Server.Addr)
	fmt.Fprintf(w, "Audio: output=%s rate=%d buffer=%v\n", cfg.Audio.Output, cfg.Audio.SampleRate, cfg.AudioBuffer())
	fmt.Fprintf(w, "Player: volume=%d loop_queue=%v play_next_on_ended=%v\n",
		*cfg.Player.Volume, cfg.Player.LoopQueue, *cfg.Player.PlayNextOnEnded)
	fmt.Fprintf(w, "Spotify: enabled=%v market=%s\n", cfg.SpotifyEnabled(), cfg.Spotify.Market)
}
