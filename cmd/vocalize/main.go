package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/vocalize-go/internal/api"
	"github.com/dgnsrekt/vocalize-go/internal/config"
	"github.com/dgnsrekt/vocalize-go/internal/logging"
	"github.com/dgnsrekt/vocalize-go/internal/playback"
	"github.com/dgnsrekt/vocalize-go/internal/speak"
	"github.com/dgnsrekt/vocalize-go/internal/tts"
	"github.com/dgnsrekt/vocalize-go/internal/worker"
)

func main() {
	text := flag.String("text", "", "speak this text once and exit instead of serving HTTP")
	voice := flag.String("voice", "", "voice for -text")
	backend := flag.String("backend", "", "backend for -text (overrides PREFERRED_BACKEND)")
	flag.Parse()

	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	registry := tts.NewRegistry(logger)
	workerBackend := registerBackends(registry, cfg, logger)
	if workerBackend != nil {
		defer workerBackend.Close(context.Background())
	}

	mode, err := playback.ParseMode(cfg.PlaybackMode)
	if err != nil {
		logger.Error("invalid playback mode", "error", err)
		os.Exit(1)
	}

	coordinator := playback.NewCoordinator(playback.Options{
		Mode:          mode,
		LockPath:      cfg.PlaybackLockPath,
		LockStaleness: cfg.PlaybackStaleness,
		Players:       playerCommands(cfg.PlaybackPlayers),
	}, logger)

	speaker := speak.NewSpeaker(registry, coordinator, speak.Options{
		PreferredBackend: cfg.PreferredBackend,
		DefaultVoice:     cfg.DefaultVoice,
		MaxTextLength:    cfg.MaxTextLength,
	}, logger)

	if *text != "" {
		runOnce(speaker, *text, *voice, *backend, logger)
		return
	}

	serve(cfg, speaker, logger)
}

// registerBackends wires every known backend into the registry. Missing
// configuration only makes a backend unavailable, never a startup failure.
func registerBackends(registry *tts.Registry, cfg *config.Config, logger *slog.Logger) *tts.WorkerBackend {
	var workerBackend *tts.WorkerBackend
	if cfg.WorkerPath != "" {
		workerBackend = tts.NewWorkerBackend(worker.Options{
			Path:           cfg.WorkerPath,
			Args:           cfg.WorkerArgs,
			LibraryPath:    cfg.WorkerLibPath,
			StartupTimeout: cfg.WorkerStartupTimeout,
			CallTimeout:    cfg.WorkerCallTimeout,
		}, logger)
		mustRegister(registry, tts.Registration{
			Name:     "worker",
			Priority: 100,
			New:      func() (tts.Backend, error) { return workerBackend, nil },
		}, logger)
	}

	mustRegister(registry, tts.Registration{
		Name:     "openai",
		Priority: 80,
		New: func() (tts.Backend, error) {
			return tts.NewOpenAIBackend(tts.OpenAIConfig{
				APIKey:       cfg.OpenAIAPIKey,
				Model:        cfg.OpenAITTSModel,
				DefaultVoice: cfg.OpenAITTSVoice,
			}, logger), nil
		},
	}, logger)

	mustRegister(registry, tts.Registration{
		Name:     "edge",
		Priority: 60,
		New: func() (tts.Backend, error) {
			return tts.NewEdgeBackend(tts.EdgeConfig{
				DefaultVoice: cfg.EdgeVoice,
				Disabled:     cfg.EdgeDisabled,
			}, logger), nil
		},
	}, logger)

	mustRegister(registry, tts.Registration{
		Name:     "piper",
		Priority: 40,
		New: func() (tts.Backend, error) {
			return tts.NewPiperBackend(tts.PiperConfig{
				BinaryPath:   cfg.PiperPath,
				ModelPath:    cfg.PiperModel,
				DefaultVoice: cfg.DefaultVoice,
			}, logger), nil
		},
	}, logger)

	logger.Info("backends registered", "order", registry.List())
	return workerBackend
}

func mustRegister(registry *tts.Registry, reg tts.Registration, logger *slog.Logger) {
	if err := registry.Register(reg); err != nil {
		logger.Error("registering backend failed", "backend", reg.Name, "error", err)
		os.Exit(1)
	}
}

func playerCommands(commands [][]string) []playback.PlayerCommand {
	if len(commands) == 0 {
		return nil
	}
	players := make([]playback.PlayerCommand, 0, len(commands))
	for _, tokens := range commands {
		players = append(players, playback.PlayerCommand{Name: tokens[0], Args: tokens[1:]})
	}
	return players
}

// runOnce speaks a single utterance and exits.
func runOnce(speaker *speak.Speaker, text, voice, backend string, logger *slog.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := speaker.Speak(ctx, speak.Request{
		Text:    text,
		Voice:   voice,
		Backend: backend,
	})
	if err != nil {
		logger.Error("speak failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("spoke %d chars via %s (%dms)\n", result.CharCount, result.Backend, result.DurationMs)
}

// serve runs the HTTP daemon until a shutdown signal.
func serve(cfg *config.Config, speaker *speak.Speaker, logger *slog.Logger) {
	logger.Info("starting vocalize", "version", "0.1.0")

	if cfg.AuthDisabled() {
		logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}

	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"playback_mode", cfg.PlaybackMode,
		"preferred_backend", cfg.PreferredBackend,
		"max_text_length", cfg.MaxTextLength,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	server := api.New(cfg, logger, speaker)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
}
