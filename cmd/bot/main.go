package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/config"
	"github.com/glizzus/cobot/internal/datalayer"
	"github.com/glizzus/cobot/internal/generator"
	"github.com/glizzus/cobot/internal/handler"
	"github.com/glizzus/cobot/internal/loudness"
	"github.com/glizzus/cobot/internal/observe"
	"github.com/glizzus/cobot/internal/opus"
	"github.com/glizzus/cobot/internal/playback"
	"github.com/glizzus/cobot/internal/repository"
	"github.com/glizzus/cobot/internal/resolve"
	"github.com/glizzus/cobot/internal/schedule"
	"github.com/glizzus/cobot/internal/voice"
)

func newAudioStore(ctx context.Context, cfg *config.AudioConfig) (datalayer.AudioStore, error) {
	if cfg.Source == config.AudioSourceLocal {
		slog.Info("Using local audio store", "dir", cfg.Dir)
		return datalayer.NewLocalStore(cfg.Dir, cfg.Extension), nil
	}

	minioStorage, err := datalayer.NewMinioStorageFromEnv(cfg.Extension)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio storage: %w", err)
	}
	if err := minioStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure minio bucket: %w", err)
	}
	slog.Info("Using minio audio store")
	return minioStorage, nil
}

func newPlayRepository(ctx context.Context) (repository.PlayRepository, func(), error) {
	enabled, err := config.HistoryEnabled()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history config: %w", err)
	}
	if !enabled {
		return repository.NopPlayRepository{}, func() {}, nil
	}

	pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := datalayer.MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	return repository.NewPostgresPlayRepository(pool), pool.Close, nil
}

func scratchDir(cfg *config.AudioConfig) (string, func(), error) {
	if cfg.ScratchDir != "" {
		if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
			return "", nil, err
		}
		return cfg.ScratchDir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "cobot_audio_")
	if err != nil {
		return "", nil, err
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove scratch dir", "dir", dir, "error", err)
		}
	}, nil
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}
	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load audio config: %w", err)
	}
	resolverConfig, err := config.NewResolverConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load resolver config: %w", err)
	}
	loudnessConfig, err := config.NewLoudnessConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load loudness config: %w", err)
	}
	observeConfig, err := config.NewObserveConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load observe config: %w", err)
	}

	meterProvider, shutdownMetrics, err := observe.InitProvider()
	if err != nil {
		return fmt.Errorf("failed to initialise metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			slog.Warn("failed to shut down metrics", "error", err)
		}
	}()
	metrics, err := observe.NewMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	store, err := newAudioStore(ctx, audioConfig)
	if err != nil {
		return err
	}

	plays, closePlays, err := newPlayRepository(ctx)
	if err != nil {
		return err
	}
	defer closePlays()

	scratch, removeScratch, err := scratchDir(audioConfig)
	if err != nil {
		return fmt.Errorf("failed to prepare scratch dir: %w", err)
	}
	defer removeScratch()

	holder := &catalog.Holder{OnReload: metrics.CatalogReloaded}
	reload := func(ctx context.Context) {
		if err := holder.Reload(ctx, store); err != nil {
			slog.Error("failed to reload catalog", "error", err)
		}
	}

	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready: func(s *discordgo.Session, r *discordgo.Ready) {
			handler.ReadyLog(s, r)
			reload(ctx)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	voiceManager := voice.NewManager(&voice.SessionDialer{Session: session}, opus.DefaultSendTimeout)
	defer func() {
		if err := voiceManager.Close(); err != nil {
			slog.Warn("failed to close voice connections", "error", err)
		}
	}()

	ids := &generator.UUIDV4Generator{}
	playbackHandler := playback.NewHandler(playback.Deps{
		Catalog:  holder,
		Resolver: resolve.New(resolve.Policy(resolverConfig.Policy), resolverConfig.MinThreshold, resolverConfig.HighThreshold),
		Store:    store,
		Normalizer: loudness.NewAnalyzer(
			loudnessConfig.FFmpegPath,
			loudness.Target{I: loudnessConfig.TargetI, TP: loudnessConfig.TargetTP},
			loudnessConfig.Timeout,
			loudness.ExecRunner{},
		),
		Encoder:    opus.FFmpegEncoder{Path: loudnessConfig.FFmpegPath},
		Player:     voiceManager,
		Presence:   session.State,
		ScratchDir: scratch,
		Recorder: playback.Recorders{
			&repository.HistoryRecorder{Repo: plays, IDs: &generator.UUIDV7Generator{}},
			metrics,
		},
	})

	interactions := handler.NewInteractionHandler(handler.Deps{
		Catalog:           holder,
		Playback:          playbackHandler,
		Voice:             voiceManager,
		Presence:          session.State,
		History:           plays,
		AutocompleteLimit: resolverConfig.AutocompleteLimit,
		IDs:               ids,
	})
	session.AddHandler(interactions.ForSession())

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	if err := handler.EstablishCommands(session, session.State.User.ID, discordConfig.CommandGuildID()); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if audioConfig.RefreshCron != "" {
		if next, err := schedule.NextRunTimes(audioConfig.RefreshCron, time.Now(), 3); err == nil {
			slog.Info("Catalog refresh scheduled", "cron", audioConfig.RefreshCron, "next", next)
		}
		g.Go(func() error {
			return schedule.Every(gctx, audioConfig.RefreshCron, reload)
		})
	}
	if observeConfig.MetricsAddr != "" {
		g.Go(func() error {
			return observe.Serve(gctx, observeConfig.MetricsAddr, observe.Handler())
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	slog.Info("Bot is running, press Ctrl+C to exit")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("Shutting down")
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
