package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/glizzus/cobot/internal/catalog"
	"github.com/glizzus/cobot/internal/config"
	"github.com/glizzus/cobot/internal/datalayer"
	"github.com/glizzus/cobot/internal/loudness"
	"github.com/glizzus/cobot/internal/repository"
	"github.com/glizzus/cobot/internal/resolve"
)

func loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load audio config: %w", err)
	}

	var store datalayer.AudioStore
	if audioConfig.Source == config.AudioSourceMinio {
		store, err = datalayer.NewMinioStorageFromEnv(audioConfig.Extension)
		if err != nil {
			return nil, fmt.Errorf("failed to create minio storage: %w", err)
		}
	} else {
		store = datalayer.NewLocalStore(audioConfig.Dir, audioConfig.Extension)
	}

	var holder catalog.Holder
	if err := holder.Reload(ctx, store); err != nil {
		return nil, err
	}
	return holder.Load(), nil
}

var soundsCommand = &cli.Command{
	Name:  "sounds",
	Usage: "List every sound in the configured audio store",
	Action: func(c *cli.Context) error {
		cat, err := loadCatalog(c.Context)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		for _, e := range cat.Entries() {
			fmt.Println(e.DisplayName)
		}
		return nil
	},
}

var resolveCommand = &cli.Command{
	Name:      "resolve",
	Usage:     "Show how a query resolves against the catalog",
	ArgsUsage: "<query>",
	Action: func(c *cli.Context) error {
		query := strings.Join(c.Args().Slice(), " ")
		if query == "" {
			return cli.Exit("Please provide a query", 1)
		}

		resolverConfig, err := config.NewResolverConfigFromEnv()
		if err != nil {
			return cli.Exit("Failed to load resolver config: "+err.Error(), 1)
		}
		cat, err := loadCatalog(c.Context)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		resolver := resolve.New(resolve.Policy(resolverConfig.Policy), resolverConfig.MinThreshold, resolverConfig.HighThreshold)
		result := resolver.Resolve(query, cat)
		fmt.Printf("%s", result.Kind)
		if result.Entry.DisplayName != "" {
			fmt.Printf(": %s", result.Entry.DisplayName)
		}
		fmt.Println()
		for _, candidate := range resolve.Rank(query, cat, resolverConfig.AutocompleteLimit) {
			fmt.Printf("%4d  %s\n", candidate.Score, candidate.Entry.DisplayName)
		}
		return nil
	},
}

var loudnessCommand = &cli.Command{
	Name:      "loudness",
	Usage:     "Measure a file and print the loudnorm filter used for playback",
	ArgsUsage: "<file>",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.Exit("Please provide a file", 1)
		}

		loudnessConfig, err := config.NewLoudnessConfigFromEnv()
		if err != nil {
			return cli.Exit("Failed to load loudness config: "+err.Error(), 1)
		}
		target := loudness.Target{I: loudnessConfig.TargetI, TP: loudnessConfig.TargetTP}
		analyzer := loudness.NewAnalyzer(loudnessConfig.FFmpegPath, target, loudnessConfig.Timeout, loudness.ExecRunner{})

		m, err := analyzer.Measure(c.Context, path)
		if err != nil {
			return cli.Exit("Failed to measure loudness: "+err.Error(), 1)
		}
		fmt.Printf("input_i=%g input_tp=%g input_lra=%g input_thresh=%g\n", m.InputI, m.InputTP, m.InputLRA, m.InputThresh)
		fmt.Println(loudness.FilterFor(m, target))
		return nil
	},
}

var uploadCommand = &cli.Command{
	Name:      "upload",
	Usage:     "Upload a sound file to the minio bucket",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "name",
			Usage: "Display name of the sound, defaults to the file name without extension",
		},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.Exit("Please provide a file", 1)
		}
		name := c.String("name")
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		audioConfig, err := config.NewAudioConfigFromEnv()
		if err != nil {
			return cli.Exit("Failed to load audio config: "+err.Error(), 1)
		}
		storage, err := datalayer.NewMinioStorageFromEnv(audioConfig.Extension)
		if err != nil {
			return cli.Exit("Failed to create minio storage: "+err.Error(), 1)
		}
		if err := storage.EnsureBucket(c.Context); err != nil {
			return cli.Exit("Failed to ensure bucket: "+err.Error(), 1)
		}

		f, err := os.Open(path)
		if err != nil {
			return cli.Exit("Failed to open file: "+err.Error(), 1)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return cli.Exit("Failed to stat file: "+err.Error(), 1)
		}

		if err := storage.PutSound(c.Context, name, f, info.Size()); err != nil {
			return cli.Exit("Failed to upload sound: "+err.Error(), 1)
		}
		log.Printf("Uploaded %q", name)
		return nil
	},
}

var topCommand = &cli.Command{
	Name:  "top",
	Usage: "Show the most played sounds for a guild",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "guild-id",
			Usage:    "ID of the guild to report on",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Number of sounds to show",
			Value: 10,
		},
	},
	Action: func(c *cli.Context) error {
		pool, err := datalayer.NewPostgresPoolFromEnv(c.Context)
		if err != nil {
			return cli.Exit("Failed to create postgres pool: "+err.Error(), 1)
		}
		defer pool.Close()
		if err := datalayer.MigratePostgres(pool); err != nil {
			return cli.Exit("Failed to migrate postgres: "+err.Error(), 1)
		}

		repo := repository.NewPostgresPlayRepository(pool)
		counts, err := repo.TopSounds(c.Context, c.String("guild-id"), c.Int("limit"))
		if err != nil {
			return cli.Exit("Failed to load top sounds: "+err.Error(), 1)
		}
		if len(counts) == 0 {
			log.Println("No sounds have been played in this guild yet.")
			return nil
		}
		for i, count := range counts {
			fmt.Printf("%2d. %s (%d)\n", i+1, count.Sound, count.Plays)
		}
		return nil
	},
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	app := &cli.App{
		Name:        "cobot-cli",
		Description: "A development CLI tool for exercising the soundboard without Discord",
		Commands: []*cli.Command{
			soundsCommand,
			resolveCommand,
			loudnessCommand,
			uploadCommand,
			topCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
