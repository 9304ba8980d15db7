package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/xwp/ga4-extensions/internal/config"
	"github.com/xwp/ga4-extensions/internal/storage"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)

	path := flag.String("fixtures", cfg.Site.Fixtures, "YAML fixture file to load")
	flag.Parse()

	if !cfg.UsePostgres() {
		log.Fatal().Msg("APP_POSTGRES_HOST is not set")
	}
	fx, err := storage.LoadFixtures(*path)
	if err != nil {
		log.Fatal().Err(err).Msg("load fixtures")
	}

	ctx := context.Background()
	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	if err := store.Seed(ctx, fx); err != nil {
		log.Fatal().Err(err).Msg("seed")
	}
	log.Info().Int("posts", len(fx.Posts)).Int("users", len(fx.Users)).Msg("seeded")
}
