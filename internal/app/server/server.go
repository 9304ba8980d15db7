package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xwp/ga4-extensions/internal/api"
	"github.com/xwp/ga4-extensions/internal/config"
	"github.com/xwp/ga4-extensions/internal/facts"
	"github.com/xwp/ga4-extensions/internal/listener"
	"github.com/xwp/ga4-extensions/internal/settings"
	"github.com/xwp/ga4-extensions/internal/storage"
	"github.com/xwp/ga4-extensions/internal/tag"
)

// Backend is the content side of the store: *storage.Store or
// *storage.MemoryStore.
type Backend interface {
	api.ContentStore
	api.SessionStore
	facts.UserLookup
	facts.TermLookup
	storage.OptionSource
}

// NewHandler wires settings, facts and the emitter over backend. Option
// reads go through options.
func NewHandler(backend Backend, options settings.OptionStore, siteURL string) (http.Handler, error) {
	mgr := settings.NewManager(options)
	if err := settings.RegisterMeasurementID(mgr); err != nil {
		return nil, err
	}
	emitter := tag.NewEmitter(mgr, facts.NewResolver(backend, backend), siteURL)
	return api.Router(api.NewHandler(backend, mgr, emitter), backend), nil
}

// OpenMemory builds the in-memory backend, seeded from the fixtures file
// when one is configured and present.
func OpenMemory(cfg config.Config) (*storage.MemoryStore, error) {
	mem := storage.NewMemoryStore()
	if cfg.Site.Fixtures == "" {
		return mem, nil
	}
	fx, err := storage.LoadFixtures(cfg.Site.Fixtures)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", cfg.Site.Fixtures).Msg("fixtures not found; starting empty")
		return mem, nil
	}
	if err != nil {
		return nil, err
	}
	mem.Apply(fx)
	return mem, nil
}

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var backend Backend
	if cfg.UsePostgres() {
		store, err := storage.New(rootCtx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("init storage")
		}
		defer store.Close()
		if err := store.Migrate(rootCtx); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		log.Info().Str("dsn", cfg.DSNRedacted()).Msg("postgres ready")
		backend = store
	} else {
		mem, err := OpenMemory(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("init memory store")
		}
		log.Info().Msg("no postgres host configured; serving from memory")
		backend = mem
	}

	options := storage.NewOptionCache(backend)
	if err := options.Refresh(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("initial options load")
	}

	// Listener (LISTEN/NOTIFY)
	if store, ok := backend.(*storage.Store); ok {
		go listener.ListenAndRefresh(rootCtx, store, options, cfg.Listener.Channel, cfg.Backoff())
	}

	h, err := NewHandler(backend, options, cfg.Site.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("init handler")
	}
	if _, ok := tag.SiteDomain(cfg.Site.URL); !ok {
		log.Warn().Str("site_url", cfg.Site.URL).Msg("site url has no host; gtag will not be emitted")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Server goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	// Wait for signal
	waitForSignal()
	log.Info().Msg("shutdown...")

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(fmt.Errorf("shutdown: %w", err)).Msg("graceful shutdown failed")
	}
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
