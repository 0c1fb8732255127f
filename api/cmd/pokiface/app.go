package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pokiface/api/internal/artwork"
	"pokiface/api/internal/config"
	"pokiface/api/internal/credential"
	"pokiface/api/internal/handle"
	"pokiface/api/internal/logger"
	"pokiface/api/internal/match"
	"pokiface/api/internal/match/azure"
	"pokiface/api/internal/match/gemini"
	"pokiface/api/internal/store"
)

// app is everything the commands share.
type app struct {
	cfg *config.Config
	log *zap.Logger

	db      *sql.DB
	history *store.MatchRepo

	engines *match.Engines
	service *match.Service
	// byEngine holds one service per configured engine, for front-ends that let users pick.
	byEngine map[string]*match.Service

	artwork *artwork.Resolver
	prober  *credential.GeminiProber
	creds   *credential.Manager
}

func newLogger(cfg *config.Config, def string) (*zap.Logger, error) {
	level := cfg.LogLevel
	if def != "" && level == "info" {
		level = def
	}
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	return logger.New(level)
}

func buildEngines(cfg *config.Config) *match.Engines {
	engs := &match.Engines{
		Default: cfg.Provider,
		// a Gemini engine without a server key still serves callers that bring their own
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
	}
	if cfg.AzureEndpoint != "" {
		engs.Azure = azure.New(cfg.AzureEndpoint, cfg.AzureAPIKey, cfg.AzureDeployment, cfg.AzureAPIVersion)
	}
	return engs
}

// newApp wires config, logging, storage and the match service. defLevel overrides the
// default log level for commands that talk to a terminal.
func newApp(ctx context.Context, defLevel string) (*app, error) {
	cfg := config.Load()
	if llmName != "" {
		cfg.Provider = llmName
	}

	log, err := newLogger(cfg, defLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	var credStore credential.Store = credential.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := store.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("db connected", zap.String("dsn", config.RedactDSN(cfg.DatabaseURL)))
		a.db = db
		a.history = store.NewMatchRepo(db)
		credStore = store.NewCredentialRepo(db)
	}

	a.engines = buildEngines(cfg)
	eng, err := a.engines.GetEngine(cfg.Provider)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.artwork = artwork.New(cfg.PokeAPIBaseURL, cfg.PlaceholderURL, log)
	a.prober = credential.NewGeminiProber(cfg.GeminiBaseURL, cfg.GeminiProbeModel)
	a.creds = credential.NewManager(credStore, a.prober, log)

	a.service = a.newService(eng)
	a.byEngine = map[string]*match.Service{eng.Name(): a.service}
	for _, other := range []match.Engine{a.engines.Gemini, a.engines.Azure} {
		if other != nil && other.Name() != eng.Name() {
			a.byEngine[other.Name()] = a.newService(other)
		}
	}

	log.Info("engine ready", zap.String("engine", eng.Name()), zap.String("model", eng.GetModel()))
	return a, nil
}

func (a *app) newService(eng match.Engine) *match.Service {
	opts := []match.Option{match.WithPrompt(match.LoadPrompt(a.cfg.PromptDir, eng.Name()))}
	if a.history != nil {
		opts = append(opts, match.WithRecorder(a.history))
	}
	return match.NewService(eng, a.artwork, a.log, opts...)
}

// handler builds the HTTP API over the app's service.
func (a *app) handler() *handle.Handle {
	opts := []handle.Option{handle.WithTimeout(a.cfg.AnalyzeTimeout)}
	if a.history != nil {
		opts = append(opts, handle.WithHistory(a.history))
	}
	if a.db != nil {
		opts = append(opts, handle.WithDB(a.db))
	}
	return handle.New(a.service, a.artwork, a.prober, a.log, opts...)
}

// purgeHistory trims old matches every hour until ctx ends. No-op without a database or
// retention.
func (a *app) purgeHistory(ctx context.Context) error {
	if a.history == nil || a.cfg.HistoryRetention <= 0 {
		return nil
	}
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		n, err := a.history.PurgeOlderThan(ctx, a.cfg.HistoryRetention)
		if err != nil {
			a.log.Warn("purge history", zap.Error(err))
		} else if n > 0 {
			a.log.Info("purged history", zap.Int64("rows", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.log.Sync()
}
