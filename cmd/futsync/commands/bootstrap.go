package commands

import (
	"context"
	"fmt"

	"github.com/wonny/futsync/internal/calendar"
	"github.com/wonny/futsync/internal/store"
	"github.com/wonny/futsync/internal/syncer"
	"github.com/wonny/futsync/internal/tushare"
	"github.com/wonny/futsync/pkg/config"
	"github.com/wonny/futsync/pkg/database"
	"github.com/wonny/futsync/pkg/httputil"
	"github.com/wonny/futsync/pkg/logger"
	"github.com/wonny/futsync/pkg/ratelimit"
)

// app bundles the long-lived collaborators the commands share.
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	db           *database.DB
	store        *store.Store
	calendar     calendar.Calendar
	orchestrator *syncer.Orchestrator
}

// bootstrap wires config → logger → database → store → provider →
// orchestrator. Callers own the returned app and must call close.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	db, err := database.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	st, err := store.New(ctx, db, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}

	// The hard sliding-window budget sits on the HTTP client so every
	// provider call shares it.
	limiter := ratelimit.New(cfg.TuShare.MaxCalls, cfg.TuShare.Window)
	httpClient := httputil.New(log).WithLimiter(limiter)
	provider := tushare.NewClient(cfg.TuShare, httpClient, log)

	cal := calendar.New(cfg.Calendar)

	orchestrator := syncer.New(provider, st.Contracts, st.Quotes, st.MainContracts, cal, cfg.Sync, log)

	return &app{
		cfg:          cfg,
		log:          log,
		db:           db,
		store:        st,
		calendar:     cal,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) close() {
	a.db.Close()
}
