package main

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/shuttertrack/shuttertrack/internal/auth"
	"github.com/shuttertrack/shuttertrack/internal/config"
	"github.com/shuttertrack/shuttertrack/internal/flagstore"
	"github.com/shuttertrack/shuttertrack/internal/logger"
	"github.com/shuttertrack/shuttertrack/internal/oauthflow"
	"github.com/shuttertrack/shuttertrack/internal/recovery"
	"github.com/shuttertrack/shuttertrack/internal/remote"
	"github.com/shuttertrack/shuttertrack/internal/session"
	"github.com/shuttertrack/shuttertrack/internal/store"
	"github.com/shuttertrack/shuttertrack/internal/syncengine"
)

// startTimeout bounds dependency-graph construction, which opens both local
// databases.
const startTimeout = 10 * time.Second

// deps is the slice of the object graph the CLI commands touch.
type deps struct {
	Config   *config.Config
	Auth     *auth.Session
	Flow     *oauthflow.Flow
	Tracker  *recovery.Tracker
	Store    *store.Store
	Sessions *session.Store
	Engines  *syncengine.Engines
}

// withApp builds the full object graph, hands it to the command body, and
// tears it down afterwards.
func withApp(run func(ctx context.Context, d *deps) error) error {
	var d deps

	app := fx.New(
		fx.NopLogger,
		config.Module,
		logger.Module,
		flagstore.Module,
		session.Module,
		auth.Module,
		recovery.Module,
		oauthflow.Module,
		store.Module,
		remote.Module,
		syncengine.Module,
		fx.Populate(&d.Config, &d.Auth, &d.Flow, &d.Tracker, &d.Store, &d.Sessions, &d.Engines),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), startTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	return run(context.Background(), &d)
}
