package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/puzzle-sync/internal/cache"
	"github.com/alexjbarnes/puzzle-sync/internal/clock"
	"github.com/alexjbarnes/puzzle-sync/internal/config"
	apperrors "github.com/alexjbarnes/puzzle-sync/internal/errors"
	"github.com/alexjbarnes/puzzle-sync/internal/reconcile"
	"github.com/alexjbarnes/puzzle-sync/internal/remote"
	"github.com/alexjbarnes/puzzle-sync/internal/service"
	"github.com/alexjbarnes/puzzle-sync/internal/session"
	"github.com/alexjbarnes/puzzle-sync/internal/state"
)

// app holds the resources a command needs. Each is opened on first use
// and released by close.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  clock.Clock

	output string
	token  string

	local *state.State
	db    *remote.DB
	views cache.Views
}

func (a *app) openLocal() (*state.State, error) {
	if a.local != nil {
		return a.local, nil
	}

	local, err := state.LoadAt(a.cfg.StatePath)
	if err != nil {
		return nil, err
	}

	a.local = local

	return local, nil
}

// openRemote connects to the backend and brings its schema up to date.
func (a *app) openRemote(ctx context.Context) (*remote.Store, error) {
	if a.db == nil {
		db, err := remote.Open(ctx, remote.Options{
			Type: a.cfg.DatabaseType,
			URL:  a.cfg.DatabaseURL,
			Path: a.cfg.DatabasePath,
		})
		if err != nil {
			return nil, err
		}

		if err := db.RunMigrations(ctx, a.logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}

		a.db = db
	}

	return remote.NewStore(a.db), nil
}

// openViews connects to Redis when REDIS_URL is set. Without it every
// view read misses.
func (a *app) openViews(ctx context.Context) (cache.Views, error) {
	if a.views != nil {
		return a.views, nil
	}

	if a.cfg.RedisURL == "" {
		a.views = cache.Nop{}
		return a.views, nil
	}

	views, err := cache.NewRedis(ctx, a.cfg.RedisURL, a.cfg.ViewCacheTTL)
	if err != nil {
		return nil, err
	}

	a.views = views

	return views, nil
}

// session verifies the --token flag, falling back to SESSION_TOKEN.
func (a *app) session() (session.Session, error) {
	if err := a.cfg.RequireSession(); err != nil {
		return session.Session{}, err
	}

	token := a.token
	if token == "" {
		token = a.cfg.SessionToken
	}

	if token == "" {
		return session.Session{}, fmt.Errorf("%w: pass --token or set SESSION_TOKEN", apperrors.ErrNoUser)
	}

	return session.Parse(token, a.cfg.JWTSecret)
}

// service wires the reconcilers to local state, the backend and the view
// cache.
func (a *app) service(ctx context.Context) (*service.Service, *remote.Store, error) {
	local, err := a.openLocal()
	if err != nil {
		return nil, nil, err
	}

	store, err := a.openRemote(ctx)
	if err != nil {
		return nil, nil, err
	}

	views, err := a.openViews(ctx)
	if err != nil {
		return nil, nil, err
	}

	rem := reconcile.StoreRemote{Store: store}
	migrator := reconcile.NewMigrator(local, rem, views, a.clock, a.logger, a.cfg.AtomicWrites)
	syncer := reconcile.NewSyncer(local, rem, views, a.clock, a.logger, a.cfg.AtomicWrites)

	return service.New(migrator, syncer, local, store, a.logger), store, nil
}

func (a *app) close() error {
	var errs []error

	if a.views != nil {
		errs = append(errs, a.views.Close())
	}

	if a.db != nil {
		errs = append(errs, a.db.Close())
	}

	if a.local != nil {
		errs = append(errs, a.local.Close())
	}

	return errors.Join(errs...)
}
