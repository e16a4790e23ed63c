// Package service decides when the reconcilers run: on sign-in, on
// reconnect, and whenever the backend becomes reachable again.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/reconcile"
	"golang.org/x/sync/singleflight"
)

// Runner is one reconciliation routine.
type Runner interface {
	Run(ctx context.Context, userID string) reconcile.Report
}

// RunLog persists when each routine last completed for a user.
type RunLog interface {
	LastRun(kind, userID string) (time.Time, bool, error)
	SetLastRun(kind, userID string, at time.Time) error
}

// Pinger reports whether the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service coordinates the migration and sync routines for signed-in
// users. Concurrent requests for the same routine and user share one run.
type Service struct {
	migrator Runner
	syncer   Runner
	runs     RunLog
	pinger   Pinger
	logger   *slog.Logger

	group singleflight.Group
}

// New creates a Service.
func New(migrator, syncer Runner, runs RunLog, pinger Pinger, logger *slog.Logger) *Service {
	return &Service{
		migrator: migrator,
		syncer:   syncer,
		runs:     runs,
		pinger:   pinger,
		logger:   logger,
	}
}

// OnSignIn runs when a user signs in or creates an account: guest games
// are migrated first, then any offline games are synced.
func (s *Service) OnSignIn(ctx context.Context, userID string) (migrate, sync reconcile.Report) {
	migrate = s.run(ctx, reconcile.RunMigrate, s.migrator, userID)
	sync = s.run(ctx, reconcile.RunSync, s.syncer, userID)

	return migrate, sync
}

// OnReconnect runs when connectivity returns.
func (s *Service) OnReconnect(ctx context.Context, userID string) reconcile.Report {
	return s.run(ctx, reconcile.RunSync, s.syncer, userID)
}

// Migrate runs only the guest migration.
func (s *Service) Migrate(ctx context.Context, userID string) reconcile.Report {
	return s.run(ctx, reconcile.RunMigrate, s.migrator, userID)
}

// run executes runner once per (kind, user) at a time. Callers that
// arrive while a run is in flight wait for it and receive its report. The
// shared run is detached from the first caller's cancellation, so one
// caller giving up never hands an interrupted report to the others.
func (s *Service) run(ctx context.Context, kind reconcile.RunKind, runner Runner, userID string) reconcile.Report {
	v, _, shared := s.group.Do(string(kind)+":"+userID, func() (any, error) {
		report := runner.Run(context.WithoutCancel(ctx), userID)

		if report.Complete() {
			if err := s.runs.SetLastRun(string(kind), userID, report.FinishedAt); err != nil {
				s.logger.Warn("saving last run",
					slog.String("kind", string(kind)),
					slog.String("error", err.Error()),
				)
			}
		}

		return report, nil
	})

	if shared {
		s.logger.Debug("joined in-flight run", slog.String("kind", string(kind)), slog.String("user_id", userID))
	}

	return v.(reconcile.Report)
}

// LastRuns returns when each routine last completed for userID. Routines
// that never completed are absent.
func LastRuns(runs RunLog, userID string) (map[reconcile.RunKind]time.Time, error) {
	out := make(map[reconcile.RunKind]time.Time)

	for _, kind := range []reconcile.RunKind{reconcile.RunMigrate, reconcile.RunSync} {
		at, found, err := runs.LastRun(string(kind), userID)
		if err != nil {
			return nil, err
		}

		if found {
			out[kind] = at
		}
	}

	return out, nil
}

// Watch probes the backend every interval and syncs userID's offline
// games each time it goes from unreachable to reachable. The backend is
// assumed unreachable at start, so the first successful probe syncs.
// Watch returns nil when ctx is cancelled.
func (s *Service) Watch(ctx context.Context, userID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	up := false

	s.logger.Info("watching backend", slog.Duration("interval", interval))

	for {
		reachable := s.probe(ctx, interval)

		switch {
		case reachable && !up:
			s.logger.Info("backend reachable, syncing")

			report := s.OnReconnect(ctx, userID)
			if report.Err != nil {
				s.logger.Warn("sync after reconnect failed", slog.String("error", report.Err.Error()))
			}
		case !reachable && up:
			s.logger.Info("backend unreachable")
		}

		up = reachable

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) probe(ctx context.Context, timeout time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.pinger.Ping(pingCtx) == nil
}
