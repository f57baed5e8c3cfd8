// Package scheduler runs the periodic expiry sweep and ledger reconciliation.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/cutmarket/backend/internal/services"
)

type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context) (*services.ReconcileReport, error)
}

type Intervals struct {
	Expiry    time.Duration
	Reconcile time.Duration
}

// Manager owns the gocron scheduler. Each job runs in singleton mode so a slow sweep
// is skipped rather than overlapped.
type Manager struct {
	scheduler  gocron.Scheduler
	expirer    Expirer
	reconciler Reconciler
	log        *slog.Logger
	now        func() time.Time
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewManager(expirer Expirer, reconciler Reconciler, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		scheduler:  s,
		expirer:    expirer,
		reconciler: reconciler,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start registers both jobs and starts the scheduler. Both run once immediately.
func (m *Manager) Start(iv Intervals) error {
	if err := m.register("quotation_expiry", iv.Expiry, m.runExpiry); err != nil {
		return err
	}
	if err := m.register("ledger_reconcile", iv.Reconcile, m.runReconcile); err != nil {
		return err
	}
	m.scheduler.Start()
	m.log.Info("scheduler started", "expiry_interval", iv.Expiry.String(), "reconcile_interval", iv.Reconcile.String())
	return nil
}

func (m *Manager) register(name string, every time.Duration, fn func()) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	return nil
}

func (m *Manager) runExpiry() {
	n, err := m.expirer.ExpireOverdue(m.ctx, m.now())
	if err != nil {
		m.log.Error("expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		m.log.Info("expiry sweep", "expired", n)
	}
}

func (m *Manager) runReconcile() {
	rep, err := m.reconciler.Reconcile(m.ctx)
	if err != nil {
		m.log.Error("reconciliation failed", "error", err)
		return
	}
	if rep.MissingPayouts > 0 || rep.ReleasedClaims > 0 || rep.Finalized > 0 {
		m.log.Warn("reconciliation repaired ledger",
			"missing_payouts", rep.MissingPayouts, "repaired", rep.Repaired,
			"released_claims", rep.ReleasedClaims, "finalized", rep.Finalized)
	}
}

// Stop cancels in-flight runs and shuts the scheduler down.
func (m *Manager) Stop() {
	m.cancel()
	if err := m.scheduler.Shutdown(); err != nil {
		m.log.Error("scheduler shutdown", "error", err)
	}
}
