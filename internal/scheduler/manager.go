// Package scheduler owns the set of running per-monitor polling loops and
// keeps it aligned with the stored monitor configurations.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"auction-watch/internal/storage"
)

// ErrMonitorNotFound is returned by RunNow for an unknown monitor id.
var ErrMonitorNotFound = errors.New("scheduler: monitor not found")

// Runner executes one polling cycle for a monitor configuration.
type Runner interface {
	Run(ctx context.Context, cfg storage.Monitor)
}

// Options tune manager behaviour.
type Options struct {
	ReconcileInterval time.Duration
}

// Manager reconciles running polling loops against the active monitor set on
// a fixed cadence. It is the only owner of the running-jobs table.
type Manager struct {
	opts    Options
	configs storage.MonitorStore
	runner  Runner
	logger  zerolog.Logger

	cron *cron.Cron

	mu   sync.Mutex
	jobs map[int64]*job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// job is the in-memory handle for one monitor's polling loop.
type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// alive reports whether the loop goroutine is still running.
func (j *job) alive() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

// New constructs a Manager.
func New(opts Options, configs storage.MonitorStore, runner Runner, logger zerolog.Logger) *Manager {
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = time.Minute
	}
	return &Manager{
		opts:    opts,
		configs: configs,
		runner:  runner,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:    make(map[int64]*job),
	}
}

// Start runs an initial reconciliation and begins the periodic tick. Loops
// started by the manager live under ctx; cancelling it stops everything.
func (m *Manager) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.Reconcile(runCtx)

	spec := fmt.Sprintf("@every %s", m.opts.ReconcileInterval)
	if _, err := m.cron.AddFunc(spec, func() { m.Reconcile(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("register reconcile tick: %w", err)
	}
	m.cron.Start()

	m.logger.Info().Str("reconcile_every", m.opts.ReconcileInterval.String()).Msg("scheduler started")
	return nil
}

// Reconcile aligns the running-jobs table with the current active monitor
// set: cancels jobs whose monitor vanished or was deactivated, and starts
// jobs for active monitors without a live loop.
func (m *Manager) Reconcile(ctx context.Context) {
	configs, err := m.configs.ListActiveMonitors(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("reconcile: listing active monitors failed")
		return
	}

	active := make(map[int64]storage.Monitor, len(configs))
	for _, cfg := range configs {
		active[cfg.ID] = cfg
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, j := range m.jobs {
		if _, ok := active[id]; !ok {
			j.cancel()
			delete(m.jobs, id)
			m.logger.Info().Int64("monitor_id", id).Msg("polling loop removed")
		}
	}

	for id, cfg := range active {
		if j, ok := m.jobs[id]; ok {
			if j.alive() {
				continue
			}
			// Loop died unexpectedly; replace it.
			delete(m.jobs, id)
			m.logger.Warn().Int64("monitor_id", id).Msg("polling loop found dead; restarting")
		}
		m.startJobLocked(ctx, cfg)
	}
}

func (m *Manager) startJobLocked(ctx context.Context, cfg storage.Monitor) {
	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{cancel: cancel, done: make(chan struct{})}
	m.jobs[cfg.ID] = j

	m.wg.Add(1)
	go m.loop(jobCtx, cfg, j)

	m.logger.Info().
		Int64("monitor_id", cfg.ID).
		Str("monitor", cfg.Name).
		Int("interval_minutes", cfg.IntervalMinutes).
		Msg("polling loop started")
}

// loop runs one cycle immediately, then every interval until cancelled.
// Interval edits apply the next time reconciliation (re)starts the loop; an
// in-flight sleep is never preempted.
func (m *Manager) loop(ctx context.Context, cfg storage.Monitor, j *job) {
	defer m.wg.Done()
	defer close(j.done)

	interval := time.Duration(cfg.IntervalMinutes) * time.Minute

	for {
		m.safeRun(ctx, cfg)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// safeRun keeps a single cycle's failure, including a panic, from killing
// the loop.
func (m *Manager) safeRun(ctx context.Context, cfg storage.Monitor) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error().
				Int64("monitor_id", cfg.ID).
				Interface("panic", rec).
				Msg("monitor cycle panicked; loop continues")
		}
	}()

	if ctx.Err() != nil {
		return
	}
	m.runner.Run(ctx, cfg)
}

// RunNow executes one synchronous cycle for the monitor, independent of and
// without disturbing its scheduled loop's timer.
func (m *Manager) RunNow(ctx context.Context, id int64) error {
	cfg, err := m.configs.GetMonitor(ctx, id)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrMonitorNotFound
	}

	m.logger.Info().Int64("monitor_id", id).Str("monitor", cfg.Name).Msg("manual run requested")
	m.runner.Run(ctx, *cfg)
	return nil
}

// Running returns the monitor ids with a live polling loop.
func (m *Manager) Running() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.jobs))
	for id, j := range m.jobs {
		if j.alive() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Stop cancels the reconciliation tick and every polling loop, then waits
// for the loops to exit. In-flight cycles are not drained beyond their next
// suspension point.
func (m *Manager) Stop() {
	m.cron.Stop()

	m.mu.Lock()
	for id, j := range m.jobs {
		j.cancel()
		delete(m.jobs, id)
	}
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.logger.Info().Msg("scheduler stopped")
}
