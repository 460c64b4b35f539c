// Package scheduler decides which alerts are due and dispatches evaluation
// cycles to a worker pool, with at most one in-flight evaluation per alert.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"alertpulse/internal/alerts"
	"alertpulse/internal/engine"
	"alertpulse/internal/metrics"
)

var (
	ErrAlertBusy     = errors.New("evaluation already in flight for alert")
	ErrAlertDisabled = errors.New("alert is disabled")
)

// Store is the slice of the repository the scheduler needs.
type Store interface {
	ListEnabledAlerts(ctx context.Context) ([]alerts.Alert, error)
	GetAlert(ctx context.Context, id string) (alerts.Alert, error)
	SetSnooze(ctx context.Context, id string, until time.Time) error
	ClearSnooze(ctx context.Context, id string) error
	UpdateRuntime(ctx context.Context, id string, state alerts.State, checkedAt time.Time, consecutiveErrors int, status string) error
}

// CycleRunner runs one evaluation cycle for an alert.
type CycleRunner interface {
	RunCycle(ctx context.Context, a alerts.Alert) (engine.Outcome, error)
}

type Registry struct {
	repo   Store
	runner CycleRunner
	logger *slog.Logger

	queue        chan alerts.Alert
	workers      int
	scanInterval time.Duration
	cycleTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

type Config struct {
	Repo         Store
	Runner       CycleRunner
	Logger       *slog.Logger
	Workers      int
	QueueSize    int
	ScanInterval time.Duration
	CycleTimeout time.Duration
	Now          func() time.Time
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		repo:         cfg.Repo,
		runner:       cfg.Runner,
		logger:       cfg.Logger,
		queue:        make(chan alerts.Alert, cfg.QueueSize),
		workers:      cfg.Workers,
		scanInterval: cfg.ScanInterval,
		cycleTimeout: cfg.CycleTimeout,
		inflight:     map[string]struct{}{},
		ctx:          ctx,
		cancel:       cancel,
		now:          cfg.Now,
	}
}

// Start launches the workers and the due-scan loop.
func (r *Registry) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.wg.Add(1)
	go r.scanLoop()
}

// Stop cancels scanning and waits for in-flight cycles to finish; results of
// cycles already running are still persisted.
func (r *Registry) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Registry) scanLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.ScanOnce(r.ctx)
		case <-r.ctx.Done():
			return
		}
	}
}

// ScanOnce enqueues every due alert. A due trigger for an alert whose lease
// is held is dropped, not queued, so a slow source cannot build a backlog.
func (r *Registry) ScanOnce(ctx context.Context) {
	enabled, err := r.repo.ListEnabledAlerts(ctx)
	if err != nil {
		r.logger.Error("due-scan failed", slog.String("error", err.Error()))
		return
	}
	now := r.now()
	for _, alert := range enabled {
		if !Due(alert, now) {
			continue
		}
		if !r.tryAcquire(alert.ID) {
			metrics.DroppedTriggersTotal.Inc()
			continue
		}
		select {
		case r.queue <- alert:
			metrics.QueueSize.Set(float64(len(r.queue)))
		default:
			// Queue full: release the lease and let the next scan retry.
			r.release(alert.ID)
			r.logger.Warn("evaluation queue full, deferring alert", slog.String("alert_id", alert.ID))
		}
	}
}

func (r *Registry) worker() {
	defer r.wg.Done()
	for {
		select {
		case alert := <-r.queue:
			metrics.QueueSize.Set(float64(len(r.queue)))
			r.execute(alert)
		case <-r.ctx.Done():
			return
		}
	}
}

// execute runs one cycle under the alert's lease. The lease was acquired at
// enqueue time and is released here regardless of outcome.
func (r *Registry) execute(alert alerts.Alert) {
	defer r.release(alert.ID)
	ctx, cancel := context.WithTimeout(context.Background(), r.cycleTimeout)
	defer cancel()
	outcome, err := r.runner.RunCycle(ctx, alert)
	if err != nil {
		// The runner persists what it can; the checked-at timestamp must
		// still advance so a persistently failing alert does not busy-loop.
		// The cycle context may already be expired, so the write gets its own.
		r.logger.Error("evaluation cycle failed", slog.String("alert_id", alert.ID), slog.String("error", err.Error()))
		status := alert.Status
		if status == "" {
			status = alerts.StatusActive
		}
		uctx, ucancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer ucancel()
		if uerr := r.repo.UpdateRuntime(uctx, alert.ID, alert.State, r.now(), alert.ConsecutiveErrors, status); uerr != nil {
			r.logger.Error("advance last_checked_at failed", slog.String("alert_id", alert.ID), slog.String("error", uerr.Error()))
		}
		return
	}
	if outcome.Notified {
		r.logger.Info("alert transition notified",
			slog.String("alert_id", alert.ID),
			slog.String("state", string(outcome.State)))
	}
}

// ForceCheck synchronously runs one cycle outside the due-set timing. It
// still honors the per-alert lease.
func (r *Registry) ForceCheck(ctx context.Context, id string) (engine.Outcome, error) {
	alert, err := r.repo.GetAlert(ctx, id)
	if err != nil {
		return engine.Outcome{}, err
	}
	if !alert.Enabled {
		return engine.Outcome{}, ErrAlertDisabled
	}
	if !r.tryAcquire(id) {
		return engine.Outcome{}, ErrAlertBusy
	}
	defer r.release(id)
	return r.runner.RunCycle(ctx, alert)
}

// Snooze forces the alert into SNOOZED and runs one cycle, which records the
// snoozed skip.
func (r *Registry) Snooze(ctx context.Context, id string, until time.Time) error {
	if err := r.repo.SetSnooze(ctx, id, until); err != nil {
		return err
	}
	alert, err := r.repo.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	if !r.tryAcquire(id) {
		return nil // in-flight cycle finishes; snooze applies from the next one
	}
	defer r.release(id)
	_, err = r.runner.RunCycle(ctx, alert)
	return err
}

// ClearSnooze forces SNOOZED -> NOT_FIRING immediately; clearing
// last_checked_at makes the alert due on the next scan.
func (r *Registry) ClearSnooze(ctx context.Context, id string) error {
	return r.repo.ClearSnooze(ctx, id)
}

// Kick re-examines one alert immediately, used when a config event arrives.
func (r *Registry) Kick(ctx context.Context, id string) {
	alert, err := r.repo.GetAlert(ctx, id)
	if err != nil {
		return
	}
	if !alert.Enabled || !Due(alert, r.now()) {
		return
	}
	if !r.tryAcquire(alert.ID) {
		metrics.DroppedTriggersTotal.Inc()
		return
	}
	select {
	case r.queue <- alert:
		metrics.QueueSize.Set(float64(len(r.queue)))
	default:
		r.release(alert.ID)
	}
}

// Inflight lists alert ids currently holding a lease.
func (r *Registry) Inflight() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.inflight))
	for id := range r.inflight {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) tryAcquire(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.inflight[id]; held {
		return false
	}
	r.inflight[id] = struct{}{}
	metrics.InflightEvaluations.Set(float64(len(r.inflight)))
	return true
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
	metrics.InflightEvaluations.Set(float64(len(r.inflight)))
}

// Due reports whether an alert should be evaluated now. Weekend skipping
// applies only to hourly and daily intervals; cycles missed over a skipped
// weekend collapse into a single run because due-ness is time-based.
func Due(a alerts.Alert, now time.Time) bool {
	if !a.Enabled {
		return false
	}
	if a.SkipWeekend && a.Interval.SkipsWeekend() && isWeekend(now) {
		return false
	}
	if a.LastCheckedAt == nil {
		return true
	}
	return !now.Before(a.LastCheckedAt.Add(a.Interval.Duration()))
}

func isWeekend(t time.Time) bool {
	day := t.Weekday()
	return day == time.Saturday || day == time.Sunday
}
