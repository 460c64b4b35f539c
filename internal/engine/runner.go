package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"alertpulse/internal/alerts"
	"alertpulse/internal/metrics"
)

// degradedAfter is the number of consecutive errored cycles that escalate an
// alert to the DEGRADED status.
const degradedAfter = 3

// CheckStore persists cycle outcomes: append-only checks plus the runtime
// fields on the alert row.
type CheckStore interface {
	CreateCheck(ctx context.Context, check alerts.Check) error
	UpdateRuntime(ctx context.Context, id string, state alerts.State, checkedAt time.Time, consecutiveErrors int, status string) error
	ClearSnooze(ctx context.Context, id string) error
}

// Outcome summarizes one cycle for the caller.
type Outcome struct {
	Skipped  bool
	State    alerts.State
	Notified bool
	Check    *alerts.Check
}

// Runner executes one full evaluation cycle under the scheduler's per-alert
// lease. It never panics or raises past the cycle boundary.
type Runner struct {
	Evaluator  *Evaluator
	Store      CheckStore
	Dispatcher *Dispatcher
	Logger     *slog.Logger
	Now        func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// RunCycle evaluates one alert and persists exactly one check, except inside
// an active snooze window where the cycle is skipped entirely.
func (r *Runner) RunCycle(ctx context.Context, a alerts.Alert) (Outcome, error) {
	now := r.now()
	prev := a.State
	if prev == "" {
		prev = alerts.StateNotFiring
	}
	if prev == alerts.StateSnoozed {
		if a.SnoozedUntil != nil && now.Before(*a.SnoozedUntil) {
			// Still snoozed: no evaluation, no check row. The checked-at
			// timestamp still advances so the due-scan does not spin.
			if err := r.Store.UpdateRuntime(ctx, a.ID, alerts.StateSnoozed, now, a.ConsecutiveErrors, statusFor(a.ConsecutiveErrors)); err != nil {
				return Outcome{}, err
			}
			metrics.CyclesTotal.WithLabelValues("snoozed").Inc()
			return Outcome{Skipped: true, State: alerts.StateSnoozed}, nil
		}
		// Snooze expired: clear it and evaluate this cycle from a clean slate.
		if err := r.Store.ClearSnooze(ctx, a.ID); err != nil {
			r.Logger.Warn("clear snooze failed", slog.String("alert_id", a.ID), slog.String("error", err.Error()))
		}
		prev = alerts.StateNotFiring
	}

	eval := r.Evaluator.Evaluate(ctx, a)
	decision := Transition(prev, eval, a.NotifyOnRecovery)

	check := alerts.Check{
		ID:              uuid.NewString(),
		AlertID:         a.ID,
		CreatedAt:       now,
		State:           decision.Next,
		CalculatedValue: eval.Value,
		RawValue:        eval.RawValue,
		Breaches:        eval.Breaches,
		Metadata:        eval.Metadata,
		ErrorTag:        eval.ErrorTag,
	}

	if decision.Notify {
		// Best-effort: a failed send is logged inside Dispatch and must not
		// roll back the transition or the check row.
		_ = r.Dispatcher.Dispatch(ctx, a, check, decision.Reason)
		check.TargetsNotified = true
	}

	if err := r.Store.CreateCheck(ctx, check); err != nil {
		r.Logger.Error("persist check failed", slog.String("alert_id", a.ID), slog.String("error", err.Error()))
	}

	consecutive := 0
	if decision.Next == alerts.StateErrored {
		consecutive = a.ConsecutiveErrors + 1
	}
	status := statusFor(consecutive)
	if err := r.Store.UpdateRuntime(ctx, a.ID, decision.Next, now, consecutive, status); err != nil {
		r.Logger.Error("update runtime failed", slog.String("alert_id", a.ID), slog.String("error", err.Error()))
	}
	if consecutive == degradedAfter {
		metrics.DegradedTotal.Inc()
		r.Logger.Warn("alert degraded after consecutive errored cycles",
			slog.String("alert_id", a.ID),
			slog.Int("consecutive_errors", consecutive))
	}

	switch {
	case eval.ErrorTag != "":
		metrics.CyclesTotal.WithLabelValues("errored").Inc()
	case len(eval.Breaches) > 0:
		metrics.CyclesTotal.WithLabelValues("breach").Inc()
		metrics.BreachesTotal.Inc()
	default:
		metrics.CyclesTotal.WithLabelValues("ok").Inc()
	}

	return Outcome{State: decision.Next, Notified: decision.Notify, Check: &check}, nil
}

func statusFor(consecutiveErrors int) string {
	if consecutiveErrors >= degradedAfter {
		return alerts.StatusDegraded
	}
	return alerts.StatusActive
}
