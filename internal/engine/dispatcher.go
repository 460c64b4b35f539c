package engine

import (
	"context"
	"log/slog"

	"alertpulse/internal/alerts"
	"alertpulse/internal/metrics"
)

// Target is one resolved notification recipient.
type Target struct {
	Kind    string `json:"kind"` // user | webhook | bus
	Address string `json:"address"`
}

// Notification is the payload handed to the external notifier, once per
// notify-worthy transition.
type Notification struct {
	Alert   alerts.Alert `json:"alert"`
	Check   alerts.Check `json:"check"`
	Reason  string       `json:"reason"`
	Targets []Target     `json:"targets"`
}

// Notifier delivers a notification to its targets. Best-effort: failures are
// reported but never affect alert state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type Dispatcher struct {
	Notifier Notifier
	Logger   *slog.Logger
}

// Dispatch resolves the target set and calls the notifier exactly once.
func (d *Dispatcher) Dispatch(ctx context.Context, a alerts.Alert, check alerts.Check, reason string) error {
	targets := ResolveTargets(a)
	err := d.Notifier.Notify(ctx, Notification{
		Alert:   a,
		Check:   check,
		Reason:  reason,
		Targets: targets,
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		d.Logger.Warn("notification dispatch failed",
			slog.String("alert_id", a.ID),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		return err
	}
	metrics.NotificationsTotal.WithLabelValues("ok").Inc()
	return nil
}

// ResolveTargets is the union of subscribed users and configured
// destinations, deduplicated.
func ResolveTargets(a alerts.Alert) []Target {
	seen := map[Target]struct{}{}
	targets := make([]Target, 0, len(a.SubscribedUsers)+len(a.Destinations))
	add := func(t Target) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}
	for _, user := range a.SubscribedUsers {
		add(Target{Kind: "user", Address: user})
	}
	for _, dest := range a.Destinations {
		add(Target{Kind: dest.Kind, Address: dest.Target})
	}
	return targets
}
