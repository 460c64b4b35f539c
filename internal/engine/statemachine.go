package engine

import "alertpulse/internal/alerts"

// Notify reasons recorded on dispatched notifications.
const (
	ReasonFiring    = "firing"
	ReasonRecovered = "recovered"
	ReasonErrored   = "errored"
)

// Decision is the state machine's verdict for one cycle.
type Decision struct {
	Next   alerts.State
	Notify bool
	Reason string
}

// Transition advances the per-alert state machine. Notification fires only
// on edges: entering ERRORED, entering FIRING from a non-firing state, and
// optionally leaving FIRING when recovery notices are enabled. Sustained
// conditions never re-notify. Snooze handling happens before this point; a
// prev of SNOOZED means the snooze just expired and behaves like NOT_FIRING.
func Transition(prev alerts.State, eval Evaluation, notifyOnRecovery bool) Decision {
	switch {
	case eval.ErrorTag != "":
		return Decision{
			Next:   alerts.StateErrored,
			Notify: prev != alerts.StateErrored,
			Reason: ReasonErrored,
		}
	case len(eval.Breaches) > 0:
		return Decision{
			Next:   alerts.StateFiring,
			Notify: prev != alerts.StateFiring,
			Reason: ReasonFiring,
		}
	default:
		return Decision{
			Next:   alerts.StateNotFiring,
			Notify: prev == alerts.StateFiring && notifyOnRecovery,
			Reason: ReasonRecovered,
		}
	}
}
