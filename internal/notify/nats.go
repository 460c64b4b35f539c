package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"alertpulse/internal/engine"
)

// Subjects notification events are published on, by transition reason.
const (
	SubjectFired     = "alert.check.fired"
	SubjectRecovered = "alert.check.recovered"
	SubjectErrored   = "alert.check.errored"
)

// NATSNotifier publishes the full notification as a bus event; downstream
// delivery workers (email, chat) consume it from there.
type NATSNotifier struct {
	Conn *nats.Conn
}

func NewNATSNotifier(conn *nats.Conn) *NATSNotifier {
	return &NATSNotifier{Conn: conn}
}

func (n *NATSNotifier) Notify(_ context.Context, ntf engine.Notification) error {
	data, err := json.Marshal(ntf)
	if err != nil {
		return err
	}
	if err := n.Conn.Publish(subjectFor(ntf.Reason), data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func subjectFor(reason string) string {
	switch reason {
	case engine.ReasonRecovered:
		return SubjectRecovered
	case engine.ReasonErrored:
		return SubjectErrored
	default:
		return SubjectFired
	}
}
