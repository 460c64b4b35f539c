// Package bus carries alert configuration events over NATS so the worker
// reacts to edits without polling.
package bus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// Subjects for configuration changes published by the acceptance boundary.
const (
	SubjectAlertCreated  = "alert.created"
	SubjectAlertUpdated  = "alert.updated"
	SubjectAlertEnabled  = "alert.enabled"
	SubjectAlertDisabled = "alert.disabled"
	SubjectAlertDeleted  = "alert.deleted"
)

type Event struct {
	AlertID string `json:"alert_id"`
}

type Publisher struct {
	Conn *nats.Conn
}

func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{Conn: conn}
}

func (p *Publisher) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(subject, data)
}

type Subscriber struct {
	Conn *nats.Conn
}

func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{Conn: conn}
}

func (s *Subscriber) Subscribe(subject string, handler func(Event)) (*nats.Subscription, error) {
	return s.Conn.Subscribe(subject, func(msg *nats.Msg) {
		var evt Event
		_ = json.Unmarshal(msg.Data, &evt)
		handler(evt)
	})
}

// Connect dials NATS; callers own draining the connection on shutdown.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url)
}
