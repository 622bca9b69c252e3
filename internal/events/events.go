// Package events is the fire-and-forget event sink shared by the credential
// and wallet services. Publishing never fails the operation that emitted it.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"attesto/pkg/requestcontext"
)

// Topic names a published event stream.
type Topic string

const (
	WalletCreated       Topic = "wallet.created"
	WalletUnlocked      Topic = "wallet.unlocked"
	WalletLocked        Topic = "wallet.locked"
	WalletRecovered     Topic = "wallet.recovered"
	WalletDeactivated   Topic = "wallet.deactivated"
	CredentialReceived  Topic = "credential.received"
	CredentialIssued    Topic = "credential.issued"
	CredentialRevoked   Topic = "credential.revoked"
	PresentationCreated Topic = "presentation.created"
)

// Event is one published fact. Data never carries secrets.
type Event struct {
	ID         string            `json:"id"`
	Topic      Topic             `json:"topic"`
	Subject    string            `json:"subject"`
	OccurredAt time.Time         `json:"occurredAt"`
	RequestID  string            `json:"requestId,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

// New stamps an event with an id, the request clock and the request id.
func New(ctx context.Context, topic Topic, subject string, data map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		Subject:    subject,
		OccurredAt: requestcontext.Now(ctx),
		RequestID:  requestcontext.RequestID(ctx),
		Data:       data,
	}
}

// Publisher is the event sink capability.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory. Used in tests and when no
// broker is configured.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ByTopic returns the recorded events for one topic.
func (r *Recorder) ByTopic(topic Topic) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
