// Package events publishes batch completion events on NATS.
package events

import (
	"context"
	"fmt"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is where BatchCompleted events go when none is configured.
const DefaultSubject = "hazard.batch.completed"

// Publisher sends BatchCompleted events. It satisfies rag.Recorder.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a Publisher on subject.
func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

// RecordBatch publishes ev.
func (p *Publisher) RecordBatch(ctx context.Context, ev domain.BatchCompleted) error {
	if err := natsutil.Publish(ctx, p.nc, p.subject, ev); err != nil {
		return fmt.Errorf("events: publish %s: %w", p.subject, err)
	}
	return nil
}

// Subscribe delivers BatchCompleted events on subject to handler.
func Subscribe(nc *nats.Conn, subject string, handler func(context.Context, domain.BatchCompleted)) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	return natsutil.Subscribe(nc, subject, handler)
}
