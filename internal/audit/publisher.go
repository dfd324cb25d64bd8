package audit

import (
	"context"
	"fmt"
	"time"

	"modelgov/pkg/platform/sentinel"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	return p.store.Append(ctx, base)
}

// ChannelPublisher hands events to a Worker through a buffered inbox so
// emitters never wait on the audit sink. Emit does not block: a full inbox
// drops the event and reports it, since audit must never stall a committed
// mutation.
type ChannelPublisher struct {
	inbox chan<- Event
}

func NewChannelPublisher(inbox chan<- Event) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox}
}

func (p *ChannelPublisher) Emit(_ context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	select {
	case p.inbox <- base:
		return nil
	default:
		return fmt.Errorf("audit inbox full: %w", sentinel.ErrUnavailable)
	}
}
