// Package notify delivers fire-and-forget events after cycles that
// produced an order. Delivery failures are logged, never propagated into
// the cycle.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type EventKind string

const (
	KindOpen  EventKind = "open"
	KindClose EventKind = "close"
)

// Event describes one order the engine submitted.
type Event struct {
	Epic string
	Kind EventKind
	Time time.Time
}

type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Log is the default notifier: one structured line per event.
type Log struct {
	log *zap.Logger
}

var _ Notifier = (*Log)(nil)

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (n *Log) Notify(_ context.Context, e Event) {
	n.log.Info("trade event",
		zap.String("epic", e.Epic),
		zap.String("kind", string(e.Kind)),
		zap.Time("utm", e.Time),
	)
}
