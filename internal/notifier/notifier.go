// Package notifier delivers human-readable engine events to an operator
// channel.
package notifier

import "context"

// Notifier sends one text message to the operator.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Noop discards every message. Used when no channel is configured.
type Noop struct{}

func (Noop) Send(context.Context, string) error { return nil }
