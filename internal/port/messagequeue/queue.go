// Package messagequeue defines the task broker port (interface).
package messagequeue

import (
	"context"
	"time"
)

// Decision tells the broker what to do with a delivered message.
type Decision int

const (
	// Ack removes the message; the task reached a terminal outcome.
	Ack Decision = iota
	// Retry redelivers the message after the configured backoff.
	Retry
	// Term drops the message without redelivery (undecodable payload).
	Term
)

// Handler processes a message received from the broker. attempt is the
// 1-based delivery count including redeliveries. The message is
// acknowledged only after the handler returns (acks-late), so a worker
// crash causes redelivery rather than silent loss.
type Handler func(ctx context.Context, subject string, data []byte, attempt int) Decision

// SubscribeOptions bound a subscription's delivery behavior.
type SubscribeOptions struct {
	// MaxDeliver caps total deliveries (first attempt + retries).
	MaxDeliver int
	// AckWait is how long the broker waits for an ack before it counts
	// the delivery as lost. Must exceed the hard task time limit.
	AckWait time.Duration
	// RetryDelay is the backoff applied to Retry decisions.
	RetryDelay time.Duration
	// MaxPending caps unacknowledged in-flight messages per worker.
	MaxPending int
}

// Queue is the port interface for publishing and consuming task messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, opts SubscribeOptions, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the broker connection immediately.
	Close() error

	// IsConnected reports whether the broker is currently connected.
	IsConnected() bool
}

// Subject constants for the broker subjects used by wikipath.
const (
	// SubjectSearchJobs carries pathfinding jobs to the worker pool.
	SubjectSearchJobs = "search.jobs"
)
