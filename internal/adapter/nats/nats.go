// Package nats implements the task broker port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/wikirace/wikipath/internal/logger"
	"github.com/wikirace/wikipath/internal/port/messagequeue"
)

const (
	streamName      = "WIKIPATH"
	headerRequestID = "X-Request-ID"
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream
// stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"search.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject. If the context carries a
// request ID, it is injected as a NATS header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}

	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header = nats.Header{}
		msg.Header.Set(headerRequestID, reqID)
	}

	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject.
// Acknowledgement follows the handler's decision: Ack removes the
// message, Retry redelivers it after opts.RetryDelay, Term drops it.
// Exceeding opts.MaxDeliver stops redelivery at the broker.
func (q *Queue) Subscribe(ctx context.Context, subject string, opts messagequeue.SubscribeOptions, handler messagequeue.Handler) (func(), error) {
	cfg := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if opts.MaxDeliver > 0 {
		cfg.MaxDeliver = opts.MaxDeliver
	}
	if opts.AckWait > 0 {
		cfg.AckWait = opts.AckWait
	}
	if opts.MaxPending > 0 {
		cfg.MaxAckPending = opts.MaxPending
	}

	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, cfg)
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		msgCtx := ctx
		if hdrs := msg.Headers(); hdrs != nil {
			if reqID := hdrs.Get(headerRequestID); reqID != "" {
				msgCtx = logger.WithRequestID(msgCtx, reqID)
			}
		}

		attempt := 1
		if meta, err := msg.Metadata(); err == nil {
			attempt = int(meta.NumDelivered)
		}

		switch handler(msgCtx, msg.Subject(), msg.Data(), attempt) {
		case messagequeue.Ack:
			if err := msg.Ack(); err != nil {
				slog.Error("nats ack failed", "subject", msg.Subject(), "error", err)
			}
		case messagequeue.Retry:
			delay := opts.RetryDelay
			if delay <= 0 {
				delay = time.Minute
			}
			if err := msg.NakWithDelay(delay); err != nil {
				slog.Error("nats nak failed", "subject", msg.Subject(), "error", err)
			}
		case messagequeue.Term:
			if err := msg.Term(); err != nil {
				slog.Error("nats term failed", "subject", msg.Subject(), "error", err)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// Drain gracefully drains all subscriptions, waits for pending messages,
// then closes the connection.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection immediately.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the NATS connection is active.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}
