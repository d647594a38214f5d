package chatsync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/status"
)

// EventKind is the server-sent event name.
type EventKind string

const (
	EventMessageReceive EventKind = "MessageReceive"
	EventMessageEdit    EventKind = "MessageEdit"
	EventMessageDelete  EventKind = "MessageDelete"
)

// PushEvent is one decoded server push event. For MessageReceive the message
// is complete; MessageEdit carries ID, Text and EditedAt; MessageDelete
// carries ID only.
type PushEvent struct {
	Kind     EventKind
	Sender   int64
	Receiver int64
	ChatKind Kind
	Message  Message
}

// ChatKey returns the chat the event belongs to as seen by the local user.
// Group events belong to the receiving group. Direct events belong to the
// other party: the receiver when the local user sent it, else the sender.
func (e PushEvent) ChatKey(local int64) ChatKey {
	kind := e.ChatKind
	if !kind.Valid() {
		kind = Direct
	}
	if kind == Group || e.Sender == local {
		return ChatKey{PeerID: e.Receiver, Kind: kind}
	}
	return ChatKey{PeerID: e.Sender, Kind: kind}
}

// EventHandler applies decoded events. Engine implements it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev PushEvent) error
}

// RetryPolicy decides how long to wait before reconnect attempt n (0-based).
type RetryPolicy interface {
	Next(attempt int) time.Duration
}

// Backoff doubles Base per attempt up to Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Next implements RetryPolicy.
func (b Backoff) Next(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// ConsumerStats counts frames seen by a consumer.
type ConsumerStats struct {
	Received int64
	Dropped  int64
	Ignored  int64
}

// Consumer keeps a push-event connection open and hands decoded events to a
// handler, reconnecting on loss.
type Consumer struct {
	dialer  Dialer
	decoder Decoder
	handler EventHandler
	machine *status.Machine
	policy  RetryPolicy
	logger  *zap.Logger

	received atomic.Int64
	dropped  atomic.Int64
	ignored  atomic.Int64
}

// NewConsumer wires a consumer. A nil policy retries every second.
func NewConsumer(d Dialer, dec Decoder, h EventHandler, m *status.Machine, policy RetryPolicy, logger *zap.Logger) *Consumer {
	if policy == nil {
		policy = Backoff{Base: time.Second, Max: time.Second}
	}
	return &Consumer{
		dialer:  d,
		decoder: dec,
		handler: h,
		machine: m,
		policy:  policy,
		logger:  logger,
	}
}

// Stats returns frame counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Received: c.received.Load(),
		Dropped:  c.dropped.Load(),
		Ignored:  c.ignored.Load(),
	}
}

// Run connects and consumes until ctx is cancelled, then moves the machine to
// STOPPED. Connection failures are never returned; they only trigger a retry.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.transition(status.Stopped, "shutdown")

	attempt := 0
	for ctx.Err() == nil {
		c.transition(status.Connecting, "")
		stream, err := c.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("event stream dial failed", zap.Int("attempt", attempt), zap.Error(err))
			c.transition(status.Disconnected, err.Error())
			if !c.wait(ctx, c.policy.Next(attempt)) {
				return nil
			}
			attempt++
			continue
		}

		c.transition(status.Connected, "")
		c.logger.Info("event stream connected")
		err = c.consume(ctx, stream)
		_ = stream.Close()
		if ctx.Err() != nil {
			return nil
		}
		reason := "stream closed"
		if err != nil {
			reason = err.Error()
		}
		c.logger.Warn("event stream lost", zap.String("reason", reason))
		c.transition(status.Disconnected, reason)
		if !c.wait(ctx, c.policy.Next(0)) {
			return nil
		}
		attempt = 1
	}
	return nil
}

func (c *Consumer) consume(ctx context.Context, stream Stream) error {
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()
	for {
		frame, err := stream.Next()
		if err != nil {
			return err
		}
		c.received.Add(1)
		c.dispatch(ctx, frame)
	}
}

// dispatch decodes and applies one frame. Failures stay local to the frame.
func (c *Consumer) dispatch(ctx context.Context, frame Frame) {
	ev, err := c.decoder.Decode(frame)
	switch {
	case errors.Is(err, ErrIgnoredEvent):
		c.ignored.Add(1)
		c.logger.Debug("event ignored", zap.String("event", frame.Name))
		return
	case err != nil:
		c.dropped.Add(1)
		c.logger.Warn("malformed event dropped",
			zap.String("event", frame.Name),
			zap.ByteString("data", frame.Data),
			zap.Error(err))
		return
	}
	if err := c.handler.HandleEvent(ctx, ev); err != nil {
		c.dropped.Add(1)
		c.logger.Warn("event not applied", zap.String("event", frame.Name), zap.Error(err))
	}
}

func (c *Consumer) transition(to status.State, reason string) {
	if c.machine.Current() == to {
		return
	}
	if err := c.machine.TransitionWithReason(to, reason); err != nil {
		c.logger.Debug("state transition skipped", zap.Error(err))
	}
}

func (c *Consumer) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ValidateEvent checks the fields every event kind requires.
func ValidateEvent(ev PushEvent) error {
	if ev.Sender <= 0 || ev.Receiver <= 0 {
		return errors.New("missing sender or receiver")
	}
	switch ev.Kind {
	case EventMessageReceive:
		if ev.Message.SentAt.IsZero() {
			return errors.New("missing time_sent")
		}
	case EventMessageEdit, EventMessageDelete:
		if ev.Message.ID <= 0 {
			return errors.New("missing message id")
		}
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}
