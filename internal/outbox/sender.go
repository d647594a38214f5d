package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/store"
)

// ErrEmptyMessage is returned when a message has neither text nor attachments.
var ErrEmptyMessage = errors.New("empty message")

// MessageSender posts one message to the server.
type MessageSender interface {
	SendMessage(ctx context.Context, key chatsync.ChatKey, text string, attachments []int64) error
}

// Hooks are called after each delivery attempt. Either may be nil.
type Hooks struct {
	Sent   func(e store.OutboxEntry)
	Failed func(e store.OutboxEntry, err error)
}

// Result is the payload of bus.KindSendAck and bus.KindSendFailed.
type Result struct {
	ClientMsgID string
	Chat        chatsync.ChatKey
	Error       string
}

// Sender drains the outbox and posts queued messages to the server. The
// server echoes accepted messages on the event stream, so nothing is
// inserted locally here.
type Sender struct {
	db       *store.DB
	sender   MessageSender
	bus      *bus.Bus
	hooks    Hooks
	logger   *zap.Logger
	interval time.Duration
	wake     chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, sender MessageSender, b *bus.Bus, hooks Hooks, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:       db,
		sender:   sender,
		bus:      b,
		hooks:    hooks,
		logger:   logger,
		interval: 500 * time.Millisecond,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue queues a message and wakes the sender. It returns the client id
// that ack and failure events carry.
func (s *Sender) Enqueue(key chatsync.ChatKey, text string, attachments []int64) (string, error) {
	if !key.Valid() {
		return "", fmt.Errorf("invalid chat %v", key)
	}
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return "", ErrEmptyMessage
	}
	id := uuid.NewString()
	err := s.db.QueueOutbox(&store.OutboxEntry{
		ClientMsgID: id,
		PeerID:      key.PeerID,
		ChatKind:    int(key.Kind),
		Body:        text,
		Attachments: attachments,
	})
	if err != nil {
		return "", fmt.Errorf("queue message: %w", err)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return id, nil
}

// Start requeues entries interrupted by a previous run and begins draining.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.RequeueInterrupted(); err != nil {
		s.logger.Error("failed to requeue interrupted sends", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("requeued interrupted sends", zap.Int64("count", n))
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for an in-progress drain to return,
// so the store can be closed right after.
func (s *Sender) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.wake:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		key := chatsync.ChatKey{PeerID: entry.PeerID, Kind: chatsync.Kind(entry.ChatKind)}
		if err := s.sender.SendMessage(ctx, key, entry.Body, entry.Attachments); err != nil {
			if ctx.Err() != nil {
				// Left in sending; the next Start requeues it.
				s.logger.Info("send interrupted by shutdown", zap.String("client_msg_id", entry.ClientMsgID))
				return
			}
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			if s.hooks.Failed != nil {
				s.hooks.Failed(entry, err)
			}
			s.bus.Emit(bus.KindSendFailed, Result{ClientMsgID: entry.ClientMsgID, Chat: key, Error: err.Error()})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		if s.hooks.Sent != nil {
			s.hooks.Sent(entry)
		}
		s.logger.Info("message sent",
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.Stringer("chat", key),
			zap.Int("attachments", len(entry.Attachments)))
		s.bus.Emit(bus.KindSendAck, Result{ClientMsgID: entry.ClientMsgID, Chat: key})
	}
}
