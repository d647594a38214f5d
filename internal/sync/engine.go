package sync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/store"
)

// StateKeyLastEvent records when the last push event was archived (unix ms).
const StateKeyLastEvent = "stream.last_event"

// ArchiveUpdate is the payload of bus.KindArchiveUpdated.
type ArchiveUpdate struct {
	Chat     chatsync.ChatKey
	Messages int
}

// Engine handles idempotent ingestion of chat traffic into the local archive.
// It follows the chat engine through the bus, so archiving never slows down
// event handling.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new archive engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to stream and view events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("", 1024)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	var err error
	switch p := evt.Payload.(type) {
	case chatsync.StreamRecord:
		err = e.IngestRecord(p)
		if err == nil {
			err = e.db.SetState(StateKeyLastEvent, strconv.FormatInt(evt.Timestamp.UnixMilli(), 10))
		}
	case chatsync.HistoryPage:
		err = e.IngestHistory(p.Key, p.Messages)
	case chatsync.ChatView:
		if evt.Kind != bus.KindChatOpened {
			return
		}
		err = e.IngestHistory(p.Key, p.Messages)
		if err == nil {
			err = e.rememberPeer(p.Key, p.Name)
		}
	case chatsync.PreviewEntry:
		err = e.rememberPeer(p.Key, p.PeerName)
	default:
		return
	}
	if err != nil {
		e.logger.Error("failed to archive", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

// IngestRecord applies one routed push event to the archive.
func (e *Engine) IngestRecord(rec chatsync.StreamRecord) error {
	key, m := rec.Key, rec.Event.Message
	switch rec.Event.Kind {
	case chatsync.EventMessageReceive:
		if err := e.db.ArchiveMessage(toStore(key, m)); err != nil {
			return fmt.Errorf("archive message: %w", err)
		}
		e.bus.Emit(bus.KindArchiveUpdated, ArchiveUpdate{Chat: key, Messages: 1})
	case chatsync.EventMessageEdit:
		ok, err := e.db.EditArchived(key.PeerID, int(key.Kind), m.ID, m.Text, millis(m.EditedAt))
		if err != nil {
			return fmt.Errorf("edit archived: %w", err)
		}
		if !ok {
			e.logger.Debug("edit of unarchived message", zap.Stringer("chat", key), zap.Int64("id", m.ID))
		}
	case chatsync.EventMessageDelete:
		if _, err := e.db.DeleteArchived(key.PeerID, int(key.Kind), m.ID); err != nil {
			return fmt.Errorf("delete archived: %w", err)
		}
	}
	return nil
}

// IngestHistory archives a page of history in one transaction.
func (e *Engine) IngestHistory(key chatsync.ChatKey, msgs []chatsync.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	batch := make([]store.Message, 0, len(msgs))
	for _, m := range msgs {
		batch = append(batch, *toStore(key, m))
	}
	if err := e.db.ArchiveMessages(batch); err != nil {
		return fmt.Errorf("archive history: %w", err)
	}
	e.logger.Debug("history archived", zap.Stringer("chat", key), zap.Int("messages", len(batch)))
	e.bus.Emit(bus.KindArchiveUpdated, ArchiveUpdate{Chat: key, Messages: len(batch)})
	return nil
}

func (e *Engine) rememberPeer(key chatsync.ChatKey, name string) error {
	if name == "" || strings.HasPrefix(name, "#") {
		return nil
	}
	return e.db.UpsertPeer(&store.Peer{PeerID: key.PeerID, ChatKind: int(key.Kind), Name: name})
}

// LastEvent returns when the last push event was archived.
func (e *Engine) LastEvent() (time.Time, error) {
	v, err := e.db.GetState(StateKeyLastEvent)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", StateKeyLastEvent, err)
	}
	return time.UnixMilli(ms), nil
}

func toStore(key chatsync.ChatKey, m chatsync.Message) *store.Message {
	atts := make([]store.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		atts = append(atts, store.Attachment{ID: a.ID, Name: a.Name, Size: a.Size})
	}
	return &store.Message{
		PeerID:      key.PeerID,
		ChatKind:    int(key.Kind),
		MsgID:       m.ID,
		SenderID:    m.SenderID,
		Body:        m.Text,
		Attachments: atts,
		SentAt:      millis(m.SentAt),
		EditedAt:    millis(m.EditedAt),
	}
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
