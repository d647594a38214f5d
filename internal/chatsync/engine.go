package chatsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/microchat/internal/bus"
)

// DefaultPageSize is the number of messages fetched per history page.
const DefaultPageSize = 100

// ErrNoIdentity is returned when an event arrives before the local user is known.
var ErrNoIdentity = errors.New("local user unknown")

// Options tunes an engine. Zero values select defaults.
type Options struct {
	PageSize          int
	PreviewWidth      int
	ProgressPerSecond float64
}

// Deps are the collaborators of an engine.
type Deps struct {
	Server  Server
	Journal UploadJournal
	Bus     *bus.Bus
	Logger  *zap.Logger
	// Self is the local user when already known from configuration.
	Self    Identity
	Options Options
}

// ChatView is a full render of one chat.
type ChatView struct {
	Key      ChatKey
	Name     string
	Messages []Message
	Uploads  []TaskSnapshot
	Draft    []int64
}

// MessageChange is the payload of incremental render events.
type MessageChange struct {
	Key     ChatKey
	Message Message
}

// HistoryPage is the payload of bus.KindHistoryLoaded.
type HistoryPage struct {
	Key      ChatKey
	Messages []Message
}

// StreamRecord is the payload of bus.KindStreamEvent: an applied push event
// with the chat it was routed to and the id it was stored under.
type StreamRecord struct {
	Key    ChatKey
	Event  PushEvent
	Result Result
}

// ViewError is the payload of bus.KindViewError.
type ViewError struct {
	Key ChatKey
	Op  string
	Err string
}

// Engine owns the chat state of one client session: the session registry,
// the preview ledger, the upload pipeline and the drafts. It is built at
// session start and closed at session end.
type Engine struct {
	server   Server
	bus      *bus.Bus
	logger   *zap.Logger
	pageSize int

	registry *Registry
	ledger   *Ledger
	uploads  *Pipeline

	mu         sync.RWMutex
	self       Identity
	current    ChatKey
	hasCurrent bool
	drafts     map[ChatKey]*Draft

	pageMu sync.Mutex
}

// New builds an engine. Nothing is fetched until Bootstrap or the first
// reference to a chat.
func New(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := d.Options.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Engine{
		server:   d.Server,
		bus:      d.Bus,
		logger:   logger,
		pageSize: pageSize,
		registry: NewRegistry(d.Server, d.Server, pageSize, logger.Named("registry")),
		ledger:   NewLedger(d.Options.PreviewWidth),
		uploads:  NewPipeline(d.Server, d.Journal, d.Bus, d.Options.ProgressPerSecond, logger.Named("uploads")),
		self:     d.Self,
		drafts:   make(map[ChatKey]*Draft),
	}
}

// Registry exposes the session registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Ledger exposes the preview ledger.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Uploads exposes the upload pipeline.
func (e *Engine) Uploads() *Pipeline { return e.uploads }

// Self returns the local user.
func (e *Engine) Self() Identity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.self
}

// Current returns the chat being rendered.
func (e *Engine) Current() (ChatKey, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current, e.hasCurrent
}

func (e *Engine) isCurrent(key ChatKey) bool {
	cur, ok := e.Current()
	return ok && cur == key
}

// Bootstrap learns the local user (unless configured) and seeds the ledger
// from the conversation overview. Both requests run concurrently.
func (e *Engine) Bootstrap(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	var self Identity
	needSelf := e.Self().ID == 0
	if needSelf {
		g.Go(func() error {
			id, err := e.server.FetchSelf(gctx)
			if err != nil {
				return fmt.Errorf("fetch self: %w", err)
			}
			self = id
			return nil
		})
	}
	var overview []OverviewEntry
	g.Go(func() error {
		entries, err := e.server.FetchOverview(gctx)
		if err != nil {
			return fmt.Errorf("fetch overview: %w", err)
		}
		overview = entries
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if needSelf {
		e.mu.Lock()
		e.self = self
		e.mu.Unlock()
	}
	added := e.ledger.Seed(overview, func(oe OverviewEntry) string {
		return e.senderName(oe.Key, oe.SenderID, oe.PeerName)
	})
	e.logger.Info("ledger seeded",
		zap.Int64("self", e.Self().ID),
		zap.Int("overview", len(overview)),
		zap.Int("added", added))
	e.bus.Emit(bus.KindPreviewRestored, e.ledger.View())
	return nil
}

// HandleEvent applies one push event. The event is routed to its chat, the
// chat's store is updated and, for new messages, the preview is promoted.
// Render events are published only for the chat being rendered.
func (e *Engine) HandleEvent(ctx context.Context, ev PushEvent) error {
	if err := ValidateEvent(ev); err != nil {
		return err
	}
	self := e.Self()
	if self.ID == 0 {
		return ErrNoIdentity
	}
	key := ev.ChatKey(self.ID)
	if !key.Valid() {
		return fmt.Errorf("invalid chat %v", key)
	}

	_, err := e.apply(ctx, e.registry.Resolve(key), ev)
	return err
}

func (e *Engine) apply(ctx context.Context, sess *Session, ev PushEvent) (Result, error) {
	key := sess.Key
	msgs, err := sess.Messages(ctx)
	if msgs == nil {
		return NotFound, fmt.Errorf("await history: %w", err)
	}

	rec := StreamRecord{Key: key, Event: ev, Result: Applied}
	switch ev.Kind {
	case EventMessageReceive:
		m := ev.Message
		if m.SenderID == 0 {
			m.SenderID = ev.Sender
		}
		stored := msgs.Append(m, Newest)
		rec.Event.Message = stored
		e.promote(ctx, sess, stored)
		if e.isCurrent(key) {
			e.bus.Emit(bus.KindMessageAppended, MessageChange{Key: key, Message: stored})
		}

	case EventMessageEdit:
		rec.Result = msgs.EditText(ev.Message.ID, ev.Message.Text, ev.Message.EditedAt)
		if rec.Result == NotFound {
			e.logger.Debug("stale edit", zap.Stringer("chat", key), zap.Int64("id", ev.Message.ID))
		} else if e.isCurrent(key) {
			m, _ := msgs.Get(ev.Message.ID)
			e.bus.Emit(bus.KindMessageEdited, MessageChange{Key: key, Message: m})
		}

	case EventMessageDelete:
		rec.Result = msgs.Remove(ev.Message.ID)
		if rec.Result == NotFound {
			e.logger.Debug("stale delete", zap.Stringer("chat", key), zap.Int64("id", ev.Message.ID))
		} else if e.isCurrent(key) {
			e.bus.Emit(bus.KindMessageRemoved, MessageChange{Key: key, Message: Message{ID: ev.Message.ID}})
		}
	}

	e.bus.Emit(bus.KindStreamEvent, rec)
	return rec.Result, nil
}

// promote upserts the preview of sess with m as its last message.
func (e *Engine) promote(ctx context.Context, sess *Session, m Message) {
	// A failed lookup leaves the key label as the display name.
	_, _ = sess.Name(ctx)
	peer := sess.DisplayName()
	entry := e.ledger.Upsert(sess.Key, Summary{
		PeerName:   peer,
		SenderID:   m.SenderID,
		SenderName: e.senderName(sess.Key, m.SenderID, peer),
		Text:       PreviewText(m),
		SentAt:     m.SentAt,
	})
	e.bus.Emit(bus.KindPreviewUpserted, entry)
}

// SenderName is how renders label the author of a message in key.
func (e *Engine) SenderName(key ChatKey, senderID int64) string {
	peer := "#" + key.String()
	if s, ok := e.registry.Peek(key); ok {
		peer = s.DisplayName()
	}
	return e.senderName(key, senderID, peer)
}

func (e *Engine) senderName(key ChatKey, senderID int64, peerName string) string {
	self := e.Self()
	switch {
	case senderID == self.ID && self.Name != "":
		return self.Name
	case senderID == self.ID:
		return "you"
	case key.Kind == Direct && senderID == key.PeerID:
		return peerName
	}
	if s, ok := e.registry.Peek(ChatKey{PeerID: senderID, Kind: Direct}); ok {
		return s.DisplayName()
	}
	return fmt.Sprintf("#%d", senderID)
}

// PreviewText is the one-line summary of a message.
func PreviewText(m Message) string {
	switch {
	case m.Text != "":
		return m.Text
	case len(m.Attachments) == 1:
		return "[attachment] " + m.Attachments[0].Name
	case len(m.Attachments) > 1:
		return fmt.Sprintf("[%d attachments]", len(m.Attachments))
	default:
		return ""
	}
}

// Apply implements Applier.
func (e *Engine) Apply(ctx context.Context, t Transition) error {
	switch t.Kind {
	case SelectChat:
		_, err := e.OpenChat(ctx, t.Chat)
		return err
	case DeselectChat:
		e.CloseChat()
		return nil
	case RunSearch:
		return e.Search(ctx, t.Query)
	case ClearSearch:
		e.ClearSearch()
		return nil
	default:
		return fmt.Errorf("unknown transition %d", t.Kind)
	}
}

// OpenChat makes key the rendered chat, marks it selected and publishes a
// full render. Opening the chat that is already rendered changes nothing.
func (e *Engine) OpenChat(ctx context.Context, key ChatKey) (ChatView, error) {
	if !key.Valid() {
		return ChatView{}, fmt.Errorf("invalid chat %v", key)
	}
	sess := e.registry.Resolve(key)

	e.mu.Lock()
	same := e.hasCurrent && e.current == key
	e.current, e.hasCurrent = key, true
	e.mu.Unlock()
	e.ledger.Select(key)

	view, err := e.view(ctx, sess)
	if same {
		return view, err
	}
	e.bus.Emit(bus.KindChatOpened, view)
	if err != nil {
		e.viewError(key, "history", err)
		return view, fmt.Errorf("load history: %w", err)
	}
	return view, nil
}

// Chat returns a full render of key without changing the selection.
func (e *Engine) Chat(ctx context.Context, key ChatKey) (ChatView, error) {
	if !key.Valid() {
		return ChatView{}, fmt.Errorf("invalid chat %v", key)
	}
	return e.view(ctx, e.registry.Resolve(key))
}

func (e *Engine) view(ctx context.Context, sess *Session) (ChatView, error) {
	msgs, err := sess.Messages(ctx)
	_, _ = sess.Name(ctx)
	view := ChatView{
		Key:     sess.Key,
		Name:    sess.DisplayName(),
		Uploads: e.uploads.List(sess.Key),
		Draft:   e.Draft(sess.Key).IDs(),
	}
	if msgs != nil {
		view.Messages = msgs.Snapshot()
	}
	return view, err
}

// CloseChat clears the rendered chat and the selection marker.
func (e *Engine) CloseChat() {
	e.mu.Lock()
	key, had := e.current, e.hasCurrent
	e.current, e.hasCurrent = ChatKey{}, false
	e.mu.Unlock()
	e.ledger.ClearSelection()
	if had {
		e.bus.Emit(bus.KindChatClosed, key)
	}
}

// Search replaces the preview list with the peers matching query. On failure
// the ledger is left as it was.
func (e *Engine) Search(ctx context.Context, query string) error {
	hits, err := e.server.SearchPeers(ctx, query)
	if err != nil {
		e.viewError(ChatKey{}, "search", err)
		return fmt.Errorf("search %q: %w", query, err)
	}
	e.ledger.ReplaceAllWithSearchResults(query, hits)
	e.bus.Emit(bus.KindPreviewSearch, e.ledger.View())
	return nil
}

// ClearSearch restores the MRU preview list from live data.
func (e *Engine) ClearSearch() {
	e.ledger.ClearSearch()
	e.bus.Emit(bus.KindPreviewRestored, e.ledger.View())
}

// LoadOlder fetches the page of history preceding the loaded window of key
// and prepends it. It returns the number of messages received.
func (e *Engine) LoadOlder(ctx context.Context, key ChatKey) (int, error) {
	if !key.Valid() {
		return 0, fmt.Errorf("invalid chat %v", key)
	}
	e.pageMu.Lock()
	defer e.pageMu.Unlock()

	msgs, err := e.registry.Resolve(key).Messages(ctx)
	if msgs == nil {
		return 0, fmt.Errorf("await history: %w", err)
	}
	page, err := e.server.FetchHistory(ctx, key, msgs.Len(), e.pageSize)
	if err != nil {
		e.viewError(key, "history", err)
		return 0, fmt.Errorf("load older: %w", err)
	}
	for _, m := range page {
		msgs.Append(m, Oldest)
	}
	e.bus.Emit(bus.KindHistoryLoaded, HistoryPage{Key: key, Messages: page})
	return len(page), nil
}

// EditMessage edits a message on the server, then locally. A failed request
// leaves local state untouched.
func (e *Engine) EditMessage(ctx context.Context, key ChatKey, id int64, text string) (Result, error) {
	if err := e.server.EditMessage(ctx, key, id, text); err != nil {
		e.viewError(key, "edit", err)
		return NotFound, fmt.Errorf("edit message %d: %w", id, err)
	}
	return e.applyLocal(ctx, key, PushEvent{
		Kind:    EventMessageEdit,
		Message: Message{ID: id, Text: text, EditedAt: time.Now()},
	})
}

// DeleteMessage deletes a message on the server, then locally.
func (e *Engine) DeleteMessage(ctx context.Context, key ChatKey, id int64) (Result, error) {
	if err := e.server.DeleteMessage(ctx, key, id); err != nil {
		e.viewError(key, "delete", err)
		return NotFound, fmt.Errorf("delete message %d: %w", id, err)
	}
	return e.applyLocal(ctx, key, PushEvent{
		Kind:    EventMessageDelete,
		Message: Message{ID: id},
	})
}

// applyLocal applies a mutation the server already confirmed. Chats never
// referenced have nothing loaded, so only the archive sees the change.
func (e *Engine) applyLocal(ctx context.Context, key ChatKey, ev PushEvent) (Result, error) {
	ev.Sender, ev.Receiver, ev.ChatKind = e.Self().ID, key.PeerID, key.Kind
	sess, ok := e.registry.Peek(key)
	if !ok {
		e.bus.Emit(bus.KindStreamEvent, StreamRecord{Key: key, Event: ev, Result: NotFound})
		return NotFound, nil
	}
	return e.apply(ctx, sess, ev)
}

// Draft returns the pending outgoing message of key.
func (e *Engine) Draft(key ChatKey) *Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drafts[key]
	if !ok {
		d = &Draft{}
		e.drafts[key] = d
	}
	return d
}

// StartUpload uploads file for key; the resulting id joins the chat's draft.
func (e *Engine) StartUpload(key ChatKey, file File) (TaskSnapshot, error) {
	if !key.Valid() {
		return TaskSnapshot{}, fmt.Errorf("invalid chat %v", key)
	}
	t := e.uploads.Start(key, file, e.Draft(key).Append)
	return t.Snapshot(), nil
}

// CancelUpload removes an upload. The id of a succeeded upload also leaves
// the draft.
func (e *Engine) CancelUpload(id string) (TaskSnapshot, bool) {
	snap, ok := e.uploads.Cancel(id)
	if ok && snap.State == TaskSucceeded {
		e.Draft(snap.Chat).Drop(snap.FileID)
	}
	return snap, ok
}

// TakeDraft empties the draft of key for sending.
func (e *Engine) TakeDraft(key ChatKey) []int64 { return e.Draft(key).Take() }

// RestoreDraft returns ids of a failed send to the draft of key.
func (e *Engine) RestoreDraft(key ChatKey, ids []int64) { e.Draft(key).Restore(ids) }

// Sent drops the uploads whose ids a message accepted for key carried.
func (e *Engine) Sent(key ChatKey, attachments []int64) {
	e.uploads.Acknowledge(key, attachments)
}

func (e *Engine) viewError(key ChatKey, op string, err error) {
	e.bus.Emit(bus.KindViewError, ViewError{Key: key, Op: op, Err: err.Error()})
}

// Close stops in-flight lookups and uploads.
func (e *Engine) Close() {
	e.uploads.Close()
	e.registry.Close()
}
