package chatsync

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Session is the single shared object for one chat. Its display name and
// message history are fetched once, on creation, and memoized.
type Session struct {
	Key ChatKey

	name    *Future[string]
	history *Future[*MessageStore]
}

// Name waits for the display name lookup.
func (s *Session) Name(ctx context.Context) (string, error) {
	return s.name.Await(ctx)
}

// DisplayName returns the resolved name, or the key label while the lookup is
// pending or after it failed. It never blocks.
func (s *Session) DisplayName() string {
	if name, ok, err := s.name.Peek(); ok && err == nil && name != "" {
		return name
	}
	return "#" + s.Key.String()
}

// Messages waits for the history lookup and returns the chat's message store.
// A failed lookup still yields a usable empty store together with the error,
// so live messages are never dropped for lack of history.
func (s *Session) Messages(ctx context.Context) (*MessageStore, error) {
	return s.history.Await(ctx)
}

// Loaded reports whether both lookups have completed.
func (s *Session) Loaded() bool {
	_, nameDone, _ := s.name.Peek()
	_, histDone, _ := s.history.Peek()
	return nameDone && histDone
}

// Registry deduplicates sessions by ChatKey. It lives as long as the engine
// that owns it.
type Registry struct {
	names    NameFetcher
	history  HistoryFetcher
	pageSize int
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[ChatKey]*Session
	wg       sync.WaitGroup
}

// NewRegistry creates an empty registry. pageSize is the history page fetched
// when a session is first created.
func NewRegistry(names NameFetcher, history HistoryFetcher, pageSize int, logger *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Registry{
		names:    names,
		history:  history,
		pageSize: pageSize,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[ChatKey]*Session),
	}
}

// Resolve returns the session for key, creating it and starting its name and
// history lookups on first reference.
func (r *Registry) Resolve(key ChatKey) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := &Session{
		Key:     key,
		name:    NewFuture[string](),
		history: NewFuture[*MessageStore](),
	}
	r.sessions[key] = s
	r.wg.Add(2)
	go r.loadName(s)
	go r.loadHistory(s)
	return s
}

// Peek returns an existing session without creating one.
func (r *Registry) Peek(key ChatKey) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Len returns the number of sessions created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close cancels lookups still in flight and waits for them to settle.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Registry) loadName(s *Session) {
	defer r.wg.Done()
	name, err := r.names.FetchName(r.ctx, s.Key)
	if err != nil {
		r.logger.Warn("name lookup failed", zap.Stringer("chat", s.Key), zap.Error(err))
	}
	s.name.Resolve(name, err)
}

func (r *Registry) loadHistory(s *Session) {
	defer r.wg.Done()
	msgs, err := r.history.FetchHistory(r.ctx, s.Key, 0, r.pageSize)
	if err != nil {
		r.logger.Warn("history lookup failed", zap.Stringer("chat", s.Key), zap.Error(err))
	}
	s.history.Resolve(NewMessageStore(msgs), err)
}
