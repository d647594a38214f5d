package api

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/status"
	"github.com/matheus3301/microchat/internal/store"
	intsync "github.com/matheus3301/microchat/internal/sync"
)

// SessionService implements rpc.SessionServiceServer.
type SessionService struct {
	sessionName string
	serverURL   string
	startedAt   time.Time
	machine     *status.Machine
	bus         *bus.Bus
	engine      *chatsync.Engine
	consumer    *chatsync.Consumer
	archive     *intsync.Engine
	db          *store.DB
}

// NewSessionService creates a new session service.
func NewSessionService(sessionName, serverURL string, machine *status.Machine, b *bus.Bus, engine *chatsync.Engine, consumer *chatsync.Consumer, archive *intsync.Engine, db *store.DB) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		serverURL:   serverURL,
		startedAt:   time.Now(),
		machine:     machine,
		bus:         b,
		engine:      engine,
		consumer:    consumer,
		archive:     archive,
		db:          db,
	}
}

func (s *SessionService) GetStatus(_ context.Context, _ *emptypb.Empty) (*rpc.StatusResponse, error) {
	state, since, reason := s.machine.Snapshot()
	self := s.engine.Self()

	resp := &rpc.StatusResponse{
		Session:     s.sessionName,
		State:       string(state),
		Reason:      reason,
		SinceUnixMs: since.UnixMilli(),
		UptimeMs:    time.Since(s.startedAt).Milliseconds(),
		ServerURL:   s.serverURL,
		SelfID:      self.ID,
		SelfName:    self.Name,
		Chats:       s.engine.Registry().Len(),
	}

	if s.consumer != nil {
		stats := s.consumer.Stats()
		resp.Received, resp.Dropped, resp.Ignored = stats.Received, stats.Dropped, stats.Ignored
	}
	if s.bus != nil {
		resp.Lagged = int64(s.bus.Dropped())
	}
	if s.db != nil {
		if n, err := s.db.MessageCount(); err == nil {
			resp.Archived = n
		}
	}
	if s.archive != nil {
		if last, err := s.archive.LastEvent(); err == nil {
			resp.LastEventUnixMs = unixMs(last)
		}
	}
	return resp, nil
}
