package api

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/outbox"
	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/store"
)

// MessageService implements rpc.MessageServiceServer.
type MessageService struct {
	engine *chatsync.Engine
	sender *outbox.Sender
	db     *store.DB
	logger *zap.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(engine *chatsync.Engine, sender *outbox.Sender, db *store.DB, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{engine: engine, sender: sender, db: db, logger: logger}
}

// SendText queues text together with the chat's draft attachments. Uploads
// still running are not waited for.
func (s *MessageService) SendText(_ context.Context, req *rpc.SendTextRequest) (*rpc.SendTextResponse, error) {
	key, err := parseChat(req.Chat)
	if err != nil {
		return nil, err
	}

	ids := s.engine.TakeDraft(key)
	clientID, err := s.sender.Enqueue(key, req.Text, ids)
	if err != nil {
		s.engine.RestoreDraft(key, ids)
		return nil, toStatus("send", err)
	}

	pending := s.engine.Uploads().InFlight(key)
	if pending > 0 {
		s.logger.Info("message sent with uploads in flight",
			zap.Stringer("chat", key), zap.Int("pending", pending))
	}
	return &rpc.SendTextResponse{ClientMsgID: clientID, Attachments: ids, PendingUploads: pending}, nil
}

func (s *MessageService) EditText(ctx context.Context, req *rpc.EditTextRequest) (*rpc.MutationResponse, error) {
	key, err := parseChat(req.Chat)
	if err != nil {
		return nil, err
	}
	if req.MessageID <= 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "message_id is required")
	}
	res, err := s.engine.EditMessage(ctx, key, req.MessageID, req.Text)
	if err != nil {
		return nil, toStatus("edit", err)
	}
	return &rpc.MutationResponse{Result: res.String()}, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, req *rpc.DeleteMessageRequest) (*rpc.MutationResponse, error) {
	key, err := parseChat(req.Chat)
	if err != nil {
		return nil, err
	}
	if req.MessageID <= 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "message_id is required")
	}
	res, err := s.engine.DeleteMessage(ctx, key, req.MessageID)
	if err != nil {
		return nil, toStatus("delete", err)
	}
	return &rpc.MutationResponse{Result: res.String()}, nil
}

func (s *MessageService) SearchArchive(_ context.Context, req *rpc.SearchArchiveRequest) (*rpc.SearchArchiveResponse, error) {
	if req.Query == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is required")
	}
	var key chatsync.ChatKey
	if req.Chat != "" {
		k, err := parseChat(req.Chat)
		if err != nil {
			return nil, err
		}
		key = k
	}

	results, err := s.db.SearchArchive(req.Query, key.PeerID, int(key.Kind), req.Limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search archive: %v", err)
	}

	resp := &rpc.SearchArchiveResponse{Results: make([]rpc.ArchiveHit, 0, len(results))}
	for _, r := range results {
		chat := chatsync.ChatKey{PeerID: r.Message.PeerID, Kind: chatsync.Kind(r.Message.ChatKind)}
		msg := archivedToRPC(r.Message)
		msg.SenderName = s.engine.SenderName(chat, msg.SenderID)
		resp.Results = append(resp.Results, rpc.ArchiveHit{
			Chat:    chat.String(),
			Message: msg,
			Snippet: r.Snippet,
		})
	}
	return resp, nil
}
