package api

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/rpc"
)

// DefaultWatchPrefixes are streamed when a WatchView request names none.
var DefaultWatchPrefixes = []string{"view.", "preview.", "upload.", "message.", "route.", bus.KindStreamStatus}

// ChatService implements rpc.ChatServiceServer.
type ChatService struct {
	engine    *chatsync.Engine
	navigator *chatsync.Navigator
	bus       *bus.Bus
	shareBase string
	logger    *zap.Logger
}

// NewChatService creates a new chat service. shareBase is the web client
// address share links point at.
func NewChatService(engine *chatsync.Engine, nav *chatsync.Navigator, b *bus.Bus, shareBase string, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{engine: engine, navigator: nav, bus: b, shareBase: shareBase, logger: logger}
}

func (s *ChatService) ListPreviews(_ context.Context, _ *emptypb.Empty) (*rpc.ListPreviewsResponse, error) {
	return ledgerToRPC(s.engine.Ledger().View()), nil
}

func (s *ChatService) GetChat(ctx context.Context, req *rpc.GetChatRequest) (*rpc.ChatResponse, error) {
	key, err := parseChat(req.Chat)
	if err != nil {
		return nil, err
	}

	loaded := 0
	if req.Older {
		if loaded, err = s.engine.LoadOlder(ctx, key); err != nil {
			return nil, toStatus("load older", err)
		}
	}

	view, err := s.engine.Chat(ctx, key)
	if err != nil {
		return nil, toStatus("get chat", err)
	}
	resp := &rpc.ChatResponse{
		Chat:     key.String(),
		Name:     view.Name,
		Messages: make([]rpc.Message, 0, len(view.Messages)),
		Uploads:  uploadsToRPC(view.Uploads),
		Draft:    view.Draft,
		Loaded:   loaded,
	}
	for _, m := range view.Messages {
		msg := messageToRPC(m)
		msg.SenderName = s.engine.SenderName(key, m.SenderID)
		resp.Messages = append(resp.Messages, msg)
	}
	return resp, nil
}

// Navigate commits the new fragment even when applying one of its
// transitions fails; the failure is reported in the response.
func (s *ChatService) Navigate(ctx context.Context, req *rpc.NavigateRequest) (*rpc.RouteResponse, error) {
	fragment := strings.TrimPrefix(req.Fragment, "#")
	var (
		transitions []chatsync.Transition
		err         error
	)
	if len(req.Params) > 0 {
		transitions, err = s.navigator.SetParams(ctx, req.Params)
	} else {
		transitions, err = s.navigator.Navigate(ctx, fragment)
	}
	resp := routeToRPC(s.navigator.Fragment(), s.shareBase)
	for _, t := range transitions {
		resp.Transitions = append(resp.Transitions, t.Kind.String())
	}
	if err != nil {
		s.logger.Warn("navigation partially failed", zap.String("fragment", resp.Fragment), zap.Error(err))
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *ChatService) GetRoute(_ context.Context, _ *emptypb.Empty) (*rpc.RouteResponse, error) {
	return routeToRPC(s.navigator.Fragment(), s.shareBase), nil
}

func (s *ChatService) WatchView(req *rpc.WatchRequest, stream grpc.ServerStreamingServer[rpc.ViewEvent]) error {
	prefixes := req.Prefixes
	if len(prefixes) == 0 {
		prefixes = DefaultWatchPrefixes
	}
	ch, unsub := s.bus.SubscribeAny(prefixes, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			out, ok := viewEvent(evt, s.engine.SenderName)
			if !ok {
				continue
			}
			if err := stream.Send(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
