package rpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
)

type fakeSession struct{}

func (fakeSession) GetStatus(context.Context, *emptypb.Empty) (*StatusResponse, error) {
	return &StatusResponse{Session: "main", State: "CONNECTED", SelfID: 3}, nil
}

type fakeChats struct{}

func (fakeChats) ListPreviews(context.Context, *emptypb.Empty) (*ListPreviewsResponse, error) {
	return &ListPreviewsResponse{Mode: "recent", Previews: []Preview{{Chat: "9", Name: "alice"}}}, nil
}

func (fakeChats) GetChat(_ context.Context, req *GetChatRequest) (*ChatResponse, error) {
	if req.Chat == "" {
		return nil, status.Error(codes.InvalidArgument, "chat is required")
	}
	return &ChatResponse{Chat: req.Chat, Messages: []Message{{ID: 1, Text: "hi"}}}, nil
}

func (fakeChats) Navigate(_ context.Context, req *NavigateRequest) (*RouteResponse, error) {
	return &RouteResponse{Fragment: req.Fragment, Transitions: []string{"select_chat"}}, nil
}

func (fakeChats) GetRoute(context.Context, *emptypb.Empty) (*RouteResponse, error) {
	return &RouteResponse{Fragment: "c=9"}, nil
}

func (fakeChats) WatchView(req *WatchRequest, stream grpc.ServerStreamingServer[ViewEvent]) error {
	for i, p := range req.Prefixes {
		if err := stream.Send(&ViewEvent{ID: p, Kind: p + "test", OccurredAtUnixMs: int64(i)}); err != nil {
			return err
		}
	}
	return nil
}

func startServer(t *testing.T, opts ...grpc.ServerOption) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	RegisterSessionServiceServer(srv, fakeSession{})
	RegisterChatServiceServer(srv, fakeChats{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(conn)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestUnaryRoundTrip(t *testing.T) {
	c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := c.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Session != "main" || st.SelfID != 3 {
		t.Errorf("status = %+v", st)
	}

	previews, err := c.ListPreviews(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(previews.Previews) != 1 || previews.Previews[0].Name != "alice" {
		t.Errorf("previews = %+v", previews)
	}

	route, err := c.Navigate(ctx, &NavigateRequest{Fragment: "c=9&s=bob"})
	if err != nil {
		t.Fatal(err)
	}
	if route.Fragment != "c=9&s=bob" || len(route.Transitions) != 1 {
		t.Errorf("route = %+v", route)
	}
}

func TestStatusCodesSurvive(t *testing.T) {
	c := startServer(t)
	_, err := c.GetChat(context.Background(), &GetChatRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument (err %v)", status.Code(err), err)
	}
}

func TestUnregisteredService(t *testing.T) {
	c := startServer(t)
	_, err := c.SendText(context.Background(), &SendTextRequest{Chat: "9", Text: "x"})
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("code = %v, want Unimplemented", status.Code(err))
	}
}

func TestWatchViewStream(t *testing.T) {
	c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := c.WatchView(ctx, &WatchRequest{Prefixes: []string{"view.", "preview."}})
	if err != nil {
		t.Fatal(err)
	}
	var kinds []string
	for {
		evt, err := stream.Recv()
		if err != nil {
			break
		}
		kinds = append(kinds, evt.Kind)
	}
	if len(kinds) != 2 || kinds[0] != "view.test" || kinds[1] != "preview.test" {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestInterceptorSeesFullMethod(t *testing.T) {
	var seen string
	c := startServer(t, grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = info.FullMethod
		return handler(ctx, req)
	}))
	if _, err := c.GetRoute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if seen != "/microchat.v1.ChatService/GetRoute" {
		t.Errorf("full method = %q", seen)
	}
}

func TestCodec(t *testing.T) {
	var codec Codec
	b, err := codec.Marshal(&emptypb.Empty{})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}" {
		t.Errorf("empty = %s, want {}", b)
	}
	if err := codec.Unmarshal([]byte(`{}`), &emptypb.Empty{}); err != nil {
		t.Fatal(err)
	}

	b, err = codec.Marshal(&SendTextRequest{Chat: "9_2", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	var req SendTextRequest
	if err := codec.Unmarshal(b, &req); err != nil {
		t.Fatal(err)
	}
	if req.Chat != "9_2" || req.Text != "hi" {
		t.Errorf("decoded = %+v", req)
	}

	if err := codec.Unmarshal([]byte(`{`), &req); err == nil {
		t.Error("expected error for truncated JSON")
	} else if errors.Unwrap(err) == nil {
		t.Errorf("error %v should wrap the json error", err)
	}
}
