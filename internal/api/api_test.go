package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/outbox"
	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/status"
	"github.com/matheus3301/microchat/internal/store"
	"github.com/matheus3301/microchat/internal/upstream"
)

// stubServer answers every lookup from fixed data.
type stubServer struct {
	names   map[chatsync.ChatKey]string
	history map[chatsync.ChatKey][]chatsync.Message
	editErr error
}

func (s *stubServer) FetchName(_ context.Context, key chatsync.ChatKey) (string, error) {
	if n, ok := s.names[key]; ok {
		return n, nil
	}
	return "", errors.New("unknown peer")
}

func (s *stubServer) FetchHistory(_ context.Context, key chatsync.ChatKey, offset, count int) ([]chatsync.Message, error) {
	all := s.history[key]
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(len(all), offset+count)], nil
}

func (s *stubServer) SearchPeers(context.Context, string) ([]chatsync.SearchHit, error) {
	return []chatsync.SearchHit{{Key: chatsync.ChatKey{PeerID: 12, Kind: chatsync.Direct}, Name: "bob"}}, nil
}

func (s *stubServer) FetchOverview(context.Context) ([]chatsync.OverviewEntry, error) { return nil, nil }

func (s *stubServer) FetchSelf(context.Context) (chatsync.Identity, error) {
	return chatsync.Identity{ID: 3, Name: "me"}, nil
}

func (s *stubServer) EditMessage(context.Context, chatsync.ChatKey, int64, string) error {
	return s.editErr
}

func (s *stubServer) DeleteMessage(context.Context, chatsync.ChatKey, int64) error { return nil }

func (s *stubServer) Upload(_ context.Context, _ chatsync.FileMeta, body io.Reader, _ chatsync.ProgressFunc) (int64, error) {
	_, err := io.Copy(io.Discard, body)
	return 500, err
}

var alice = chatsync.ChatKey{PeerID: 9, Kind: chatsync.Direct}

type fixture struct {
	engine *chatsync.Engine
	db     *store.DB
	bus    *bus.Bus
	chats  *ChatService
	msgs   *MessageService
	ups    *UploadService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	srv := &stubServer{
		names: map[chatsync.ChatKey]string{alice: "alice"},
		history: map[chatsync.ChatKey][]chatsync.Message{alice: {
			{ID: 2, SenderID: 9, Text: "second", SentAt: time.UnixMilli(2000)},
			{ID: 1, SenderID: 3, Text: "first", SentAt: time.UnixMilli(1000)},
		}},
	}
	b := bus.New()
	engine := chatsync.New(chatsync.Deps{Server: srv, Journal: db, Bus: b, Self: chatsync.Identity{ID: 3, Name: "me"}})
	t.Cleanup(engine.Close)
	nav := chatsync.NewNavigator(engine, db, b, nil)
	sender := outbox.NewSender(db, nil, b, outbox.Hooks{}, nil)

	return &fixture{
		engine: engine,
		db:     db,
		bus:    b,
		chats:  NewChatService(engine, nav, b, "http://chat.local/", nil),
		msgs:   NewMessageService(engine, sender, db, nil),
		ups:    NewUploadService(engine),
	}
}

func TestGetChatRendersSenders(t *testing.T) {
	f := newFixture(t)
	resp, err := f.chats.GetChat(context.Background(), &rpc.GetChatRequest{Chat: "9"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Name != "alice" || len(resp.Messages) != 2 {
		t.Fatalf("chat = %+v", resp)
	}
	if resp.Messages[0].ID != 1 || resp.Messages[0].SenderName != "me" || resp.Messages[1].SenderName != "alice" {
		t.Errorf("messages = %+v", resp.Messages)
	}

	_, err = f.chats.GetChat(context.Background(), &rpc.GetChatRequest{Chat: "nope"})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
}

func TestNavigateWithParams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.chats.Navigate(ctx, &rpc.NavigateRequest{Fragment: "#c=9"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Chat != "9" || resp.ShareURL != "http://chat.local/#c=9" {
		t.Errorf("route = %+v", resp)
	}
	if len(resp.Transitions) != 1 || resp.Transitions[0] != chatsync.SelectChat.String() {
		t.Errorf("transitions = %v", resp.Transitions)
	}

	resp, err = f.chats.Navigate(ctx, &rpc.NavigateRequest{Params: map[string]string{"s": "bob"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Chat != "9" || resp.Search != "bob" {
		t.Errorf("route = %+v", resp)
	}
	previews, _ := f.chats.ListPreviews(ctx, &emptypb.Empty{})
	if previews.Mode != "search" || len(previews.Previews) != 1 || previews.Previews[0].Name != "bob" {
		t.Errorf("previews = %+v", previews)
	}

	route, _ := f.chats.GetRoute(ctx, &emptypb.Empty{})
	if q, _ := url.ParseQuery(route.Fragment); q.Get("s") != "bob" || q.Get("c") != "9" {
		t.Errorf("fragment = %q", route.Fragment)
	}
}

func TestSendTextTakesDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Draft(alice).Append(41)

	resp, err := f.msgs.SendText(ctx, &rpc.SendTextRequest{Chat: "9", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ClientMsgID == "" || len(resp.Attachments) != 1 || resp.Attachments[0] != 41 {
		t.Errorf("response = %+v", resp)
	}
	if f.engine.Draft(alice).Len() != 0 {
		t.Error("draft should be empty after send")
	}
	entry, err := f.db.GetOutbox(resp.ClientMsgID)
	if err != nil || entry == nil {
		t.Fatalf("outbox entry = %v, %v", entry, err)
	}
	if entry.Body != "hi" {
		t.Errorf("queued body = %q", entry.Body)
	}
}

func TestSendEmptyMessageRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.msgs.SendText(context.Background(), &rpc.SendTextRequest{Chat: "9", Text: "  "})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
}

func TestEditUnknownMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.chats.GetChat(ctx, &rpc.GetChatRequest{Chat: "9"}); err != nil {
		t.Fatal(err)
	}
	resp, err := f.msgs.EditText(ctx, &rpc.EditTextRequest{Chat: "9", MessageID: 7, Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Result != chatsync.NotFound.String() {
		t.Errorf("result = %q, want not_found", resp.Result)
	}
	resp, err = f.msgs.EditText(ctx, &rpc.EditTextRequest{Chat: "9", MessageID: 2, Text: "edited"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Result != chatsync.Applied.String() {
		t.Errorf("result = %q, want applied", resp.Result)
	}
}

func TestUploadLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ups.StartUpload(ctx, &rpc.StartUploadRequest{Chat: "9", Path: filepath.Join(t.TempDir(), "missing.png")})
	if grpcstatus.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", grpcstatus.Code(err))
	}
	_, err = f.ups.CancelUpload(ctx, &rpc.CancelUploadRequest{ID: "nope"})
	if grpcstatus.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", grpcstatus.Code(err))
	}

	list, err := f.ups.ListUploads(ctx, &rpc.ListUploadsRequest{Chat: "9"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Uploads) != 0 {
		t.Errorf("uploads = %+v", list.Uploads)
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{context.Canceled, codes.Canceled},
		{fmt.Errorf("wrap: %w", outbox.ErrEmptyMessage), codes.InvalidArgument},
		{&upstream.APIError{StatusCode: 502, Name: "bad gateway"}, codes.Unavailable},
		{&upstream.APIError{StatusCode: 400, Status: 1, Name: "no such user"}, codes.FailedPrecondition},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		if got := grpcstatus.Code(toStatus("op", tt.err)); got != tt.want {
			t.Errorf("toStatus(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestViewEvent(t *testing.T) {
	names := func(chatsync.ChatKey, int64) string { return "alice" }
	evt := bus.Event{
		Kind:      bus.KindMessageAppended,
		Timestamp: time.UnixMilli(5000),
		Payload:   chatsync.MessageChange{Key: alice, Message: chatsync.Message{ID: 3, SenderID: 9, Text: "hi"}},
	}
	out, ok := viewEvent(evt, names)
	if !ok {
		t.Fatal("message change should convert")
	}
	if out.Chat != "9" || out.Message == nil || out.Message.SenderName != "alice" || out.OccurredAtUnixMs != 5000 {
		t.Errorf("event = %+v", out)
	}

	out, ok = viewEvent(bus.Event{Kind: bus.KindStreamStatus, Payload: status.StatusChange{To: status.Connected}}, nil)
	if !ok || out.State != string(status.Connected) {
		t.Errorf("status event = %+v, %v", out, ok)
	}

	if _, ok := viewEvent(bus.Event{Kind: "other", Payload: 42}, nil); ok {
		t.Error("unknown payloads should be skipped")
	}
}

func TestShareURL(t *testing.T) {
	if got := ShareURL("http://chat.local", "c=9_2"); got != "http://chat.local/#c=9_2" {
		t.Errorf("ShareURL = %q", got)
	}
	if got := ShareURL("http://chat.local/", ""); got != "http://chat.local/" {
		t.Errorf("ShareURL = %q", got)
	}
}
