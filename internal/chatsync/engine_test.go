package chatsync

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/bus"
)

func newTestEngine(t *testing.T, srv *fakeServer) (*Engine, *bus.Bus) {
	t.Helper()
	b := bus.New()
	e := New(Deps{Server: srv, Bus: b, Logger: zap.NewNop(), Self: srv.self})
	t.Cleanup(e.Close)
	return e, b
}

func drain(ch <-chan bus.Event) []bus.Event {
	var out []bus.Event
	for {
		select {
		case evt := <-ch:
			out = append(out, evt)
		default:
			return out
		}
	}
}

func kinds(events []bus.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func receive(sender, receiver int64, text string, sent int64) PushEvent {
	return PushEvent{
		Kind:     EventMessageReceive,
		Sender:   sender,
		Receiver: receiver,
		ChatKind: Direct,
		Message:  Message{SenderID: sender, Text: text, SentAt: time.Unix(sent, 0)},
	}
}

func TestIncomingMessageUpdatesStoreAndPreview(t *testing.T) {
	srv := newFakeServer()
	bob := ChatKey{PeerID: 9, Kind: Direct}
	carol := ChatKey{PeerID: 4, Kind: Direct}
	srv.names[bob] = "bob"
	srv.history[bob] = []Message{{ID: 1, SenderID: 3, Text: "hello"}}
	e, b := newTestEngine(t, srv)
	views, unsub := b.Subscribe("view.", 16)
	defer unsub()

	e.Ledger().Upsert(carol, Summary{Text: "earlier"})

	require.NoError(t, e.HandleEvent(context.Background(), receive(9, 3, "hi", 1000)))

	sess, ok := e.Registry().Peek(bob)
	require.True(t, ok)
	msgs, err := sess.Messages(context.Background())
	require.NoError(t, err)
	snap := msgs.Snapshot()
	require.Equal(t, []int64{1, 2}, ids(snap))
	require.Equal(t, "hi", snap[1].Text)
	require.Equal(t, time.Unix(1000, 0), snap[1].SentAt)

	list := e.Ledger().ListOrdered()
	require.Equal(t, bob, list[0].Key)
	require.Equal(t, "bob", list[0].PeerName)
	require.Equal(t, "bob", list[0].SenderName)
	require.Equal(t, "hi", list[0].Text)

	// Bob's chat is not rendered, so no incremental render was requested.
	require.Empty(t, drain(views))

	_, err = e.OpenChat(context.Background(), bob)
	require.NoError(t, err)
	require.Equal(t, []string{bus.KindChatOpened}, kinds(drain(views)))

	require.NoError(t, e.HandleEvent(context.Background(), receive(3, 9, "reply", 1001)))
	got := drain(views)
	require.Equal(t, []string{bus.KindMessageAppended}, kinds(got))
	change := got[0].Payload.(MessageChange)
	require.Equal(t, bob, change.Key)
	require.EqualValues(t, 3, change.Message.ID)

	list = e.Ledger().ListOrdered()
	require.True(t, list[0].Selected)
	require.Equal(t, "me", list[0].SenderName)
}

func TestHandleEventRejectsMalformed(t *testing.T) {
	e, _ := newTestEngine(t, newFakeServer())
	err := e.HandleEvent(context.Background(), PushEvent{Kind: EventMessageReceive, Receiver: 3})
	require.Error(t, err)
	require.Zero(t, e.Registry().Len())
}

func TestStaleEditAndDeleteAreNoOps(t *testing.T) {
	srv := newFakeServer()
	bob := ChatKey{PeerID: 9, Kind: Direct}
	srv.history[bob] = []Message{{ID: 1, Text: "a"}}
	e, b := newTestEngine(t, srv)
	events, unsub := b.Subscribe(bus.KindStreamEvent, 4)
	defer unsub()

	edit := PushEvent{Kind: EventMessageEdit, Sender: 9, Receiver: 3, ChatKind: Direct,
		Message: Message{ID: 7, Text: "new text", EditedAt: time.Unix(5, 0)}}
	require.NoError(t, e.HandleEvent(context.Background(), edit))
	del := PushEvent{Kind: EventMessageDelete, Sender: 9, Receiver: 3, ChatKind: Direct, Message: Message{ID: 8}}
	require.NoError(t, e.HandleEvent(context.Background(), del))

	sess, _ := e.Registry().Peek(bob)
	msgs, _ := sess.Messages(context.Background())
	require.Equal(t, []Message{{ID: 1, Text: "a"}}, msgs.Snapshot())

	recs := drain(events)
	require.Len(t, recs, 2)
	require.Equal(t, NotFound, recs[0].Payload.(StreamRecord).Result)
	// Stale mutations do not touch the previews.
	require.Zero(t, e.Ledger().Len())
}

func TestEditFailureLeavesStateUntouched(t *testing.T) {
	srv := newFakeServer()
	bob := ChatKey{PeerID: 9, Kind: Direct}
	srv.history[bob] = []Message{{ID: 1, Text: "a"}}
	e, b := newTestEngine(t, srv)
	errs, unsub := b.Subscribe(bus.KindViewError, 4)
	defer unsub()

	_, err := e.OpenChat(context.Background(), bob)
	require.NoError(t, err)

	srv.editErr = errBoom
	_, err = e.EditMessage(context.Background(), bob, 1, "changed")
	require.ErrorIs(t, err, errBoom)
	require.Len(t, drain(errs), 1)

	sess, _ := e.Registry().Peek(bob)
	msgs, _ := sess.Messages(context.Background())
	m, _ := msgs.Get(1)
	require.Equal(t, "a", m.Text)

	srv.editErr = nil
	res, err := e.EditMessage(context.Background(), bob, 1, "changed")
	require.NoError(t, err)
	require.Equal(t, Applied, res)
	m, _ = msgs.Get(1)
	require.Equal(t, "changed", m.Text)
	require.True(t, m.Edited())

	res, err = e.DeleteMessage(context.Background(), bob, 1)
	require.NoError(t, err)
	require.Equal(t, Applied, res)
	require.Zero(t, msgs.Len())
	require.Equal(t, []int64{1}, srv.deletes)
}

func TestLoadOlderPrependsNextPage(t *testing.T) {
	srv := newFakeServer()
	bob := ChatKey{PeerID: 9, Kind: Direct}
	var history []Message
	for i := int64(1); i <= 5; i++ {
		history = append(history, Message{ID: i})
	}
	srv.history[bob] = history
	b := bus.New()
	e := New(Deps{Server: srv, Bus: b, Self: srv.self, Options: Options{PageSize: 2}})
	defer e.Close()

	view, err := e.OpenChat(context.Background(), bob)
	require.NoError(t, err)
	require.Equal(t, []int64{4, 5}, ids(view.Messages))

	n, err := e.LoadOlder(context.Background(), bob)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = e.LoadOlder(context.Background(), bob)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = e.LoadOlder(context.Background(), bob)
	require.NoError(t, err)
	require.Zero(t, n)

	view, err = e.Chat(context.Background(), bob)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4, 5}, ids(view.Messages))
}

func TestApplyTransitions(t *testing.T) {
	srv := newFakeServer()
	srv.hits = []SearchHit{{Key: ChatKey{PeerID: 11, Kind: Direct}, Name: "alice"}}
	e, b := newTestEngine(t, srv)
	n := NewNavigator(e, nil, b, zap.NewNop())

	_, err := n.Navigate(context.Background(), "c=5&s=ali")
	require.NoError(t, err)
	cur, ok := e.Current()
	require.True(t, ok)
	require.Equal(t, ChatKey{PeerID: 5, Kind: Direct}, cur)
	view := e.Ledger().View()
	require.Equal(t, ModeSearch, view.Mode)
	require.Equal(t, srv.hits, view.Hits)

	_, err = n.Navigate(context.Background(), "")
	require.NoError(t, err)
	_, ok = e.Current()
	require.False(t, ok)
	require.Equal(t, ModeRecent, e.Ledger().View().Mode)

	srv.searchErr = errBoom
	_, err = n.Navigate(context.Background(), "s=zzz")
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, ModeRecent, e.Ledger().View().Mode)
}

func TestBootstrapSeedsLedger(t *testing.T) {
	srv := newFakeServer()
	srv.self = Identity{ID: 3, Name: "me"}
	srv.overview = []OverviewEntry{
		{Key: ChatKey{PeerID: 9, Kind: Direct}, PeerName: "bob", SenderID: 9, Text: "yo"},
		{Key: ChatKey{PeerID: 40, Kind: Group}, PeerName: "team", SenderID: 3, Text: "ok"},
	}
	b := bus.New()
	e := New(Deps{Server: srv, Bus: b})
	defer e.Close()

	require.NoError(t, e.Bootstrap(context.Background()))
	require.Equal(t, srv.self, e.Self())
	list := e.Ledger().ListOrdered()
	require.Len(t, list, 2)
	require.Equal(t, "bob", list[0].SenderName)
	require.Equal(t, "me", list[1].SenderName)
}

func TestUploadFeedsDraft(t *testing.T) {
	srv := newFakeServer()
	e, _ := newTestEngine(t, srv)
	chat := ChatKey{PeerID: 9, Kind: Direct}

	snap, err := e.StartUpload(chat, memFile("a.txt", "abc"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return e.Draft(chat).Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	removed, ok := e.CancelUpload(snap.ID)
	require.True(t, ok)
	require.Equal(t, TaskSucceeded, removed.State)
	require.Zero(t, e.Draft(chat).Len())

	_, err = e.StartUpload(ChatKey{}, memFile("b", "b"))
	require.Error(t, err)
}

func TestSentKeepsUploadsOfNextDraft(t *testing.T) {
	srv := newFakeServer()
	ids := map[string]int64{"a": 101, "b": 102}
	srv.uploadFn = func(_ context.Context, meta FileMeta, _ io.Reader, _ ProgressFunc) (int64, error) {
		return ids[meta.Name], nil
	}
	e, _ := newTestEngine(t, srv)
	chat := ChatKey{PeerID: 9, Kind: Direct}

	_, err := e.StartUpload(chat, memFile("a", "aa"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return e.Draft(chat).Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	sent := e.TakeDraft(chat)
	require.Equal(t, []int64{101}, sent)

	next, err := e.StartUpload(chat, memFile("b", "bb"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return e.Draft(chat).Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	e.Sent(chat, sent)
	list := e.Uploads().List(chat)
	require.Len(t, list, 1)
	require.EqualValues(t, 102, list[0].FileID)

	_, ok := e.CancelUpload(next.ID)
	require.True(t, ok)
	require.Empty(t, e.Draft(chat).IDs())
}

func TestEngineSenderName(t *testing.T) {
	e, _ := newTestEngine(t, newFakeServer())
	group := ChatKey{PeerID: 4, Kind: Group}

	require.Equal(t, "me", e.SenderName(group, 3))
	require.Equal(t, "#12", e.SenderName(group, 12))
	require.Equal(t, "#9", e.SenderName(ChatKey{PeerID: 9, Kind: Direct}, 9))
}
