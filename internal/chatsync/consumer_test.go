package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/status"
)

type chanStream struct {
	frames chan Frame
	once   sync.Once
	closed chan struct{}
}

func newChanStream(frames ...Frame) *chanStream {
	s := &chanStream{frames: make(chan Frame, len(frames)+8), closed: make(chan struct{})}
	for _, f := range frames {
		s.frames <- f
	}
	return s
}

func (s *chanStream) Next() (Frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return Frame{}, io.EOF
		}
		return f, nil
	case <-s.closed:
		return Frame{}, errors.New("closed")
	}
}

func (s *chanStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type scriptedDialer struct {
	mu      sync.Mutex
	streams []*chanStream
	errs    []error
	dials   int
}

func (d *scriptedDialer) Dial(ctx context.Context) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.dials
	d.dials++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.streams) {
		return d.streams[i], nil
	}
	return newChanStream(), nil
}

type jsonEvent struct {
	Sender   int64  `json:"sender"`
	Receiver int64  `json:"receiver"`
	Text     string `json:"text"`
	TimeSent int64  `json:"time_sent"`
}

// testDecoder understands MessageReceive frames with integer timestamps.
var testDecoder = DecoderFunc(func(f Frame) (PushEvent, error) {
	if f.Name != string(EventMessageReceive) {
		return PushEvent{}, ErrIgnoredEvent
	}
	var je jsonEvent
	if err := json.Unmarshal(f.Data, &je); err != nil {
		return PushEvent{}, err
	}
	ev := PushEvent{
		Kind:     EventMessageReceive,
		Sender:   je.Sender,
		Receiver: je.Receiver,
		ChatKind: Direct,
		Message:  Message{SenderID: je.Sender, Text: je.Text, SentAt: time.Unix(je.TimeSent, 0)},
	}
	return ev, ValidateEvent(ev)
})

type recordingHandler struct {
	mu     sync.Mutex
	events []PushEvent
	seen   chan struct{}
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev PushEvent) error {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	h.seen <- struct{}{}
	return nil
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
}

func TestConsumerDropsMalformedAndKeepsStreaming(t *testing.T) {
	stream := newChanStream(
		Frame{Name: "MessageReceive", Data: []byte(`{not json`)},
		Frame{Name: "UserOnline", Data: []byte(`{}`)},
		Frame{Name: "MessageReceive", Data: []byte(`{"receiver":3,"text":"no sender","time_sent":1}`)},
		Frame{Name: "MessageReceive", Data: []byte(`{"sender":9,"receiver":3,"text":"hi","time_sent":1000}`)},
	)
	h := &recordingHandler{seen: make(chan struct{}, 4)}
	m := status.NewMachine(bus.New())
	c := NewConsumer(&scriptedDialer{streams: []*chanStream{stream}}, testDecoder, h, m, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, h.seen, 1)
	require.Equal(t, status.Connected, m.Current())
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, status.Stopped, m.Current())

	require.Len(t, h.events, 1)
	require.Equal(t, "hi", h.events[0].Message.Text)
	stats := c.Stats()
	require.EqualValues(t, 4, stats.Received)
	require.EqualValues(t, 2, stats.Dropped)
	require.EqualValues(t, 1, stats.Ignored)
}

func TestConsumerReconnects(t *testing.T) {
	first := newChanStream(Frame{Name: "MessageReceive", Data: []byte(`{"sender":9,"receiver":3,"text":"a","time_sent":1}`)})
	close(first.frames)
	second := newChanStream(Frame{Name: "MessageReceive", Data: []byte(`{"sender":9,"receiver":3,"text":"b","time_sent":2}`)})
	d := &scriptedDialer{
		errs:    []error{errBoom, nil, nil},
		streams: []*chanStream{nil, first, second},
	}

	b := bus.New()
	statuses, unsub := b.Subscribe(bus.KindStreamStatus, 32)
	defer unsub()
	h := &recordingHandler{seen: make(chan struct{}, 4)}
	c := NewConsumer(d, testDecoder, h, status.NewMachine(b), Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	waitFor(t, h.seen, 2)
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, "a", h.events[0].Message.Text)
	require.Equal(t, "b", h.events[1].Message.Text)

	var path []status.State
	for len(statuses) > 0 {
		path = append(path, (<-statuses).Payload.(status.StatusChange).To)
	}
	require.Equal(t, []status.State{
		status.Connecting, status.Disconnected, // dial failure
		status.Connecting, status.Connected, status.Disconnected, // first stream ends
		status.Connecting, status.Connected,
		status.Stopped,
	}, path)
}

func TestBackoff(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 10 * time.Second}
	require.Equal(t, time.Second, b.Next(0))
	require.Equal(t, 2*time.Second, b.Next(1))
	require.Equal(t, 8*time.Second, b.Next(3))
	require.Equal(t, 10*time.Second, b.Next(4))
	require.Equal(t, 10*time.Second, b.Next(60))
}

func TestPushEventChatKey(t *testing.T) {
	in := PushEvent{Sender: 9, Receiver: 3, ChatKind: Direct}
	require.Equal(t, ChatKey{PeerID: 9, Kind: Direct}, in.ChatKey(3))

	out := PushEvent{Sender: 3, Receiver: 9, ChatKind: Direct}
	require.Equal(t, ChatKey{PeerID: 9, Kind: Direct}, out.ChatKey(3))

	group := PushEvent{Sender: 9, Receiver: 40, ChatKind: Group}
	require.Equal(t, ChatKey{PeerID: 40, Kind: Group}, group.ChatKey(3))
}
