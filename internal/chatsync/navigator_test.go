package chatsync

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/bus"
)

type recordingApplier struct {
	mu      sync.Mutex
	applied []Transition
	fail    TransitionKind
}

func (r *recordingApplier) Apply(_ context.Context, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, t)
	if t.Kind == r.fail {
		return errBoom
	}
	return nil
}

func TestNavigateAppliesAndPersists(t *testing.T) {
	app := &recordingApplier{}
	state := &memState{}
	b := bus.New()
	events, unsub := b.Subscribe("route.", 4)
	defer unsub()
	n := NewNavigator(app, state, b, zap.NewNop())

	ts, err := n.Navigate(context.Background(), "c=5&s=bob")
	require.NoError(t, err)
	require.Equal(t, []Transition{
		{Kind: RunSearch, Query: "bob"},
		{Kind: SelectChat, Chat: ChatKey{PeerID: 5, Kind: Direct}},
	}, ts)

	ts, err = n.Navigate(context.Background(), "c=5&s=alice")
	require.NoError(t, err)
	require.Equal(t, []Transition{{Kind: RunSearch, Query: "alice"}}, ts)

	// Same fragment again is a no-op.
	ts, err = n.Navigate(context.Background(), "c=5&s=alice")
	require.NoError(t, err)
	require.Empty(t, ts)

	require.Len(t, app.applied, 3)
	require.Equal(t, "c=5&s=alice", n.Fragment())
	saved, _ := state.GetState(StateKeyFragment)
	require.Equal(t, "c=5&s=alice", saved)

	evt := <-events
	require.Equal(t, bus.KindRouteChanged, evt.Kind)
	change := evt.Payload.(RouteChange)
	require.Equal(t, "", change.From)
	require.Equal(t, "c=5&s=bob", change.To)
}

func TestNavigateContinuesAfterFailedTransition(t *testing.T) {
	app := &recordingApplier{fail: RunSearch}
	n := NewNavigator(app, nil, nil, zap.NewNop())

	ts, err := n.Navigate(context.Background(), "s=x&c=2")
	require.ErrorIs(t, err, errBoom)
	require.Len(t, ts, 2)
	require.Len(t, app.applied, 2)
	require.Equal(t, "s=x&c=2", n.Fragment())
}

func TestSetAndRestore(t *testing.T) {
	state := &memState{}
	first := NewNavigator(&recordingApplier{}, state, nil, zap.NewNop())
	_, err := first.Set(context.Background(), ParamChat, "7_2")
	require.NoError(t, err)
	_, err = first.Set(context.Background(), ParamSearch, "al")
	require.NoError(t, err)

	app := &recordingApplier{}
	second := NewNavigator(app, state, nil, zap.NewNop())
	ts, err := second.Restore(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []Transition{
		{Kind: SelectChat, Chat: ChatKey{PeerID: 7, Kind: Group}},
		{Kind: RunSearch, Query: "al"},
	}, ts)
	require.Equal(t, first.Fragment(), second.Fragment())
}

// gateApplier holds the first transition until release is closed.
type gateApplier struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gateApplier) Apply(context.Context, Transition) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return nil
}

func TestSetParamsMergesUnderLock(t *testing.T) {
	app := &gateApplier{entered: make(chan struct{}), release: make(chan struct{})}
	n := NewNavigator(app, nil, nil, zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = n.SetParams(ctx, map[string]string{ParamChat: "5"})
	}()
	<-app.entered
	go func() {
		defer wg.Done()
		_, _ = n.SetParams(ctx, map[string]string{ParamSearch: "bob"})
	}()
	close(app.release)
	wg.Wait()

	rs := ParseFragment(n.Fragment())
	require.True(t, rs.HasChat)
	require.Equal(t, ChatKey{PeerID: 5, Kind: Direct}, rs.Chat)
	require.Equal(t, "bob", rs.Search)

	_, err := n.SetParams(ctx, map[string]string{ParamSearch: ""})
	require.NoError(t, err)
	require.Equal(t, "c=5", n.Fragment())
}
