package chatsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouteScenarios(t *testing.T) {
	tests := []struct {
		name string
		prev string
		cur  string
		want []Transition
	}{
		{"search changed", "c=5&s=bob", "c=5&s=alice", []Transition{{Kind: RunSearch, Query: "alice"}}},
		{"chat cleared", "c=5", "", []Transition{{Kind: DeselectChat}}},
		{"both absent", "", "", nil},
		{"chat selected", "", "#c=9_2", []Transition{{Kind: SelectChat, Chat: ChatKey{PeerID: 9, Kind: Group}}}},
		{"search cleared", "s=bob", "", []Transition{{Kind: ClearSearch}}},
		{"both changed", "c=1&s=a", "c=2", []Transition{
			{Kind: ClearSearch},
			{Kind: SelectChat, Chat: ChatKey{PeerID: 2, Kind: Direct}},
		}},
		{"explicit direct kind is same chat", "c=5", "c=5_1", nil},
		{"invalid chat is no selection", "c=5", "c=abc", []Transition{{Kind: DeselectChat}}},
		{"invalid to absent", "c=-1", "", nil},
		{"unknown keys ignored", "x=1", "x=2", nil},
		{"order of params irrelevant", "s=a&c=3", "c=3&s=a", nil},
		{"encoded search", "", "s=hello%20world", []Transition{{Kind: RunSearch, Query: "hello world"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Route(tt.prev, tt.cur))
		})
	}
}

func TestRouteIsIdempotent(t *testing.T) {
	frags := []string{"", "c=5", "c=5&s=bob", "s=alice", "#c=7_2&s=x", "c=%zz"}
	for _, prev := range frags {
		for _, cur := range frags {
			require.Equal(t, Route(prev, cur), Route(prev, cur))
		}
		require.Empty(t, Route(prev, prev), "route(%q, %q)", prev, prev)
	}
}

func TestSetParam(t *testing.T) {
	f := SetParam("", ParamChat, ChatParam(ChatKey{PeerID: 5, Kind: Group}))
	require.Equal(t, "c=5_2", f)

	f = SetParam(f, ParamSearch, "bob")
	st := ParseFragment(f)
	require.True(t, st.HasChat)
	require.Equal(t, ChatKey{PeerID: 5, Kind: Group}, st.Chat)
	require.Equal(t, "bob", st.Search)

	f = SetParam(f, ParamChat, "")
	st = ParseFragment(f)
	require.False(t, st.HasChat)
	require.Equal(t, "s=bob", st.Encode())
}

func TestParseChatKey(t *testing.T) {
	k, ok := ParseChatKey("12")
	require.True(t, ok)
	require.Equal(t, ChatKey{PeerID: 12, Kind: Direct}, k)
	require.Equal(t, "12", k.String())

	k, ok = ParseChatKey("12_2")
	require.True(t, ok)
	require.Equal(t, "12_2", k.String())

	for _, bad := range []string{"", "0", "x", "3_9", "3_", "-4"} {
		_, ok := ParseChatKey(bad)
		require.False(t, ok, bad)
	}
}
