package chatsync

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/require"
)

func keys(entries []PreviewEntry) []ChatKey {
	out := make([]ChatKey, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}

func TestUpsertPromotesAndKeepsSelection(t *testing.T) {
	l := NewLedger(0)
	a := ChatKey{PeerID: 1, Kind: Direct}
	b := ChatKey{PeerID: 2, Kind: Direct}

	l.Upsert(a, Summary{Text: "one"})
	l.Upsert(b, Summary{Text: "two"})
	l.Select(a)

	entry := l.Upsert(a, Summary{Text: "three"})
	require.True(t, entry.Selected)

	list := l.ListOrdered()
	require.Equal(t, []ChatKey{a, b}, keys(list))
	require.Equal(t, "three", list[0].Text)
	require.True(t, list[0].Selected)
	require.False(t, list[1].Selected)

	l.Upsert(a, Summary{Text: "four"})
	require.Len(t, l.ListOrdered(), 2)
	require.Equal(t, 2, l.Len())
}

func TestSearchRestoresLiveData(t *testing.T) {
	l := NewLedger(0)
	a := ChatKey{PeerID: 1, Kind: Direct}
	b := ChatKey{PeerID: 2, Kind: Group}
	l.Upsert(a, Summary{Text: "old"})

	hits := []SearchHit{{Key: ChatKey{PeerID: 7, Kind: Direct}, Name: "alice"}}
	l.ReplaceAllWithSearchResults("ali", hits)

	view := l.View()
	require.Equal(t, ModeSearch, view.Mode)
	require.Equal(t, "ali", view.Query)
	require.Equal(t, hits, view.Hits)
	require.Empty(t, view.Entries)

	// Messages arriving during the search land in the MRU data.
	l.Upsert(b, Summary{Text: "during search"})

	l.ClearSearch()
	view = l.View()
	require.Equal(t, ModeRecent, view.Mode)
	require.Equal(t, []ChatKey{b, a}, keys(view.Entries))
	require.Equal(t, "during search", view.Entries[0].Text)
}

func TestSeedAppendsBehindLiveEntries(t *testing.T) {
	l := NewLedger(0)
	live := ChatKey{PeerID: 1, Kind: Direct}
	l.Upsert(live, Summary{Text: "fresh"})

	added := l.Seed([]OverviewEntry{
		{Key: live, Text: "stale"},
		{Key: ChatKey{PeerID: 2, Kind: Direct}, Text: "b", SentAt: time.Unix(10, 0)},
		{Key: ChatKey{PeerID: 3, Kind: Group}, Text: "c"},
		{Key: ChatKey{}, Text: "invalid"},
	}, func(OverviewEntry) string { return "x" })
	require.Equal(t, 2, added)

	list := l.ListOrdered()
	require.Equal(t, []ChatKey{live, {PeerID: 2, Kind: Direct}, {PeerID: 3, Kind: Group}}, keys(list))
	require.Equal(t, "fresh", list[0].Text)
	require.Equal(t, "x", list[1].SenderName)
}

func TestPreviewTextTruncated(t *testing.T) {
	l := NewLedger(10)
	e := l.Upsert(ChatKey{PeerID: 1, Kind: Direct}, Summary{Text: "line one\nline two is long"})
	require.False(t, strings.Contains(e.Text, "\n"))
	require.LessOrEqual(t, runewidth.StringWidth(e.Text), 10)
	require.True(t, strings.HasSuffix(e.Text, "…"))
}

func TestSelectionLifecycle(t *testing.T) {
	l := NewLedger(0)
	k := ChatKey{PeerID: 4, Kind: Direct}
	_, ok := l.Selected()
	require.False(t, ok)

	l.Select(k)
	got, ok := l.Selected()
	require.True(t, ok)
	require.Equal(t, k, got)

	l.ClearSelection()
	_, ok = l.Selected()
	require.False(t, ok)

	require.False(t, l.Rename(k, "bob"))
	l.Upsert(k, Summary{PeerName: "#4"})
	require.True(t, l.Rename(k, "bob"))
	e, ok := l.Get(k)
	require.True(t, ok)
	require.Equal(t, "bob", e.PeerName)
}
