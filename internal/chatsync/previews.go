package chatsync

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

// DefaultPreviewWidth is the display width preview text is truncated to.
const DefaultPreviewWidth = 64

// Summary is the rendered last-message summary of a chat.
type Summary struct {
	PeerName   string
	SenderID   int64
	SenderName string
	Text       string
	SentAt     time.Time
}

// PreviewEntry is one row of the preview list.
type PreviewEntry struct {
	Key ChatKey
	Summary
	Selected bool
}

// Mode tells whether the ledger view shows MRU entries or search results.
type Mode int

const (
	ModeRecent Mode = iota
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeSearch {
		return "search"
	}
	return "recent"
}

// LedgerView is what the preview list currently shows. Entries is filled in
// ModeRecent, Hits in ModeSearch.
type LedgerView struct {
	Mode    Mode
	Query   string
	Entries []PreviewEntry
	Hits    []SearchHit
}

// Ledger keeps one preview per chat in most-recently-active order, the
// selection marker, and an optional search substitution.
type Ledger struct {
	mu       sync.RWMutex
	width    int
	order    []ChatKey // front is most recent
	entries  map[ChatKey]Summary
	selected ChatKey
	hasSel   bool

	searching bool
	query     string
	hits      []SearchHit
}

// NewLedger creates an empty ledger truncating preview text to width cells.
func NewLedger(width int) *Ledger {
	if width <= 0 {
		width = DefaultPreviewWidth
	}
	return &Ledger{width: width, entries: make(map[ChatKey]Summary)}
}

// Upsert replaces the preview of key and promotes it to the front. The
// selection marker follows the key, so a selected entry stays selected.
func (l *Ledger) Upsert(key ChatKey, sum Summary) PreviewEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum.Text = l.truncate(sum.Text)
	if i := slices.Index(l.order, key); i >= 0 {
		l.order = slices.Delete(l.order, i, i+1)
	}
	l.order = slices.Insert(l.order, 0, key)
	l.entries[key] = sum
	return l.entry(key)
}

// Seed adds overview entries in server order behind anything already present.
// Keys already known keep their fresher preview.
func (l *Ledger) Seed(entries []OverviewEntry, senderName func(OverviewEntry) string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	added := 0
	for _, e := range entries {
		if _, ok := l.entries[e.Key]; ok || !e.Key.Valid() {
			continue
		}
		l.order = append(l.order, e.Key)
		l.entries[e.Key] = Summary{
			PeerName:   e.PeerName,
			SenderID:   e.SenderID,
			SenderName: senderName(e),
			Text:       l.truncate(e.Text),
			SentAt:     e.SentAt,
		}
		added++
	}
	return added
}

// Rename updates the peer name of an existing entry in place without
// changing its position.
func (l *Ledger) Rename(key ChatKey, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum, ok := l.entries[key]
	if !ok || sum.PeerName == name {
		return false
	}
	sum.PeerName = name
	l.entries[key] = sum
	return true
}

// ListOrdered returns entries front to back in MRU order, regardless of any
// active search.
func (l *Ledger) ListOrdered() []PreviewEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.list()
}

func (l *Ledger) list() []PreviewEntry {
	out := make([]PreviewEntry, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.entry(k))
	}
	return out
}

// Get returns the entry of key.
func (l *Ledger) Get(key ChatKey) (PreviewEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.entries[key]; !ok {
		return PreviewEntry{}, false
	}
	return l.entry(key), true
}

func (l *Ledger) entry(key ChatKey) PreviewEntry {
	return PreviewEntry{
		Key:      key,
		Summary:  l.entries[key],
		Selected: l.hasSel && l.selected == key,
	}
}

// Select moves the selection marker to key.
func (l *Ledger) Select(key ChatKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected, l.hasSel = key, true
}

// ClearSelection removes the selection marker.
func (l *Ledger) ClearSelection() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected, l.hasSel = ChatKey{}, false
}

// Selected returns the selected key.
func (l *Ledger) Selected() (ChatKey, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selected, l.hasSel
}

// ReplaceAllWithSearchResults substitutes a flat result list for the MRU view.
// Upserts keep updating the MRU data underneath.
func (l *Ledger) ReplaceAllWithSearchResults(query string, hits []SearchHit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searching = true
	l.query = query
	l.hits = slices.Clone(hits)
}

// ClearSearch leaves search mode. The MRU view is rebuilt from live data.
func (l *Ledger) ClearSearch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searching = false
	l.query = ""
	l.hits = nil
}

// View returns what the preview list should show right now.
func (l *Ledger) View() LedgerView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.searching {
		return LedgerView{Mode: ModeSearch, Query: l.query, Hits: slices.Clone(l.hits)}
	}
	return LedgerView{Mode: ModeRecent, Entries: l.list()}
}

// Len returns the number of previews.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

func (l *Ledger) truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, l.width, "…")
}
