package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/tui/ui"
)

// SearchView searches the local message archive.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
	data    []rpc.ArchiveHit
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	sv := &SearchView{
		theme:   theme,
		input:   theme.Input(" Search archive: "),
		results: theme.Table(" Results "),
	}
	sv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(sv.input, 1, 0, true).
		AddItem(sv.results, 0, 1, false)

	sv.input.SetDoneFunc(func(key tcell.Key) {
		q := strings.TrimSpace(sv.input.GetText())
		if key == tcell.KeyEnter && q != "" && sv.onQuery != nil {
			sv.onQuery(q)
		}
	})
	return sv
}

// Name implements Component.
func (sv *SearchView) Name() string { return "Search" }

// Focus implements Component.
func (sv *SearchView) Focus() tview.Primitive { return sv.input }

// Hints implements Component.
func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Open"},
		{Key: "Tab", Description: "Results"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// SetQuery fills the input without submitting it.
func (sv *SearchView) SetQuery(q string) {
	sv.input.SetText(q)
}

// Update refreshes search results.
func (sv *SearchView) Update(results []rpc.ArchiveHit) {
	sv.data = results
	t := sv.results
	t.Clear()
	for col, h := range []string{" CHAT", " FROM", " SNIPPET", " TIME"} {
		exp := 0
		if col == 2 {
			exp = 1
		}
		t.SetCell(0, col, sv.theme.HeaderCell(h, exp))
	}

	cell := func(text string, width int) *tview.TableCell {
		c := tview.NewTableCell(" " + text).SetTextColor(sv.theme.FgColor)
		if width == 0 {
			return c.SetExpansion(1)
		}
		return c.SetMaxWidth(width)
	}
	for i, r := range results {
		row := i + 1
		from := r.Message.SenderName
		if from == "" {
			from = "#" + strconv.FormatInt(r.Message.SenderID, 10)
		}
		t.SetCell(row, 0, cell(r.Chat, 12))
		t.SetCell(row, 1, cell(tview.Escape(sanitizeForTerminal(from)), 20))
		t.SetCell(row, 2, cell(tview.Escape(oneLine(r.Snippet)), 0))
		t.SetCell(row, 3, cell(formatTimestamp(r.Message.SentAtUnixMs), 12))
	}
	t.SetTitle(fmt.Sprintf(" Results (%d) ", len(results)))
	if len(results) > 0 {
		t.Select(1, 0)
	}
}

// SelectedResult returns the chat and message id of the selected result.
func (sv *SearchView) SelectedResult() (string, int64) {
	row, _ := sv.results.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(sv.data) {
		r := sv.data[idx]
		return r.Chat, r.Message.ID
	}
	return "", 0
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}
