package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/tui/ui"
)

const previewWidth = 60

// ConversationList is the preview list: recent chats, or peer search hits.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	list    rpc.ListPreviewsResponse
	filter  string
	visible []rpc.Preview
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	return &ConversationList{Table: theme.Table(" Chats "), theme: theme}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Chats" }

// Focus implements Component.
func (cl *ConversationList) Focus() tview.Primitive { return cl.Table }

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: "@", Description: "Find peer"},
		{Key: "S", Description: "Search archive"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "0-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the preview list.
func (cl *ConversationList) Update(list rpc.ListPreviewsResponse) {
	cl.list = list
	cl.render()
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

// Filter returns the active filter text.
func (cl *ConversationList) Filter() string { return cl.filter }

func (cl *ConversationList) render() {
	selected := cl.SelectedChat()
	cl.Clear()

	cl.SetCell(0, 0, cl.theme.HeaderCell("  NAME", 1))
	cl.SetCell(0, 1, cl.theme.HeaderCell(" LAST MESSAGE", 2))
	cl.SetCell(0, 2, cl.theme.HeaderCell(" TIME", 0))

	cl.visible = filterPreviews(cl.list.Previews, cl.filter)
	cursor := 1
	for i, p := range cl.visible {
		row := i + 1
		marker, color := "  ", cl.theme.FgColor
		if p.Selected {
			marker, color = "▸ ", cl.theme.SelectedColor
		}
		if p.Chat == selected {
			cursor = row
		}
		cl.SetCell(row, 0, tview.NewTableCell(marker+tview.Escape(sanitizeForTerminal(displayName(p)))).SetExpansion(1).SetTextColor(color))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(previewLine(p))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(formatTimestamp(p.SentAtUnixMs)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}
	if len(cl.visible) > 0 {
		cl.Select(cursor, 0)
	}

	title := fmt.Sprintf(" Chats (%d) ", len(cl.list.Previews))
	if cl.list.Mode == "search" {
		title = fmt.Sprintf(" Peers matching %q (%d) ", cl.list.Query, len(cl.list.Previews))
	}
	if cl.filter != "" {
		title = fmt.Sprintf("%s%d/%d filter: %s ", title, len(cl.visible), len(cl.list.Previews), tview.Escape(cl.filter))
	}
	cl.SetTitle(title)
}

// SelectedChat returns the chat under the cursor, or "".
func (cl *ConversationList) SelectedChat() string {
	row, _ := cl.GetSelection()
	return cl.ChatByIndex(row)
}

// ChatByIndex returns the chat of the Nth visible row (1-based).
func (cl *ConversationList) ChatByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].Chat
}

// NameOf returns the display name of a listed chat, or "".
func (cl *ConversationList) NameOf(chat string) string {
	for _, p := range cl.list.Previews {
		if p.Chat == chat {
			return displayName(p)
		}
	}
	return ""
}

func filterPreviews(all []rpc.Preview, filter string) []rpc.Preview {
	if filter == "" {
		return all
	}
	f := strings.ToLower(filter)
	var out []rpc.Preview
	for _, p := range all {
		if strings.Contains(strings.ToLower(displayName(p)), f) || strings.Contains(strings.ToLower(p.Text), f) {
			out = append(out, p)
		}
	}
	return out
}

func displayName(p rpc.Preview) string {
	if p.Name != "" {
		return p.Name
	}
	return "#" + p.Chat
}

// previewLine is the last message prefixed with its sender, cut to the
// column width.
func previewLine(p rpc.Preview) string {
	text := oneLine(p.Text)
	if p.SenderName != "" && text != "" {
		text = p.SenderName + ": " + text
	}
	return runewidth.Truncate(text, previewWidth, "…")
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
