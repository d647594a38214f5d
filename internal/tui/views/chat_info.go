package views

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/tui/ui"
)

// ChatInfo displays details of the open chat and the uploads feeding its
// draft.
type ChatInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewChatInfo creates a new chat details view.
func NewChatInfo(theme *ui.Theme) *ChatInfo {
	return &ChatInfo{TextView: theme.Text(" Chat Details "), theme: theme}
}

// Name implements Component.
func (ci *ChatInfo) Name() string { return "Details" }

// Focus implements Component.
func (ci *ChatInfo) Focus() tview.Primitive { return ci.TextView }

// Hints implements Component.
func (ci *ChatInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders chat details.
func (ci *ChatInfo) Update(chat *rpc.ChatResponse, shareURL string) {
	ci.Clear()
	if chat == nil {
		return
	}
	fg := ui.ColorTag(ci.theme.FgColor)
	ct := ui.ColorTag(ci.theme.CounterColor)

	kind := "Direct"
	if _, k, ok := strings.Cut(chat.Chat, "_"); ok && k != "1" {
		kind = "Group"
	}
	last := "-"
	if n := len(chat.Messages); n > 0 {
		last = formatTimestamp(chat.Messages[n-1].SentAtUnixMs)
	}
	name := chat.Name
	if name == "" {
		name = "#" + chat.Chat
	}

	_, _ = fmt.Fprintf(ci,
		"\n [%s::b]Name:[-:-:-]        [%s]%s[-]\n"+
			" [%s::b]Chat:[-:-:-]        [%s]%s[-]\n"+
			" [%s::b]Type:[-:-:-]        [%s]%s[-]\n"+
			" [%s::b]Loaded:[-:-:-]      [%s]%d messages[-]\n"+
			" [%s::b]Last Active:[-:-:-] [%s]%s[-]\n"+
			" [%s::b]Link:[-:-:-]        [%s]%s[-]\n",
		fg, ct, tview.Escape(name),
		fg, ct, chat.Chat,
		fg, ct, kind,
		fg, ct, len(chat.Messages),
		fg, ct, last,
		fg, ct, tview.Escape(orDash(shareURL)),
	)

	_, _ = fmt.Fprintf(ci, "\n [%s::b]Draft:[-:-:-]       [%s]%d file(s)[-]\n", fg, ct, len(chat.Draft))
	if len(chat.Uploads) == 0 {
		return
	}
	_, _ = fmt.Fprintf(ci, "\n [%s::b]Uploads[-:-:-]\n", fg)
	for _, u := range chat.Uploads {
		_, _ = fmt.Fprintf(ci, "  %s  %-9s %s", u.ID[:min(8, len(u.ID))], u.State, tview.Escape(u.Name))
		_, _ = fmt.Fprintf(ci, "  [%s]%s[-]", ct, uploadProgress(u))
		if u.Error != "" {
			_, _ = fmt.Fprintf(ci, "  [%s]%s[-]", ui.ColorTag(ci.theme.FlashErrColor), tview.Escape(u.Error))
		}
		_, _ = fmt.Fprint(ci, "\n")
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(name)))
}

// uploadProgress renders sent/total bytes and a percentage when the total
// is known.
func uploadProgress(u rpc.Upload) string {
	if u.Total <= 0 {
		return humanize.Bytes(uint64(max(u.Sent, 0)))
	}
	pct := float64(u.Sent) * 100 / float64(u.Total)
	return fmt.Sprintf("%s / %s (%.0f%%)", humanize.Bytes(uint64(max(u.Sent, 0))), humanize.Bytes(uint64(u.Total)), pct)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
