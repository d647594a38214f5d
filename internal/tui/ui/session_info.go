package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session   string
	Server    string
	Self      string
	State     string
	Reason    string
	Chats     int
	Archived  int
	LastEvent time.Time
	Uptime    time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fg := ColorTag(si.theme.FgColor)
	ct := ColorTag(si.theme.CounterColor)

	state := data.State
	if data.Reason != "" {
		state += " (" + data.Reason + ")"
	}
	last := "-"
	if !data.LastEvent.IsZero() {
		last = humanize.Time(data.LastEvent)
	}

	rows := []struct{ label, value string }{
		{"Session:", data.Session},
		{"Server:", orDash(data.Server)},
		{"User:", orDash(data.Self)},
		{"State:", state},
		{"Chats:", fmt.Sprintf("%d (%s archived)", data.Chats, humanize.Comma(int64(data.Archived)))},
		{"Event:", last},
		{"Uptime:", formatDuration(data.Uptime)},
	}
	for i, r := range rows {
		if i > 0 {
			_, _ = fmt.Fprint(si, "\n")
		}
		_, _ = fmt.Fprintf(si, "[%s::b]%-8s[-:-:-] [%s]%s[-]", fg, r.label, ct, tview.Escape(r.value))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
