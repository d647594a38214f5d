package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/microchat/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	hv := &HelpView{TextView: theme.Text(" Help "), theme: theme}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Focus implements Component.
func (hv *HelpView) Focus() tview.Primitive { return hv.TextView }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

type helpSection struct {
	title string
	rows  [][2]string
}

var helpSections = []helpSection{
	{"Global Keys", [][2]string{
		{":", "Command mode"},
		{"Esc", "Cancel / Go back"},
		{"?", "Help"},
		{"q", "Quit (from the chat list)"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Chat List", [][2]string{
		{"Enter", "Open chat"},
		{"1-9", "Open the Nth chat"},
		{"/", "Filter the list locally"},
		{"0", "Clear the filter"},
		{"@", "Find peers on the server"},
		{"S", "Search archived messages"},
	}},
	{"Chat", [][2]string{
		{"i", "Focus composer"},
		{"Enter", "Send (in composer)"},
		{"o", "Load older messages"},
		{"d", "Chat details and uploads"},
		{"x", "Share link as QR code"},
	}},
	{"Commands (: mode)", [][2]string{
		{":chat <id|name>", "Open a chat"},
		{":find <name>", "Find peers (no name: back to recent chats)"},
		{":search <text>", "Search archived messages"},
		{":attach <path>", "Upload a file into the draft"},
		{":cancel <upload>", "Cancel an upload"},
		{":edit <id> <text>", "Edit a message"},
		{":delete <id>", "Delete a message"},
		{":older", "Load older messages"},
		{":go <fragment>", "Navigate to a route fragment"},
		{":share", "Show the share QR code"},
		{":help / :h", "Show this help"},
		{":quit / :q", "Quit application"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.ColorTag(hv.theme.MenuKeyColor)
	for _, sec := range helpSections {
		_, _ = fmt.Fprintf(hv, "\n  [::b]%s[-:-:-]\n\n", sec.title)
		for _, r := range sec.rows {
			_, _ = fmt.Fprintf(hv, "  [%s]%-20s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
}
