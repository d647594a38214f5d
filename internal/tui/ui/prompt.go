package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode selects what a submitted prompt line does.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
	// PromptPeers searches the server for peers by name.
	PromptPeers
	// PromptArchive searches archived message text.
	PromptArchive
)

var promptModes = map[PromptMode]struct{ label, title string }{
	PromptCommand: {":", " Command "},
	PromptFilter:  {"/", " Filter "},
	PromptPeers:   {"@", " Find peer "},
	PromptArchive: {"search> ", " Search archive "},
}

// Prompt is the single-line input bar shared by commands, filters and
// searches. Enter submits a non-blank line, Esc cancels.
type Prompt struct {
	*tview.InputField
	mode     PromptMode
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

func NewPrompt(theme *Theme) *Prompt {
	p := &Prompt{InputField: theme.Input("")}
	p.SetBorder(true).SetBorderColor(theme.PromptBorderColor)
	p.SetDoneFunc(p.done)
	return p
}

func (p *Prompt) done(key tcell.Key) {
	text := strings.TrimSpace(p.GetText())
	p.SetText("")
	switch key {
	case tcell.KeyEnter:
		if text != "" && p.onSubmit != nil {
			p.onSubmit(p.mode, text)
		}
	case tcell.KeyEscape:
		if p.onCancel != nil {
			p.onCancel()
		}
	}
}

func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) { p.onSubmit = fn }

func (p *Prompt) SetOnCancel(fn func()) { p.onCancel = fn }

// Activate clears the line and relabels the bar for mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.SetText("")
	m := promptModes[mode]
	p.SetLabel(m.label)
	p.SetTitle(m.title)
}

func (p *Prompt) Mode() PromptMode { return p.mode }
