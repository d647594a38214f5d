package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Table returns a bordered, row-selectable table with a fixed header row.
func (t *Theme) Table(title string) *tview.Table {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetSelectedStyle(tcell.StyleDefault.Foreground(t.TableCursorFg).Background(t.TableCursorBg))
	t.frame(table.Box, title)
	return table
}

// Text returns a bordered text view that understands color tags.
func (t *Theme) Text(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetTextColor(t.FgColor)
	t.frame(tv.Box, title)
	return tv
}

// Input returns an unbordered single-line input field.
func (t *Theme) Input(label string) *tview.InputField {
	in := tview.NewInputField().
		SetLabel(label).
		SetFieldWidth(0).
		SetLabelColor(t.MenuKeyColor).
		SetFieldBackgroundColor(t.BgColor).
		SetFieldTextColor(t.FgColor)
	in.SetBackgroundColor(t.BgColor)
	return in
}

// frame draws the themed border and title. An empty title leaves the box
// borderless.
func (t *Theme) frame(b *tview.Box, title string) {
	b.SetBackgroundColor(t.BgColor)
	if title == "" {
		return
	}
	b.SetBorder(true).
		SetBorderColor(t.BorderColor).
		SetTitle(title).
		SetTitleColor(t.TitleColor)
}

// HeaderCell is a non-selectable bold column header.
func (t *Theme) HeaderCell(text string, expansion int) *tview.TableCell {
	return tview.NewTableCell(text).
		SetSelectable(false).
		SetTextColor(t.TableHeaderFg).
		SetBackgroundColor(t.TableHeaderBg).
		SetAttributes(tcell.AttrBold).
		SetExpansion(expansion)
}
