package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Crumbs shows the page stack, e.g. "chats > chat > details", followed by
// the committed route fragment.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update redraws the trail. The last page is highlighted.
func (c *Crumbs) Update(stack []string, fragment string) {
	c.Clear()
	if len(stack) == 0 {
		return
	}

	parts := make([]string, len(stack))
	for i, name := range stack {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(stack)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts[i] = fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", ColorTag(fg), ColorTag(bg), attr, name)
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " > "))
	if fragment != "" {
		_, _ = fmt.Fprintf(c, "  [%s]#%s[-]", ColorTag(c.theme.MetaColor), tview.Escape(fragment))
	}
}

// ColorTag renders c for a tview color tag. The terminal default is "-".
func ColorTag(c tcell.Color) string {
	if c == tcell.ColorDefault {
		return "-"
	}
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
