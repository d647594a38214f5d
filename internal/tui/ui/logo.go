package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

var logoArt = []string{
	"┌┬┐┌─┐┬ ┬┌─┐┌┬┐",
	"││││  ├─┤├─┤ │ ",
	"┴ ┴└─┘┴ ┴┴ ┴ ┴ ",
}

// Logo is the "mchat" mark in the header's right corner.
type Logo struct {
	*tview.TextView
}

func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	var b strings.Builder
	for _, line := range logoArt {
		fmt.Fprintf(&b, "[%s::b] %s[-:-:-]\n", ColorTag(theme.TitleColor), line)
	}
	fmt.Fprintf(&b, "[%s] microchat[-]", ColorTag(theme.FgColor))
	tv.SetText(b.String())
	return &Logo{TextView: tv}
}
