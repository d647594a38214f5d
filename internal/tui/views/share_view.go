package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/matheus3301/microchat/internal/tui/ui"
)

// ShareView displays the share link of the current route as a QR code.
type ShareView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewShareView creates a new share view.
func NewShareView(theme *ui.Theme) *ShareView {
	tv := theme.Text(" Share ").SetTextAlign(tview.AlignCenter)
	return &ShareView{TextView: tv, theme: theme}
}

// Name implements Component.
func (sv *ShareView) Name() string { return "Share" }

// Focus implements Component.
func (sv *ShareView) Focus() tview.Primitive { return sv.TextView }

// Hints implements Component.
func (sv *ShareView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// ShowURL renders url as a scannable QR code followed by the url itself.
func (sv *ShareView) ShowURL(url string) {
	sv.Clear()
	if url == "" {
		_, _ = fmt.Fprint(sv, "\n\nNothing to share: no web client address is configured.")
		return
	}
	_, _ = fmt.Fprintf(sv, "\n  Scan to open this view in a browser:\n\n%s\n  [::u]%s[-:-:-]", RenderQR(url), tview.Escape(url))
}

// RenderQR converts a string to a compact QR code using Unicode half-block
// characters, two modules per terminal row.
func RenderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	qr.DisableBorder = false

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := y+1 < rows && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
