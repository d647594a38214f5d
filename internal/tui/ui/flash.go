package ui

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"google.golang.org/grpc/status"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// ttl is how long a message of the level stays on screen.
func (l FlashLevel) ttl() time.Duration {
	switch l {
	case FlashWarn:
		return 8 * time.Second
	case FlashErr:
		return 10 * time.Second
	default:
		return 5 * time.Second
	}
}

func (l FlashLevel) color(t *Theme) tcell.Color {
	switch l {
	case FlashWarn:
		return t.FlashWarnColor
	case FlashErr:
		return t.FlashErrColor
	default:
		return t.FlashInfoColor
	}
}

// FlashMessage is one notification and the time it disappears.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the latest notification. Every new message is also
// offered on Watch so the bar can be redrawn and cleared on expiry.
type FlashModel struct {
	mu      sync.Mutex
	current FlashMessage
	watchCh chan FlashMessage
}

// NewFlashModel creates a new flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{watchCh: make(chan FlashMessage, 8)}
}

func (f *FlashModel) Info(msg string) { f.post(msg, FlashInfo) }

func (f *FlashModel) Warn(msg string) { f.post(msg, FlashWarn) }

// Err flashes err. Daemon errors lose their "rpc error: code = ..." prefix.
func (f *FlashModel) Err(err error) {
	if err == nil {
		return
	}
	f.post(errorText(err), FlashErr)
}

// errorText swaps the text of a wrapped gRPC status for its bare message.
func errorText(err error) string {
	var se interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &se) {
		return err.Error()
	}
	inner, ok := se.(error)
	if !ok {
		return err.Error()
	}
	return strings.Replace(err.Error(), inner.Error(), se.GRPCStatus().Message(), 1)
}

func (f *FlashModel) post(msg string, level FlashLevel) {
	fm := FlashMessage{Text: msg, Level: level, Expires: time.Now().Add(level.ttl())}
	f.mu.Lock()
	f.current = fm
	f.mu.Unlock()
	select {
	case f.watchCh <- fm:
	default:
	}
}

// GetMessage returns the current message, or nil once it expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current.Text == "" || time.Now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar is the one-line notification area under the header.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update shows msg, or clears the bar when msg is nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", ColorTag(msg.Level.color(fb.theme)), tview.Escape(msg.Text))
}
