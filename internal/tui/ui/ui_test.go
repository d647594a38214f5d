package ui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rivo/tview"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMenuLayoutColumns(t *testing.T) {
	m := NewMenu(DefaultTheme(), 2)
	out := m.layout([]MenuHint{
		{Key: "a", Description: "one"},
		{Key: "b", Description: "two"},
		{Key: "c", Description: "three"},
	})
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "<a>") || !strings.Contains(lines[0], "<c>") {
		t.Fatalf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "<b>") || strings.Contains(lines[1], "<c>") {
		t.Fatalf("second line = %q", lines[1])
	}

	if got := m.layout(nil); got != "" {
		t.Fatalf("empty layout = %q", got)
	}
}

func TestFlashErrStripsStatus(t *testing.T) {
	err := fmt.Errorf("open: %w", status.Error(codes.NotFound, "unknown chat 9"))
	if got := errorText(err); got != "open: unknown chat 9" {
		t.Fatalf("errorText = %q", got)
	}
	if got := errorText(errors.New("plain")); got != "plain" {
		t.Fatalf("errorText = %q", got)
	}

	f := NewFlashModel()
	f.Err(nil)
	if f.GetMessage() != nil {
		t.Fatal("nil error set a message")
	}
	f.Err(err)
	msg := <-f.Watch()
	if msg.Level != FlashErr || msg.Text != "open: unknown chat 9" {
		t.Fatalf("flash = %+v", msg)
	}
}

func TestPagesStack(t *testing.T) {
	p := NewPages()
	var last []string
	p.SetOnChange(func(stack []string) { last = stack })
	for _, name := range []string{"chats", "chat", "details"} {
		p.AddPage(name, tview.NewBox(), true, false)
	}

	p.Reset("chats")
	p.Push("chat")
	p.Push("chat")
	if p.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", p.Depth())
	}
	p.Push("details")
	if !p.PopTo("chats") || p.Current() != "chats" || len(last) != 1 {
		t.Fatalf("after PopTo: current = %q, stack = %v", p.Current(), last)
	}
	if p.PopTo("help") {
		t.Fatal("PopTo of a missing page succeeded")
	}
}
