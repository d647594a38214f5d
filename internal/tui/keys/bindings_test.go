package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestRegistryViewBindingsWin(t *testing.T) {
	r := NewRegistry()
	var hit string
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { hit = "global" }})
	r.AddView("chat", "back", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { hit = "view" }})

	if !r.dispatch("chat", tcell.KeyRune, 'q') || hit != "view" {
		t.Fatalf("chat view: hit = %q", hit)
	}
	if !r.dispatch("chats", tcell.KeyRune, 'q') || hit != "global" {
		t.Fatalf("chats view: hit = %q", hit)
	}
	if r.dispatch("chats", tcell.KeyRune, 'z') {
		t.Fatal("unbound key handled")
	}
}

func TestRegistryMatchesSpecialKeys(t *testing.T) {
	r := NewRegistry()
	called := false
	r.AddGlobal("esc", &Action{Key: tcell.KeyEscape, Handler: func() { called = true }})
	if !r.dispatch("any", tcell.KeyEscape, 0) || !called {
		t.Fatal("escape not dispatched")
	}
}

func TestRegistryHintsKeepOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("help", &Action{Description: "?:help", Visible: true})
	r.AddGlobal("quit", &Action{Description: "q:quit", Visible: true})
	r.AddView("chat", "older", &Action{Description: "o:older", Visible: true})
	r.AddView("chat", "hidden", &Action{Description: "x", Visible: false})
	r.AddGlobal("help", &Action{Description: "?:keys", Visible: true})

	got := r.Hints("chat")
	want := []string{"o:older", "?:keys", "q:quit"}
	if len(got) != len(want) {
		t.Fatalf("hints = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hints = %v, want %v", got, want)
		}
	}
}
