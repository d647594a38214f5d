package views

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/tui/ui"
)

func TestSanitizeForTerminal(t *testing.T) {
	in := "ok 👍\U0001F3FB fam\u200Dily \u2764\uFE0F"
	got := sanitizeForTerminal(in)
	if got != "ok 👍 family \u2764" {
		t.Fatalf("sanitizeForTerminal = %q", got)
	}
	if sanitizeForTerminal("plain") != "plain" {
		t.Fatal("plain text changed")
	}
	if got := sanitizeForTerminal("red\x1b[31m\tline\nnext\r"); got != "red[31m\tline\nnext" {
		t.Fatalf("control characters kept: %q", got)
	}
	if got := oneLine(" a\n\n b\tc "); got != "a b c" {
		t.Fatalf("oneLine = %q", got)
	}
}

func TestPreviewLine(t *testing.T) {
	p := rpc.Preview{SenderName: "alice", Text: "hello\n  world"}
	if got := previewLine(p); got != "alice: hello world" {
		t.Fatalf("previewLine = %q", got)
	}

	long := rpc.Preview{Text: strings.Repeat("字", 100)}
	got := previewLine(long)
	if w := runewidth.StringWidth(got); w > previewWidth {
		t.Fatalf("width %d exceeds %d", w, previewWidth)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("truncated line lacks ellipsis: %q", got)
	}

	if got := previewLine(rpc.Preview{SenderName: "bob"}); got != "" {
		t.Fatalf("empty text = %q", got)
	}
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update(rpc.ListPreviewsResponse{Mode: "recent", Previews: []rpc.Preview{
		{Chat: "9", Name: "Alice", Text: "lunch?"},
		{Chat: "4_2", Name: "team", Text: "standup at ten", Selected: true},
		{Chat: "12", Text: "hey"},
	}})
	if cl.ChatByIndex(3) != "12" || cl.ChatByIndex(4) != "" || cl.ChatByIndex(0) != "" {
		t.Fatal("unexpected index mapping")
	}
	if cl.NameOf("12") != "#12" || cl.NameOf("9") != "Alice" {
		t.Fatalf("names = %q, %q", cl.NameOf("12"), cl.NameOf("9"))
	}

	cl.SetFilter("STAND")
	if cl.ChatByIndex(1) != "4_2" || cl.ChatByIndex(2) != "" {
		t.Fatalf("filtered first = %q", cl.ChatByIndex(1))
	}
	cl.SetFilter("ali")
	if cl.ChatByIndex(1) != "9" {
		t.Fatalf("filtered first = %q", cl.ChatByIndex(1))
	}
	cl.ClearFilter()
	if cl.ChatByIndex(2) != "4_2" {
		t.Fatal("filter not cleared")
	}
}

func TestRenderMessages(t *testing.T) {
	out := renderMessages([]rpc.Message{
		{ID: 1, SenderID: 9, SenderName: "alice", Text: "see [this]"},
		{ID: 2, SenderID: 3, Text: "ok", EditedAtUnixMs: 10,
			Attachments: []rpc.Attachment{{ID: 5, Name: "a.pdf", Size: 2048}, {ID: 6}}},
	}, 3, ui.DefaultTheme())

	for _, want := range []string{"alice", "id 1", "see [this[]", "#3", "(edited)", "a.pdf (2.0 kB)", "file 6"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestRenderDraft(t *testing.T) {
	if got := renderDraft(&rpc.ChatResponse{}); got != "" {
		t.Fatalf("empty draft = %q", got)
	}
	got := renderDraft(&rpc.ChatResponse{
		Draft:   []int64{7},
		Uploads: []rpc.Upload{{State: "uploading"}, {State: "succeeded"}, {State: "pending"}},
	})
	if !strings.Contains(got, "1 file(s) attached, 2 uploading") {
		t.Fatalf("draft = %q", got)
	}
}

func TestUploadProgress(t *testing.T) {
	if got := uploadProgress(rpc.Upload{Sent: 512, Total: 1024}); got != "512 B / 1.0 kB (50%)" {
		t.Fatalf("progress = %q", got)
	}
	if got := uploadProgress(rpc.Upload{Sent: 3000}); got != "3.0 kB" {
		t.Fatalf("unknown total = %q", got)
	}
}

func TestRenderQR(t *testing.T) {
	out := RenderQR("http://localhost:8080/#c=9")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 10 {
		t.Fatalf("QR too small: %d lines", len(lines))
	}
	width := runewidth.StringWidth(lines[0])
	for i, l := range lines {
		if runewidth.StringWidth(l) != width {
			t.Fatalf("line %d has width %d, want %d", i, runewidth.StringWidth(l), width)
		}
	}
	if !strings.ContainsAny(out, "█▀▄") {
		t.Fatal("no blocks rendered")
	}
}
