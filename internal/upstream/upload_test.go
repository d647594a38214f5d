package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/matheus3301/microchat/internal/chatsync"
)

func TestUploadMultipart(t *testing.T) {
	var gotName, gotMime, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/media/store" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		gotName = r.FormValue("filename")
		gotMime = r.FormValue("mimetype")
		f, _, err := r.FormFile("content")
		if err != nil {
			t.Error(err)
			return
		}
		data, _ := io.ReadAll(f)
		gotContent = string(data)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": 0, "file": map[string]any{"id": 77}})
	}))
	defer srv.Close()

	content := strings.Repeat("z", 100_000)
	var mu sync.Mutex
	var last int64
	calls := 0
	c := New(srv.URL, "tok", nil)
	id, err := c.Upload(context.Background(),
		chatsync.FileMeta{Name: "z.bin", MimeType: "application/octet-stream", Size: int64(len(content))},
		strings.NewReader(content),
		func(sent, total int64) {
			mu.Lock()
			defer mu.Unlock()
			if sent < last || total != int64(len(content)) {
				t.Errorf("bad progress %d/%d after %d", sent, total, last)
			}
			last = sent
			calls++
		})
	if err != nil {
		t.Fatal(err)
	}
	if id != 77 {
		t.Fatalf("id = %d", id)
	}
	if gotName != "z.bin" || gotMime != "application/octet-stream" || gotContent != content {
		t.Fatalf("server saw name=%q mime=%q len=%d", gotName, gotMime, len(gotContent))
	}
	mu.Lock()
	defer mu.Unlock()
	if last != int64(len(content)) || calls == 0 {
		t.Fatalf("final progress %d after %d calls", last, calls)
	}
}

func TestUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": 1, "error": "ValueError", "description": "file name does not specified"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", nil)
	_, err := c.Upload(context.Background(), chatsync.FileMeta{Size: 1}, strings.NewReader("x"), nil)
	if _, ok := AsAPIError(err); !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
}
