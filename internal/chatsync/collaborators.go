package chatsync

import (
	"context"
	"io"
	"time"

	"github.com/matheus3301/microchat/internal/store"
)

// NameFetcher looks up the display name of a peer.
type NameFetcher interface {
	FetchName(ctx context.Context, key ChatKey) (string, error)
}

// HistoryFetcher returns a page of a chat's history, newest page first.
// The order of the returned slice is unspecified.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, key ChatKey, offset, count int) ([]Message, error)
}

// SearchHit is one peer matched by a search query.
type SearchHit struct {
	Key  ChatKey
	Name string
}

// SearchFetcher resolves a free-text query to matching peers.
type SearchFetcher interface {
	SearchPeers(ctx context.Context, query string) ([]SearchHit, error)
}

// OverviewEntry is one conversation of the startup overview.
type OverviewEntry struct {
	Key      ChatKey
	PeerName string
	SenderID int64
	Text     string
	SentAt   time.Time
}

// OverviewFetcher returns the conversation overview in server order.
type OverviewFetcher interface {
	FetchOverview(ctx context.Context) ([]OverviewEntry, error)
}

// SelfFetcher returns the local user.
type SelfFetcher interface {
	FetchSelf(ctx context.Context) (Identity, error)
}

// MessageEditor performs server-side edits and deletions.
type MessageEditor interface {
	EditMessage(ctx context.Context, key ChatKey, id int64, text string) error
	DeleteMessage(ctx context.Context, key ChatKey, id int64) error
}

// ProgressFunc receives bytes sent so far and the total payload size.
type ProgressFunc func(sent, total int64)

// Uploader stores a file on the server and returns its attachment id.
type Uploader interface {
	Upload(ctx context.Context, meta FileMeta, body io.Reader, progress ProgressFunc) (int64, error)
}

// Server is the full set of request/response collaborators.
type Server interface {
	NameFetcher
	HistoryFetcher
	SearchFetcher
	OverviewFetcher
	SelfFetcher
	MessageEditor
	Uploader
}

// Frame is one raw server-sent event.
type Frame struct {
	Name string
	Data []byte
}

// Stream yields frames from one push-event connection.
type Stream interface {
	Next() (Frame, error)
	Close() error
}

// Dialer opens push-event connections.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// Decoder turns frames into push events. It returns ErrIgnoredEvent for
// event names the engine does not handle.
type Decoder interface {
	Decode(f Frame) (PushEvent, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(Frame) (PushEvent, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(fr Frame) (PushEvent, error) { return f(fr) }

// UploadJournal records upload tasks. *store.DB implements it.
type UploadJournal interface {
	SaveUpload(u *store.Upload) error
	DeleteUpload(taskID string) error
	LoadUploads() ([]store.Upload, error)
}

// StateStore persists small key/value state. *store.DB implements it.
type StateStore interface {
	SetState(key, value string) error
	GetState(key string) (string, error)
}
