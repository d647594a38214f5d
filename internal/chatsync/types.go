// Package chatsync keeps the client's view of the chat service consistent.
// It owns the session registry, per-chat message stores, the MRU preview
// ledger, the fragment router, the push-event consumer and the attachment
// upload pipeline. Network access goes through the collaborator interfaces
// declared in collaborators.go.
package chatsync

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes direct conversations from group conversations.
type Kind int

const (
	Direct Kind = 1
	Group  Kind = 2
)

// Valid reports whether k is a known chat kind.
func (k Kind) Valid() bool { return k == Direct || k == Group }

func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Group:
		return "group"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ChatKey identifies a chat session: the peer (user or group) and the kind.
type ChatKey struct {
	PeerID int64
	Kind   Kind
}

// Valid reports whether the key can address a chat.
func (k ChatKey) Valid() bool { return k.PeerID > 0 && k.Kind.Valid() }

// String renders the key in fragment form: "9" for direct chats, "9_2" for groups.
func (k ChatKey) String() string {
	if k.Kind == Direct {
		return strconv.FormatInt(k.PeerID, 10)
	}
	return fmt.Sprintf("%d_%d", k.PeerID, k.Kind)
}

// ParseChatKey parses the fragment form produced by ChatKey.String.
// "9_1" is accepted as an explicit direct key.
func ParseChatKey(s string) (ChatKey, bool) {
	idPart, kindPart, hasKind := strings.Cut(strings.TrimSpace(s), "_")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return ChatKey{}, false
	}
	key := ChatKey{PeerID: id, Kind: Direct}
	if hasKind {
		k, err := strconv.Atoi(kindPart)
		if err != nil {
			return ChatKey{}, false
		}
		key.Kind = Kind(k)
	}
	if !key.Valid() {
		return ChatKey{}, false
	}
	return key, true
}

// Attachment references an uploaded file.
type Attachment struct {
	ID   int64
	Name string
	Size int64
}

// Message is one message of a chat. EditedAt is zero for unedited messages.
type Message struct {
	ID          int64
	SenderID    int64
	Text        string
	SentAt      time.Time
	EditedAt    time.Time
	Attachments []Attachment
}

// Edited reports whether the message carries an edit timestamp.
func (m Message) Edited() bool { return !m.EditedAt.IsZero() }

// Result reports the outcome of a mutation addressed by message id.
type Result int

const (
	Applied Result = iota
	NotFound
)

func (r Result) String() string {
	if r == Applied {
		return "applied"
	}
	return "not_found"
}

// Identity is the local user.
type Identity struct {
	ID   int64
	Name string
}

// ErrIgnoredEvent is returned by decoders for well-formed events the engine
// does not act on.
var ErrIgnoredEvent = errors.New("event ignored")
