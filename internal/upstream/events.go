package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/microchat/internal/chatsync"
)

// wireEvent is the payload shared by the message event classes.
type wireEvent struct {
	ID          flexInt        `json:"id"`
	Sender      flexInt        `json:"sender"`
	Receiver    flexInt        `json:"receiver"`
	Text        string         `json:"text"`
	TimeSent    epoch          `json:"time_sent"`
	TimeEdit    epoch          `json:"time_edit"`
	Sent        epoch          `json:"sent"`
	Edit        epoch          `json:"edit"`
	Attachments attachmentList `json:"attachments"`
	ChatType    flexInt        `json:"chat_type"`
}

// ParseEvent decodes one server-sent frame. Frames other than the message
// event classes yield chatsync.ErrIgnoredEvent; frames missing required
// fields yield a descriptive error.
func ParseEvent(f chatsync.Frame) (chatsync.PushEvent, error) {
	kind := chatsync.EventKind(f.Name)
	switch kind {
	case chatsync.EventMessageReceive, chatsync.EventMessageEdit, chatsync.EventMessageDelete:
	default:
		return chatsync.PushEvent{}, chatsync.ErrIgnoredEvent
	}
	if len(f.Data) == 0 {
		return chatsync.PushEvent{}, errors.New("empty payload")
	}
	var w wireEvent
	if err := json.Unmarshal(f.Data, &w); err != nil {
		return chatsync.PushEvent{}, fmt.Errorf("decode %s: %w", f.Name, err)
	}
	sent := w.TimeSent.Time
	if sent.IsZero() {
		sent = w.Sent.Time
	}
	edited := w.TimeEdit.Time
	if edited.IsZero() {
		edited = w.Edit.Time
	}
	if edited.IsZero() && kind == chatsync.EventMessageEdit {
		edited = time.Now()
	}
	ev := chatsync.PushEvent{
		Kind:     kind,
		Sender:   int64(w.Sender),
		Receiver: int64(w.Receiver),
		ChatKind: kindOrDirect(w.ChatType),
		Message: chatsync.Message{
			ID:          int64(w.ID),
			SenderID:    int64(w.Sender),
			Text:        w.Text,
			SentAt:      sent,
			EditedAt:    edited,
			Attachments: []chatsync.Attachment(w.Attachments),
		},
	}
	if err := chatsync.ValidateEvent(ev); err != nil {
		return chatsync.PushEvent{}, fmt.Errorf("%s: %w", f.Name, err)
	}
	return ev, nil
}

// Decoder is ParseEvent as a chatsync.Decoder.
var Decoder chatsync.Decoder = chatsync.DecoderFunc(ParseEvent)
