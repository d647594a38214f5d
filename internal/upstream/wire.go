package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/matheus3301/microchat/internal/chatsync"
)

// flexInt accepts a JSON number or a numeric string.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(b), 64)
		if ferr != nil || f != math.Trunc(f) {
			return fmt.Errorf("not an integer: %s", b)
		}
		v = int64(f)
	}
	*n = flexInt(v)
	return nil
}

// epoch is a timestamp in fractional seconds since the Unix epoch. Null and
// absent values decode to the zero time.
type epoch struct{ time.Time }

func (e *epoch) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		e.Time = time.Time{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	secs, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("bad timestamp %s: %w", b, err)
	}
	e.Time = FromEpoch(secs)
	return nil
}

// FromEpoch converts fractional epoch seconds to a time with millisecond precision.
func FromEpoch(secs float64) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(math.Round(secs * 1000)))
}

// attachmentList decodes attachments given either as objects
// {id, name, size} or as bare ids.
type attachmentList []chatsync.Attachment

func (l *attachmentList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("attachments: %w", err)
	}
	out := make(attachmentList, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '{' {
			var obj struct {
				ID   flexInt `json:"id"`
				Name string  `json:"name"`
				Size flexInt `json:"size"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				return fmt.Errorf("attachment: %w", err)
			}
			out = append(out, chatsync.Attachment{ID: int64(obj.ID), Name: obj.Name, Size: int64(obj.Size)})
			continue
		}
		var id flexInt
		if err := json.Unmarshal(item, &id); err != nil {
			return fmt.Errorf("attachment id: %w", err)
		}
		out = append(out, chatsync.Attachment{ID: int64(id)})
	}
	*l = out
	return nil
}

type wireMessage struct {
	ID          flexInt        `json:"id"`
	Sender      flexInt        `json:"sender"`
	Text        string         `json:"text"`
	Sent        epoch          `json:"sent"`
	Edit        epoch          `json:"edit"`
	Attachments attachmentList `json:"attachments"`
}

func (m wireMessage) toMessage() chatsync.Message {
	return chatsync.Message{
		ID:          int64(m.ID),
		SenderID:    int64(m.Sender),
		Text:        m.Text,
		SentAt:      m.Sent.Time,
		EditedAt:    m.Edit.Time,
		Attachments: []chatsync.Attachment(m.Attachments),
	}
}

type wireOverview struct {
	Chat struct {
		ID       flexInt `json:"id"`
		Username string  `json:"username"`
		ChatType flexInt `json:"chat_type"`
	} `json:"chat"`
	Message struct {
		Sender flexInt `json:"sender"`
		Text   string  `json:"text"`
		Sent   epoch   `json:"sent"`
	} `json:"message"`
}

type wireUser struct {
	ID   flexInt `json:"id"`
	Name string  `json:"name"`
	Type flexInt `json:"type"`
}

// kindOrDirect maps a wire chat_type to a Kind; absent and unknown values are direct.
func kindOrDirect(v flexInt) chatsync.Kind {
	k := chatsync.Kind(v)
	if !k.Valid() {
		return chatsync.Direct
	}
	return k
}
