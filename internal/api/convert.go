package api

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/outbox"
	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/status"
	"github.com/matheus3301/microchat/internal/store"
	"github.com/matheus3301/microchat/internal/upstream"
)

func parseChat(s string) (chatsync.ChatKey, error) {
	key, ok := chatsync.ParseChatKey(s)
	if !ok {
		return chatsync.ChatKey{}, grpcstatus.Errorf(codes.InvalidArgument, "invalid chat %q", s)
	}
	return key, nil
}

// toStatus maps an operation error to a gRPC status.
func toStatus(op string, err error) error {
	code := codes.Internal
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, outbox.ErrEmptyMessage):
		code = codes.InvalidArgument
	case errors.Is(err, chatsync.ErrNoIdentity):
		code = codes.FailedPrecondition
	case errors.As(err, &netErr):
		code = codes.Unavailable
	}
	if apiErr, ok := upstream.AsAPIError(err); ok {
		code = codes.FailedPrecondition
		if apiErr.Temporary() {
			code = codes.Unavailable
		}
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func messageToRPC(m chatsync.Message) rpc.Message {
	out := rpc.Message{
		ID:             m.ID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		SentAtUnixMs:   unixMs(m.SentAt),
		EditedAtUnixMs: unixMs(m.EditedAt),
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, rpc.Attachment{ID: a.ID, Name: a.Name, Size: a.Size})
	}
	return out
}

func archivedToRPC(m store.Message) rpc.Message {
	out := rpc.Message{
		ID:             m.MsgID,
		SenderID:       m.SenderID,
		Text:           m.Body,
		SentAtUnixMs:   m.SentAt,
		EditedAtUnixMs: m.EditedAt,
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, rpc.Attachment{ID: a.ID, Name: a.Name, Size: a.Size})
	}
	return out
}

func previewToRPC(p chatsync.PreviewEntry) rpc.Preview {
	return rpc.Preview{
		Chat:         p.Key.String(),
		Name:         p.PeerName,
		SenderID:     p.SenderID,
		SenderName:   p.SenderName,
		Text:         p.Text,
		SentAtUnixMs: unixMs(p.SentAt),
		Selected:     p.Selected,
	}
}

func ledgerToRPC(v chatsync.LedgerView) *rpc.ListPreviewsResponse {
	resp := &rpc.ListPreviewsResponse{Mode: v.Mode.String(), Query: v.Query, Previews: []rpc.Preview{}}
	if v.Mode == chatsync.ModeSearch {
		for _, h := range v.Hits {
			resp.Previews = append(resp.Previews, rpc.Preview{Chat: h.Key.String(), Name: h.Name})
		}
		return resp
	}
	for _, e := range v.Entries {
		resp.Previews = append(resp.Previews, previewToRPC(e))
	}
	return resp
}

func uploadToRPC(s chatsync.TaskSnapshot) rpc.Upload {
	return rpc.Upload{
		ID:       s.ID,
		Chat:     s.Chat.String(),
		Name:     s.File.Name,
		MimeType: s.File.MimeType,
		State:    string(s.State),
		Sent:     s.Sent,
		Total:    s.Total,
		FileID:   s.FileID,
		Error:    s.Err,
	}
}

func uploadsToRPC(snaps []chatsync.TaskSnapshot) []rpc.Upload {
	out := make([]rpc.Upload, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, uploadToRPC(s))
	}
	return out
}

func routeToRPC(fragment, shareBase string) *rpc.RouteResponse {
	rs := chatsync.ParseFragment(fragment)
	resp := &rpc.RouteResponse{
		Fragment: fragment,
		Search:   rs.Search,
		ShareURL: ShareURL(shareBase, fragment),
	}
	if rs.HasChat {
		resp.Chat = rs.Chat.String()
	}
	return resp
}

// ShareURL is the link that reopens fragment in the web client at base.
func ShareURL(base, fragment string) string {
	u := strings.TrimRight(base, "/") + "/"
	if fragment == "" {
		return u
	}
	return u + "#" + fragment
}

// viewEvent converts a bus event for WatchView. ok is false for payloads
// clients have no use for.
func viewEvent(evt bus.Event, names func(chatsync.ChatKey, int64) string) (*rpc.ViewEvent, bool) {
	out := &rpc.ViewEvent{
		ID:               uuid.NewString(),
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	switch p := evt.Payload.(type) {
	case chatsync.MessageChange:
		m := messageToRPC(p.Message)
		if names != nil && evt.Kind == bus.KindMessageAppended {
			m.SenderName = names(p.Key, m.SenderID)
		}
		out.Chat, out.Message = p.Key.String(), &m
	case chatsync.ChatView:
		out.Chat = p.Key.String()
	case chatsync.HistoryPage:
		out.Chat = p.Key.String()
	case chatsync.ChatKey:
		out.Chat = p.String()
	case chatsync.ViewError:
		if p.Key.Valid() {
			out.Chat = p.Key.String()
		}
		out.Error = p.Op + ": " + p.Err
	case chatsync.PreviewEntry:
		pv := previewToRPC(p)
		out.Chat, out.Preview = pv.Chat, &pv
	case chatsync.LedgerView:
		out.Previews = ledgerToRPC(p)
	case chatsync.TaskSnapshot:
		u := uploadToRPC(p)
		out.Chat, out.Upload = u.Chat, &u
	case outbox.Result:
		out.Chat, out.ClientMsgID, out.Error = p.Chat.String(), p.ClientMsgID, p.Error
	case status.StatusChange:
		out.State, out.Error = string(p.To), p.Reason
	case chatsync.RouteChange:
		out.Fragment = p.To
	default:
		return nil, false
	}
	return out, true
}
