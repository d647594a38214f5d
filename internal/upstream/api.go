package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/matheus3301/microchat/internal/chatsync"
)

var _ chatsync.Server = (*Client)(nil)

// FetchSelf implements chatsync.SelfFetcher.
func (c *Client) FetchSelf(ctx context.Context) (chatsync.Identity, error) {
	var u wireUser
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/self", nil, &u); err != nil {
		return chatsync.Identity{}, fmt.Errorf("users/self: %w", err)
	}
	return chatsync.Identity{ID: int64(u.ID), Name: u.Name}, nil
}

// FetchOverview implements chatsync.OverviewFetcher.
func (c *Client) FetchOverview(ctx context.Context) ([]chatsync.OverviewEntry, error) {
	var rows []wireOverview
	if err := c.doJSON(ctx, http.MethodPost, "/api/messages/overview", nil, &rows); err != nil {
		return nil, fmt.Errorf("messages/overview: %w", err)
	}
	out := make([]chatsync.OverviewEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, chatsync.OverviewEntry{
			Key:      chatsync.ChatKey{PeerID: int64(r.Chat.ID), Kind: kindOrDirect(r.Chat.ChatType)},
			PeerName: r.Chat.Username,
			SenderID: int64(r.Message.Sender),
			Text:     r.Message.Text,
			SentAt:   r.Message.Sent.Time,
		})
	}
	return out, nil
}

type historyRequest struct {
	UserID   int64 `json:"user_id"`
	ChatType int   `json:"chat_type"`
	Offset   int   `json:"offset"`
	Count    int   `json:"count"`
}

// FetchHistory implements chatsync.HistoryFetcher.
func (c *Client) FetchHistory(ctx context.Context, key chatsync.ChatKey, offset, count int) ([]chatsync.Message, error) {
	var rows []wireMessage
	req := historyRequest{UserID: key.PeerID, ChatType: int(key.Kind), Offset: offset, Count: count}
	if err := c.doJSON(ctx, http.MethodPost, "/api/messages/get", req, &rows); err != nil {
		return nil, fmt.Errorf("messages/get %s: %w", key, err)
	}
	out := make([]chatsync.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMessage())
	}
	return out, nil
}

type byIDRequest struct {
	EID   int64 `json:"eid"`
	EType int   `json:"etype"`
}

// FetchName implements chatsync.NameFetcher.
func (c *Client) FetchName(ctx context.Context, key chatsync.ChatKey) (string, error) {
	var u wireUser
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/by_id", byIDRequest{EID: key.PeerID, EType: int(key.Kind)}, &u); err != nil {
		return "", fmt.Errorf("users/by_id %s: %w", key, err)
	}
	return u.Name, nil
}

// SearchPeers implements chatsync.SearchFetcher. Hits are ordered by name.
func (c *Client) SearchPeers(ctx context.Context, query string) ([]chatsync.SearchHit, error) {
	var found map[string]string
	if err := c.doForm(ctx, "/api/users/search", url.Values{"username": {query}}, &found); err != nil {
		return nil, fmt.Errorf("users/search: %w", err)
	}
	hits := make([]chatsync.SearchHit, 0, len(found))
	for id, name := range found {
		peer, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, chatsync.SearchHit{Key: chatsync.ChatKey{PeerID: peer, Kind: chatsync.Direct}, Name: name})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Name != hits[j].Name {
			return hits[i].Name < hits[j].Name
		}
		return hits[i].Key.PeerID < hits[j].Key.PeerID
	})
	return hits, nil
}

// SendMessage posts a message with optional attachment ids.
func (c *Client) SendMessage(ctx context.Context, key chatsync.ChatKey, text string, attachments []int64) error {
	ids := make([]string, 0, len(attachments))
	for _, id := range attachments {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	form := url.Values{
		"to":          {strconv.FormatInt(key.PeerID, 10)},
		"text":        {text},
		"attachments": {strings.Join(ids, " ")},
		"chat_type":   {strconv.Itoa(int(key.Kind))},
	}
	if err := c.doForm(ctx, "/api/messages/send", form, nil); err != nil {
		return fmt.Errorf("messages/send %s: %w", key, err)
	}
	return nil
}

type editRequest struct {
	UserID    int64  `json:"user_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	ChatType  int    `json:"chat_type"`
}

// EditMessage implements chatsync.MessageEditor.
func (c *Client) EditMessage(ctx context.Context, key chatsync.ChatKey, id int64, text string) error {
	req := editRequest{UserID: key.PeerID, MessageID: id, Text: text, ChatType: int(key.Kind)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/messages/edit", req, nil); err != nil {
		return fmt.Errorf("messages/edit %s/%d: %w", key, id, err)
	}
	return nil
}

type deleteRequest struct {
	UserID    int64 `json:"user_id"`
	MessageID int64 `json:"message_id"`
	ChatType  int   `json:"chat_type"`
}

// DeleteMessage implements chatsync.MessageEditor.
func (c *Client) DeleteMessage(ctx context.Context, key chatsync.ChatKey, id int64) error {
	req := deleteRequest{UserID: key.PeerID, MessageID: id, ChatType: int(key.Kind)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/messages/delete", req, nil); err != nil {
		return fmt.Errorf("messages/delete %s/%d: %w", key, id, err)
	}
	return nil
}
