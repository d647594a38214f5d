package rpc

// Chats are addressed by their fragment form ("9" or "9_2") on the wire.

// Attachment is a file reference of a message.
type Attachment struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Message is one chat message.
type Message struct {
	ID             int64        `json:"id"`
	SenderID       int64        `json:"sender_id"`
	SenderName     string       `json:"sender_name,omitempty"`
	Text           string       `json:"text"`
	SentAtUnixMs   int64        `json:"sent_at_unix_ms"`
	EditedAtUnixMs int64        `json:"edited_at_unix_ms,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// Preview is one row of the preview list. Search results carry only Chat and Name.
type Preview struct {
	Chat         string `json:"chat"`
	Name         string `json:"name"`
	SenderID     int64  `json:"sender_id,omitempty"`
	SenderName   string `json:"sender_name,omitempty"`
	Text         string `json:"text,omitempty"`
	SentAtUnixMs int64  `json:"sent_at_unix_ms,omitempty"`
	Selected     bool   `json:"selected,omitempty"`
}

// Upload is the state of one attachment upload.
type Upload struct {
	ID       string `json:"id"`
	Chat     string `json:"chat"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	State    string `json:"state"`
	Sent     int64  `json:"sent"`
	Total    int64  `json:"total"`
	FileID   int64  `json:"file_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// StatusResponse describes the daemon and its connection to the server.
type StatusResponse struct {
	Session         string `json:"session"`
	State           string `json:"state"`
	Reason          string `json:"reason,omitempty"`
	SinceUnixMs     int64  `json:"since_unix_ms"`
	UptimeMs        int64  `json:"uptime_ms"`
	ServerURL       string `json:"server_url"`
	SelfID          int64  `json:"self_id"`
	SelfName        string `json:"self_name,omitempty"`
	Chats           int    `json:"chats"`
	Archived        int    `json:"archived"`
	// Received, Dropped and Ignored count push events; Lagged counts bus
	// deliveries skipped because a watcher fell behind.
	Received        int64  `json:"received"`
	Dropped         int64  `json:"dropped"`
	Ignored         int64  `json:"ignored"`
	Lagged          int64  `json:"lagged"`
	LastEventUnixMs int64  `json:"last_event_unix_ms,omitempty"`
}

// ListPreviewsResponse is the current preview list. Mode is "recent" or "search".
type ListPreviewsResponse struct {
	Mode     string    `json:"mode"`
	Query    string    `json:"query,omitempty"`
	Previews []Preview `json:"previews"`
}

// GetChatRequest asks for a full render of a chat. Older first loads the
// page of history preceding the loaded window.
type GetChatRequest struct {
	Chat  string `json:"chat"`
	Older bool   `json:"older,omitempty"`
}

// ChatResponse is a full render of one chat.
type ChatResponse struct {
	Chat     string    `json:"chat"`
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
	Uploads  []Upload  `json:"uploads,omitempty"`
	Draft    []int64   `json:"draft,omitempty"`
	Loaded   int       `json:"loaded,omitempty"`
}

// NavigateRequest replaces the route fragment, or, when Params is set,
// changes only the named parameters of the current one. Empty values remove
// a parameter.
type NavigateRequest struct {
	Fragment string            `json:"fragment,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

// RouteResponse is the committed route.
type RouteResponse struct {
	Fragment    string   `json:"fragment"`
	Chat        string   `json:"chat,omitempty"`
	Search      string   `json:"search,omitempty"`
	ShareURL    string   `json:"share_url"`
	Transitions []string `json:"transitions,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// WatchRequest selects bus namespaces to stream. Empty means all view events.
type WatchRequest struct {
	Prefixes []string `json:"prefixes,omitempty"`
}

// ViewEvent is one render signal streamed to clients. Only the fields
// relevant to Kind are set.
type ViewEvent struct {
	ID               string                `json:"id"`
	Kind             string                `json:"kind"`
	OccurredAtUnixMs int64                 `json:"occurred_at_unix_ms"`
	Chat             string                `json:"chat,omitempty"`
	Message          *Message              `json:"message,omitempty"`
	Preview          *Preview              `json:"preview,omitempty"`
	Previews         *ListPreviewsResponse `json:"previews,omitempty"`
	Upload           *Upload               `json:"upload,omitempty"`
	State            string                `json:"state,omitempty"`
	Fragment         string                `json:"fragment,omitempty"`
	ClientMsgID      string                `json:"client_msg_id,omitempty"`
	Error            string                `json:"error,omitempty"`
}

// SendTextRequest sends text plus the chat's draft attachments.
type SendTextRequest struct {
	Chat string `json:"chat"`
	Text string `json:"text"`
}

// SendTextResponse reports a queued message. PendingUploads counts uploads
// still running for the chat; their files are not part of this message.
type SendTextResponse struct {
	ClientMsgID    string  `json:"client_msg_id"`
	Attachments    []int64 `json:"attachments,omitempty"`
	PendingUploads int     `json:"pending_uploads,omitempty"`
}

// EditTextRequest replaces the text of a message.
type EditTextRequest struct {
	Chat      string `json:"chat"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

// DeleteMessageRequest deletes a message.
type DeleteMessageRequest struct {
	Chat      string `json:"chat"`
	MessageID int64  `json:"message_id"`
}

// MutationResponse reports whether a confirmed mutation found its target in
// the loaded window ("applied" or "not_found").
type MutationResponse struct {
	Result string `json:"result"`
}

// SearchArchiveRequest is a full-text query over archived messages.
type SearchArchiveRequest struct {
	Query string `json:"query"`
	Chat  string `json:"chat,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ArchiveHit is one archived message matching a query.
type ArchiveHit struct {
	Chat    string  `json:"chat"`
	Message Message `json:"message"`
	Snippet string  `json:"snippet"`
}

// SearchArchiveResponse lists archive hits, best first.
type SearchArchiveResponse struct {
	Results []ArchiveHit `json:"results"`
}

// StartUploadRequest uploads a file readable by the daemon.
type StartUploadRequest struct {
	Chat     string `json:"chat"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type,omitempty"`
}

// CancelUploadRequest removes an upload in any state.
type CancelUploadRequest struct {
	ID string `json:"id"`
}

// ListUploadsRequest lists the uploads of one chat.
type ListUploadsRequest struct {
	Chat string `json:"chat"`
}

// ListUploadsResponse lists uploads and the draft they feed.
type ListUploadsResponse struct {
	Uploads []Upload `json:"uploads"`
	Draft   []int64  `json:"draft,omitempty"`
}
