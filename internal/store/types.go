package store

// Attachment is a file reference carried by an archived message.
type Attachment struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Message is a message kept in the local archive.
type Message struct {
	ID          int64
	PeerID      int64
	ChatKind    int
	MsgID       int64
	SenderID    int64
	Body        string
	Attachments []Attachment
	SentAt      int64
	EditedAt    int64
	Deleted     bool
}

// Peer caches a resolved display name.
type Peer struct {
	PeerID   int64
	ChatKind int
	Name     string
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	PeerID       int64
	ChatKind     int
	Body         string
	Attachments  []int64
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	CreatedAt    int64
}

// Upload journals an attachment upload task.
type Upload struct {
	TaskID       string
	PeerID       int64
	ChatKind     int
	FileName     string
	Size         int64
	MimeType     string
	State        string
	FileID       int64
	ErrorMessage string
	CreatedAt    int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
