package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the sync engine and its collaborators.
// Subscribers filter by prefix, so "view." receives every render signal.
const (
	KindStreamStatus    = "stream.status_changed"
	KindStreamEvent     = "stream.event"
	KindMessageAppended = "view.message_appended"
	KindMessageEdited   = "view.message_edited"
	KindMessageRemoved  = "view.message_removed"
	KindChatOpened      = "view.chat_opened"
	KindChatClosed      = "view.chat_closed"
	KindHistoryLoaded   = "view.history_loaded"
	KindViewError       = "view.error"
	KindPreviewUpserted = "preview.upserted"
	KindPreviewSearch   = "preview.search_results"
	KindPreviewRestored = "preview.restored"
	KindUploadProgress  = "upload.progress"
	KindUploadSucceeded = "upload.succeeded"
	KindUploadFailed    = "upload.failed"
	KindUploadCancelled = "upload.cancelled"
	KindSendAck         = "message.send_ack"
	KindSendFailed      = "message.send_failed"
	KindRouteChanged    = "route.changed"
	KindConfigReloaded  = "config.reloaded"
	KindArchiveUpdated  = "archive.updated"
)
