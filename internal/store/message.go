package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ArchiveMessage inserts or updates a message (idempotent on peer, kind and msg_id).
func (db *DB) ArchiveMessage(m *Message) error {
	attachments, err := json.Marshal(nonNil(m.Attachments))
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO messages (peer_id, chat_kind, msg_id, sender_id, body, attachments, sent_at, edited_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(peer_id, chat_kind, msg_id) DO UPDATE SET
			body = excluded.body,
			attachments = excluded.attachments,
			edited_at = excluded.edited_at,
			deleted = 0`,
		m.PeerID, m.ChatKind, m.MsgID, m.SenderID, m.Body, string(attachments), m.SentAt, m.EditedAt, time.Now().UnixMilli())
	return err
}

// ArchiveMessages upserts a batch of messages in one transaction.
func (db *DB) ArchiveMessages(msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO messages (peer_id, chat_kind, msg_id, sender_id, body, attachments, sent_at, edited_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(peer_id, chat_kind, msg_id) DO UPDATE SET
			body = CASE WHEN messages.deleted = 1 THEN messages.body ELSE excluded.body END,
			attachments = excluded.attachments,
			edited_at = excluded.edited_at`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		attachments, err := json.Marshal(nonNil(m.Attachments))
		if err != nil {
			return fmt.Errorf("encode attachments: %w", err)
		}
		if _, err := stmt.Exec(m.PeerID, m.ChatKind, m.MsgID, m.SenderID, m.Body, string(attachments), m.SentAt, m.EditedAt, now); err != nil {
			return fmt.Errorf("archive message %d: %w", m.MsgID, err)
		}
	}
	return tx.Commit()
}

// EditArchived rewrites the body of an archived message. Reports false when
// the message is not archived.
func (db *DB) EditArchived(peerID int64, kind int, msgID int64, body string, editedAt int64) (bool, error) {
	res, err := db.Exec(`
		UPDATE messages SET body = ?, edited_at = ?
		WHERE peer_id = ? AND chat_kind = ? AND msg_id = ? AND deleted = 0`,
		body, editedAt, peerID, kind, msgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteArchived tombstones an archived message and blanks its body so it
// drops out of search. Reports false when the message is not archived.
func (db *DB) DeleteArchived(peerID int64, kind int, msgID int64) (bool, error) {
	res, err := db.Exec(`
		UPDATE messages SET deleted = 1, body = ''
		WHERE peer_id = ? AND chat_kind = ? AND msg_id = ? AND deleted = 0`,
		peerID, kind, msgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListArchived returns archived messages of one chat, newest first, using keyset
// pagination by message id. beforeID <= 0 starts from the newest message.
func (db *DB) ListArchived(peerID int64, kind int, beforeID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, peer_id, chat_kind, msg_id, sender_id, body, attachments, sent_at, edited_at, deleted
		FROM messages
		WHERE peer_id = ? AND chat_kind = ? AND deleted = 0`
	args := []any{peerID, kind}
	if beforeID > 0 {
		q += " AND msg_id < ?"
		args = append(args, beforeID)
	}
	q += " ORDER BY msg_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// MaxArchivedID returns the highest archived message id of a chat, or 0.
func (db *DB) MaxArchivedID(peerID int64, kind int) (int64, error) {
	var id sql.NullInt64
	err := db.QueryRow(`SELECT MAX(msg_id) FROM messages WHERE peer_id = ? AND chat_kind = ?`, peerID, kind).Scan(&id)
	return id.Int64, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner, extra ...any) (*Message, error) {
	var m Message
	var attachments string
	dest := append([]any{&m.ID, &m.PeerID, &m.ChatKind, &m.MsgID, &m.SenderID, &m.Body, &attachments, &m.SentAt, &m.EditedAt, &m.Deleted}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of message %d: %w", m.MsgID, err)
		}
	}
	return &m, nil
}

func nonNil(a []Attachment) []Attachment {
	if a == nil {
		return []Attachment{}
	}
	return a
}
