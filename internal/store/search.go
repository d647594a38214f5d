package store

// SearchArchive performs a full-text search on archived message bodies.
// peerID <= 0 searches every chat.
func (db *DB) SearchArchive(query string, peerID int64, kind int, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, m.peer_id, m.chat_kind, m.msg_id, m.sender_id, m.body,
		       m.attachments, m.sent_at, m.edited_at, m.deleted,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ? AND m.deleted = 0`

	args := []any{query}
	if peerID > 0 {
		q += " AND m.peer_id = ? AND m.chat_kind = ?"
		args = append(args, peerID, kind)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var snippet string
		m, err := scanMessage(rows, &snippet)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Message: *m, Snippet: snippet})
	}
	return results, rows.Err()
}
