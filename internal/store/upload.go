package store

import "time"

// SaveUpload inserts or updates an upload journal record.
func (db *DB) SaveUpload(u *Upload) error {
	now := time.Now().UnixMilli()
	created := u.CreatedAt
	if created == 0 {
		created = now
	}
	_, err := db.Exec(`
		INSERT INTO uploads (task_id, peer_id, chat_kind, file_name, size, mime_type, state, file_id, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			state = excluded.state,
			file_id = excluded.file_id,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		u.TaskID, u.PeerID, u.ChatKind, u.FileName, u.Size, u.MimeType, u.State, u.FileID, u.ErrorMessage, created, now)
	return err
}

// DeleteUpload removes an upload record.
func (db *DB) DeleteUpload(taskID string) error {
	_, err := db.Exec(`DELETE FROM uploads WHERE task_id = ?`, taskID)
	return err
}

// LoadUploads returns every journaled upload in creation order.
func (db *DB) LoadUploads() ([]Upload, error) {
	rows, err := db.Query(`
		SELECT task_id, peer_id, chat_kind, file_name, size, mime_type, state, file_id, error_message, created_at
		FROM uploads ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.TaskID, &u.PeerID, &u.ChatKind, &u.FileName, &u.Size, &u.MimeType, &u.State, &u.FileID, &u.ErrorMessage, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// FailInterruptedUploads marks uploads left pending or uploading by a previous
// daemon run as failed. Their payload is gone, so they can only be removed.
func (db *DB) FailInterruptedUploads() (int64, error) {
	res, err := db.Exec(`
		UPDATE uploads SET state = 'failed', error_message = 'interrupted', updated_at = ?
		WHERE state IN ('pending', 'uploading')`, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
