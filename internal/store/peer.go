package store

import (
	"database/sql"
	"time"
)

// UpsertPeer caches a resolved display name.
func (db *DB) UpsertPeer(p *Peer) error {
	_, err := db.Exec(`
		INSERT INTO peers (peer_id, chat_kind, name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(peer_id, chat_kind) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at`,
		p.PeerID, p.ChatKind, p.Name, time.Now().UnixMilli())
	return err
}

// GetPeer returns a cached peer, or nil when unknown.
func (db *DB) GetPeer(peerID int64, kind int) (*Peer, error) {
	p := Peer{PeerID: peerID, ChatKind: kind}
	err := db.QueryRow(`SELECT name FROM peers WHERE peer_id = ? AND chat_kind = ?`, peerID, kind).Scan(&p.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
