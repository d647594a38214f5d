package store

import (
	"path/filepath"
	"slices"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

// TestMigrateSchemaHasRequiredColumns verifies the migration creates every
// column the engine and outbox write to.
func TestMigrateSchemaHasRequiredColumns(t *testing.T) {
	db := testDB(t)

	requiredOps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"archive message", "INSERT INTO messages (peer_id, chat_kind, msg_id, sender_id, body, attachments, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?)", []any{9, 1, 1, 9, "hello", "[]", 1000}},
		{"cache peer", "INSERT INTO peers (peer_id, chat_kind, name) VALUES (?, ?, ?)", []any{9, 1, "bob"}},
		{"queue outbox", "INSERT INTO outbox (client_msg_id, peer_id, chat_kind, body, attachments, status) VALUES (?, ?, ?, ?, ?, ?)", []any{"cid", 9, 1, "text", "1 2", "queued"}},
		{"journal upload", "INSERT INTO uploads (task_id, peer_id, chat_kind, file_name, state) VALUES (?, ?, ?, ?, ?)", []any{"t1", 9, 1, "a.png", "pending"}},
		{"set sync state", "INSERT INTO sync_state (key, value) VALUES (?, ?)", []any{"k", "v"}},
	}
	for _, op := range requiredOps {
		t.Run(op.desc, func(t *testing.T) {
			if _, err := db.Exec(op.query, op.args...); err != nil {
				t.Fatalf("%s failed: %v", op.desc, err)
			}
		})
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH 'hello'").Scan(&count); err != nil {
		t.Fatalf("FTS5 query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("FTS5 count = %d, want 1", count)
	}
}

func TestArchiveMessageIdempotent(t *testing.T) {
	db := testDB(t)

	msg := &Message{PeerID: 9, ChatKind: 1, MsgID: 1, SenderID: 9, Body: "hello", SentAt: 1000,
		Attachments: []Attachment{{ID: 4, Name: "a.png", Size: 12}}}
	if err := db.ArchiveMessage(msg); err != nil {
		t.Fatal(err)
	}
	msg.Body = "hello updated"
	if err := db.ArchiveMessage(msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListArchived(9, 1, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent archive failed)", len(msgs))
	}
	if msgs[0].Body != "hello updated" {
		t.Errorf("body = %q, want hello updated", msgs[0].Body)
	}
	if len(msgs[0].Attachments) != 1 || msgs[0].Attachments[0].Name != "a.png" {
		t.Errorf("attachments = %+v, want one a.png", msgs[0].Attachments)
	}
}

func TestArchiveMessagesBatch(t *testing.T) {
	db := testDB(t)
	batch := []Message{
		{PeerID: 9, ChatKind: 1, MsgID: 1, SenderID: 9, Body: "one", SentAt: 1000},
		{PeerID: 9, ChatKind: 1, MsgID: 2, SenderID: 3, Body: "two", SentAt: 2000},
		{PeerID: 40, ChatKind: 2, MsgID: 1, SenderID: 9, Body: "group", SentAt: 3000},
	}
	if err := db.ArchiveMessages(batch); err != nil {
		t.Fatal(err)
	}
	if _, err := db.DeleteArchived(9, 1, 2); err != nil {
		t.Fatal(err)
	}
	// Replaying the page keeps the tombstone.
	if err := db.ArchiveMessages(batch); err != nil {
		t.Fatal(err)
	}

	n, err := db.MessageCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("MessageCount = %d, want 2", n)
	}
}

func TestListArchivedKeyset(t *testing.T) {
	db := testDB(t)
	for id := int64(1); id <= 5; id++ {
		if err := db.ArchiveMessage(&Message{PeerID: 2, ChatKind: 2, MsgID: id, SenderID: 7, Body: "m"}); err != nil {
			t.Fatal(err)
		}
	}
	// Same peer id in a different kind must not leak in.
	if err := db.ArchiveMessage(&Message{PeerID: 2, ChatKind: 1, MsgID: 99, SenderID: 2, Body: "dm"}); err != nil {
		t.Fatal(err)
	}

	page, err := db.ListArchived(2, 2, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	var ids []int64
	for _, m := range page {
		ids = append(ids, m.MsgID)
	}
	if !slices.Equal(ids, []int64{3, 2}) {
		t.Errorf("page ids = %v, want [3 2]", ids)
	}

	maxID, err := db.MaxArchivedID(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if maxID != 5 {
		t.Errorf("MaxArchivedID = %d, want 5", maxID)
	}
}

func TestEditAndDeleteArchived(t *testing.T) {
	db := testDB(t)
	if err := db.ArchiveMessage(&Message{PeerID: 9, ChatKind: 1, MsgID: 7, SenderID: 9, Body: "old text"}); err != nil {
		t.Fatal(err)
	}

	ok, err := db.EditArchived(9, 1, 7, "new text", 2000)
	if err != nil || !ok {
		t.Fatalf("EditArchived = %v, %v; want true, nil", ok, err)
	}
	ok, err = db.EditArchived(9, 1, 8, "nope", 2000)
	if err != nil || ok {
		t.Fatalf("EditArchived(missing) = %v, %v; want false, nil", ok, err)
	}

	results, err := db.SearchArchive("new", 0, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Message.EditedAt != 2000 {
		t.Fatalf("search after edit = %+v, want one edited result", results)
	}

	ok, err = db.DeleteArchived(9, 1, 7)
	if err != nil || !ok {
		t.Fatalf("DeleteArchived = %v, %v; want true, nil", ok, err)
	}
	ok, _ = db.DeleteArchived(9, 1, 7)
	if ok {
		t.Error("second DeleteArchived should report false")
	}
	results, err = db.SearchArchive("new", 0, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("deleted message still searchable: %+v", results)
	}
	n, _ := db.MessageCount()
	if n != 0 {
		t.Errorf("MessageCount = %d, want 0", n)
	}
}

func TestSearchArchive(t *testing.T) {
	db := testDB(t)

	if err := db.ArchiveMessage(&Message{PeerID: 1, ChatKind: 1, MsgID: 1, Body: "hello world", SentAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.ArchiveMessage(&Message{PeerID: 2, ChatKind: 1, MsgID: 1, Body: "hello again", SentAt: 2000}); err != nil {
		t.Fatal(err)
	}
	if err := db.ArchiveMessage(&Message{PeerID: 1, ChatKind: 1, MsgID: 2, Body: "goodbye world", SentAt: 3000}); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchArchive("hello", 0, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	results, err = db.SearchArchive("hello", 1, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Message.PeerID != 1 {
		t.Fatalf("scoped search = %+v, want only peer 1", results)
	}
	if results[0].Snippet == "" {
		t.Error("empty snippet")
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox(&OutboxEntry{ClientMsgID: "client1", PeerID: 9, ChatKind: 1, Body: "test msg", Attachments: []int64{4, 5}}); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].ClientMsgID != "client1" {
		t.Errorf("client_msg_id = %q, want client1", pending[0].ClientMsgID)
	}
	if !slices.Equal(pending[0].Attachments, []int64{4, 5}) {
		t.Errorf("attachments = %v, want [4 5]", pending[0].Attachments)
	}

	if err := db.MarkOutboxSending("client1"); err != nil {
		t.Fatal(err)
	}
	n, err := db.RequeueInterrupted()
	if err != nil || n != 1 {
		t.Fatalf("RequeueInterrupted = %d, %v; want 1", n, err)
	}
	if err := db.MarkOutboxSent("client1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}

	e, err := db.GetOutbox("client1")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.Status != "sent" {
		t.Errorf("GetOutbox = %+v, want status sent", e)
	}
	if e, _ := db.GetOutbox("missing"); e != nil {
		t.Errorf("GetOutbox(missing) = %+v, want nil", e)
	}
}

func TestUploadJournal(t *testing.T) {
	db := testDB(t)

	u := &Upload{TaskID: "t1", PeerID: 9, ChatKind: 1, FileName: "a.png", Size: 10, State: "uploading"}
	if err := db.SaveUpload(u); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveUpload(&Upload{TaskID: "t2", PeerID: 9, ChatKind: 1, FileName: "b.png", State: "succeeded", FileID: 42}); err != nil {
		t.Fatal(err)
	}

	if err := db.SaveUpload(&Upload{TaskID: "t3", PeerID: 4, ChatKind: 2, FileName: "c.txt", State: "failed", ErrorMessage: "boom"}); err != nil {
		t.Fatal(err)
	}

	n, err := db.FailInterruptedUploads()
	if err != nil || n != 1 {
		t.Fatalf("FailInterruptedUploads = %d, %v; want 1", n, err)
	}

	list, err := db.LoadUploads()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d uploads, want 3", len(list))
	}
	if list[0].State != "failed" || list[0].ErrorMessage != "interrupted" {
		t.Errorf("t1 = %+v, want failed/interrupted", list[0])
	}
	if list[1].FileID != 42 {
		t.Errorf("t2 file id = %d, want 42", list[1].FileID)
	}
	if list[2].PeerID != 4 || list[2].ErrorMessage != "boom" {
		t.Errorf("t3 = %+v, want the group upload untouched", list[2])
	}

	if err := db.DeleteUpload("t1"); err != nil {
		t.Fatal(err)
	}
	list, _ = db.LoadUploads()
	if len(list) != 2 {
		t.Errorf("got %d uploads after delete, want 2", len(list))
	}
}

func TestPeerAndState(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertPeer(&Peer{PeerID: 9, ChatKind: 1, Name: "bob"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertPeer(&Peer{PeerID: 9, ChatKind: 1, Name: "bobby"}); err != nil {
		t.Fatal(err)
	}
	p, err := db.GetPeer(9, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Name != "bobby" {
		t.Errorf("GetPeer = %+v, want bobby", p)
	}
	if p, _ := db.GetPeer(9, 2); p != nil {
		t.Errorf("GetPeer(group) = %+v, want nil", p)
	}

	v, err := db.GetState("route.fragment")
	if err != nil || v != "" {
		t.Fatalf("GetState(unset) = %q, %v", v, err)
	}
	if err := db.SetState("route.fragment", "c=5&s=bob"); err != nil {
		t.Fatal(err)
	}
	v, _ = db.GetState("route.fragment")
	if v != "c=5&s=bob" {
		t.Errorf("GetState = %q, want c=5&s=bob", v)
	}
}

func TestIDListRoundTrip(t *testing.T) {
	if got := JoinIDs([]int64{1, 22, 333}); got != "1 22 333" {
		t.Errorf("JoinIDs = %q", got)
	}
	if got := SplitIDs(" 1  x 22 "); !slices.Equal(got, []int64{1, 22}) {
		t.Errorf("SplitIDs = %v", got)
	}
	if got := JoinIDs(nil); got != "" {
		t.Errorf("JoinIDs(nil) = %q", got)
	}
}
