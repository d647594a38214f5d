package chatsync

import (
	"cmp"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/matheus3301/microchat/internal/store"
)

var errBoom = errors.New("boom")

// fakeServer is an in-memory Server. Hooks override the default behaviour.
type fakeServer struct {
	mu       sync.Mutex
	names    map[ChatKey]string
	history  map[ChatKey][]Message
	overview []OverviewEntry
	self     Identity
	hits     []SearchHit

	nameCalls    atomic.Int32
	historyCalls atomic.Int32
	edits        []int64
	deletes      []int64

	historyErr error
	searchErr  error
	editErr    error
	uploadFn   func(ctx context.Context, meta FileMeta, body io.Reader, progress ProgressFunc) (int64, error)
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		names:   make(map[ChatKey]string),
		history: make(map[ChatKey][]Message),
		self:    Identity{ID: 3, Name: "me"},
	}
}

func (f *fakeServer) FetchName(_ context.Context, key ChatKey) (string, error) {
	f.nameCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[key]
	if !ok {
		return "", errors.New("no such peer")
	}
	return name, nil
}

func (f *fakeServer) FetchHistory(_ context.Context, key ChatKey, offset, count int) ([]Message, error) {
	f.historyCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	// Server pages newest first.
	all := f.history[key]
	var out []Message
	for i := len(all) - 1 - offset; i >= 0 && len(out) < count; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (f *fakeServer) SearchPeers(_ context.Context, _ string) ([]SearchHit, error) {
	return f.hits, f.searchErr
}

func (f *fakeServer) FetchOverview(context.Context) ([]OverviewEntry, error) {
	return f.overview, nil
}

func (f *fakeServer) FetchSelf(context.Context) (Identity, error) {
	return f.self, nil
}

func (f *fakeServer) EditMessage(_ context.Context, _ ChatKey, id int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, id)
	return nil
}

func (f *fakeServer) DeleteMessage(_ context.Context, _ ChatKey, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeServer) Upload(ctx context.Context, meta FileMeta, body io.Reader, progress ProgressFunc) (int64, error) {
	if f.uploadFn != nil {
		return f.uploadFn(ctx, meta, body, progress)
	}
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return 0, err
	}
	progress(n, meta.Size)
	return 1, nil
}

// memState is an in-memory StateStore.
type memState struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memState) SetState(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]string)
	}
	s.m[key] = value
	return nil
}

func (s *memState) GetState(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

// memJournal is an in-memory UploadJournal.
type memJournal struct {
	mu      sync.Mutex
	records map[string]store.Upload
}

func (j *memJournal) SaveUpload(u *store.Upload) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.records == nil {
		j.records = make(map[string]store.Upload)
	}
	j.records[u.TaskID] = *u
	return nil
}

func (j *memJournal) DeleteUpload(taskID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.records, taskID)
	return nil
}

func (j *memJournal) LoadUploads() ([]store.Upload, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]store.Upload, 0, len(j.records))
	for _, u := range j.records {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b store.Upload) int { return cmp.Compare(a.CreatedAt, b.CreatedAt) })
	return out, nil
}

func (j *memJournal) get(id string) (store.Upload, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	u, ok := j.records[id]
	return u, ok
}
