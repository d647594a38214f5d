package chatsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/store"
)

// ErrUploadCancelled is the error of a task that was cancelled while in flight.
var ErrUploadCancelled = errors.New("upload cancelled")

// FileMeta describes an upload payload.
type FileMeta struct {
	Name     string
	MimeType string
	Size     int64
}

// File is an upload payload. Open is called once, from the upload goroutine.
type File struct {
	FileMeta
	Open func() (io.ReadCloser, error)
}

// FileFromPath describes a local file. An empty mimeType is guessed from the
// extension.
func FileFromPath(path, mimeType string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("upload %s: is a directory", path)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return File{
		FileMeta: FileMeta{Name: filepath.Base(path), MimeType: mimeType, Size: info.Size()},
		Open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// TaskState is the lifecycle state of an upload.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskUploading TaskState = "uploading"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Terminal reports whether no further progress can happen.
func (s TaskState) Terminal() bool { return s == TaskSucceeded || s == TaskFailed }

// TaskSnapshot is a point-in-time copy of a task.
type TaskSnapshot struct {
	ID     string
	Chat   ChatKey
	File   FileMeta
	State  TaskState
	Sent   int64
	Total  int64
	FileID int64
	Err    string
}

// Task is one upload. Its fields are guarded by mu; whichever of the upload
// goroutine and Cancel gets the lock last observes the other's outcome.
// Journal writes happen under mu too, so none lands after removal.
type Task struct {
	id      string
	chat    ChatKey
	file    File
	created time.Time

	mu        sync.Mutex
	state     TaskState
	sent      int64
	total     int64
	fileID    int64
	err       error
	cancelled bool
	removed   bool

	cancel  context.CancelFunc
	limiter *rate.Limiter
	done    chan struct{}
}

// ID returns the client-local task id.
func (t *Task) ID() string { return t.id }

// Done is closed when the upload goroutine has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Snapshot copies the task state.
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Task) snapshot() TaskSnapshot {
	s := TaskSnapshot{
		ID:     t.id,
		Chat:   t.chat,
		File:   t.file.FileMeta,
		State:  t.state,
		Sent:   t.sent,
		Total:  t.total,
		FileID: t.fileID,
	}
	if t.err != nil {
		s.Err = t.err.Error()
	}
	return s
}

// Pipeline runs attachment uploads independently of each other and of
// message sending.
type Pipeline struct {
	uploader  Uploader
	journal   UploadJournal
	bus       *bus.Bus
	logger    *zap.Logger
	perSecond rate.Limit

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

// NewPipeline creates a pipeline. Progress events are published at most
// progressPerSecond times per task; terminal states are always published.
// journal may be nil.
func NewPipeline(uploader Uploader, journal UploadJournal, b *bus.Bus, progressPerSecond float64, logger *zap.Logger) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	if progressPerSecond <= 0 {
		progressPerSecond = 10
	}
	return &Pipeline{
		uploader:  uploader,
		journal:   journal,
		bus:       b,
		logger:    logger,
		perSecond: rate.Limit(progressPerSecond),
		ctx:       ctx,
		cancel:    cancel,
		tasks:     make(map[string]*Task),
	}
}

// Start begins uploading file for chat immediately. onSuccess receives the
// server-assigned attachment id; it is never called for a cancelled task.
func (p *Pipeline) Start(chat ChatKey, file File, onSuccess func(fileID int64)) *Task {
	ctx, cancel := context.WithCancel(p.ctx)
	t := &Task{
		id:      uuid.NewString(),
		chat:    chat,
		file:    file,
		created: time.Now(),
		state:   TaskPending,
		total:   file.Size,
		cancel:  cancel,
		limiter: rate.NewLimiter(p.perSecond, 1),
		done:    make(chan struct{}),
	}

	p.mu.Lock()
	p.tasks[t.id] = t
	p.order = append(p.order, t.id)
	p.mu.Unlock()

	t.mu.Lock()
	p.record(t)
	t.mu.Unlock()
	p.wg.Add(1)
	go p.run(ctx, t, onSuccess)
	return t
}

func (p *Pipeline) run(ctx context.Context, t *Task, onSuccess func(int64)) {
	defer p.wg.Done()
	defer close(t.done)
	defer t.cancel()

	if t.file.Open == nil {
		p.finish(t, 0, errors.New("file has no content"), onSuccess)
		return
	}
	body, err := t.file.Open()
	if err != nil {
		p.finish(t, 0, fmt.Errorf("open %s: %w", t.file.Name, err), onSuccess)
		return
	}
	defer func() { _ = body.Close() }()

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.state = TaskUploading
	p.record(t)
	snap := t.snapshot()
	t.mu.Unlock()
	p.bus.Emit(bus.KindUploadProgress, snap)

	id, err := p.uploader.Upload(ctx, t.file.FileMeta, body, func(sent, total int64) {
		p.progress(t, sent, total)
	})
	p.finish(t, id, err, onSuccess)
}

func (p *Pipeline) progress(t *Task, sent, total int64) {
	t.mu.Lock()
	if t.cancelled || t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	t.sent, t.total = sent, total
	publish := t.limiter.Allow()
	snap := t.snapshot()
	t.mu.Unlock()
	if publish {
		p.bus.Emit(bus.KindUploadProgress, snap)
	}
}

func (p *Pipeline) finish(t *Task, fileID int64, err error, onSuccess func(int64)) {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		p.logger.Debug("upload finished after cancel", zap.String("task", t.id))
		return
	}
	kind := bus.KindUploadSucceeded
	if err != nil {
		t.state, t.err = TaskFailed, err
		kind = bus.KindUploadFailed
		p.logger.Warn("upload failed", zap.String("task", t.id), zap.String("file", t.file.Name), zap.Error(err))
	} else {
		t.state, t.fileID = TaskSucceeded, fileID
		if t.total > 0 {
			t.sent = t.total
		}
		if onSuccess != nil {
			onSuccess(fileID)
		}
	}
	p.record(t)
	snap := t.snapshot()
	t.mu.Unlock()

	p.bus.Emit(kind, snap)
}

// Cancel removes a task in any state. An in-flight upload is aborted and will
// neither report progress nor call its success callback afterwards.
func (p *Pipeline) Cancel(id string) (TaskSnapshot, bool) {
	p.mu.Lock()
	t, ok := p.tasks[id]
	if ok {
		p.drop(id)
	}
	p.mu.Unlock()
	if !ok {
		return TaskSnapshot{}, false
	}

	t.mu.Lock()
	t.removed = true
	inFlight := !t.state.Terminal()
	if inFlight {
		t.cancelled = true
		t.err = ErrUploadCancelled
	}
	snap := t.snapshot()
	t.mu.Unlock()
	t.cancel()

	p.unjournal(id)
	p.bus.Emit(bus.KindUploadCancelled, snap)
	return snap, true
}

// Get returns a snapshot of task id.
func (p *Pipeline) Get(id string) (TaskSnapshot, bool) {
	p.mu.Lock()
	t, ok := p.tasks[id]
	p.mu.Unlock()
	if !ok {
		return TaskSnapshot{}, false
	}
	return t.Snapshot(), true
}

// List returns the tasks of chat in start order.
func (p *Pipeline) List(chat ChatKey) []TaskSnapshot {
	var out []TaskSnapshot
	for _, t := range p.snapshotTasks() {
		if t.chat == chat {
			out = append(out, t.Snapshot())
		}
	}
	return out
}

// InFlight counts the pending or uploading tasks of chat.
func (p *Pipeline) InFlight(chat ChatKey) int {
	n := 0
	for _, s := range p.List(chat) {
		if !s.State.Terminal() {
			n++
		}
	}
	return n
}

// Acknowledge drops the succeeded tasks of chat whose attachment ids are in
// fileIDs, the ids a delivered message carried. Tasks feeding a later draft
// stay listed and cancelable.
func (p *Pipeline) Acknowledge(chat ChatKey, fileIDs []int64) int {
	if len(fileIDs) == 0 {
		return 0
	}
	n := 0
	for _, t := range p.snapshotTasks() {
		if t.chat != chat || !t.acknowledge(fileIDs) {
			continue
		}
		p.forget(t.id)
		p.unjournal(t.id)
		n++
	}
	return n
}

func (t *Task) acknowledge(fileIDs []int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.removed || t.state != TaskSucceeded || !slices.Contains(fileIDs, t.fileID) {
		return false
	}
	t.removed = true
	return true
}

// Restore reloads tasks journaled by a previous run. Failed tasks come back
// listed so they can be seen and cancelled. Succeeded records are dropped:
// the draft that held their ids did not survive the restart. Anything still
// pending or uploading is recorded as failed, its payload being gone.
func (p *Pipeline) Restore() (int, error) {
	if p.journal == nil {
		return 0, nil
	}
	records, err := p.journal.LoadUploads()
	if err != nil {
		return 0, fmt.Errorf("load upload journal: %w", err)
	}
	n := 0
	for _, rec := range records {
		if TaskState(rec.State) == TaskSucceeded {
			p.unjournal(rec.TaskID)
			continue
		}
		t := restoredTask(rec)
		p.mu.Lock()
		if _, dup := p.tasks[t.id]; dup {
			p.mu.Unlock()
			continue
		}
		p.tasks[t.id] = t
		p.order = append(p.order, t.id)
		p.mu.Unlock()

		if TaskState(rec.State) != TaskFailed {
			t.mu.Lock()
			p.record(t)
			t.mu.Unlock()
		}
		n++
	}
	return n, nil
}

func restoredTask(rec store.Upload) *Task {
	msg := rec.ErrorMessage
	if msg == "" || TaskState(rec.State) != TaskFailed {
		msg = "interrupted"
	}
	done := make(chan struct{})
	close(done)
	return &Task{
		id:      rec.TaskID,
		chat:    ChatKey{PeerID: rec.PeerID, Kind: Kind(rec.ChatKind)},
		file:    File{FileMeta: FileMeta{Name: rec.FileName, MimeType: rec.MimeType, Size: rec.Size}},
		created: time.UnixMilli(rec.CreatedAt),
		state:   TaskFailed,
		total:   rec.Size,
		err:     errors.New(msg),
		cancel:  func() {},
		done:    done,
	}
}

func (p *Pipeline) forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drop(id)
}

// drop removes id from the task set. The caller holds p.mu.
func (p *Pipeline) drop(id string) {
	delete(p.tasks, id)
	p.order = slices.DeleteFunc(p.order, func(s string) bool { return s == id })
}

func (p *Pipeline) unjournal(id string) {
	if p.journal == nil {
		return
	}
	if err := p.journal.DeleteUpload(id); err != nil {
		p.logger.Warn("drop upload record failed", zap.String("task", id), zap.Error(err))
	}
}

// Close aborts every in-flight upload and waits for the goroutines to exit.
func (p *Pipeline) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pipeline) snapshotTasks() []*Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Task, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.tasks[id])
	}
	return out
}

// record journals t. The caller holds t.mu.
func (p *Pipeline) record(t *Task) {
	if p.journal == nil || t.removed {
		return
	}
	s := t.snapshot()
	err := p.journal.SaveUpload(&store.Upload{
		TaskID:       s.ID,
		PeerID:       s.Chat.PeerID,
		ChatKind:     int(s.Chat.Kind),
		FileName:     s.File.Name,
		Size:         s.File.Size,
		MimeType:     s.File.MimeType,
		State:        string(s.State),
		FileID:       s.FileID,
		ErrorMessage: s.Err,
		CreatedAt:    t.created.UnixMilli(),
	})
	if err != nil {
		p.logger.Warn("journal upload failed", zap.String("task", s.ID), zap.Error(err))
	}
}

// Draft is the pending outgoing message of one chat: the attachment ids
// collected from completed uploads, in completion order.
type Draft struct {
	mu  sync.Mutex
	ids []int64
}

// Append adds a completed upload's id.
func (d *Draft) Append(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
}

// IDs returns a copy of the collected ids.
func (d *Draft) IDs() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.ids)
}

// Take returns the collected ids and empties the draft.
func (d *Draft) Take() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := d.ids
	d.ids = nil
	return ids
}

// Restore puts ids taken by a failed send back in front of any collected since.
func (d *Draft) Restore(ids []int64) {
	if len(ids) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(slices.Clone(ids), d.ids...)
}

// Drop removes id, reporting whether it was present.
func (d *Draft) Drop(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := slices.Index(d.ids, id)
	if i < 0 {
		return false
	}
	d.ids = slices.Delete(d.ids, i, i+1)
	return true
}

// Len returns the number of collected ids.
func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids)
}
