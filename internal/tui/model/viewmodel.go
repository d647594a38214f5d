package model

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/tui/ui"
)

// ErrNoChat is returned by chat operations while no chat is open.
var ErrNoChat = errors.New("no chat open")

// Daemon is the subset of the daemon client the view model drives.
type Daemon interface {
	GetStatus(ctx context.Context) (*rpc.StatusResponse, error)
	ListPreviews(ctx context.Context) (*rpc.ListPreviewsResponse, error)
	GetChat(ctx context.Context, req *rpc.GetChatRequest) (*rpc.ChatResponse, error)
	Navigate(ctx context.Context, req *rpc.NavigateRequest) (*rpc.RouteResponse, error)
	GetRoute(ctx context.Context) (*rpc.RouteResponse, error)
	SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendTextResponse, error)
	EditText(ctx context.Context, req *rpc.EditTextRequest) (*rpc.MutationResponse, error)
	DeleteMessage(ctx context.Context, req *rpc.DeleteMessageRequest) (*rpc.MutationResponse, error)
	SearchArchive(ctx context.Context, req *rpc.SearchArchiveRequest) (*rpc.SearchArchiveResponse, error)
	StartUpload(ctx context.Context, req *rpc.StartUploadRequest) (*rpc.Upload, error)
	CancelUpload(ctx context.Context, req *rpc.CancelUploadRequest) (*rpc.Upload, error)
}

// Change reports which parts of the view model an update touched.
type Change uint8

const (
	ChangeStatus Change = 1 << iota
	ChangePreviews
	ChangeChat
	ChangeRoute
	// ChangeReload asks the caller to refetch the open chat.
	ChangeReload
)

// Has reports whether c includes o.
func (c Change) Has(o Change) bool { return c&o != 0 }

// ViewModel caches daemon state for the views. Methods that talk to the
// daemon block; call them off the UI goroutine.
type ViewModel struct {
	mu sync.RWMutex

	client   Daemon
	status   *rpc.StatusResponse
	previews *rpc.ListPreviewsResponse
	chat     *rpc.ChatResponse
	route    *rpc.RouteResponse

	Flash *ui.FlashModel
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c Daemon) *ViewModel {
	return &ViewModel{
		client: c,
		Flash:  ui.NewFlashModel(),
	}
}

// Refresh fetches status, previews and the committed route.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	st, err := vm.client.GetStatus(ctx)
	if err != nil {
		return err
	}
	pv, err := vm.client.ListPreviews(ctx)
	if err != nil {
		return err
	}
	route, err := vm.client.GetRoute(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status, vm.previews, vm.route = st, pv, route
	vm.mu.Unlock()
	return nil
}

// RefreshStatus fetches only the daemon status.
func (vm *ViewModel) RefreshStatus(ctx context.Context) error {
	st, err := vm.client.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = st
	vm.mu.Unlock()
	return nil
}

// OpenChat points the route at chat and loads it. The preview list is
// refetched so the selection marker follows.
func (vm *ViewModel) OpenChat(ctx context.Context, chat string) error {
	if err := vm.navigate(ctx, &rpc.NavigateRequest{Params: map[string]string{"c": chat}}); err != nil {
		return err
	}
	if err := vm.LoadChat(ctx, chat, false); err != nil {
		return err
	}
	return vm.refreshPreviews(ctx)
}

// CloseChat removes the chat from the route.
func (vm *ViewModel) CloseChat(ctx context.Context) error {
	if err := vm.navigate(ctx, &rpc.NavigateRequest{Params: map[string]string{"c": ""}}); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.chat = nil
	vm.mu.Unlock()
	return vm.refreshPreviews(ctx)
}

// SearchPeers switches the preview list to search mode. An empty query
// returns to recent chats.
func (vm *ViewModel) SearchPeers(ctx context.Context, query string) error {
	if err := vm.navigate(ctx, &rpc.NavigateRequest{Params: map[string]string{"s": query}}); err != nil {
		return err
	}
	return vm.refreshPreviews(ctx)
}

// Go replaces the whole route fragment and loads the chat it names, if any.
func (vm *ViewModel) Go(ctx context.Context, fragment string) error {
	if err := vm.navigate(ctx, &rpc.NavigateRequest{Fragment: fragment}); err != nil {
		return err
	}
	if chat := vm.Route().Chat; chat != "" {
		if err := vm.LoadChat(ctx, chat, false); err != nil {
			return err
		}
	} else {
		vm.mu.Lock()
		vm.chat = nil
		vm.mu.Unlock()
	}
	return vm.refreshPreviews(ctx)
}

// RefreshRoute fetches the committed route, including its share link.
func (vm *ViewModel) RefreshRoute(ctx context.Context) error {
	route, err := vm.client.GetRoute(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.route = route
	vm.mu.Unlock()
	return nil
}

func (vm *ViewModel) refreshPreviews(ctx context.Context) error {
	pv, err := vm.client.ListPreviews(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.previews = pv
	vm.mu.Unlock()
	return nil
}

func (vm *ViewModel) navigate(ctx context.Context, req *rpc.NavigateRequest) error {
	route, err := vm.client.Navigate(ctx, req)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.route = route
	vm.mu.Unlock()
	if route.Error != "" {
		vm.Flash.Warn(route.Error)
	}
	return nil
}

// LoadChat fetches a full render of chat. Older loads one more page of
// history first.
func (vm *ViewModel) LoadChat(ctx context.Context, chat string, older bool) error {
	resp, err := vm.client.GetChat(ctx, &rpc.GetChatRequest{Chat: chat, Older: older})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.chat = resp
	vm.mu.Unlock()
	return nil
}

// LoadOlder loads the page of history preceding the open chat's window and
// reports how many messages it added.
func (vm *ViewModel) LoadOlder(ctx context.Context) (int, error) {
	chat := vm.ActiveChat()
	if chat == "" {
		return 0, ErrNoChat
	}
	if err := vm.LoadChat(ctx, chat, true); err != nil {
		return 0, err
	}
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.chat.Loaded, nil
}

// Send queues text plus the draft attachments of the open chat.
func (vm *ViewModel) Send(ctx context.Context, text string) (*rpc.SendTextResponse, error) {
	chat := vm.ActiveChat()
	if chat == "" {
		return nil, ErrNoChat
	}
	return vm.client.SendText(ctx, &rpc.SendTextRequest{Chat: chat, Text: text})
}

// Edit replaces the text of a message in the open chat.
func (vm *ViewModel) Edit(ctx context.Context, id int64, text string) (string, error) {
	chat := vm.ActiveChat()
	if chat == "" {
		return "", ErrNoChat
	}
	resp, err := vm.client.EditText(ctx, &rpc.EditTextRequest{Chat: chat, MessageID: id, Text: text})
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// Delete deletes a message of the open chat.
func (vm *ViewModel) Delete(ctx context.Context, id int64) (string, error) {
	chat := vm.ActiveChat()
	if chat == "" {
		return "", ErrNoChat
	}
	resp, err := vm.client.DeleteMessage(ctx, &rpc.DeleteMessageRequest{Chat: chat, MessageID: id})
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// Attach uploads a file to the open chat's draft.
func (vm *ViewModel) Attach(ctx context.Context, path string) (*rpc.Upload, error) {
	chat := vm.ActiveChat()
	if chat == "" {
		return nil, ErrNoChat
	}
	return vm.client.StartUpload(ctx, &rpc.StartUploadRequest{Chat: chat, Path: path})
}

// CancelUpload removes an upload.
func (vm *ViewModel) CancelUpload(ctx context.Context, id string) (*rpc.Upload, error) {
	return vm.client.CancelUpload(ctx, &rpc.CancelUploadRequest{ID: id})
}

// SearchArchive queries archived messages across all chats.
func (vm *ViewModel) SearchArchive(ctx context.Context, query string) ([]rpc.ArchiveHit, error) {
	resp, err := vm.client.SearchArchive(ctx, &rpc.SearchArchiveRequest{Query: query, Limit: 50})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Apply folds a streamed view event into the cached state.
func (vm *ViewModel) Apply(evt *rpc.ViewEvent) Change {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	switch evt.Kind {
	case bus.KindStreamStatus:
		if vm.status == nil {
			return 0
		}
		vm.status.State, vm.status.Reason = evt.State, evt.Error
		return ChangeStatus

	case bus.KindRouteChanged:
		if vm.route == nil {
			vm.route = &rpc.RouteResponse{}
		}
		vm.route.Fragment = evt.Fragment
		return ChangeRoute

	case bus.KindPreviewUpserted:
		if evt.Preview == nil || vm.previews == nil || vm.previews.Mode != "recent" {
			return 0
		}
		list := slices.DeleteFunc(vm.previews.Previews, func(p rpc.Preview) bool { return p.Chat == evt.Preview.Chat })
		vm.previews.Previews = slices.Insert(list, 0, *evt.Preview)
		return ChangePreviews

	case bus.KindPreviewSearch, bus.KindPreviewRestored:
		if evt.Previews == nil {
			return 0
		}
		vm.previews = evt.Previews
		return ChangePreviews

	case bus.KindMessageAppended:
		if !vm.isOpen(evt.Chat) || evt.Message == nil {
			return 0
		}
		msgs := vm.chat.Messages
		i, found := slices.BinarySearchFunc(msgs, evt.Message.ID, func(m rpc.Message, id int64) int {
			return cmp.Compare(m.ID, id)
		})
		if found {
			msgs[i] = *evt.Message
		} else {
			vm.chat.Messages = slices.Insert(msgs, i, *evt.Message)
		}
		return ChangeChat

	case bus.KindMessageEdited:
		if !vm.isOpen(evt.Chat) || evt.Message == nil {
			return 0
		}
		for i := range vm.chat.Messages {
			if vm.chat.Messages[i].ID == evt.Message.ID {
				sender := vm.chat.Messages[i].SenderName
				vm.chat.Messages[i] = *evt.Message
				vm.chat.Messages[i].SenderName = sender
				return ChangeChat
			}
		}
		return 0

	case bus.KindMessageRemoved:
		if !vm.isOpen(evt.Chat) || evt.Message == nil {
			return 0
		}
		n := len(vm.chat.Messages)
		vm.chat.Messages = slices.DeleteFunc(vm.chat.Messages, func(m rpc.Message) bool { return m.ID == evt.Message.ID })
		if len(vm.chat.Messages) == n {
			return 0
		}
		return ChangeChat

	case bus.KindUploadProgress, bus.KindUploadSucceeded, bus.KindUploadFailed:
		if !vm.isOpen(evt.Chat) || evt.Upload == nil {
			return 0
		}
		i := slices.IndexFunc(vm.chat.Uploads, func(u rpc.Upload) bool { return u.ID == evt.Upload.ID })
		if i < 0 {
			vm.chat.Uploads = append(vm.chat.Uploads, *evt.Upload)
		} else {
			vm.chat.Uploads[i] = *evt.Upload
		}
		if evt.Kind == bus.KindUploadSucceeded && evt.Upload.FileID != 0 && !slices.Contains(vm.chat.Draft, evt.Upload.FileID) {
			vm.chat.Draft = append(vm.chat.Draft, evt.Upload.FileID)
		}
		return ChangeChat

	case bus.KindUploadCancelled:
		if !vm.isOpen(evt.Chat) || evt.Upload == nil {
			return 0
		}
		vm.chat.Uploads = slices.DeleteFunc(vm.chat.Uploads, func(u rpc.Upload) bool { return u.ID == evt.Upload.ID })
		if evt.Upload.FileID != 0 {
			vm.chat.Draft = slices.DeleteFunc(vm.chat.Draft, func(id int64) bool { return id == evt.Upload.FileID })
		}
		return ChangeChat

	case bus.KindSendAck:
		if vm.isOpen(evt.Chat) {
			// The draft was consumed by the send.
			return ChangeReload
		}
		return 0

	case bus.KindSendFailed:
		vm.Flash.Warn("send failed: " + evt.Error)
		if vm.isOpen(evt.Chat) {
			return ChangeReload
		}
		return 0

	case bus.KindChatOpened, bus.KindHistoryLoaded:
		if vm.isOpen(evt.Chat) {
			return ChangeReload
		}
		return 0

	case bus.KindViewError:
		vm.Flash.Warn(evt.Error)
		return 0
	}
	return 0
}

func (vm *ViewModel) isOpen(chat string) bool {
	return vm.chat != nil && chat != "" && vm.chat.Chat == chat
}

// ActiveChat returns the open chat, or "".
func (vm *ViewModel) ActiveChat() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.chat == nil {
		return ""
	}
	return vm.chat.Chat
}

// Status returns a copy of the last known daemon status, or nil.
func (vm *ViewModel) Status() *rpc.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.status == nil {
		return nil
	}
	st := *vm.status
	return &st
}

// Previews returns a copy of the preview list.
func (vm *ViewModel) Previews() rpc.ListPreviewsResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.previews == nil {
		return rpc.ListPreviewsResponse{Mode: "recent"}
	}
	out := *vm.previews
	out.Previews = slices.Clone(vm.previews.Previews)
	return out
}

// Chat returns a copy of the open chat, or nil.
func (vm *ViewModel) Chat() *rpc.ChatResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.chat == nil {
		return nil
	}
	out := *vm.chat
	out.Messages = slices.Clone(vm.chat.Messages)
	out.Uploads = slices.Clone(vm.chat.Uploads)
	out.Draft = slices.Clone(vm.chat.Draft)
	return &out
}

// Route returns a copy of the committed route.
func (vm *ViewModel) Route() rpc.RouteResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.route == nil {
		return rpc.RouteResponse{}
	}
	return *vm.route
}
