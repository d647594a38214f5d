package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"google.golang.org/grpc"

	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/tui/keys"
	"github.com/matheus3301/microchat/internal/tui/model"
	"github.com/matheus3301/microchat/internal/tui/ui"
	"github.com/matheus3301/microchat/internal/tui/views"
)

const (
	pageChats   = "chats"
	pageChat    = "chat"
	pageDetails = "details"
	pageSearch  = "search"
	pageShare   = "share"
	pageHelp    = "help"

	headerRows     = 7
	rpcTimeout     = 10 * time.Second
	statusInterval = 5 * time.Second
	watchRetry     = 2 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	client   *rpc.Client
	vm       *model.ViewModel
	theme    *ui.Theme
	registry *keys.Registry
	session  string

	main   *tview.Flex
	pages  *ui.Pages
	info   *ui.SessionInfo
	menu   *ui.Menu
	crumbs *ui.Crumbs
	flash  *ui.FlashBar
	prompt *ui.Prompt

	list       *views.ConversationList
	thread     *views.MessageThread
	details    *views.ChatInfo
	search     *views.SearchView
	share      *views.ShareView
	help       *views.HelpView
	components map[string]ui.Component

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *rpc.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.ThemeFromEnv()

	a := &App{
		app:      tview.NewApplication(),
		client:   c,
		vm:       model.NewViewModel(c),
		theme:    theme,
		registry: keys.NewRegistry(),
		session:  sessionName,
		pages:    ui.NewPages(),
		info:     ui.NewSessionInfo(theme),
		menu:     ui.NewMenu(theme, headerRows),
		crumbs:   ui.NewCrumbs(theme),
		flash:    ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		list:     views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewChatInfo(theme),
		search:   views.NewSearchView(theme),
		share:    views.NewShareView(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.components = map[string]ui.Component{
		pageChats:   a.list,
		pageChat:    a.thread,
		pageDetails: a.details,
		pageSearch:  a.search,
		pageShare:   a.share,
		pageHelp:    a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune, Description: "?:help", Visible: true,
		Handler: func() { a.pages.Push(pageHelp) },
	})
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune, Description: "q:quit", Visible: true,
		Handler: func() {
			if a.pages.Current() == pageChats {
				a.Stop()
				return
			}
			a.back()
		},
	})

	a.registry.AddView(pageChats, "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune, Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageChats, "peers", &keys.Action{
		Rune: '@', Key: tcell.KeyRune, Handler: func() { a.showPrompt(ui.PromptPeers) },
	})
	a.registry.AddView(pageChats, "archive", &keys.Action{
		Rune: 'S', Key: tcell.KeyRune, Handler: func() { a.showPrompt(ui.PromptArchive) },
	})
	a.registry.AddView(pageChats, "clear", &keys.Action{
		Rune: '0', Key: tcell.KeyRune, Handler: func() { a.list.ClearFilter() },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageChats, fmt.Sprintf("jump%d", n), &keys.Action{
			Rune: rune('0' + n), Key: tcell.KeyRune,
			Handler: func() {
				if chat := a.list.ChatByIndex(n); chat != "" {
					a.openChat(chat)
				}
			},
		})
	}

	a.registry.AddView(pageChat, "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune, Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageChat, "older", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune, Handler: a.loadOlder,
	})
	a.registry.AddView(pageChat, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune, Handler: a.showDetails,
	})
	a.registry.AddView(pageChat, "share", &keys.Action{
		Rune: 'x', Key: tcell.KeyRune, Handler: a.showShare,
	})
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(row, _ int) {
		if chat := a.list.ChatByIndex(row); chat != "" {
			a.openChat(chat)
		}
	})

	a.thread.SetOnSend(func(text string) {
		var resp *rpc.SendTextResponse
		a.do("send", func(ctx context.Context) (err error) {
			resp, err = a.vm.Send(ctx, text)
			return err
		}, func() {
			if resp.PendingUploads > 0 {
				a.vm.Flash.Warn(fmt.Sprintf("sent; %d upload(s) still running will go with the next message", resp.PendingUploads))
			}
		})
	})

	a.search.SetOnQuery(a.searchArchive)
	a.search.Results().SetSelectedFunc(func(_, _ int) {
		if chat, _ := a.search.SelectedResult(); chat != "" {
			a.openChat(chat)
		}
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.list.SetFilter(text)
		case ui.PromptPeers:
			a.findPeers(text)
		case ui.PromptArchive:
			a.pages.Push(pageSearch)
			a.search.SetQuery(text)
			a.searchArchive(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func([]string) { a.refreshChrome() })
}

func (a *App) setupLayout() {
	for name, c := range a.components {
		a.pages.AddPage(name, c, true, false)
	}

	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 3, false).
		AddItem(ui.NewLogo(a.theme), 18, 0, false)

	a.main = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerRows, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flash, 1, 0, false)

	a.app.SetRoot(a.main, true)
	a.app.SetInputCapture(a.capture)
	a.pages.Reset(pageChats)
}

func (a *App) capture(event *tcell.EventKey) *tcell.EventKey {
	focused := a.app.GetFocus()
	if focused == a.prompt.InputField {
		return event
	}
	if focused == a.thread.Composer() {
		if event.Key() == tcell.KeyEscape {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		return event
	}
	if _, ok := focused.(*tview.InputField); ok {
		if event.Key() == tcell.KeyEscape {
			a.back()
			return nil
		}
		return event
	}

	switch {
	case event.Key() == tcell.KeyEscape:
		a.back()
		return nil
	case event.Key() == tcell.KeyRune && event.Rune() == ':':
		a.showPrompt(ui.PromptCommand)
		return nil
	}
	if a.registry.HandleEvent(a.pages.Current(), event) {
		return nil
	}
	return event
}

// back leaves the current page. On the chat list it first clears the local
// filter, then a peer search.
func (a *App) back() {
	switch a.pages.Current() {
	case pageChats:
		if a.list.Filter() != "" {
			a.list.ClearFilter()
			return
		}
		if a.vm.Previews().Mode == "search" {
			a.findPeers("")
		}
	case pageChat:
		a.pages.Pop()
		a.do("close chat", a.vm.CloseChat, a.renderAll)
	default:
		a.pages.Pop()
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.main.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.main.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	if c, ok := a.components[a.pages.Current()]; ok {
		a.app.SetFocus(c.Focus())
	}
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "q", "quit":
		a.Stop()
	case "h", "help":
		a.pages.Push(pageHelp)
	case "chat", "open":
		a.openByArg(cmd.Args)
	case "find", "peers":
		a.findPeers(cmd.Args)
	case "search":
		a.pages.Push(pageSearch)
		a.search.SetQuery(cmd.Args)
		if cmd.Args != "" {
			a.searchArchive(cmd.Args)
		}
	case "older":
		a.loadOlder()
	case "details", "uploads":
		a.showDetails()
	case "share":
		a.showShare()
	case "go":
		a.do("navigate", func(ctx context.Context) error { return a.vm.Go(ctx, cmd.Args) }, a.showRoute)
	case "attach":
		if cmd.Args == "" {
			a.vm.Flash.Warn("attach: expected a file path")
			return
		}
		var up *rpc.Upload
		a.do("attach", func(ctx context.Context) (err error) {
			up, err = a.vm.Attach(ctx, cmd.Args)
			return err
		}, func() { a.vm.Flash.Info(fmt.Sprintf("uploading %s (%s)", up.Name, up.ID)) })
	case "cancel":
		a.do("cancel upload", func(ctx context.Context) error {
			_, err := a.vm.CancelUpload(ctx, cmd.Args)
			return err
		}, func() { a.vm.Flash.Info("upload cancelled") })
	case "edit":
		id, text, err := cmd.MessageArgs()
		if err == nil && text == "" {
			err = errors.New("edit: expected new text")
		}
		if err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.mutate("edit", func(ctx context.Context) (string, error) { return a.vm.Edit(ctx, id, text) })
	case "delete", "del":
		id, _, err := cmd.MessageArgs()
		if err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.mutate("delete", func(ctx context.Context) (string, error) { return a.vm.Delete(ctx, id) })
	default:
		a.vm.Flash.Warn("unknown command: " + cmd.Name)
	}
	a.renderFlash()
}

func (a *App) mutate(what string, fn func(ctx context.Context) (string, error)) {
	var result string
	a.do(what, func(ctx context.Context) (err error) {
		result, err = fn(ctx)
		return err
	}, func() {
		if result == "not_found" {
			a.vm.Flash.Warn(what + ": done on the server; the message is not loaded here")
		}
	})
}

// openByArg opens a chat by key ("9", "9_2") or by a name on the list.
func (a *App) openByArg(arg string) {
	if arg == "" {
		a.vm.Flash.Warn("chat: expected a chat id or name")
		return
	}
	if isChatKey(arg) {
		a.openChat(arg)
		return
	}
	needle := strings.ToLower(arg)
	for _, p := range a.vm.Previews().Previews {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			a.openChat(p.Chat)
			return
		}
	}
	a.vm.Flash.Warn("no chat matches " + arg)
}

func isChatKey(s string) bool {
	if s == "" || s[0] == '_' {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func (a *App) openChat(chat string) {
	a.do("open", func(ctx context.Context) error { return a.vm.OpenChat(ctx, chat) }, func() {
		a.renderAll()
		a.pages.PopTo(pageChats)
		a.pages.Push(pageChat)
	})
}

func (a *App) findPeers(query string) {
	a.do("find", func(ctx context.Context) error { return a.vm.SearchPeers(ctx, query) }, a.renderAll)
}

func (a *App) searchArchive(query string) {
	var hits []rpc.ArchiveHit
	a.do("search", func(ctx context.Context) (err error) {
		hits, err = a.vm.SearchArchive(ctx, query)
		return err
	}, func() {
		a.search.Update(hits)
		if len(hits) > 0 {
			a.app.SetFocus(a.search.Results())
		}
	})
}

func (a *App) loadOlder() {
	var n int
	a.do("load older", func(ctx context.Context) (err error) {
		n, err = a.vm.LoadOlder(ctx)
		return err
	}, func() {
		a.renderAll()
		if n == 0 {
			a.vm.Flash.Info("no older messages")
		}
	})
}

func (a *App) showDetails() {
	if a.vm.ActiveChat() == "" {
		return
	}
	a.do("details", a.vm.RefreshRoute, func() {
		a.details.Update(a.vm.Chat(), a.vm.Route().ShareURL)
		a.pages.Push(pageDetails)
	})
}

func (a *App) showShare() {
	a.do("share", a.vm.RefreshRoute, func() {
		a.share.ShowURL(a.vm.Route().ShareURL)
		a.pages.Push(pageShare)
	})
}

// showRoute brings the pages in line with the committed route.
func (a *App) showRoute() {
	a.renderAll()
	a.pages.PopTo(pageChats)
	if a.vm.ActiveChat() != "" {
		a.pages.Push(pageChat)
	}
}

// do runs fn off the UI goroutine, then applies then on it. Errors go to
// the flash bar.
func (a *App) do(what string, fn func(ctx context.Context) error, then func()) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		err := fn(ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(fmt.Errorf("%s: %w", what, err))
			} else if then != nil {
				then()
			}
			a.renderFlash()
		})
	}()
}

func (a *App) render(change model.Change) {
	if change.Has(model.ChangeStatus) {
		a.renderHeader()
	}
	if change.Has(model.ChangePreviews) {
		a.list.Update(a.vm.Previews())
	}
	if change.Has(model.ChangeChat) || change.Has(model.ChangeReload) {
		chat := a.vm.Chat()
		a.thread.Update(chat)
		if a.pages.Current() == pageDetails {
			a.details.Update(chat, a.vm.Route().ShareURL)
		}
	}
	a.refreshChrome()
	a.renderFlash()
}

func (a *App) renderAll() {
	a.render(model.ChangeStatus | model.ChangePreviews | model.ChangeChat | model.ChangeRoute)
}

func (a *App) renderHeader() {
	st := a.vm.Status()
	if st == nil {
		a.info.Update(&ui.SessionData{Session: a.session, State: "UNKNOWN"})
		return
	}
	self := st.SelfName
	if self == "" && st.SelfID != 0 {
		self = fmt.Sprintf("#%d", st.SelfID)
	}
	data := &ui.SessionData{
		Session:  a.session,
		Server:   st.ServerURL,
		Self:     self,
		State:    st.State,
		Reason:   st.Reason,
		Chats:    st.Chats,
		Archived: st.Archived,
		Uptime:   time.Duration(st.UptimeMs) * time.Millisecond,
	}
	if st.LastEventUnixMs > 0 {
		data.LastEvent = time.UnixMilli(st.LastEventUnixMs)
	}
	a.info.Update(data)
	a.thread.SetSelf(st.SelfID)
}

// refreshChrome redraws the crumbs and menu and focuses the current page.
func (a *App) refreshChrome() {
	stack := a.pages.Stack()
	names := make([]string, 0, len(stack))
	for _, p := range stack {
		if c, ok := a.components[p]; ok {
			names = append(names, c.Name())
		}
	}
	a.crumbs.Update(names, a.vm.Route().Fragment)
	if c, ok := a.components[a.pages.Current()]; ok {
		a.menu.Update(c.Hints())
		if a.app.GetFocus() != a.prompt.InputField {
			a.app.SetFocus(c.Focus())
		}
	}
}

func (a *App) renderFlash() {
	a.flash.Update(a.vm.Flash.GetMessage())
}

// Run loads the initial state, starts following daemon events and blocks
// until the UI exits.
func (a *App) Run() error {
	go func() {
		err := a.vm.Refresh(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(fmt.Errorf("load: %w", err))
			}
			a.renderAll()
		})
		if chat := a.vm.Route().Chat; err == nil && chat != "" {
			a.openChat(chat)
		}
		go a.watch()
		go a.tick()
		go a.followFlash()
	}()

	defer a.cancel()
	return a.app.Run()
}

// watch streams view events from the daemon, reconnecting after failures.
func (a *App) watch() {
	for a.ctx.Err() == nil {
		stream, err := a.client.WatchView(a.ctx, &rpc.WatchRequest{})
		if err == nil {
			err = a.consume(stream)
		}
		if a.ctx.Err() != nil {
			return
		}
		a.vm.Flash.Warn("event stream lost, reconnecting: " + err.Error())
		select {
		case <-time.After(watchRetry):
		case <-a.ctx.Done():
			return
		}
		a.resync()
	}
}

func (a *App) consume(stream grpc.ServerStreamingClient[rpc.ViewEvent]) error {
	for {
		evt, err := stream.Recv()
		if err != nil {
			return err
		}
		change := a.vm.Apply(evt)
		if change == 0 {
			continue
		}
		if change.Has(model.ChangeReload) {
			if chat := a.vm.ActiveChat(); chat != "" {
				ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
				err := a.vm.LoadChat(ctx, chat, false)
				cancel()
				if err != nil {
					a.vm.Flash.Err(err)
				}
			}
		}
		a.app.QueueUpdateDraw(func() { a.render(change) })
	}
}

// resync refetches everything after the event stream was interrupted.
func (a *App) resync() {
	ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
	defer cancel()
	if err := a.vm.Refresh(ctx); err != nil {
		return
	}
	if chat := a.vm.ActiveChat(); chat != "" {
		_ = a.vm.LoadChat(ctx, chat, false)
	}
	a.app.QueueUpdateDraw(a.renderAll)
}

// tick refreshes the status panel.
func (a *App) tick() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			err := a.vm.RefreshStatus(ctx)
			cancel()
			if err == nil {
				a.app.QueueUpdateDraw(a.renderHeader)
			}
		case <-a.ctx.Done():
			return
		}
	}
}

// followFlash redraws the flash bar when a message is set and again when
// it expires.
func (a *App) followFlash() {
	for {
		select {
		case msg := <-a.vm.Flash.Watch():
			a.app.QueueUpdateDraw(a.renderFlash)
			time.AfterFunc(time.Until(msg.Expires)+50*time.Millisecond, func() {
				a.app.QueueUpdateDraw(a.renderFlash)
			})
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
