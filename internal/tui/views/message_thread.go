package views

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/tui/ui"
)

// MessageThread displays messages and a composer for a single chat.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	chatName string
	chat     string
	selfID   int64
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := theme.Text(" Messages ").SetWordWrap(true)
	composer := theme.Input(" > ")
	composer.SetBorder(true).
		SetBorderColor(theme.BorderColor).
		SetTitle(" Compose (i to focus) ").
		SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if strings.TrimSpace(text) != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.chatName != "" {
		return mt.chatName
	}
	return "Messages"
}

// Focus implements Component.
func (mt *MessageThread) Focus() tview.Primitive { return mt.messages }

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "o", Description: "Older"},
		{Key: "d", Description: "Details"},
		{Key: "x", Description: "Share"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// SetSelf sets the local user id; own messages are colored differently.
func (mt *MessageThread) SetSelf(id int64) {
	mt.selfID = id
}

// Chat returns the displayed chat.
func (mt *MessageThread) Chat() string {
	return mt.chat
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders a chat. Messages arrive oldest first.
func (mt *MessageThread) Update(chat *rpc.ChatResponse) {
	if chat == nil {
		mt.messages.Clear()
		mt.chat, mt.chatName = "", ""
		mt.messages.SetTitle(" Messages ")
		return
	}
	follow := mt.chat != chat.Chat || atEnd(mt.messages)
	mt.messages.Clear()
	mt.chat = chat.Chat
	mt.chatName = chat.Name
	if mt.chatName == "" {
		mt.chatName = "#" + chat.Chat
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s (%d) ", tview.Escape(mt.chatName), len(chat.Messages)))

	_, _ = fmt.Fprint(mt.messages, renderMessages(chat.Messages, mt.selfID, mt.theme))
	if pending := renderDraft(chat); pending != "" {
		_, _ = fmt.Fprint(mt.messages, pending)
	}
	if follow {
		mt.messages.ScrollToEnd()
	}
}

func atEnd(tv *tview.TextView) bool {
	row, _ := tv.GetScrollOffset()
	_, _, _, h := tv.GetInnerRect()
	return row+h >= tv.GetOriginalLineCount()
}

func renderMessages(msgs []rpc.Message, selfID int64, theme *ui.Theme) string {
	self := ui.ColorTag(theme.SelfColor)
	peer := ui.ColorTag(theme.PeerColor)
	meta := ui.ColorTag(theme.MetaColor)

	var b strings.Builder
	for _, m := range msgs {
		sender := m.SenderName
		if sender == "" {
			sender = fmt.Sprintf("#%d", m.SenderID)
		}
		color := peer
		if selfID != 0 && m.SenderID == selfID {
			color = self
		}
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [%s]%s  id %d", color,
			tview.Escape(sanitizeForTerminal(sender)), meta, formatTimestamp(m.SentAtUnixMs), m.ID)
		if m.EditedAtUnixMs != 0 {
			b.WriteString("  (edited)")
		}
		b.WriteString("[-]\n")
		if m.Text != "" {
			b.WriteString(tview.Escape(sanitizeForTerminal(m.Text)))
			b.WriteString("\n")
		}
		for _, a := range m.Attachments {
			fmt.Fprintf(&b, "[%s]  📎 %s[-]\n", meta, tview.Escape(attachmentLabel(a)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func attachmentLabel(a rpc.Attachment) string {
	name := a.Name
	if name == "" {
		name = fmt.Sprintf("file %d", a.ID)
	}
	if a.Size > 0 {
		return fmt.Sprintf("%s (%s)", name, humanize.Bytes(uint64(a.Size)))
	}
	return name
}

// renderDraft describes what the next send will carry.
func renderDraft(chat *rpc.ChatResponse) string {
	running := 0
	for _, u := range chat.Uploads {
		if u.State == "uploading" || u.State == "pending" {
			running++
		}
	}
	if len(chat.Draft) == 0 && running == 0 {
		return ""
	}
	return fmt.Sprintf("[::d]-- draft: %d file(s) attached, %d uploading --[-:-:-]\n", len(chat.Draft), running)
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
