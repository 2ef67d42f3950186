package app

import (
	"context"
	"fmt"
	"strings"

	"mini_chat/internal/model"
	"mini_chat/internal/service/chat"
	"mini_chat/internal/utils/log"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

type (
	MessageSaver interface {
		Save(rec *model.MessageRecord) error
	}

	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		client         *chat.Client
		messages       MessageSaver
		conversationID string
	}
)

func NewApp(client *chat.Client, messages MessageSaver) *App {
	return &App{
		app:      tview.NewApplication(),
		client:   client,
		messages: messages,
	}
}

// Run subscribes to the conversation and blocks in the UI loop.
func (c *App) Run(ctx context.Context, conversationID string) error {
	conv, err := c.client.Conversation(conversationID)
	if err != nil {
		return err
	}
	c.conversationID = conv.ID

	if err := c.client.Subscribe(ctx, conv.ID, c.onMessage); err != nil {
		return fmt.Errorf("subscribe %s: %w", conv.ID, err)
	}
	return c.renderUI(ctx, conv)
}

func (c *App) Stop() {
	c.app.Stop()
}

// blocking function
func (c *App) renderUI(ctx context.Context, conv *model.ConversationConfig) error {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", Title(conv, c.client.Identity().ID)))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message  (/revoke <id>, /delete <id>) ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(c.input.GetText())
		if text == "" {
			return
		}
		c.input.SetText("")

		go func(line string) {
			if err := c.Submit(ctx, line); err != nil {
				log.Error("submit failed", zap.Error(err))
				c.app.QueueUpdateDraw(func() {
					fmt.Fprintf(c.chatbox, "[red]error:[-] %s\n", tview.Escape(err.Error()))
				})
			}
		}(text)
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	c.redraw()
	return c.app.SetRoot(layout, true).SetFocus(c.input).Run()
}

// Submit runs one line of input: a command or a chat message.
func (c *App) Submit(ctx context.Context, line string) error {
	cmd := ParseCommand(line)
	switch cmd.Name {
	case CommandRevoke:
		id, err := c.client.RevokeMessage(ctx, c.conversationID, cmd.Arg)
		if err != nil {
			return err
		}
		c.persist(id, cmd.Arg)
	case CommandDelete:
		c.client.DeleteLocalMessage(cmd.Arg)
		c.persist(cmd.Arg)
	default:
		id, err := c.client.SendMessage(ctx, c.conversationID, cmd.Arg)
		if err != nil {
			return err
		}
		c.persist(id)
	}
	c.queueRedraw()
	return nil
}

func (c *App) onMessage(rec *model.MessageRecord) {
	c.save(rec)
	c.queueRedraw()
}

func (c *App) persist(messageIDs ...string) {
	for _, id := range messageIDs {
		if rec, ok := c.client.Message(id); ok {
			c.save(rec)
		}
	}
}

func (c *App) save(rec *model.MessageRecord) {
	if c.messages == nil {
		return
	}
	if err := c.messages.Save(rec); err != nil {
		log.Error("persist message failed", zap.String("message", rec.ID), zap.Error(err))
	}
}

func (c *App) queueRedraw() {
	if c.chatbox == nil {
		return
	}
	c.app.QueueUpdateDraw(c.redraw)
}

func (c *App) redraw() {
	c.chatbox.SetText(Render(c.client.MessagesForConversation(c.conversationID), c.client.Identity().ID))
	c.chatbox.ScrollToEnd()
}
