package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ledger-bot/internal/auth"
	"ledger-bot/internal/dispatcher"
	"ledger-bot/internal/logger"
)

// maxMessageLen is Telegram's limit for one text message, in characters.
const maxMessageLen = 4096

const replyNotAllowed = "⛔ This ledger is private."

// Handler processes one inbound message.
type Handler interface {
	Handle(ctx context.Context, in dispatcher.Inbound) dispatcher.Result
}

type Bot struct {
	api         *tgbotapi.BotAPI
	s           sender
	authSvc     *auth.Service
	handler     Handler
	ownerChatID int64
}

func New(botToken string, authSvc *auth.Service, ownerChatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	logger.Infof("🤖 Authorized on account @%s", api.Self.UserName)
	return &Bot{
		api:         api,
		s:           botAPISender{api: api},
		authSvc:     authSvc,
		ownerChatID: ownerChatID,
	}, nil
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (b *Bot) RegisterCommands() error {
	if _, err := b.s.Request(tgbotapi.NewSetMyCommands(menu...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// SetHandler wires the dispatcher, which itself sends through the bot.
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

// Start long-polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	logger.Info("📡 Polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate routes one update. It is used by both polling and the webhook.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if b.handleOwnerCommand(msg) {
		return
	}
	if b.authSvc != nil && !b.authSvc.IsAllowed(msg.From.ID) {
		logger.Warnf("Unauthorized access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
		b.sendMessage(msg.Chat.ID, replyNotAllowed)
		return
	}
	if b.handler == nil {
		logger.Warnf("⚠️ No handler set, dropping update %d", update.UpdateID)
		return
	}

	res := b.handler.Handle(ctx, dispatcher.Inbound{
		CorrespondentID: msg.Chat.ID,
		UpdateID:        int64(update.UpdateID),
		Text:            msg.Text,
	})
	if res.Route != dispatcher.RouteIgnored {
		logger.Infow("message handled", "chat", msg.Chat.ID, "update", update.UpdateID, "route", res.Route, "sent", res.Sent)
	}
}

// Send delivers plain text, split into several messages when too long.
func (b *Bot) Send(_ context.Context, chatID int64, text string) error {
	for _, part := range split(text, maxMessageLen) {
		if _, err := b.s.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return fmt.Errorf("send to %d: %w", chatID, err)
		}
	}
	return nil
}

// Notify sends Markdown to the owner chat. If Telegram rejects the markup the
// text is sent again without it.
func (b *Bot) Notify(ctx context.Context, text string) error {
	if b.ownerChatID == 0 {
		logger.Warnf("⚠️ TELEGRAM_CHAT_ID not set, owner notice dropped")
		return nil
	}
	for _, part := range split(text, maxMessageLen) {
		msg := tgbotapi.NewMessage(b.ownerChatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.s.Send(msg); err != nil {
			logger.Warnf("⚠️ Markdown notice rejected, sending plain: %v", err)
			if err := b.Send(ctx, b.ownerChatID, part); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.Errorf("failed to send message: %v", err)
	}
}

// split cuts text into chunks of at most n runes, preferring line breaks.
func split(text string, n int) []string {
	var parts []string
	r := []rune(text)
	for len(r) > n {
		cut := n
		if i := strings.LastIndex(string(r[:n]), "\n"); i > 0 {
			cut = len([]rune(string(r[:n])[:i]))
		}
		parts = append(parts, string(r[:cut]))
		r = r[cut:]
		for len(r) > 0 && r[0] == '\n' {
			r = r[1:]
		}
	}
	return append(parts, string(r))
}
