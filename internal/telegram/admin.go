package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ledger-bot/internal/auth"
	"ledger-bot/internal/logger"
)

const (
	cmdAllow   = "allow"
	cmdDeny    = "deny"
	cmdAllowed = "allowed"
)

// handleOwnerCommand runs allowlist commands sent by the owner. It reports
// whether msg was consumed.
func (b *Bot) handleOwnerCommand(msg *tgbotapi.Message) bool {
	if b.ownerChatID == 0 || b.authSvc == nil || msg.From.ID != b.ownerChatID || !msg.IsCommand() {
		return false
	}
	var reply string
	switch msg.Command() {
	case cmdAllow:
		reply = b.allow(msg)
	case cmdDeny:
		reply = b.deny(msg)
	case cmdAllowed:
		reply = b.listAllowed()
	default:
		return false
	}
	b.sendMessage(msg.Chat.ID, reply)
	return true
}

func (b *Bot) allow(msg *tgbotapi.Message) string {
	id, ok := parseUserID(msg.CommandArguments())
	if !ok {
		return "Usage: /allow <user id>"
	}
	// The first grant turns the allowlist on, so the owner goes in with it.
	if !b.authSvc.Restricted() && id != msg.From.ID {
		owner := auth.User{ID: msg.From.ID, Username: msg.From.UserName, FirstName: msg.From.FirstName}
		if err := b.authSvc.Upsert(owner); err != nil {
			logger.Error("failed to save owner to allowlist", err)
			return fmt.Sprintf("❌ Allowlist not saved: %v", err)
		}
	}
	if err := b.authSvc.Upsert(auth.User{ID: id}); err != nil {
		logger.Error("failed to save allowlist", err)
		return fmt.Sprintf("❌ Allowlist not saved: %v", err)
	}
	logger.Infow("allowlist grant", "user", id)
	return fmt.Sprintf("✅ %d may now write to the ledger.", id)
}

func (b *Bot) deny(msg *tgbotapi.Message) string {
	id, ok := parseUserID(msg.CommandArguments())
	if !ok {
		return "Usage: /deny <user id>"
	}
	if id == msg.From.ID {
		return "⚠️ The owner cannot be removed."
	}
	if err := b.authSvc.Remove(id); err != nil {
		logger.Error("failed to save allowlist", err)
		return fmt.Sprintf("❌ Allowlist not saved: %v", err)
	}
	logger.Infow("allowlist revoke", "user", id)
	return fmt.Sprintf("🚫 %d removed from the allowlist.", id)
}

func (b *Bot) listAllowed() string {
	if !b.authSvc.Restricted() {
		return "🔓 Allowlist is empty, anyone can write."
	}
	var sb strings.Builder
	sb.WriteString("🔒 Allowed users:")
	for _, u := range b.authSvc.List() {
		fmt.Fprintf(&sb, "\n• %d", u.ID)
		if u.Username != "" {
			fmt.Fprintf(&sb, " @%s", u.Username)
		}
	}
	return sb.String()
}

func parseUserID(args string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	return id, err == nil && id != 0
}
