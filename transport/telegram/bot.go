// Package telegram is the chat transport: outbound messages, invites and removals,
// and the inbound update loop.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/layer-3/gatekeeper/ports"
)

// Bot wraps the Telegram Bot API
type Bot struct {
	api    *tgbotapi.BotAPI
	nowF   func() time.Time
	logger *slog.Logger
}

var (
	_ ports.Messenger     = (*Bot)(nil)
	_ ports.AccessIssuer  = (*Bot)(nil)
	_ ports.AccessRevoker = (*Bot)(nil)
)

// NewBot authenticates against the Bot API with token
func NewBot(token string, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return newBot(api, logger), nil
}

func newBot(api *tgbotapi.BotAPI, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, nowF: time.Now, logger: logger}
}

// Username returns the bot's username
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SendMessage sends a plain text message to chatID
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

// CreateSingleUseInvite creates an invite link to groupID limited to one member and expiring after ttl
func (b *Bot) CreateSingleUseInvite(ctx context.Context, groupID int64, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := b.api.Request(tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: groupID},
		ExpireDate:  int(b.nowF().Add(ttl).Unix()),
		MemberLimit: 1,
	})
	if err != nil {
		return "", fmt.Errorf("create invite link: %w", err)
	}

	var invite tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &invite); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	if invite.InviteLink == "" {
		return "", fmt.Errorf("telegram returned an empty invite link")
	}

	return invite.InviteLink, nil
}

// Revoke removes userID from groupID. The ban is lifted right away so the user can rejoin later.
func (b *Bot) Revoke(ctx context.Context, groupID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	member := tgbotapi.ChatMemberConfig{ChatID: groupID, UserID: userID}
	if _, err := b.api.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return fmt.Errorf("ban %d: %w", userID, err)
	}
	if _, err := b.api.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member, OnlyIfBanned: true}); err != nil {
		return fmt.Errorf("unban %d: %w", userID, err)
	}
	return nil
}
