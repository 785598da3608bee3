package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Handler receives inbound chat events
type Handler interface {
	HandleStart(ctx context.Context, userID, chatID int64)
	HandleJoin(ctx context.Context, userID, chatID int64)
	HandleLink(ctx context.Context, userID, chatID int64)
	HandleMessage(ctx context.Context, userID, chatID int64, text string)
}

// Listen long-polls for updates and dispatches each one on its own goroutine,
// so a stalled flow never holds up other users. Returns after ctx is done and
// in-flight updates have been handled.
func (b *Bot) Listen(ctx context.Context, h Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	b.logger.Info("telegram listener started", "bot", b.Username())
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				dispatch(ctx, h, update)
			}()
		}
	}
}

// dispatch routes private chat messages. Group chatter is ignored.
func dispatch(ctx context.Context, h Handler, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}

	userID, chatID := msg.From.ID, msg.Chat.ID
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			h.HandleStart(ctx, userID, chatID)
		case "join":
			h.HandleJoin(ctx, userID, chatID)
		case "link":
			h.HandleLink(ctx, userID, chatID)
		}
		return
	}

	if msg.Text == "" {
		return
	}
	h.HandleMessage(ctx, userID, chatID, msg.Text)
}
