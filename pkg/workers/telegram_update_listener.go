package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/ai-doctor/pkg/domain"
	"github.com/dskvich/ai-doctor/pkg/logger"
)

type Handler interface {
	HandleUpdate(ctx context.Context, update *tgbotapi.Update)
}

type Authenticator interface {
	IsAuthorized(userID int64) bool
}

type TelegramClient interface {
	GetUpdates() tgbotapi.UpdatesChannel
	StopUpdates()
	SendResponse(ctx context.Context, response *domain.Response)
	StartTyping(ctx context.Context, chatID int64)
}

type telegramUpdateListener struct {
	client        TelegramClient
	authenticator Authenticator
	handler       Handler
	responseCh    <-chan domain.Response
	wg            sync.WaitGroup
}

func NewTelegramUpdateListener(
	client TelegramClient,
	authenticator Authenticator,
	handler Handler,
	responseCh <-chan domain.Response,
) *telegramUpdateListener {
	return &telegramUpdateListener{
		client:        client,
		authenticator: authenticator,
		handler:       handler,
		responseCh:    responseCh,
	}
}

func (t *telegramUpdateListener) Name() string { return "telegram_listener_worker" }

func (t *telegramUpdateListener) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", t.Name())
	defer slog.Info("Worker stopped", "name", t.Name())

	updates := t.client.GetUpdates()

	for {
		select {
		case <-ctx.Done():
			t.client.StopUpdates()
			t.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				t.wg.Wait()
				return errors.New("updates channel closed")
			}
			t.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer t.wg.Done()
				t.processUpdate(ctx, &update)
			}(update)
		case response := <-t.responseCh:
			t.client.SendResponse(ctx, &response)
		}
	}
}

func (t *telegramUpdateListener) processUpdate(ctx context.Context, update *tgbotapi.Update) {
	ctx = logger.ContextWithRequestID(ctx, int64(update.UpdateID))

	if update.Message == nil {
		slog.DebugContext(ctx, "Skipping update without a message")
		return
	}

	chatID := update.Message.Chat.ID
	var userID int64
	if update.Message.From != nil {
		userID = update.Message.From.ID
	}

	slog.InfoContext(ctx, "Processing update", "chatID", chatID, "userID", userID)

	if !t.authenticator.IsAuthorized(userID) {
		slog.WarnContext(ctx, "Unauthorized access attempt")
		t.client.SendResponse(ctx, &domain.Response{
			ChatID: chatID,
			Text:   fmt.Sprintf("❌ User ID %d is not authorized", userID),
		})
		return
	}

	t.client.StartTyping(ctx, chatID)
	t.handler.HandleUpdate(ctx, update)
}
