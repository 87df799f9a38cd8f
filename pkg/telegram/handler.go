package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"github.com/dskvich/ai-doctor/pkg/domain"
	"github.com/dskvich/ai-doctor/pkg/logger"
	"github.com/dskvich/ai-doctor/pkg/session"
)

type TurnService interface {
	LoadImage(ctx context.Context, state *session.State, image domain.ImageRef, caption string) (*domain.TurnResult, error)
	AskText(ctx context.Context, state *session.State, text string) (*domain.TurnResult, error)
	AskVoice(ctx context.Context, state *session.State, audio []byte, hint string) (*domain.TurnResult, error)
}

type SessionRepository interface {
	Acquire(chatID int64) (*session.State, func())
	Clear(chatID int64)
	Count() int
}

type FileDownloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type SessionGauge interface {
	SetActiveSessions(n int)
}

type handler struct {
	turns      TurnService
	sessions   SessionRepository
	files      FileDownloader
	gauge      SessionGauge
	responseCh chan<- domain.Response
}

func NewHandler(
	turns TurnService,
	sessions SessionRepository,
	files FileDownloader,
	gauge SessionGauge,
	responseCh chan<- domain.Response,
) *handler {
	return &handler{
		turns:      turns,
		sessions:   sessions,
		files:      files,
		gauge:      gauge,
		responseCh: responseCh,
	}
}

func (h *handler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	h.handleMessage(ctx, update.Message)
}

func (h *handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch {
	case len(msg.Photo) > 0:
		photo := lo.MaxBy(msg.Photo, func(a, b tgbotapi.PhotoSize) bool { return a.FileSize > b.FileSize })
		h.loadImage(ctx, msg, photo.FileID, "image/jpeg")

	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		h.loadImage(ctx, msg, msg.Document.FileID, msg.Document.MimeType)

	case msg.Voice != nil:
		h.askVoice(ctx, msg, msg.Voice.FileID, msg.Voice.MimeType)

	case msg.Audio != nil:
		hint, _ := lo.Coalesce(msg.Audio.MimeType, msg.Audio.FileName)
		h.askVoice(ctx, msg, msg.Audio.FileID, hint)

	case msg.IsCommand():
		h.handleCommand(ctx, msg)

	case strings.TrimSpace(msg.Text) != "":
		h.runTurn(ctx, msg, func(state *session.State) (*domain.TurnResult, error) {
			return h.turns.AskText(ctx, state, msg.Text)
		})

	default:
		h.send(ctx, domain.Response{ChatID: chatID, Text: unsupportedInputText})
	}
}

func (h *handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch strings.Split(msg.Command(), "@")[0] {
	case "start":
		h.send(ctx, domain.Response{ChatID: chatID, Text: welcomeText})
	case "new":
		h.sessions.Clear(chatID)
		h.reportSessions()
		slog.InfoContext(ctx, "Session cleared", "chatID", chatID)
		h.send(ctx, domain.Response{ChatID: chatID, Text: newSessionText})
	default:
		h.send(ctx, domain.Response{ChatID: chatID, Text: fmt.Sprintf("Unknown command /%s. Try /start.", msg.Command())})
	}
}

func (h *handler) loadImage(ctx context.Context, msg *tgbotapi.Message, fileID, mimeType string) {
	data, err := h.files.DownloadFile(ctx, fileID)
	if err != nil {
		h.sendError(ctx, msg, fmt.Errorf("downloading image: %w", err))
		return
	}

	image := domain.NewImageRef(data, mimeType)
	h.runTurn(ctx, msg, func(state *session.State) (*domain.TurnResult, error) {
		return h.turns.LoadImage(ctx, state, image, msg.Caption)
	})
}

func (h *handler) askVoice(ctx context.Context, msg *tgbotapi.Message, fileID, hint string) {
	data, err := h.files.DownloadFile(ctx, fileID)
	if err != nil {
		h.sendError(ctx, msg, fmt.Errorf("downloading audio: %w", err))
		return
	}

	h.runTurn(ctx, msg, func(state *session.State) (*domain.TurnResult, error) {
		return h.turns.AskVoice(ctx, state, data, hint)
	})
}

// runTurn holds the chat session for the duration of one turn so concurrent
// updates from the same chat are answered in order.
func (h *handler) runTurn(ctx context.Context, msg *tgbotapi.Message, turn func(*session.State) (*domain.TurnResult, error)) {
	state, release := h.sessions.Acquire(msg.Chat.ID)
	result, err := turn(state)
	release()
	h.reportSessions()

	if err != nil {
		h.sendError(ctx, msg, err)
		return
	}

	h.send(ctx, domain.Response{
		ChatID:           msg.Chat.ID,
		ReplyToMessageID: msg.MessageID,
		Text:             result.Text,
		Transcript:       result.Transcript,
		Audio:            result.Audio,
	})
}

func (h *handler) reportSessions() {
	if h.gauge != nil {
		h.gauge.SetActiveSessions(h.sessions.Count())
	}
}

func (h *handler) sendError(ctx context.Context, msg *tgbotapi.Message, err error) {
	slog.WarnContext(ctx, "Message not answered", "chatID", msg.Chat.ID, logger.Err(err))
	h.send(ctx, domain.Response{ChatID: msg.Chat.ID, ReplyToMessageID: msg.MessageID, Err: err})
}

func (h *handler) send(ctx context.Context, response domain.Response) {
	select {
	case h.responseCh <- response:
	case <-ctx.Done():
	}
}
