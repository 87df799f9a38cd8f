package telegram

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/ai-doctor/pkg/domain"
	"github.com/dskvich/ai-doctor/pkg/logger"
	"github.com/dskvich/ai-doctor/pkg/render"
)

const maxMessageLength = 4096

type client struct {
	token     string
	bot       *tgbotapi.BotAPI
	updatesCh tgbotapi.UpdatesChannel
}

func NewClient(token string) (*client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot api instance: %w", err)
	}

	slog.Info("authorized on telegram", "account", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	return &client{
		token:     token,
		bot:       bot,
		updatesCh: bot.GetUpdatesChan(u),
	}, nil
}

func (c *client) GetUpdates() tgbotapi.UpdatesChannel {
	return c.updatesCh
}

func (c *client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *client) StartTyping(ctx context.Context, chatID int64) {
	if _, err := c.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		slog.WarnContext(ctx, "sending typing action", logger.Err(err))
	}
}

func (c *client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(c.token), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.bot.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if closeErr := Body.Close(); closeErr != nil {
			slog.ErrorContext(ctx, "closing body", logger.Err(closeErr))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return data, nil
}

// SendResponse delivers a turn outcome: the transcript of a voice question,
// the answer as HTML split into Telegram-sized chunks and the spoken answer.
func (c *client) SendResponse(ctx context.Context, response *domain.Response) {
	if response.Err != nil {
		slog.ErrorContext(ctx, "turn failed", "chatID", response.ChatID, logger.Err(response.Err))
		c.sendText(ctx, response.ChatID, response.ReplyToMessageID, errorText(response.Err), "")
		return
	}

	if response.Transcript != "" {
		text := "🎙 <i>" + html.EscapeString(response.Transcript) + "</i>"
		c.sendText(ctx, response.ChatID, response.ReplyToMessageID, text, tgbotapi.ModeHTML)
	}

	if response.Text != "" {
		chunks := splitMessage(render.ToHTML(response.Text), maxMessageLength)
		for i, chunk := range chunks {
			if err := c.sendText(ctx, response.ChatID, response.ReplyToMessageID, chunk, tgbotapi.ModeHTML); err != nil {
				// Telegram rejects malformed HTML; the rest goes out without markup.
				c.sendPlain(ctx, response.ChatID, response.ReplyToMessageID, plainText(chunks[i:]))
				break
			}
		}
	}

	if response.Audio != nil {
		audio := tgbotapi.NewAudio(response.ChatID, tgbotapi.FileBytes{
			Name:  "answer." + response.Audio.Format,
			Bytes: response.Audio.Data,
		})
		audio.Title = "Answer"
		audio.Duration = int(response.Audio.Duration.Seconds())
		audio.ReplyToMessageID = response.ReplyToMessageID

		if _, err := c.bot.Send(audio); err != nil {
			slog.ErrorContext(ctx, "sending audio answer", logger.Err(err))
		}
	}
}

func (c *client) sendText(ctx context.Context, chatID int64, replyTo int, text, parseMode string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	msg.ReplyToMessageID = replyTo

	if _, err := c.bot.Send(msg); err != nil {
		slog.ErrorContext(ctx, "sending message", "parseMode", parseMode, logger.Err(err))
		return err
	}
	return nil
}

func (c *client) sendPlain(ctx context.Context, chatID int64, replyTo int, text string) {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		if err := c.sendText(ctx, chatID, replyTo, chunk, ""); err != nil {
			c.sendText(ctx, chatID, replyTo, deliveryFailedText, "")
			return
		}
	}
}

// plainText joins rendered chunks back into text without markup.
func plainText(chunks []string) string {
	plain := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		plain = append(plain, render.ToPlain(chunk))
	}
	return strings.Join(plain, "\n")
}

// splitMessage cuts text into pieces of at most limit runes, preferring to
// cut before a code block or at a line break.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= limit {
			chunks = append(chunks, text)
			break
		}

		head := runePrefix(text, limit)
		cut := len(head)
		if i := strings.LastIndex(head, "<pre>"); i > 0 {
			cut = i
		} else if i := strings.LastIndex(head, "\n"); i > 0 {
			cut = i
		}

		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}

func runePrefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
