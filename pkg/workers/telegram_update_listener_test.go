package workers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

type fakeClient struct {
	updates chan tgbotapi.Update

	mu      sync.Mutex
	sent    []domain.Response
	typing  []int64
	stopped int
}

func (f *fakeClient) GetUpdates() tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeClient) StopUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeClient) SendResponse(_ context.Context, response *domain.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *response)
}

func (f *fakeClient) StartTyping(_ context.Context, chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, chatID)
}

func (f *fakeClient) snapshot() ([]domain.Response, []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Response(nil), f.sent...), append([]int64(nil), f.typing...)
}

type allowList map[int64]bool

func (a allowList) IsAuthorized(userID int64) bool { return a[userID] }

type echoHandler struct {
	responseCh chan<- domain.Response
}

func (h *echoHandler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	select {
	case h.responseCh <- domain.Response{ChatID: update.Message.Chat.ID, Text: update.Message.Text}:
	case <-ctx.Done():
	}
}

func TestTelegramUpdateListener(t *testing.T) {
	client := &fakeClient{updates: make(chan tgbotapi.Update)}
	responseCh := make(chan domain.Response)
	listener := NewTelegramUpdateListener(client, allowList{7: true}, &echoHandler{responseCh: responseCh}, responseCh)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Start(ctx) }()

	client.updates <- tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 7}, Chat: &tgbotapi.Chat{ID: 42}, Text: "hello"}}
	client.updates <- tgbotapi.Update{UpdateID: 2}
	client.updates <- tgbotapi.Update{UpdateID: 3, Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 8}, Chat: &tgbotapi.Chat{ID: 43}, Text: "intruder"}}

	deadline := time.After(time.Second)
	for {
		sent, typing := client.snapshot()
		if len(sent) == 2 {
			byChat := map[int64]string{sent[0].ChatID: sent[0].Text, sent[1].ChatID: sent[1].Text}
			if byChat[42] != "hello" {
				t.Errorf("unexpected responses %+v", sent)
			}
			if !strings.Contains(byChat[43], "not authorized") {
				t.Errorf("expected a refusal for chat 43, got %q", byChat[43])
			}
			if len(typing) != 1 || typing[0] != 42 {
				t.Errorf("expected a typing action for chat 42, got %v", typing)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("responses were not sent")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.stopped != 1 {
		t.Errorf("expected polling to be stopped once, got %d", client.stopped)
	}
}

func TestTelegramUpdateListenerClosedUpdates(t *testing.T) {
	client := &fakeClient{updates: make(chan tgbotapi.Update)}
	listener := NewTelegramUpdateListener(client, allowList{}, &echoHandler{}, make(chan domain.Response))

	done := make(chan error, 1)
	go func() { done <- listener.Start(context.Background()) }()

	close(client.updates)

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "updates channel closed") {
			t.Errorf("expected a closed channel error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("listener kept running after the updates channel closed")
	}
}
