package openai

import (
	"github.com/sashabaranov/go-openai"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

const defaultMaxTokens = 1000

// chatRequest maps a model request to a single user message. Image turns
// carry the prompt and the inline image as two content parts.
func (c *client) chatRequest(req domain.ModelRequest) openai.ChatCompletionRequest {
	maxTokens := c.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	message := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.Image == nil {
		message.Content = req.Prompt
	} else {
		message.MultiContent = []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    req.Image.DataURL(),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
	}

	return openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  []openai.ChatCompletionMessage{message},
		MaxTokens: maxTokens,
	}
}
