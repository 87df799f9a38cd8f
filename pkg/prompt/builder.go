// Package prompt builds the model request for each kind of turn.
package prompt

import (
	"fmt"
	"strings"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

type builder struct {
	templates   Templates
	visionModel string
	textModel   string
}

func NewBuilder(templates Templates, visionModel, textModel string) *builder {
	return &builder{
		templates:   templates,
		visionModel: visionModel,
		textModel:   textModel,
	}
}

func (b *builder) DefaultQuestion() string {
	return b.templates.DefaultQuestion
}

// Refused reports whether a model answer is the fixed re-upload refusal.
func (b *builder) Refused(answer string) bool {
	return strings.Contains(strings.ToLower(answer), strings.ToLower(RefusalText))
}

// Build returns the request for one turn. diagnosis is the stored label from
// the last initial analysis, or "" when there is none.
func (b *builder) Build(req domain.TurnRequest, diagnosis string) (domain.ModelRequest, error) {
	kind, image := req.Kind, req.Image
	text := strings.TrimSpace(req.Question.Text)

	switch kind {
	case domain.TurnKindInitial:
		if image == nil {
			return domain.ModelRequest{}, fmt.Errorf("%w: initial analysis requires an image", domain.ErrInvalidInput)
		}
		return domain.ModelRequest{
			Kind:   kind,
			Model:  b.visionModel,
			Prompt: b.initialPrompt(text),
			Image:  image,
		}, nil

	case domain.TurnKindFollowUp:
		if image == nil {
			return domain.ModelRequest{}, fmt.Errorf("%w: follow-up requires an image", domain.ErrInvalidInput)
		}
		if text == "" {
			return domain.ModelRequest{}, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
		}
		return domain.ModelRequest{
			Kind:   kind,
			Model:  b.visionModel,
			Prompt: b.followUpPrompt(text, diagnosis),
			Image:  image,
		}, nil

	case domain.TurnKindTextOnly:
		if text == "" {
			return domain.ModelRequest{}, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
		}
		return domain.ModelRequest{
			Kind:   kind,
			Model:  b.textModel,
			Prompt: text,
		}, nil
	}

	return domain.ModelRequest{}, fmt.Errorf("%w: unknown turn kind %q", domain.ErrInvalidInput, kind)
}

func (b *builder) initialPrompt(question string) string {
	if question == "" {
		return b.templates.Initial
	}
	return b.templates.Initial + "\n\n" + question
}

func (b *builder) followUpPrompt(question, diagnosis string) string {
	if strings.TrimSpace(diagnosis) == "" {
		diagnosis = b.templates.DiagnosisPlaceholder
	}

	// The question is substituted last so placeholder-like text typed by the
	// user is left untouched.
	prompt := strings.ReplaceAll(b.templates.FollowUp, diagnosisPlaceholder, diagnosis)
	return strings.Replace(prompt, questionPlaceholder, question, 1)
}
