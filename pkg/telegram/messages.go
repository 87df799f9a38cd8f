package telegram

import (
	"errors"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

const welcomeText = `👋 Hi! I am an AI medical assistant.

📷 Send a photo of the affected area and I will describe what I see and suggest a likely diagnosis.
💬 Then ask follow-up questions about it in text or with a voice message 🎙.
🆕 /new starts over with a new image.

⚠️ My answers are not a substitute for a doctor.`

const (
	newSessionText       = "🆕 Started a new consultation. Send a photo to begin."
	unsupportedInputText = "Please send a photo, a voice message or a text question."
	deliveryFailedText   = "❌ Failed to deliver the answer."
)

func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrDecode):
		return "❌ I could not read that audio. Please send a voice message or an MP3 or WAV recording."
	case errors.Is(err, domain.ErrUnintelligibleAudio):
		return "🔇 I could not make out any speech in that recording. Please try again."
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "❌ Speech recognition is unavailable right now. Please type your question instead."
	case errors.Is(err, domain.ErrInvalidInput):
		return "❓ " + unsupportedInputText
	case errors.Is(err, domain.ErrInference):
		return "❌ I could not get an answer right now. Please try again in a moment."
	case errors.Is(err, domain.ErrSynthesis):
		return "❌ I could not voice the answer."
	}
	return "❌ Something went wrong. Please try again."
}
