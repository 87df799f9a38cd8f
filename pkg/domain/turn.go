package domain

import (
	"encoding/base64"
	"net/http"
	"time"
)

// TurnKind selects how a question is sent to the model. It is computed once
// per turn and passed to every downstream call.
type TurnKind string

const (
	TurnKindInitial  TurnKind = "initial"
	TurnKindFollowUp TurnKind = "follow_up"
	TurnKindTextOnly TurnKind = "text_only"
)

type QuestionOrigin string

const (
	QuestionOriginTyped       QuestionOrigin = "typed"
	QuestionOriginTranscribed QuestionOrigin = "transcribed"
	QuestionOriginDefault     QuestionOrigin = "default"
)

type Question struct {
	Text   string
	Origin QuestionOrigin
}

// ImageRef is an uploaded clinical image. It is never modified after capture.
type ImageRef struct {
	Data     []byte
	MIMEType string
}

func NewImageRef(data []byte, mimeType string) ImageRef {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return ImageRef{Data: data, MIMEType: mimeType}
}

// DataURL returns the inline base64 reference accepted by multimodal models.
func (i ImageRef) DataURL() string {
	mimeType := i.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// TurnRequest is built once per turn and carries everything the prompt
// depends on apart from the stored diagnosis.
type TurnRequest struct {
	Question Question
	Image    *ImageRef
	Kind     TurnKind
}

// ModelRequest is the exact payload handed to the inference service: one user
// message with a text part and, for image turns, one inline image.
type ModelRequest struct {
	Kind   TurnKind
	Model  string
	Prompt string
	Image  *ImageRef
}

type Speech struct {
	Data     []byte
	Format   string
	Duration time.Duration
}

// TurnResult is the outcome of one turn. Audio is nil when synthesis failed;
// the text answer is still valid in that case.
type TurnResult struct {
	Kind       TurnKind
	Turn       int
	Text       string
	Audio      *Speech
	Transcript string
	Diagnosis  string
}
