package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dskvich/ai-doctor/pkg/converter"
	"github.com/dskvich/ai-doctor/pkg/diagnosis"
	"github.com/dskvich/ai-doctor/pkg/domain"
	"github.com/dskvich/ai-doctor/pkg/logger"
	"github.com/dskvich/ai-doctor/pkg/metrics"
	"github.com/dskvich/ai-doctor/pkg/session"
	"github.com/dskvich/ai-doctor/pkg/telemetry"
)

type QueryBuilder interface {
	Build(req domain.TurnRequest, diagnosis string) (domain.ModelRequest, error)
	DefaultQuestion() string
	Refused(answer string) bool
}

type Inferencer interface {
	Infer(ctx context.Context, req domain.ModelRequest) (string, error)
}

type AudioNormalizer interface {
	Normalize(ctx context.Context, raw []byte, hint string, use func(*converter.Waveform) error) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, waveform *converter.Waveform) (string, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (*domain.Speech, error)
}

type turnService struct {
	builder     QueryBuilder
	inferencer  Inferencer
	normalizer  AudioNormalizer
	transcriber Transcriber
	synthesizer SpeechSynthesizer
	metrics     *metrics.Metrics
}

func NewTurnService(
	builder QueryBuilder,
	inferencer Inferencer,
	normalizer AudioNormalizer,
	transcriber Transcriber,
	synthesizer SpeechSynthesizer,
	m *metrics.Metrics,
) *turnService {
	return &turnService{
		builder:     builder,
		inferencer:  inferencer,
		normalizer:  normalizer,
		transcriber: transcriber,
		synthesizer: synthesizer,
		metrics:     m,
	}
}

// LoadImage starts a new analysis: the previous diagnosis is forgotten and
// the image is analyzed right away. An empty caption asks the default
// question.
func (s *turnService) LoadImage(ctx context.Context, state *session.State, image domain.ImageRef, caption string) (*domain.TurnResult, error) {
	if len(image.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}

	state.LoadImage(image)

	question := domain.Question{Text: strings.TrimSpace(caption), Origin: domain.QuestionOriginTyped}
	if question.Text == "" {
		question = domain.Question{Text: s.builder.DefaultQuestion(), Origin: domain.QuestionOriginDefault}
	}

	slog.InfoContext(logger.ContextWithSessionID(ctx, state.ID), "Image loaded", "size", len(image.Data), "mimeType", image.MIMEType)

	return s.respond(ctx, state, domain.TurnKindInitial, question, "")
}

func (s *turnService) AskText(ctx context.Context, state *session.State, text string) (*domain.TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	return s.respond(ctx, state, state.QuestionKind(), domain.Question{Text: text, Origin: domain.QuestionOriginTyped}, "")
}

// AskVoice transcribes a recorded question and answers it. When the audio
// cannot be transcribed the turn is abandoned before anything is sent to the
// model.
func (s *turnService) AskVoice(ctx context.Context, state *session.State, audio []byte, hint string) (*domain.TurnResult, error) {
	transcript, err := s.transcribe(logger.ContextWithSessionID(ctx, state.ID), audio, hint)
	if err != nil {
		return nil, err
	}

	question := domain.Question{Text: transcript, Origin: domain.QuestionOriginTranscribed}
	return s.respond(ctx, state, state.QuestionKind(), question, transcript)
}

func (s *turnService) transcribe(ctx context.Context, audio []byte, hint string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "turn.transcribe", trace.WithAttributes(
		attribute.Int("audio.bytes", len(audio)),
		attribute.String("audio.hint", hint),
	))
	defer span.End()
	defer s.metrics.ObserveStage("transcription", time.Now())

	var transcript string
	err := s.normalizer.Normalize(ctx, audio, hint, func(w *converter.Waveform) error {
		span.SetAttributes(
			attribute.Float64("audio.rms", w.RMS),
			attribute.String("audio.duration", w.Duration.String()),
		)

		text, err := s.transcriber.Transcribe(ctx, w)
		transcript = text
		return err
	})

	s.metrics.RecordTranscription(transcriptionOutcome(err))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		slog.WarnContext(ctx, "Voice question dropped", logger.Err(err))
		return "", fmt.Errorf("transcribing voice question: %w", err)
	}

	slog.InfoContext(ctx, "Voice question transcribed", "length", len(transcript))

	return transcript, nil
}

func (s *turnService) respond(ctx context.Context, state *session.State, kind domain.TurnKind, question domain.Question, transcript string) (result *domain.TurnResult, err error) {
	ctx = logger.ContextWithSessionID(ctx, state.ID)
	ctx, span := telemetry.Tracer().Start(ctx, "turn."+string(kind), trace.WithAttributes(
		attribute.String("session.id", state.ID),
		attribute.String("question.origin", string(question.Origin)),
	))
	defer span.End()

	turn := state.BeginTurn()
	span.SetAttributes(attribute.Int("turn", turn))

	defer func() {
		if err != nil {
			state.AbortTurn(kind)
			span.RecordError(err)
			span.SetStatus(codes.Error, "turn failed")
			s.metrics.RecordTurn(string(kind), turnOutcome(err))
			return
		}
		state.EndTurn()
		s.metrics.RecordTurn(string(kind), "ok")
	}()

	slog.InfoContext(ctx, "Starting turn", "kind", kind, "turn", turn, "origin", question.Origin)

	turnReq := domain.TurnRequest{Question: question, Image: state.Image(), Kind: kind}
	req, err := s.builder.Build(turnReq, state.Diagnosis())
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	started := time.Now()
	answer, err := s.inferencer.Infer(ctx, req)
	s.metrics.ObserveStage("inference", started)
	if err != nil {
		if !errors.Is(err, domain.ErrInference) {
			err = fmt.Errorf("%w: %w", domain.ErrInference, err)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "Answer received", "length", len(answer))

	if kind == domain.TurnKindInitial {
		s.recordDiagnosis(ctx, state, answer)
	}

	return &domain.TurnResult{
		Kind:       kind,
		Turn:       turn,
		Text:       answer,
		Audio:      s.speak(ctx, answer),
		Transcript: transcript,
		Diagnosis:  state.Diagnosis(),
	}, nil
}

func (s *turnService) recordDiagnosis(ctx context.Context, state *session.State, answer string) {
	if s.builder.Refused(answer) {
		slog.InfoContext(ctx, "Image was not accepted for analysis")
		return
	}

	label := diagnosis.Extract(answer)
	state.RecordDiagnosis(label)

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("diagnosis", label))
	slog.InfoContext(ctx, "Diagnosis recorded", "diagnosis", label)
}

// speak returns nil when the answer cannot be voiced. The text answer stands
// on its own.
func (s *turnService) speak(ctx context.Context, answer string) *domain.Speech {
	ctx, span := telemetry.Tracer().Start(ctx, "turn.synthesize")
	defer span.End()

	started := time.Now()
	speech, err := s.synthesizer.Synthesize(ctx, answer)
	s.metrics.ObserveStage("synthesis", started)

	if err != nil {
		span.RecordError(err)
		s.metrics.RecordSynthesis("error", 0)
		slog.WarnContext(ctx, "Answer will be sent without audio", logger.Err(err))
		return nil
	}

	s.metrics.RecordSynthesis("ok", speech.Duration)
	span.SetAttributes(attribute.Int("audio.bytes", len(speech.Data)))

	return speech
}

func turnOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrInference):
		return "inference_error"
	}
	return "error"
}

func transcriptionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrDecode):
		return "decode_error"
	case errors.Is(err, domain.ErrUnintelligibleAudio):
		return "unintelligible"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	}
	return "error"
}
