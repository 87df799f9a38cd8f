// Package session holds the per-session memory of a conversation: the image
// under discussion, the current diagnosis and the turn counter.
//
// A State is not safe for concurrent use. Callers serialize turns.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseImageLoaded
	PhaseResponding
	PhaseAwaitingQuestion
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseImageLoaded:
		return "image_loaded"
	case PhaseResponding:
		return "responding"
	case PhaseAwaitingQuestion:
		return "awaiting_question"
	}
	return "unknown"
}

type State struct {
	ID        string
	StartedAt time.Time

	diagnosis string
	turnCount int
	image     *domain.ImageRef
	phase     Phase
}

func New() *State {
	return &State{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		phase:     PhaseIdle,
	}
}

// Diagnosis returns the current diagnosis label, or "" when no initial
// analysis has succeeded since the last image upload.
func (s *State) Diagnosis() string { return s.diagnosis }

func (s *State) TurnCount() int { return s.turnCount }

func (s *State) Image() *domain.ImageRef { return s.image }

func (s *State) Phase() Phase { return s.phase }

// LoadImage replaces the image under discussion and forgets the previous
// diagnosis.
func (s *State) LoadImage(image domain.ImageRef) {
	s.image = &image
	s.diagnosis = ""
	s.phase = PhaseImageLoaded
}

// QuestionKind is the turn kind for a user question in the current state.
func (s *State) QuestionKind() domain.TurnKind {
	if s.image != nil {
		return domain.TurnKindFollowUp
	}
	return domain.TurnKindTextOnly
}

// BeginTurn moves the session into the responding phase and returns the
// number of the new turn.
func (s *State) BeginTurn() int {
	s.turnCount++
	s.phase = PhaseResponding
	return s.turnCount
}

// RecordDiagnosis stores the label derived from an initial analysis,
// replacing any previous one.
func (s *State) RecordDiagnosis(diagnosis string) {
	s.diagnosis = diagnosis
}

func (s *State) EndTurn() {
	s.phase = PhaseAwaitingQuestion
}

// AbortTurn ends a turn that produced no answer. After a failed initial
// analysis the session stays in the image-loaded phase.
func (s *State) AbortTurn(kind domain.TurnKind) {
	if kind == domain.TurnKindInitial {
		s.phase = PhaseImageLoaded
		return
	}
	s.phase = PhaseAwaitingQuestion
}
