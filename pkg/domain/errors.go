package domain

import "errors"

var (
	ErrDecode              = errors.New("audio cannot be decoded")
	ErrUnintelligibleAudio = errors.New("no speech recognized in audio")
	ErrServiceUnavailable  = errors.New("speech recognition service unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrSynthesis           = errors.New("speech synthesis failed")
	ErrInference           = errors.New("model inference failed")
)
