package services

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// MaxSpeechTextLength is the provider's input limit for one synthesis call.
const MaxSpeechTextLength = 4096

// SpeechService exposes text-to-speech directly to clients.
type SpeechService struct {
	ai     ports.AIResponder
	logger *slog.Logger
}

var _ ports.SpeechService = (*SpeechService)(nil)

// NewSpeechService creates a new speech service
func NewSpeechService(ai ports.AIResponder, logger *slog.Logger) ports.SpeechService {
	return &SpeechService{
		ai:     ai,
		logger: logger.With("component", "speech_service"),
	}
}

// ConvertTextToSpeech synthesizes text and returns the stored audio URL.
// Here synthesis is the whole operation, so its failure is the caller's.
func (s *SpeechService) ConvertTextToSpeech(ctx context.Context, text string, actor *domain.Identity) (string, error) {
	if !actor.Valid() {
		return "", apperrors.ErrUnauthorized
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.ErrSpeechTextRequired
	}
	if utf8.RuneCountInString(text) > MaxSpeechTextLength {
		return "", apperrors.ErrSpeechTextTooLong
	}

	url, err := s.ai.Synthesize(ctx, text)
	if err != nil {
		s.logger.Error("speech synthesis failed", "user_id", actor.UserID, "error", err)
		return "", apperrors.NewExternalServiceError("text_to_speech", err)
	}
	return url, nil
}
