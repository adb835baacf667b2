// Package openai adapts the OpenAI API to the AI responder port: chat
// replies, Whisper transcription and text-to-speech.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/metrics"
)

const speechUploadPrefix = "speech"

// ErrEmptyCompletion is returned when the provider answers with no choices.
var ErrEmptyCompletion = errors.New("AI provider returned no completion")

// Config holds the provider settings.
type Config struct {
	APIKey  string
	BaseURL string

	ChatModel          string
	MaxTokens          int
	SpeechModel        string
	Voice              string
	TranscriptionModel string
	Timeout            time.Duration
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		ChatModel:          goopenai.GPT3Dot5Turbo,
		MaxTokens:          150,
		SpeechModel:        string(goopenai.TTSModel1),
		Voice:              string(goopenai.VoiceAlloy),
		TranscriptionModel: goopenai.Whisper1,
		Timeout:            30 * time.Second,
	}
}

// Responder implements ports.AIResponder on top of go-openai.
type Responder struct {
	client *goopenai.Client
	cfg    Config
	blobs  ports.BlobStore
	clock  clock.Clock
	logger *slog.Logger
}

var _ ports.AIResponder = (*Responder)(nil)

// NewResponder returns a live responder, or a disabled one when no API key
// is configured.
func NewResponder(cfg Config, blobs ports.BlobStore, clk clock.Clock, logger *slog.Logger) ports.AIResponder {
	logger = logger.With("component", "ai_responder")
	if cfg.APIKey == "" {
		logger.Warn("no AI API key configured, AI replies are disabled")
		return Disabled{}
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Responder{
		client: goopenai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		blobs:  blobs,
		clock:  clk,
		logger: logger,
	}
}

// GenerateReply sends a single-turn prompt and returns the first choice.
func (r *Responder) GenerateReply(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	defer observe("chat", time.Now())

	resp, err := r.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: r.cfg.ChatModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: r.cfg.MaxTokens,
	})
	if err != nil {
		return "", r.fail("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", r.fail("chat", ErrEmptyCompletion)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Transcribe runs speech recognition on a recording.
func (r *Responder) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	defer observe("transcribe", time.Now())

	resp, err := r.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    r.cfg.TranscriptionModel,
		Reader:   audio,
		FilePath: filename,
	})
	if err != nil {
		return "", r.fail("transcribe", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Synthesize renders text as mp3, stores it and returns the blob URL.
func (r *Responder) Synthesize(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	defer observe("speech", time.Now())

	audio, err := r.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(r.cfg.SpeechModel),
		Input:          text,
		Voice:          goopenai.SpeechVoice(r.cfg.Voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return "", r.fail("speech", err)
	}
	defer audio.Close()

	key := fmt.Sprintf("%s/%d-%s.mp3", speechUploadPrefix, r.clock.Now().UnixMilli(), uuid.NewString())
	url, err := r.blobs.Put(ctx, audio, "audio/mpeg", key)
	if err != nil {
		return "", r.fail("speech", fmt.Errorf("storing speech: %w", err))
	}
	return url, nil
}

func (r *Responder) fail(op string, err error) error {
	metrics.AIFailures.WithLabelValues(op).Inc()
	return fmt.Errorf("%w: %s: %v", apperrors.ErrExternalService, op, err)
}

func observe(op string, start time.Time) {
	metrics.AIDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Disabled fails every call. Routing treats that as "no enrichment".
type Disabled struct{}

var _ ports.AIResponder = Disabled{}

var errDisabled = fmt.Errorf("%w: AI provider not configured", apperrors.ErrExternalService)

func (Disabled) GenerateReply(context.Context, string) (string, error) { return "", errDisabled }

func (Disabled) Transcribe(context.Context, io.Reader, string) (string, error) {
	return "", errDisabled
}

func (Disabled) Synthesize(context.Context, string) (string, error) { return "", errDisabled }
