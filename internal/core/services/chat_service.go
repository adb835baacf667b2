package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/logging"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/metrics"
)

// DefaultRouteTimeout bounds the AI work done for one inbound message.
const DefaultRouteTimeout = 60 * time.Second

const voiceUploadPrefix = "voice-messages"

// audioExtensions are the upload formats the transcription provider accepts.
var audioExtensions = map[string]bool{
	".flac": true,
	".m4a":  true,
	".mp3":  true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".oga":  true,
	".ogg":  true,
	".wav":  true,
	".webm": true,
}

// ChatService runs the message pipeline for a ticket: persist the inbound
// message, fan it out, then decide the follow-up on the ticket's lane.
type ChatService struct {
	ticketRepo   ports.TicketRepository
	messageRepo  ports.MessageRepository
	broadcaster  ports.EventBroadcaster
	ai           ports.AIResponder
	blobs        ports.BlobStore
	calls        ports.CallInitiator
	clock        clock.Clock
	routeTimeout time.Duration
	logger       *slog.Logger
	lanes        *laneSet
}

var _ ports.ChatService = (*ChatService)(nil)

// NewChatService creates a new chat service
func NewChatService(
	ticketRepo ports.TicketRepository,
	messageRepo ports.MessageRepository,
	broadcaster ports.EventBroadcaster,
	ai ports.AIResponder,
	blobs ports.BlobStore,
	calls ports.CallInitiator,
	clk clock.Clock,
	routeTimeout time.Duration,
	logger *slog.Logger,
) ports.ChatService {
	if routeTimeout <= 0 {
		routeTimeout = DefaultRouteTimeout
	}
	return &ChatService{
		ticketRepo:   ticketRepo,
		messageRepo:  messageRepo,
		broadcaster:  broadcaster,
		ai:           ai,
		blobs:        blobs,
		calls:        calls,
		clock:        clk,
		routeTimeout: routeTimeout,
		logger:       logger.With("component", "chat_service"),
		lanes:        newLaneSet(),
	}
}

// SendMessage persists and publishes the caller's message and queues the
// routing decision. The returned message is the caller's own, whatever
// routing later does.
func (s *ChatService) SendMessage(ctx context.Context, params ports.SendMessageParams) (*domain.ChatMessage, error) {
	// 1. Authentication Check
	if !params.Sender.Valid() {
		return nil, apperrors.ErrUnauthorized
	}

	// 2. Only participants may post
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}
	if !ticket.VisibleTo(params.Sender) {
		return nil, apperrors.ErrTicketNotFound
	}

	msgParams := domain.MessageParams{
		TicketID:    ticket.ID,
		Sender:      domain.SenderForRole(params.Sender.Role),
		Message:     params.Message,
		MessageType: domain.MessageTypeText,
	}

	// 3. Store the recording first so the message can reference it
	if params.Audio != nil {
		if utf8.RuneCountInString(strings.TrimSpace(params.Message)) > domain.MaxMessageLength {
			return nil, apperrors.ErrMessageTooLong
		}
		voiceURL, err := s.storeVoice(ctx, params)
		if err != nil {
			return nil, err
		}
		msgParams.MessageType = domain.MessageTypeVoice
		msgParams.VoiceURL = voiceURL
	}

	// 4. Persist and fan out under the ticket's lane
	unlock := s.lanes.Lock(ticket.ID)
	defer unlock()

	msgParams.CreatedAt = s.stamp()
	msg, err := domain.NewChatMessage(msgParams)
	if err != nil {
		return nil, err
	}

	saved, err := s.messageRepo.Create(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.publish(saved)

	if saved.Sender.IsStaff() {
		s.advance(ctx, ticket.ID)
	}

	// 5. Queue the routing decision behind earlier messages on this ticket
	routeCtx := logging.WithTicketID(context.WithoutCancel(ctx), ticket.ID)
	s.lanes.Go(ticket.ID, func() {
		s.route(routeCtx, saved)
	})

	return saved, nil
}

// GetChatMessages returns a ticket's conversation in creation order.
func (s *ChatService) GetChatMessages(ctx context.Context, ticketID int64, viewer *domain.Identity) ([]*domain.ChatMessage, error) {
	if !viewer.Valid() {
		return nil, apperrors.ErrUnauthorized
	}

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.VisibleTo(viewer) {
		return nil, apperrors.ErrTicketNotFound
	}

	return s.messageRepo.ListByTicket(ctx, ticketID)
}

// Shutdown waits for queued routing work.
func (s *ChatService) Shutdown() {
	s.lanes.Wait()
}

// route evaluates the decision table against the ticket as it is now and
// carries out the chosen follow-up. Failures end here.
func (s *ChatService) route(parent context.Context, inbound *domain.ChatMessage) {
	ctx, cancel := context.WithTimeout(parent, s.routeTimeout)
	defer cancel()

	// Carries the originating request id and the ticket id.
	logger := logging.LoggerFromContext(ctx, s.logger).With("message_id", inbound.ID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("routing panicked", "panic", r)
		}
	}()

	ticket, err := s.ticketRepo.GetByID(ctx, inbound.TicketID)
	if err != nil {
		logger.Error("failed to load ticket for routing", "error", err)
		return
	}

	action := domain.DecideRoute(domain.RouteInputFor(ticket))
	metrics.RoutingDecisions.WithLabelValues(action.String()).Inc()
	logger.Debug("routing decision", "action", action.String())

	switch action {
	case domain.RouteRespondWithAI:
		s.respondWithAI(ctx, logger, ticket, inbound)
	case domain.RouteEscalate:
		if _, err := s.calls.Initiate(ctx, ticket.ID, ticket.RequesterID, domain.CallTypeAudio); err != nil {
			logger.Error("escalation call failed", "error", err)
		}
	}
}

func (s *ChatService) respondWithAI(ctx context.Context, logger *slog.Logger, ticket *domain.Ticket, inbound *domain.ChatMessage) {
	// 1. Work out what the user said
	text := inbound.Message
	if !inbound.HasText() && inbound.IsVoice() {
		transcript, err := s.transcribe(ctx, *inbound.VoiceURL)
		if err != nil {
			logger.Warn("transcription failed, skipping AI reply", "error", err)
			return
		}
		text = strings.TrimSpace(transcript)
	}
	if text == "" {
		logger.Debug("nothing to answer, skipping AI reply")
		return
	}

	// 2. Ask the model
	reply, err := s.ai.GenerateReply(ctx, BuildPrompt(ticket.Description, text))
	if err != nil {
		logger.Warn("AI reply failed", "error", err)
		return
	}
	reply = truncateRunes(strings.TrimSpace(reply), domain.MaxMessageLength)
	if reply == "" {
		logger.Warn("AI returned an empty reply")
		return
	}

	params := domain.MessageParams{
		TicketID:    ticket.ID,
		Sender:      domain.SenderAI,
		Message:     reply,
		MessageType: domain.MessageTypeText,
	}

	// 3. Voice in, voice out (best effort)
	if inbound.IsVoice() {
		voiceURL, err := s.ai.Synthesize(ctx, reply)
		if err != nil {
			logger.Warn("speech synthesis failed, sending text reply", "error", err)
		} else {
			params.MessageType = domain.MessageTypeVoice
			params.VoiceURL = voiceURL
		}
	}

	// 4. Persist and fan out after the message it answers
	unlock := s.lanes.Lock(ticket.ID)
	defer unlock()

	params.CreatedAt = s.stampAfter(inbound.CreatedAt)
	msg, err := domain.NewChatMessage(params)
	if err != nil {
		logger.Error("AI reply failed validation", "error", err)
		return
	}
	saved, err := s.messageRepo.Create(ctx, msg)
	if err != nil {
		logger.Error("failed to persist AI reply", "error", err)
		return
	}
	s.publish(saved)
	s.advance(ctx, ticket.ID)
}

func (s *ChatService) transcribe(ctx context.Context, voiceURL string) (string, error) {
	audio, err := s.blobs.Open(ctx, voiceURL)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer audio.Close()
	return s.ai.Transcribe(ctx, audio, path.Base(voiceURL))
}

func (s *ChatService) storeVoice(ctx context.Context, params ports.SendMessageParams) (string, error) {
	name := sanitizeFilename(params.AudioFilename)
	if !audioExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", apperrors.ErrUnsupportedAudioExt
	}

	key := fmt.Sprintf("%s/%d-%s", voiceUploadPrefix, s.clock.Now().UnixMilli(), name)
	url, err := s.blobs.Put(ctx, params.Audio, params.AudioMimeType, key)
	if err != nil {
		return "", apperrors.NewExternalServiceError("blob_store", err)
	}
	return url, nil
}

// advance moves an open ticket to in-progress once it has been answered.
func (s *ChatService) advance(ctx context.Context, ticketID int64) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		s.logger.Warn("failed to load ticket for status advance", "ticket_id", ticketID, "error", err)
		return
	}
	if !ticket.MarkInProgress(s.clock.Now()) {
		return
	}
	if _, err := s.ticketRepo.Update(ctx, ticket); err != nil {
		s.logger.Warn("failed to mark ticket in progress", "ticket_id", ticketID, "error", err)
	}
}

func (s *ChatService) publish(msg *domain.ChatMessage) {
	if err := s.broadcaster.Broadcast(domain.NewMessageEvent(msg)); err != nil {
		s.logger.Error("failed to publish message",
			"ticket_id", msg.TicketID,
			"message_id", msg.ID,
			"error", err,
		)
	}
}

// stamp truncates to the storage precision so ordering survives a round trip.
func (s *ChatService) stamp() time.Time {
	return s.clock.Now().Truncate(time.Microsecond)
}

func (s *ChatService) stampAfter(prev time.Time) time.Time {
	now := s.stamp()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// BuildPrompt frames the new message with the ticket's original description.
func BuildPrompt(description, message string) string {
	return fmt.Sprintf(
		"The user has submitted a troubleshooting ticket with the following description: \"%s\". "+
			"They have now sent the following message: \"%s\". Provide a helpful response to their message.",
		description, message,
	)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "recording"
	}
	return out
}
