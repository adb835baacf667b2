package http

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

const (
	// MaxAudioBytes matches the transcription provider's upload limit.
	MaxAudioBytes = 25 << 20

	audioFormField   = "audio"
	messageFormField = "message"
)

// MessageHandler serves a ticket's conversation.
type MessageHandler struct {
	chatService  ports.ChatService
	errorHandler *ErrorHandler
	sendLimiter  func(http.Handler) http.Handler
	logger       *slog.Logger
}

// NewMessageHandler creates a message handler. sendLimiter wraps the send
// route, which can trigger AI work; nil leaves it unlimited.
func NewMessageHandler(
	chatService ports.ChatService,
	errorHandler *ErrorHandler,
	sendLimiter func(http.Handler) http.Handler,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		chatService:  chatService,
		errorHandler: errorHandler,
		sendLimiter:  sendLimiter,
		logger:       logger.With("handler", "message"),
	}
}

// RegisterRoutes adds the message routes to the /tickets router.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{ticketID}/messages", h.HandleListMessages)
	if h.sendLimiter != nil {
		r.With(h.sendLimiter).Post("/{ticketID}/messages", h.HandleSendMessage)
	} else {
		r.Post("/{ticketID}/messages", h.HandleSendMessage)
	}
}

// SendMessageRequest is the JSON body for a text message.
type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// HandleListMessages handles GET /tickets/{ticketID}/messages
func (h *MessageHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	messages, err := h.chatService.GetChatMessages(r.Context(), ticketID, mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]domain.MessageSnapshot, 0, len(messages))
	for _, msg := range messages {
		response = append(response, domain.NewMessageSnapshot(msg))
	}
	WriteList(w, response)
}

// HandleSendMessage handles POST /tickets/{ticketID}/messages. A JSON body
// sends text; a multipart form with an audio file sends a voice message.
func (h *MessageHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.SendMessageParams{
		TicketID: ticketID,
		Sender:   mw.GetIdentity(r.Context()),
	}

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxAudioBytes+validation.MaxBodyBytes)
		if err := r.ParseMultipartForm(MaxAudioBytes); err != nil {
			h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid multipart body"))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile(audioFormField)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				h.errorHandler.Handle(w, r, apperrors.ErrAudioRequired)
				return
			}
			h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid audio upload"))
			return
		}
		defer func() { _ = file.Close() }()

		params.Message = r.FormValue(messageFormField)
		params.Audio = file
		params.AudioFilename = header.Filename
		params.AudioMimeType = header.Header.Get("Content-Type")
	} else {
		req, err := validation.DecodeAndValidate[SendMessageRequest](w, r)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		params.Message = req.Message
	}

	msg, err := h.chatService.SendMessage(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "message sent",
		"ticket_id", ticketID,
		"message_id", msg.ID,
		"type", msg.MessageType,
	)

	WriteCreated(w, domain.NewMessageSnapshot(msg))
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}
