package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// SpeechHandler exposes text-to-speech.
type SpeechHandler struct {
	speechService ports.SpeechService
	errorHandler  *ErrorHandler
}

func NewSpeechHandler(speechService ports.SpeechService, errorHandler *ErrorHandler) *SpeechHandler {
	return &SpeechHandler{speechService: speechService, errorHandler: errorHandler}
}

func (h *SpeechHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleConvertTextToSpeech)
}

type SpeechRequest struct {
	Text string `json:"text" validate:"required"`
}

type SpeechResponse struct {
	VoiceURL string `json:"voiceUrl"`
}

// HandleConvertTextToSpeech handles POST /speech
func (h *SpeechHandler) HandleConvertTextToSpeech(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[SpeechRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	url, err := h.speechService.ConvertTextToSpeech(r.Context(), req.Text, mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, SpeechResponse{VoiceURL: url})
}
