package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/RichardoC/palchat/internal/chat"
	"github.com/RichardoC/palchat/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	session   *chat.Session
	assistant chat.Assistant
	language  models.Language
	logger    *zap.Logger
}

// NewHandler serves session over HTTP. language is used when a request does
// not name one.
func NewHandler(session *chat.Session, assistant chat.Assistant, language models.Language, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		session:   session,
		assistant: assistant,
		language:  language,
		logger:    logger,
	}
}

type MessageRequest struct {
	Content  string `json:"content"`
	Language string `json:"lang,omitempty"`
}

type LanguageRequest struct {
	Language string `json:"lang,omitempty"`
}

type CaptionRequest struct {
	Image    string `json:"image"`
	Language string `json:"lang,omitempty"`
}

type CaptionResponse struct {
	Caption string `json:"caption"`
}

type ConversationSummary struct {
	ID          string             `json:"id"`
	Participant models.Participant `json:"participant"`
	LastMessage string             `json:"last_message"`
	State       chat.ViewState     `json:"state"`
}

type ConversationResponse struct {
	models.Conversation
	State        chat.ViewState                    `json:"state"`
	Active       bool                              `json:"active"`
	Translations map[string]chat.TranslationStatus `json:"translations"`
}

type MessageResponse struct {
	Message models.Message `json:"message"`
}

type TranslateResponse struct {
	Started bool `json:"started"`
	chat.TranslationStatus
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/conversations", h.ListConversations)
		r.Post("/conversations/close", h.CloseConversation)
		r.Get("/conversations/{conversationID}", h.GetConversation)
		r.Post("/conversations/{conversationID}/open", h.OpenConversation)
		r.Post("/conversations/{conversationID}/messages/{messageID}/translate", h.TranslateMessage)
		r.Get("/conversations/{conversationID}/messages/{messageID}/translation", h.GetTranslation)
		r.Post("/messages", h.SendMessage)
		r.Post("/suggestion", h.FetchSuggestion)
		r.Post("/suggestion/send", h.SendSuggestion)
		r.Post("/captions", h.GenerateCaption)
	})
	return r
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.session.Store().ListConversations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		out = append(out, ConversationSummary{
			ID:          c.ID,
			Participant: c.Participant,
			LastMessage: c.LastMessage,
			State:       h.session.State(c.ID),
		})
	}
	h.logger.Debug("Retrieved conversations", zap.Int("count", len(out)))
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	conv, err := h.session.Store().Conversation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.conversationResponse(conv))
}

func (h *Handler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if err := h.session.Open(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	conv, err := h.session.Store().Conversation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.conversationResponse(conv))
}

func (h *Handler) CloseConversation(w http.ResponseWriter, r *http.Request) {
	h.session.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	lang, ok := h.lang(w, req.Language)
	if !ok {
		return
	}

	msg, err := h.session.SendMessage(r.Context(), req.Content, lang)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

func (h *Handler) FetchSuggestion(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if !h.decode(w, r, &req) {
		return
	}
	lang, ok := h.lang(w, req.Language)
	if !ok {
		return
	}

	sug, err := h.session.FetchSuggestion(r.Context(), lang)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sug)
}

func (h *Handler) SendSuggestion(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if !h.decode(w, r, &req) {
		return
	}
	lang, ok := h.lang(w, req.Language)
	if !ok {
		return
	}

	msg, err := h.session.SendSuggestion(r.Context(), lang)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

func (h *Handler) TranslateMessage(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if !h.decode(w, r, &req) {
		return
	}
	lang, ok := h.lang(w, req.Language)
	if !ok {
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	messageID := chi.URLParam(r, "messageID")
	started, err := h.session.RequestTranslation(r.Context(), conversationID, messageID, lang)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, TranslateResponse{
		Started:           started,
		TranslationStatus: h.session.Translations().Status(messageID),
	})
}

func (h *Handler) GetTranslation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messageID := chi.URLParam(r, "messageID")

	conv, err := h.session.Store().Conversation(r.Context(), conversationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	found := false
	for _, m := range conv.Messages {
		if m.ID == messageID {
			found = true
			break
		}
	}
	if !found {
		h.fail(w, r, chat.ErrMessageNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, h.session.Translations().Status(messageID))
}

func (h *Handler) GenerateCaption(w http.ResponseWriter, r *http.Request) {
	var req CaptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Image == "" {
		http.Error(w, "Image is required", http.StatusBadRequest)
		return
	}
	lang, ok := h.lang(w, req.Language)
	if !ok {
		return
	}

	caption := h.assistant.GenerateCaption(r.Context(), req.Image, lang)
	h.writeJSON(w, http.StatusOK, CaptionResponse{Caption: caption})
}

func (h *Handler) conversationResponse(conv models.Conversation) ConversationResponse {
	active, _ := h.session.Active()
	translations := make(map[string]chat.TranslationStatus)
	for _, m := range conv.Messages {
		if st := h.session.Translations().Status(m.ID); st.Resolved || st.Translating {
			translations[m.ID] = st
		}
	}
	return ConversationResponse{
		Conversation: conv,
		State:        h.session.State(conv.ID),
		Active:       active == conv.ID,
		Translations: translations,
	}
}

// decode reads an optional JSON body into v. It writes a 400 and returns
// false on malformed input.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) lang(w http.ResponseWriter, code string) (models.Language, bool) {
	if code == "" {
		return h.language, true
	}
	lang, err := models.ParseLanguage(code)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return lang, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound), errors.Is(err, chat.ErrMessageNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, chat.ErrEmptyMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, chat.ErrNoActiveConversation), errors.Is(err, chat.ErrNoSuggestion):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("Request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
