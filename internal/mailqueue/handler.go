package mailqueue

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/wishlane/dispatcher/internal/notify"
	"github.com/wishlane/dispatcher/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: notify.ErrUnknownTemplate, Status: http.StatusBadRequest, Message: "unknown email template"},
}

// Handler handles HTTP requests for the producer queue API.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new mailqueue handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers queue routes (require the service secret).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/queue", func(r chi.Router) {
		r.Post("/emails", h.EnqueueEmail)
		r.Get("/stats", h.QueueStats)
	})
}

// EnqueueEmailRequest represents request body for enqueueing an email.
type EnqueueEmailRequest struct {
	To        string         `json:"to" validate:"required,email"`
	Template  string         `json:"template" validate:"required"`
	Variables map[string]any `json:"variables"`
}

// EnqueueEmail handles POST /queue/emails.
func (h *Handler) EnqueueEmail(w http.ResponseWriter, r *http.Request) {
	var req EnqueueEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	item, err := h.service.Enqueue(r.Context(), EnqueueInput{
		Recipient:  req.To,
		TemplateID: req.Template,
		Variables:  req.Variables,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"id":     item.ID,
		"status": item.Status,
	})
}

// QueueStats handles GET /queue/stats.
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.QueueStats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{
		"pending":    stats.Pending,
		"processing": stats.Processing,
		"sent":       stats.Sent,
		"failed":     stats.Failed,
	})
}
