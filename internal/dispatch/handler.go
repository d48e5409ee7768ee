package dispatch

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wishlane/dispatcher/internal/pkg/ctxlog"
	"github.com/wishlane/dispatcher/internal/pkg/httputil"
)

// Handler handles HTTP requests for the dispatch trigger.
type Handler struct {
	coordinator *Coordinator
}

// NewHandler creates a new dispatch handler.
func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// RegisterRoutes registers the trigger endpoint. Both GET and POST are
// accepted because external cron services differ in what they emit.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/dispatch/run", h.Run)
	r.Get("/dispatch/run", h.Run)
}

// Run handles the trigger call. Secret verification happens in the
// auth middleware before this handler runs; an unexpected panic below
// surfaces as a generic internal error.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			ctxlog.FromContext(r.Context()).Error("dispatch run panicked", "panic", rec)
			httputil.Error(w, http.StatusInternalServerError, "internal error")
		}
	}()

	result := h.coordinator.Run(r.Context())
	httputil.JSON(w, http.StatusOK, result)
}
