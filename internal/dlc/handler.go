package dlc

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gastrodesk/gastrodesk/internal/platform/httpx"
)

// Handler wires HTTP endpoints for expiration entries.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs dlc handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers dlc routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/consume", h.transition(StatusConsumed))
	r.Post("/{id}/discard", h.transition(StatusDiscarded))
}

type entryResponse struct {
	ID             int64  `json:"id"`
	ProductID      int64  `json:"productId"`
	BillID         *int64 `json:"billId,omitempty"`
	ExpirationDate string `json:"expirationDate"`
	Quantity       string `json:"quantity"`
	Status         string `json:"status"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:             e.ID,
		ProductID:      e.ProductID,
		BillID:         e.BillID,
		ExpirationDate: e.ExpirationDate.Format("2006-01-02"),
		Quantity:       e.Quantity.String(),
		Status:         string(e.Status),
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("dlc get", slog.Int64("entry_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) transition(to Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
			return
		}
		var entry Entry
		switch to {
		case StatusConsumed:
			entry, err = h.service.Consume(r.Context(), id)
		case StatusDiscarded:
			entry, err = h.service.Discard(r.Context(), id)
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrEntryNotFound):
				httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			case errors.Is(err, ErrNotActive):
				httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			default:
				h.logger.Error("dlc transition", slog.Int64("entry_id", id), slog.Any("error", err))
				httpx.RespondError(w, err)
			}
			return
		}
		httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
	}
}
