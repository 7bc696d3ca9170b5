package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gastrodesk/gastrodesk/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleSearch)
	r.Get("/{id}", h.handleGet)
	r.Get("/low-stock", h.handleLowStock)
}

type productResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unitPrice,omitempty"`
	ParLevel  string `json:"parLevel,omitempty"`
	Trackable bool   `json:"trackable"`
}

type candidateResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Quantity string  `json:"quantity"`
	Score    float64 `json:"score"`
}

func toProductResponse(p Product) productResponse {
	resp := productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Unit:      string(p.Unit),
		Quantity:  p.Quantity.String(),
		Trackable: p.Trackable,
	}
	if p.UnitPrice != nil {
		resp.UnitPrice = p.UnitPrice.String()
	}
	if p.ParLevel != nil {
		resp.ParLevel = p.ParLevel.String()
	}
	return resp
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	candidates, err := h.service.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, ErrQueryTooShort) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("product search", slog.String("query", query), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]candidateResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, candidateResponse{
			ID:       c.ID,
			Name:     c.Name,
			Unit:     string(c.Unit),
			Quantity: c.Quantity.String(),
			Score:    c.Score,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("product get", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStock(r.Context())
	if err != nil {
		h.logger.Error("low stock listing", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}
