package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes under the product subtree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/movements", h.handleMovements)
	r.Get("/{id}/ledger/verify", h.handleVerify)
	r.Post("/{id}/adjust", h.handleAdjust)
}

type movementResponse struct {
	ID           int64  `json:"id"`
	ProductID    int64  `json:"productId"`
	Direction    string `json:"direction"`
	Quantity     string `json:"quantity"`
	BalanceAfter string `json:"balanceAfter"`
	DisputeID    *int64 `json:"disputeId,omitempty"`
	Reason       string `json:"reason,omitempty"`
	UnitPrice    string `json:"unitPrice,omitempty"`
	Value        string `json:"value"`
	CreatedAt    string `json:"createdAt"`
}

func toMovementResponse(m StockMovement) movementResponse {
	resp := movementResponse{
		ID:           m.ID,
		ProductID:    m.ProductID,
		Direction:    string(m.Direction),
		Quantity:     m.Quantity.String(),
		BalanceAfter: m.BalanceAfter.String(),
		DisputeID:    m.DisputeID,
		Reason:       m.Reason,
		Value:        m.Value.String(),
		CreatedAt:    m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if m.UnitPrice != nil {
		resp.UnitPrice = m.UnitPrice.String()
	}
	return resp
}

type adjustRequest struct {
	QuantityChange string `json:"quantityChange" validate:"required"`
	Reason         string `json:"reason" validate:"required"`
	UnitPrice      string `json:"unitPrice,omitempty"`
}

func productID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	movements, err := h.service.ListByProduct(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("list movements", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	report, err := h.service.VerifyProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("verify ledger", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"productId":      report.ProductID,
		"movements":      report.Movements,
		"ledgerQuantity": report.LedgerQuantity.String(),
		"onHandQuantity": report.OnHandQuantity.String(),
		"consistent":     report.Consistent,
	})
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = "failed " + fe.Tag()
			}
		}
		httpx.FieldProblem(w, fields)
		return
	}
	change, err := decimal.NewFromString(req.QuantityChange)
	if err != nil {
		httpx.FieldProblem(w, map[string]string{"quantityChange": "not a decimal"})
		return
	}
	input := AdjustmentInput{ProductID: id, QuantityChange: change, Reason: req.Reason}
	if req.UnitPrice != "" {
		price, err := decimal.NewFromString(req.UnitPrice)
		if err != nil {
			httpx.FieldProblem(w, map[string]string{"unitPrice": "not a decimal"})
			return
		}
		input.UnitPrice = &price
	}
	movement, err := h.service.Adjust(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, ErrNegativeStock):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrMissingReason):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("manual adjustment", slog.Int64("product_id", id), slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}
