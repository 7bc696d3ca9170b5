package disputes

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/platform/httpx"
)

// Handler wires HTTP endpoints for disputes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs dispute handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers dispute routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/start", h.handleStart)
	r.Post("/{id}/resolve", h.handleResolve)
	r.Post("/{id}/close", h.handleClose)
}

type disputeProductRequest struct {
	ProductID int64  `json:"productId" validate:"required"`
	Reason    string `json:"reason"`
	Quantity  string `json:"quantity" validate:"required"`
}

type createRequest struct {
	BillID   int64                   `json:"billId" validate:"required"`
	Type     string                  `json:"type" validate:"required,oneof=RETURN COMPLAINT REFUND"`
	Amount   string                  `json:"amount"`
	Reason   string                  `json:"reason" validate:"required"`
	Products []disputeProductRequest `json:"products"`
}

type productReturnRequest struct {
	ProductID int64  `json:"productId" validate:"required"`
	Quantity  string `json:"quantity" validate:"required"`
}

type resolveRequest struct {
	ResolutionNotes string                 `json:"resolutionNotes" validate:"required"`
	ProductReturns  []productReturnRequest `json:"productReturns"`
}

type disputeProductResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"productId"`
	Reason    string `json:"reason,omitempty"`
	Quantity  string `json:"quantity"`
}

type disputeResponse struct {
	ID              int64                    `json:"id"`
	BillID          int64                    `json:"billId"`
	Type            string                   `json:"type"`
	Status          string                   `json:"status"`
	Amount          string                   `json:"amount"`
	Reason          string                   `json:"reason"`
	ResolutionNotes string                   `json:"resolutionNotes,omitempty"`
	ResolvedAt      *string                  `json:"resolvedAt,omitempty"`
	CreatedAt       string                   `json:"createdAt"`
	Products        []disputeProductResponse `json:"products,omitempty"`
}

func toDisputeResponse(d Dispute, products []DisputeProduct) disputeResponse {
	resp := disputeResponse{
		ID:              d.ID,
		BillID:          d.BillID,
		Type:            string(d.Type),
		Status:          string(d.Status),
		Amount:          d.Amount.String(),
		Reason:          d.Reason,
		ResolutionNotes: d.ResolutionNotes,
		CreatedAt:       d.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if d.ResolvedAt != nil {
		at := d.ResolvedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.ResolvedAt = &at
	}
	for _, p := range products {
		resp.Products = append(resp.Products, disputeProductResponse{
			ID:        p.ID,
			ProductID: p.ProductID,
			Reason:    p.Reason,
			Quantity:  p.Quantity.String(),
		})
	}
	return resp
}

func disputeID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) validateBody(w http.ResponseWriter, req any) bool {
	if err := h.validate.Struct(req); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = "failed " + fe.Tag()
			}
		}
		httpx.FieldProblem(w, fields)
		return false
	}
	return true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if !h.validateBody(w, req) {
		return
	}
	input := CreateInput{
		BillID: req.BillID,
		Type:   Type(req.Type),
		Reason: req.Reason,
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			httpx.FieldProblem(w, map[string]string{"amount": "not a decimal"})
			return
		}
		input.Amount = amount
	}
	for i, p := range req.Products {
		qty, err := decimal.NewFromString(p.Quantity)
		if err != nil {
			httpx.FieldProblem(w, map[string]string{"products[" + strconv.Itoa(i) + "].quantity": "not a decimal"})
			return
		}
		input.Products = append(input.Products, ProductDraft{ProductID: p.ProductID, Reason: p.Reason, Quantity: qty})
	}
	dispute, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDisputeResponse(dispute, nil))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := disputeID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid dispute id")
		return
	}
	dispute, products, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDisputeResponse(dispute, products))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := disputeID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid dispute id")
		return
	}
	dispute, err := h.service.Start(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDisputeResponse(dispute, nil))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id, err := disputeID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid dispute id")
		return
	}
	dispute, err := h.service.Close(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDisputeResponse(dispute, nil))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := disputeID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid dispute id")
		return
	}
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if !h.validateBody(w, req) {
		return
	}
	input := ResolveInput{ResolutionNotes: req.ResolutionNotes}
	for i, ret := range req.ProductReturns {
		qty, err := decimal.NewFromString(ret.Quantity)
		if err != nil {
			httpx.FieldProblem(w, map[string]string{"productReturns[" + strconv.Itoa(i) + "].quantity": "not a decimal"})
			return
		}
		input.ProductReturns = append(input.ProductReturns, ProductReturn{ProductID: ret.ProductID, Quantity: qty})
	}
	dispute, err := h.service.Resolve(r.Context(), id, input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDisputeResponse(dispute, nil))
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDisputeNotFound), errors.Is(err, ErrBillNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyResolved), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNotesRequired), errors.Is(err, ErrInvalidReturn):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("dispute operation", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
