package bills

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/disputes"
	"github.com/gastrodesk/gastrodesk/internal/dlc"
	"github.com/gastrodesk/gastrodesk/internal/extraction"
	"github.com/gastrodesk/gastrodesk/internal/platform/httpx"
	"github.com/gastrodesk/gastrodesk/internal/units"
)

// Handler wires HTTP endpoints for bills.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs bill handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers bill routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/suggestions", h.handleSuggest)
	r.Post("/{id}/confirm", h.handleConfirm)
}

type createRequest struct {
	SourceFile string                   `json:"sourceFile" validate:"required"`
	Extracted  extraction.ExtractedBill `json:"extracted"`
}

type dlcRequest struct {
	ExpirationDate string `json:"expirationDate" validate:"required"`
	Quantity       string `json:"quantity" validate:"required"`
}

type confirmLineRequest struct {
	ProductID *int64      `json:"productId,omitempty"`
	Name      string      `json:"name"`
	Quantity  string      `json:"quantity" validate:"required"`
	Unit      string      `json:"unit" validate:"required"`
	UnitPrice string      `json:"unitPrice,omitempty"`
	DLC       *dlcRequest `json:"dlc,omitempty"`
}

type disputeProductRequest struct {
	LineIndex int    `json:"lineIndex"`
	Reason    string `json:"reason"`
	Quantity  string `json:"quantity" validate:"required"`
}

type disputeRequest struct {
	Type     string                  `json:"type" validate:"required,oneof=RETURN COMPLAINT REFUND"`
	Amount   string                  `json:"amount"`
	Reason   string                  `json:"reason" validate:"required"`
	Products []disputeProductRequest `json:"products"`
}

type confirmRequest struct {
	Supplier      string               `json:"supplier" validate:"required"`
	SupplierEmail string               `json:"supplierEmail" validate:"omitempty,email"`
	BillDate      string               `json:"billDate" validate:"required"`
	TotalAmount   string               `json:"totalAmount" validate:"required"`
	Lines         []confirmLineRequest `json:"lines" validate:"required,min=1,dive"`
	Dispute       *disputeRequest      `json:"dispute,omitempty"`
}

type lineItemResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Quantity          string `json:"quantity"`
	Unit              string `json:"unit"`
	UnitPrice         string `json:"unitPrice,omitempty"`
	ProductID         *int64 `json:"productId,omitempty"`
	ConvertedQuantity string `json:"convertedQuantity,omitempty"`
	CanonicalUnit     string `json:"canonicalUnit,omitempty"`
}

type billResponse struct {
	ID            int64              `json:"id"`
	SourceFile    string             `json:"sourceFile"`
	SourceRef     string             `json:"sourceRef"`
	Supplier      string             `json:"supplier,omitempty"`
	SupplierEmail string             `json:"supplierEmail,omitempty"`
	BillDate      *string            `json:"billDate,omitempty"`
	TotalAmount   string             `json:"totalAmount"`
	Status        string             `json:"status"`
	CreatedAt     string             `json:"createdAt"`
	Lines         []lineItemResponse `json:"lines,omitempty"`
}

type suggestionResponse struct {
	LineID            int64   `json:"lineId"`
	Name              string  `json:"name"`
	Action            string  `json:"action"`
	ProductID         *int64  `json:"productId,omitempty"`
	ProductName       string  `json:"productName,omitempty"`
	MatchScore        float64 `json:"matchScore,omitempty"`
	ConvertedQuantity string  `json:"convertedQuantity"`
	CanonicalUnit     string  `json:"canonicalUnit,omitempty"`
	Conversion        string  `json:"conversion,omitempty"`
	Incompatible      bool    `json:"incompatible,omitempty"`
	UnitError         string  `json:"unitError,omitempty"`
}

func toLineItemResponse(item LineItem) lineItemResponse {
	resp := lineItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Quantity:  item.Quantity.String(),
		Unit:      item.Unit,
		ProductID: item.ProductID,
	}
	if item.UnitPrice != nil {
		resp.UnitPrice = item.UnitPrice.String()
	}
	if item.ConvertedQuantity != nil {
		resp.ConvertedQuantity = item.ConvertedQuantity.String()
	}
	if item.CanonicalUnit != nil {
		resp.CanonicalUnit = string(*item.CanonicalUnit)
	}
	return resp
}

func toBillResponse(bill Bill, items []LineItem) billResponse {
	resp := billResponse{
		ID:            bill.ID,
		SourceFile:    bill.SourceFile,
		SourceRef:     bill.SourceRef,
		Supplier:      bill.Supplier,
		SupplierEmail: bill.SupplierEmail,
		TotalAmount:   bill.TotalAmount.String(),
		Status:        string(bill.Status),
		CreatedAt:     bill.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if bill.BillDate != nil {
		date := bill.BillDate.UTC().Format("2006-01-02")
		resp.BillDate = &date
	}
	for _, item := range items {
		resp.Lines = append(resp.Lines, toLineItemResponse(item))
	}
	return resp
}

func billID(r *http.Request) (int64, error) {
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
	bill, items, err := h.service.CreateFromExtraction(r.Context(), req.SourceFile, req.Extracted)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBillResponse(bill, items))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	bills, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	out := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		out = append(out, toBillResponse(b, nil))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid bill id")
		return
	}
	bill, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBillResponse(bill, items))
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid bill id")
		return
	}
	suggestions, err := h.service.Suggest(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	out := make([]suggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		resp := suggestionResponse{
			LineID:            s.Line.ID,
			Name:              s.Line.Name,
			Action:            string(s.Decision.Action),
			ProductID:         s.Decision.ProductID,
			ProductName:       s.Decision.ProductName,
			MatchScore:        s.Decision.MatchScore,
			ConvertedQuantity: s.Decision.ConvertedQuantity.String(),
			Conversion:        s.Decision.Conversion,
			Incompatible:      s.Decision.Incompatible,
			UnitError:         s.Decision.UnitError,
		}
		if s.Decision.CanonicalUnit != "" {
			resp.CanonicalUnit = string(s.Decision.CanonicalUnit)
		}
		out = append(out, resp)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid bill id")
		return
	}
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if !h.validateBody(w, req) {
		return
	}
	input, fields := req.toInput()
	if len(fields) > 0 {
		httpx.FieldProblem(w, fields)
		return
	}
	bill, err := h.service.Confirm(r.Context(), id, input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBillResponse(bill, nil))
}

func (req confirmRequest) toInput() (ConfirmInput, map[string]string) {
	fields := map[string]string{}
	input := ConfirmInput{
		Supplier:      req.Supplier,
		SupplierEmail: req.SupplierEmail,
	}
	date, err := time.Parse("2006-01-02", req.BillDate)
	if err != nil {
		fields["billDate"] = "expected YYYY-MM-DD"
	} else {
		input.BillDate = date
	}
	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		fields["totalAmount"] = "not a decimal"
	} else {
		input.TotalAmount = total
	}
	for i, line := range req.Lines {
		field := "lines[" + strconv.Itoa(i) + "]"
		cl := ConfirmLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Unit:      units.Unit(line.Unit),
		}
		qty, err := decimal.NewFromString(line.Quantity)
		if err != nil {
			fields[field+".quantity"] = "not a decimal"
		} else {
			cl.Quantity = qty
		}
		if line.UnitPrice != "" {
			price, err := decimal.NewFromString(line.UnitPrice)
			if err != nil {
				fields[field+".unitPrice"] = "not a decimal"
			} else {
				cl.UnitPrice = &price
			}
		}
		if line.DLC != nil {
			draft := dlc.Draft{}
			expires, err := time.Parse("2006-01-02", line.DLC.ExpirationDate)
			if err != nil {
				fields[field+".dlc.expirationDate"] = "expected YYYY-MM-DD"
			} else {
				draft.ExpirationDate = expires
			}
			dlcQty, err := decimal.NewFromString(line.DLC.Quantity)
			if err != nil {
				fields[field+".dlc.quantity"] = "not a decimal"
			} else {
				draft.Quantity = dlcQty
			}
			cl.DLC = &draft
		}
		input.Lines = append(input.Lines, cl)
	}
	if req.Dispute != nil {
		draft := DisputeDraft{
			Type:   disputes.Type(req.Dispute.Type),
			Reason: req.Dispute.Reason,
		}
		if req.Dispute.Amount != "" {
			amount, err := decimal.NewFromString(req.Dispute.Amount)
			if err != nil {
				fields["dispute.amount"] = "not a decimal"
			} else {
				draft.Amount = amount
			}
		}
		for i, p := range req.Dispute.Products {
			field := "dispute.products[" + strconv.Itoa(i) + "]"
			dp := DisputeProductDraft{LineIndex: p.LineIndex, Reason: p.Reason}
			qty, err := decimal.NewFromString(p.Quantity)
			if err != nil {
				fields[field+".quantity"] = "not a decimal"
			} else {
				dp.Quantity = qty
			}
			draft.Products = append(draft.Products, dp)
		}
		input.Dispute = &draft
	}
	return input, fields
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs):
		httpx.FieldProblem(w, verrs)
	case errors.Is(err, extraction.ErrNoContent):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, ErrBillNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyProcessed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("bill operation", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
