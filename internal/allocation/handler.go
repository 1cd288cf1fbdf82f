package allocation

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the allocation module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs allocation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers allocation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/allocations", h.list)
	r.Get("/allocations/{id}", h.get)
	r.Post("/allocations", h.allocate)
	r.Delete("/allocations/{id}", h.release)
}

type allocateRequest struct {
	ProductCode string `json:"product_code" validate:"required"`
	Stage       string `json:"stage" validate:"required"`
	MarkingType string `json:"marking_type" validate:"required"`
	MarkingText string `json:"marking_text"`
	Quantity    int64  `json:"quantity" validate:"gt=0"`
	OrderID     int64  `json:"order_id"`
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	alloc, err := h.service.Allocate(r.Context(), AllocateInput{
		ProductCode: req.ProductCode,
		Stage:       req.Stage,
		MarkingType: req.MarkingType,
		MarkingText: req.MarkingText,
		Quantity:    req.Quantity,
		OrderID:     req.OrderID,
	})
	if err != nil {
		h.logger.Error("allocate", slog.String("product", req.ProductCode), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, alloc)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid allocation id")
		return
	}
	if err := h.service.Release(r.Context(), id, 0); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid allocation id")
		return
	}
	alloc, err := h.service.GetAllocation(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, alloc)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.service.ListAllocations(r.Context(), r.URL.Query().Get("product_code"), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("list allocations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, allocs)
}
