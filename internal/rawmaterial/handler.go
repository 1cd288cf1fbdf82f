package rawmaterial

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the raw-material module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs raw-material handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers raw-material routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/raw-materials", h.listStocks)
	r.Get("/raw-materials/{material}", h.getStock)
	r.Get("/raw-materials/{material}/receipts", h.listReceipts)
	r.Post("/raw-materials/receipts", h.receive)
	r.Post("/raw-materials/reservations", h.reserve)
	r.Delete("/raw-materials/reservations", h.unreserve)
}

type receiveRequest struct {
	Material string  `json:"material" validate:"required"`
	Qty      float64 `json:"qty" validate:"gt=0"`
	UnitCost float64 `json:"unit_cost" validate:"gte=0"`
	Note     string  `json:"note"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	stock, err := h.service.Receive(r.Context(), ReceiveInput{
		Material: req.Material,
		Qty:      decimal.NewFromFloat(req.Qty),
		UnitCost: decimal.NewFromFloat(req.UnitCost),
		Note:     req.Note,
	})
	if err != nil {
		h.logger.Error("receive raw material", slog.String("material", req.Material), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, stock)
}

type reservationRequest struct {
	Material string  `json:"material" validate:"required"`
	Qty      float64 `json:"qty" validate:"gt=0"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	stock, err := h.service.Reserve(r.Context(), req.Material, decimal.NewFromFloat(req.Qty), 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) unreserve(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	stock, err := h.service.Unreserve(r.Context(), req.Material, decimal.NewFromFloat(req.Qty), 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.service.GetStock(r.Context(), chi.URLParam(r, "material"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) listStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.ListStocks(r.Context())
	if err != nil {
		h.logger.Error("list raw materials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stocks)
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	receipts, err := h.service.ListReceipts(r.Context(), chi.URLParam(r, "material"), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipts)
}
