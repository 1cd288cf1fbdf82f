package shipment

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the shipment module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs shipment handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers shipment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/shipments", h.list)
	r.Post("/shipments", h.record)
	r.Get("/shipments/{id}", h.get)
	r.Delete("/shipments/{id}", h.delete)
}

type itemRequest struct {
	ProductCode string `json:"product_code" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"gt=0"`
}

type shipmentRequest struct {
	OrderID  int64         `json:"order_id" validate:"gt=0"`
	ShipDate string        `json:"ship_date"`
	Carrier  string        `json:"carrier"`
	BLNumber string        `json:"bl_number"`
	Notes    string        `json:"notes"`
	Items    []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req shipmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ShipmentInput{
		OrderID:        req.OrderID,
		Carrier:        req.Carrier,
		BLNumber:       req.BLNumber,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.ShipDate != "" {
		date, err := time.Parse("2006-01-02", req.ShipDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ship_date must be YYYY-MM-DD")
			return
		}
		input.ShipDate = date
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput{ProductCode: item.ProductCode, Quantity: item.Quantity})
	}
	shipment, err := h.service.RecordShipment(r.Context(), input)
	if err != nil {
		h.logger.Error("record shipment", slog.Int64("order_id", req.OrderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shipment)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shipment id")
		return
	}
	if err := h.service.DeleteShipment(r.Context(), id, 0); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shipment id")
		return
	}
	shipment, err := h.service.GetShipment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipment)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orderID, _ := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	shipments, err := h.service.ListShipments(r.Context(), orderID)
	if err != nil {
		h.logger.Error("list shipments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipments)
}
