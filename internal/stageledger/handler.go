package stageledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stage ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs stage ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stage ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.listCounters)
	r.Get("/stock/{code}", h.getCounters)
	r.Post("/entries", h.recordProduction)
	r.Get("/entries", h.listEntries)
	r.Get("/entries/{id}", h.getEntry)
	r.Delete("/entries/{id}", h.deleteEntry)
	r.Post("/entries/bulk-delete", h.bulkDeleteEntries)
	r.Post("/adjustments", h.adjustStock)
	r.Get("/adjustments", h.listAdjustments)
	r.Delete("/adjustments/{id}", h.deleteAdjustment)
}

type productionRequest struct {
	ProductCode string           `json:"product_code" validate:"required"`
	EntryDate   string           `json:"entry_date"`
	StageDeltas map[string]int64 `json:"stage_deltas"`
	Rejected    int64            `json:"rejected" validate:"gte=0"`
	Notes       string           `json:"notes"`
}

func (h *Handler) recordProduction(w http.ResponseWriter, r *http.Request) {
	var req productionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ProductionInput{
		ProductCode: req.ProductCode,
		StageDeltas: req.StageDeltas,
		Rejected:    req.Rejected,
		Notes:       req.Notes,
	}
	if req.EntryDate != "" {
		date, err := time.Parse("2006-01-02", req.EntryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry_date must be YYYY-MM-DD")
			return
		}
		input.EntryDate = date
	}
	entry, err := h.service.RecordProduction(r.Context(), input)
	if err != nil {
		h.logger.Error("record production", slog.String("product", req.ProductCode), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	if err := h.service.DeleteProductionEntry(r.Context(), id, 0); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

func (h *Handler) bulkDeleteEntries(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.BulkDeleteProductionEntries(r.Context(), req.IDs, 0))
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, consumed, err := h.service.GetProductionEntry(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entry": entry, "consumption": consumed})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("product_code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_code query parameter required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListProductionEntries(r.Context(), code, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) getCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.service.GetCounters(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, counters)
}

func (h *Handler) listCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.service.ListCounters(r.Context())
	if err != nil {
		h.logger.Error("list stage inventory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, counters)
}

type adjustmentRequest struct {
	ProductCode string `json:"product_code" validate:"required"`
	Stage       string `json:"stage" validate:"required"`
	Delta       int64  `json:"delta" validate:"required"`
	Type        string `json:"type" validate:"required"`
	Reason      string `json:"reason"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	adj, err := h.service.AdjustStock(r.Context(), AdjustmentInput{
		ProductCode: req.ProductCode,
		Stage:       req.Stage,
		Delta:       req.Delta,
		Type:        AdjustmentType(req.Type),
		Reason:      req.Reason,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, adj)
}

func (h *Handler) deleteAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid adjustment id")
		return
	}
	if err := h.service.DeleteAdjustment(r.Context(), id, 0); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAdjustments(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("product_code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_code query parameter required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	adjustments, err := h.service.ListAdjustments(r.Context(), code, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, adjustments)
}
