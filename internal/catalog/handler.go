package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Post("/products/bulk", h.bulkCreateProducts)
	r.Get("/products/{code}", h.getProduct)
	r.Put("/products/{code}", h.updateProduct)
	r.Post("/products/{code}/rename", h.renameProduct)
	r.Get("/products/{code}/bom", h.getBOM)
	r.Put("/products/{code}/bom", h.upsertBOM)
}

type productRequest struct {
	Code            string  `json:"code" validate:"required"`
	SteelDiameterMM float64 `json:"steel_diameter_mm" validate:"gt=0"`
	CopperCoatingUM float64 `json:"copper_coating_um" validate:"gte=0"`
	LengthMM        float64 `json:"length_mm" validate:"gt=0"`
	Threaded        bool    `json:"threaded"`
	BaseCode        string  `json:"base_code"`
	Active          *bool   `json:"active"`
}

func (req productRequest) toInput() ProductInput {
	return ProductInput{
		Code:            req.Code,
		SteelDiameterMM: decimal.NewFromFloat(req.SteelDiameterMM),
		CopperCoatingUM: decimal.NewFromFloat(req.CopperCoatingUM),
		LengthMM:        decimal.NewFromFloat(req.LengthMM),
		Threaded:        req.Threaded,
		BaseCode:        req.BaseCode,
	}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.CreateProduct(r.Context(), req.toInput())
	if err != nil {
		if errors.Is(err, ErrProductExists) || errors.Is(err, ErrBaseProductMissing) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	product, err := h.service.UpdateProduct(r.Context(), code, req.toInput(), active)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

type renameRequest struct {
	NewCode string `json:"new_code" validate:"required"`
}

func (h *Handler) renameProduct(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.RenameProduct(r.Context(), chi.URLParam(r, "code"), req.NewCode, 0); err != nil {
		if errors.Is(err, ErrProductExists) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"code": req.NewCode})
}

type bomRequest struct {
	Material   string  `json:"material" validate:"required"`
	QtyPerUnit float64 `json:"qty_per_unit" validate:"gt=0"`
}

func (h *Handler) upsertBOM(w http.ResponseWriter, r *http.Request) {
	var req bomRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry := BOMEntry{
		ProductCode: chi.URLParam(r, "code"),
		Material:    req.Material,
		QtyPerUnit:  decimal.NewFromFloat(req.QtyPerUnit),
	}
	if err := h.service.UpsertBOMEntry(r.Context(), entry); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) getBOM(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GetBOM(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) bulkCreateProducts(w http.ResponseWriter, r *http.Request) {
	var reqs []productRequest
	if err := httpx.DecodeJSON(r, &reqs); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	inputs := make([]ProductInput, 0, len(reqs))
	for _, req := range reqs {
		inputs = append(inputs, req.toInput())
	}
	httpx.JSON(w, http.StatusOK, h.service.BulkCreateProducts(r.Context(), inputs))
}
