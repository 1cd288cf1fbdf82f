package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, code string) (Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
	GetBOM(ctx context.Context, productCode string) ([]BOMEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalog operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ProductInput carries product creation/update fields.
type ProductInput struct {
	Code            string
	SteelDiameterMM decimal.Decimal
	CopperCoatingUM decimal.Decimal
	LengthMM        decimal.Decimal
	Threaded        bool
	BaseCode        string
	ActorID         int64
}

func (s *Service) validate(input ProductInput) error {
	if input.Code == "" {
		return shared.Validationf("code", "required")
	}
	if input.SteelDiameterMM.LessThanOrEqual(decimal.Zero) {
		return shared.Validationf("steel_diameter_mm", "must be > 0")
	}
	if input.CopperCoatingUM.IsNegative() {
		return shared.Validationf("copper_coating_um", "must be >= 0")
	}
	if input.LengthMM.LessThanOrEqual(decimal.Zero) {
		return shared.Validationf("length_mm", "must be > 0")
	}
	if input.Threaded && input.BaseCode == "" {
		return shared.Validationf("base_code", "required for threaded variants")
	}
	return nil
}

// CreateProduct registers a new product with its derived CBG diameter.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	if err := s.validate(input); err != nil {
		return Product{}, err
	}
	if input.BaseCode != "" {
		if _, err := s.repo.GetProduct(ctx, input.BaseCode); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Product{}, ErrBaseProductMissing
			}
			return Product{}, err
		}
	}
	product := Product{
		Code:            input.Code,
		SteelDiameterMM: input.SteelDiameterMM,
		CopperCoatingUM: input.CopperCoatingUM,
		LengthMM:        input.LengthMM,
		CBGDiameterMM:   CBGDiameter(input.SteelDiameterMM, input.CopperCoatingUM),
		Active:          true,
		Threaded:        input.Threaded,
		BaseCode:        input.BaseCode,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.ProductExists(ctx, product.Code)
		if err != nil {
			return err
		}
		if exists {
			return ErrProductExists
		}
		return tx.InsertProduct(ctx, product)
	})
	if err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, input.ActorID, "PRODUCT_CREATE", product.Code, map[string]any{"cbg_diameter_mm": product.CBGDiameterMM.String()})
	return product, nil
}

// UpdateProduct modifies dimensional fields and the active flag; the code
// itself is immutable here.
func (s *Service) UpdateProduct(ctx context.Context, code string, input ProductInput, active bool) (Product, error) {
	input.Code = code
	if err := s.validate(input); err != nil {
		return Product{}, err
	}
	existing, err := s.repo.GetProduct(ctx, code)
	if err != nil {
		return Product{}, err
	}
	existing.SteelDiameterMM = input.SteelDiameterMM
	existing.CopperCoatingUM = input.CopperCoatingUM
	existing.LengthMM = input.LengthMM
	existing.CBGDiameterMM = CBGDiameter(input.SteelDiameterMM, input.CopperCoatingUM)
	existing.Active = active
	existing.Threaded = input.Threaded
	existing.BaseCode = input.BaseCode
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateProduct(ctx, existing)
	})
	if err != nil {
		return Product{}, err
	}
	return existing, nil
}

// GetProduct returns a product by code.
func (s *Service) GetProduct(ctx context.Context, code string) (Product, error) {
	return s.repo.GetProduct(ctx, code)
}

// ListProducts lists the catalog.
func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}

// UpsertBOMEntry sets the per-unit consumption of a material for a
// product. Zero or negative quantities are rejected.
func (s *Service) UpsertBOMEntry(ctx context.Context, entry BOMEntry) error {
	if entry.ProductCode == "" {
		return shared.Validationf("product_code", "required")
	}
	if entry.Material == "" {
		return shared.Validationf("material", "required")
	}
	if entry.QtyPerUnit.LessThanOrEqual(decimal.Zero) {
		return shared.Validationf("qty_per_unit", "must be > 0")
	}
	if _, err := s.repo.GetProduct(ctx, entry.ProductCode); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpsertBOMEntry(ctx, entry)
	})
}

// GetBOM returns the bill of materials for a product.
func (s *Service) GetBOM(ctx context.Context, productCode string) ([]BOMEntry, error) {
	if _, err := s.repo.GetProduct(ctx, productCode); err != nil {
		return nil, err
	}
	return s.repo.GetBOM(ctx, productCode)
}

// RenameProduct rewrites a product code across every referencing table in
// one transaction. Either all references move or none do.
func (s *Service) RenameProduct(ctx context.Context, oldCode, newCode string, actorID int64) error {
	if oldCode == "" || newCode == "" {
		return shared.Validationf("code", "old and new codes required")
	}
	if oldCode == newCode {
		return shared.Validationf("new_code", "must differ from the current code")
	}
	if _, err := s.repo.GetProduct(ctx, oldCode); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.ProductExists(ctx, newCode)
		if err != nil {
			return err
		}
		if exists {
			return ErrProductExists
		}
		if err := tx.CopyProduct(ctx, oldCode, newCode); err != nil {
			return err
		}
		if err := tx.RewriteProductReferences(ctx, oldCode, newCode); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, oldCode)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PRODUCT_RENAME", newCode, map[string]any{"old_code": oldCode})
	return nil
}

// BulkCreateProducts processes each row independently and reports per-row
// outcomes.
func (s *Service) BulkCreateProducts(ctx context.Context, inputs []ProductInput) []shared.BatchResult {
	results := make([]shared.BatchResult, 0, len(inputs))
	for i, input := range inputs {
		id := input.Code
		if id == "" {
			id = "row " + strconv.Itoa(i)
		}
		if _, err := s.CreateProduct(ctx, input); err != nil {
			results = append(results, shared.BatchResult{ID: id, OK: false, Error: err.Error()})
			continue
		}
		results = append(results, shared.BatchResult{ID: id, OK: true})
	}
	return results
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, code string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("catalog:%s", action),
		Entity:   "product",
		EntityID: code,
		Meta:     meta,
	})
}
