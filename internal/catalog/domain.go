package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product describes a copper-bonded ground rod variant. Code is the stable
// key referenced by every ledger table; it only changes through the rename
// cascade.
type Product struct {
	Code            string          `json:"code"`
	SteelDiameterMM decimal.Decimal `json:"steel_diameter_mm"`
	CopperCoatingUM decimal.Decimal `json:"copper_coating_um"`
	LengthMM        decimal.Decimal `json:"length_mm"`
	CBGDiameterMM   decimal.Decimal `json:"cbg_diameter_mm"`
	Active          bool            `json:"active"`
	Threaded        bool            `json:"threaded"`
	BaseCode        string          `json:"base_code,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// BOMEntry maps one raw material to the quantity consumed per finished
// unit of a product. Unique per (product, material).
type BOMEntry struct {
	ProductCode string          `json:"product_code"`
	Material    string          `json:"material"`
	QtyPerUnit  decimal.Decimal `json:"qty_per_unit"`
}

// CBGDiameter derives the finished rod diameter from the steel core and
// the copper coating thickness (micron, applied on both sides).
func CBGDiameter(steelMM, coatingUM decimal.Decimal) decimal.Decimal {
	return steelMM.Add(coatingUM.Mul(decimal.NewFromInt(2)).Div(decimal.NewFromInt(1000)))
}

// ErrProductExists indicates a duplicate product code.
var ErrProductExists = errors.New("catalog: product code already exists")

// ErrBaseProductMissing indicates a threaded variant referencing an
// unknown base product.
var ErrBaseProductMissing = errors.New("catalog: base product not found")
