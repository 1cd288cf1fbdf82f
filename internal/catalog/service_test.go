package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeRepo struct {
	products map[string]Product
	boms     map[string][]BOMEntry
	// references simulates the tables carrying product codes; rename
	// rewrites them.
	references map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products:   make(map[string]Product),
		boms:       make(map[string][]BOMEntry),
		references: make(map[string]string),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetProduct(_ context.Context, code string) (Product, error) {
	p, ok := f.products[code]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListProducts(_ context.Context, activeOnly bool) ([]Product, error) {
	var out []Product
	for _, p := range f.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) GetBOM(_ context.Context, productCode string) ([]BOMEntry, error) {
	return f.boms[productCode], nil
}

func (f *fakeRepo) ProductExists(_ context.Context, code string) (bool, error) {
	_, ok := f.products[code]
	return ok, nil
}

func (f *fakeRepo) InsertProduct(_ context.Context, p Product) error {
	f.products[p.Code] = p
	return nil
}

func (f *fakeRepo) UpdateProduct(_ context.Context, p Product) error {
	if _, ok := f.products[p.Code]; !ok {
		return shared.ErrNotFound
	}
	f.products[p.Code] = p
	return nil
}

func (f *fakeRepo) UpsertBOMEntry(_ context.Context, entry BOMEntry) error {
	entries := f.boms[entry.ProductCode]
	for i, e := range entries {
		if e.Material == entry.Material {
			entries[i] = entry
			f.boms[entry.ProductCode] = entries
			return nil
		}
	}
	f.boms[entry.ProductCode] = append(entries, entry)
	return nil
}

func (f *fakeRepo) CopyProduct(_ context.Context, oldCode, newCode string) error {
	p := f.products[oldCode]
	p.Code = newCode
	f.products[newCode] = p
	return nil
}

func (f *fakeRepo) RewriteProductReferences(_ context.Context, oldCode, newCode string) error {
	for table, code := range f.references {
		if code == oldCode {
			f.references[table] = newCode
		}
	}
	return nil
}

func (f *fakeRepo) DeleteProduct(_ context.Context, code string) error {
	if _, ok := f.products[code]; !ok {
		return shared.ErrNotFound
	}
	delete(f.products, code)
	return nil
}

func validInput() ProductInput {
	return ProductInput{
		Code:            "CE1034",
		SteelDiameterMM: dec("14.2"),
		CopperCoatingUM: dec("254"),
		LengthMM:        dec("3000"),
	}
}

func TestCreateProductDerivesCBGDiameter(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	p, err := svc.CreateProduct(context.Background(), validInput())
	require.NoError(t, err)
	// 14.2 + 2*254/1000
	require.True(t, p.CBGDiameterMM.Equal(dec("14.708")), "got %s", p.CBGDiameterMM)
	require.True(t, p.Active)
}

func TestCreateProductDuplicateCode(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.CreateProduct(context.Background(), validInput())
	require.NoError(t, err)
	_, err = svc.CreateProduct(context.Background(), validInput())
	require.ErrorIs(t, err, ErrProductExists)
}

func TestCreateThreadedVariant(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	input := validInput()
	input.Code = "CE1034T"
	input.Threaded = true

	_, err := svc.CreateProduct(context.Background(), input)
	require.Error(t, err, "threaded without base_code")

	input.BaseCode = "CE1034"
	_, err = svc.CreateProduct(context.Background(), input)
	require.ErrorIs(t, err, ErrBaseProductMissing)

	_, err = svc.CreateProduct(context.Background(), validInput())
	require.NoError(t, err)
	p, err := svc.CreateProduct(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "CE1034", p.BaseCode)
}

func TestRenameProductCascades(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.CreateProduct(context.Background(), validInput())
	require.NoError(t, err)
	repo.references["order_line_items"] = "CE1034"
	repo.references["stage_inventory"] = "CE1034"

	require.NoError(t, svc.RenameProduct(context.Background(), "CE1034", "CE1034R", 0))

	_, ok := repo.products["CE1034"]
	require.False(t, ok, "old code should be gone")
	_, ok = repo.products["CE1034R"]
	require.True(t, ok)
	require.Equal(t, "CE1034R", repo.references["order_line_items"])
	require.Equal(t, "CE1034R", repo.references["stage_inventory"])
}

func TestRenameProductTargetTaken(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.CreateProduct(context.Background(), validInput())
	require.NoError(t, err)
	other := validInput()
	other.Code = "CE1458"
	_, err = svc.CreateProduct(context.Background(), other)
	require.NoError(t, err)

	err = svc.RenameProduct(context.Background(), "CE1034", "CE1458", 0)
	require.ErrorIs(t, err, ErrProductExists)
	_, ok := repo.products["CE1034"]
	require.True(t, ok, "source must survive a failed rename")
}

func TestBulkCreateProductsReportsPerRow(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	bad := validInput()
	bad.SteelDiameterMM = decimal.Zero
	dup := validInput()

	results := svc.BulkCreateProducts(context.Background(), []ProductInput{validInput(), dup, bad})
	require.Len(t, results, 3)
	require.True(t, results[0].OK)
	require.False(t, results[1].OK)
	require.False(t, results[2].OK)
}

func TestUpsertBOMEntry(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.CreateProduct(context.Background(), validInput())
	require.NoError(t, err)

	entry := BOMEntry{ProductCode: "CE1034", Material: "STEEL_ROD_14MM", QtyPerUnit: dec("4.75")}
	require.NoError(t, svc.UpsertBOMEntry(context.Background(), entry))

	entry.QtyPerUnit = dec("4.8")
	require.NoError(t, svc.UpsertBOMEntry(context.Background(), entry))

	bom, err := svc.GetBOM(context.Background(), "CE1034")
	require.NoError(t, err)
	require.Len(t, bom, 1)
	require.True(t, bom[0].QtyPerUnit.Equal(dec("4.8")))

	entry.QtyPerUnit = decimal.Zero
	require.Error(t, svc.UpsertBOMEntry(context.Background(), entry))

	entry.ProductCode = "UNKNOWN"
	entry.QtyPerUnit = dec("1")
	require.ErrorIs(t, svc.UpsertBOMEntry(context.Background(), entry), shared.ErrNotFound)
}
