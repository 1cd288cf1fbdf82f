package sales

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

type fakeRepo struct {
	orders    map[int64]Order
	invoices  map[int64][]Invoice
	shipments map[int64]int64
	released  []int64
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:    make(map[int64]Order),
		invoices:  make(map[int64][]Invoice),
		shipments: make(map[int64]int64),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetOrder(_ context.Context, id int64) (Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return o, nil
}

func (f *fakeRepo) ListOrders(_ context.Context, status string) ([]Order, error) {
	var out []Order
	for _, o := range f.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetOrderLine(_ context.Context, orderID int64, productCode string) (LineItem, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return LineItem{}, shared.ErrNotFound
	}
	for _, l := range o.Lines {
		if l.ProductCode == productCode {
			return l, nil
		}
	}
	return LineItem{}, shared.ErrNotFound
}

func (f *fakeRepo) ListInvoices(_ context.Context, orderID int64) ([]Invoice, error) {
	return f.invoices[orderID], nil
}

func (f *fakeRepo) InsertOrder(_ context.Context, o Order) (int64, error) {
	f.nextID++
	o.ID = f.nextID
	f.orders[o.ID] = o
	return o.ID, nil
}

func (f *fakeRepo) InsertLineItem(_ context.Context, l LineItem) (int64, error) {
	f.nextID++
	l.ID = f.nextID
	o := f.orders[l.OrderID]
	o.Lines = append(o.Lines, l)
	f.orders[l.OrderID] = o
	return l.ID, nil
}

func (f *fakeRepo) InsertInvoice(_ context.Context, inv Invoice) (int64, error) {
	f.nextID++
	inv.ID = f.nextID
	f.invoices[inv.OrderID] = append(f.invoices[inv.OrderID], inv)
	return inv.ID, nil
}

func (f *fakeRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return f.GetOrder(ctx, id)
}

func (f *fakeRepo) CountShipments(_ context.Context, orderID int64) (int64, error) {
	return f.shipments[orderID], nil
}

func (f *fakeRepo) CountInvoices(_ context.Context, orderID int64) (int64, error) {
	return int64(len(f.invoices[orderID])), nil
}

func (f *fakeRepo) ReleaseOrderAllocations(_ context.Context, orderID int64) error {
	f.released = append(f.released, orderID)
	return nil
}

func (f *fakeRepo) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := f.orders[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func validInput() OrderInput {
	return OrderInput{
		OrderNo:    "SO-1001",
		CustomerID: 7,
		Currency:   "EUR",
		Lines: []LineInput{
			{ProductCode: "CE1034", Quantity: 500, UnitPrice: dec("12.50"), MarkingText: "ACME"},
			{ProductCode: "CE1458", Quantity: 200, UnitPrice: dec("18.00")},
		},
	}
}

func TestCreateOrderWithLines(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	order, err := svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, StatusOpen, order.Status)
	require.Len(t, order.Lines, 2)
	require.True(t, order.Lines[0].Total().Equal(dec("6250")))
}

func TestCreateOrderRejectsDuplicateProducts(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	input := validInput()
	input.Lines[1].ProductCode = "CE1034"
	_, err := svc.CreateOrder(context.Background(), input)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCreateInvoiceDefaultsToLineTotals(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	order, err := svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)

	invoice, err := svc.CreateInvoice(context.Background(), order.ID, "INV-1", decimal.Zero, 0)
	require.NoError(t, err)
	require.True(t, invoice.Total.Equal(dec("9850")), "got %s", invoice.Total)
}

func TestDeleteOrderGuards(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	order, err := svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)

	var cerr *shared.ConflictError

	repo.shipments[order.ID] = 1
	require.ErrorAs(t, svc.DeleteOrder(context.Background(), order.ID, 0), &cerr)
	repo.shipments[order.ID] = 0

	_, err = svc.CreateInvoice(context.Background(), order.ID, "INV-2", dec("100"), 0)
	require.NoError(t, err)
	require.ErrorAs(t, svc.DeleteOrder(context.Background(), order.ID, 0), &cerr)
	delete(repo.invoices, order.ID)

	o := repo.orders[order.ID]
	o.Lines[0].Delivered = 10
	repo.orders[order.ID] = o
	require.ErrorAs(t, svc.DeleteOrder(context.Background(), order.ID, 0), &cerr)
	o.Lines[0].Delivered = 0
	repo.orders[order.ID] = o

	require.NoError(t, svc.DeleteOrder(context.Background(), order.ID, 0))
	require.NotContains(t, repo.orders, order.ID)
	require.Contains(t, repo.released, order.ID)
}
