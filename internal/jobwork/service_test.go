package jobwork

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

type fakeRepo struct {
	orders      map[int64]Order
	receipts    map[int64]Receipt
	counters    map[string]int64 // key product|stage
	allocations map[string]int64
	nextID      int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:      make(map[int64]Order),
		receipts:    make(map[int64]Receipt),
		counters:    make(map[string]int64),
		allocations: make(map[string]int64),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := f.clone()
	if err := fn(ctx, f); err != nil {
		*f = *snapshot
		return err
	}
	return nil
}

func (f *fakeRepo) clone() *fakeRepo {
	c := newFakeRepo()
	c.nextID = f.nextID
	for k, v := range f.orders {
		o := v
		o.Items = append([]Item(nil), v.Items...)
		c.orders[k] = o
	}
	for k, v := range f.receipts {
		r := v
		r.Items = append([]ReceiptItem(nil), v.Items...)
		c.receipts[k] = r
	}
	for k, v := range f.counters {
		c.counters[k] = v
	}
	for k, v := range f.allocations {
		c.allocations[k] = v
	}
	return c
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

func (f *fakeRepo) GetReceipt(_ context.Context, id int64) (Receipt, error) {
	r, ok := f.receipts[id]
	if !ok {
		return Receipt{}, shared.ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) ListReceipts(_ context.Context, orderID int64) ([]Receipt, error) {
	var out []Receipt
	for _, r := range f.receipts {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertOrder(_ context.Context, o Order) (int64, error) {
	f.nextID++
	o.ID = f.nextID
	f.orders[o.ID] = o
	return o.ID, nil
}

func (f *fakeRepo) InsertOrderItem(_ context.Context, item Item) (int64, error) {
	f.nextID++
	item.ID = f.nextID
	o := f.orders[item.OrderID]
	o.Items = append(o.Items, item)
	f.orders[item.OrderID] = o
	return item.ID, nil
}

func (f *fakeRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return f.GetOrder(ctx, id)
}

func (f *fakeRepo) SetOrderStatus(_ context.Context, id int64, status string) error {
	o, ok := f.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	o.Status = status
	f.orders[id] = o
	return nil
}

func (f *fakeRepo) InsertReceipt(_ context.Context, r Receipt) (int64, error) {
	f.nextID++
	r.ID = f.nextID
	f.receipts[r.ID] = r
	return r.ID, nil
}

func (f *fakeRepo) InsertReceiptItem(_ context.Context, item ReceiptItem) (int64, error) {
	f.nextID++
	item.ID = f.nextID
	r := f.receipts[item.ReceiptID]
	r.Items = append(r.Items, item)
	f.receipts[item.ReceiptID] = r
	return item.ID, nil
}

func (f *fakeRepo) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	return f.GetReceipt(ctx, id)
}

func (f *fakeRepo) DeleteReceipt(_ context.Context, id int64) error {
	if _, ok := f.receipts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.receipts, id)
	return nil
}

func (f *fakeRepo) GetStageCounterForUpdate(_ context.Context, product, stage string) (int64, error) {
	return f.counters[product+"|"+stage], nil
}

func (f *fakeRepo) AddStageCounter(_ context.Context, product, stage string, delta int64) error {
	f.counters[product+"|"+stage] += delta
	return nil
}

func (f *fakeRepo) SumActiveAllocations(_ context.Context, product, stage string) (int64, error) {
	return f.allocations[product+"|"+stage], nil
}

func openOrder(t *testing.T, svc *Service) Order {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), OrderInput{
		Vendor: "Precision Platers",
		Items:  []ItemInput{{ProductCode: "CE1034", Quantity: 500}},
	})
	require.NoError(t, err)
	return order
}

func TestReceiveCreditsReceiveStage(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, stageledger.StageCores)
	order := openOrder(t, svc)

	receipt, err := svc.Receive(context.Background(), ReceiveInput{
		OrderID: order.ID,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 200}},
	})
	require.NoError(t, err)
	require.Equal(t, stageledger.StageCores, receipt.Items[0].Stage)
	require.EqualValues(t, 200, repo.counters["CE1034|"+stageledger.StageCores])
}

func TestReceiveOnClosedOrderRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, stageledger.StageCores)
	order := openOrder(t, svc)

	require.NoError(t, svc.CloseOrder(context.Background(), order.ID, 0))

	_, err := svc.Receive(context.Background(), ReceiveInput{
		OrderID: order.ID,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 10}},
	})
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
}

func TestDeleteReceiptReversesCredit(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, stageledger.StageCores)
	order := openOrder(t, svc)

	receipt, err := svc.Receive(context.Background(), ReceiveInput{
		OrderID: order.ID,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 200}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReceipt(context.Background(), receipt.ID, 0))
	require.EqualValues(t, 0, repo.counters["CE1034|"+stageledger.StageCores])
	require.Empty(t, repo.receipts)
}

func TestDeleteReceiptBlockedWhenStockConsumed(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, stageledger.StageCores)
	order := openOrder(t, svc)

	receipt, err := svc.Receive(context.Background(), ReceiveInput{
		OrderID: order.ID,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 200}},
	})
	require.NoError(t, err)

	// Production already moved 150 cores downstream.
	repo.counters["CE1034|"+stageledger.StageCores] = 50

	err = svc.DeleteReceipt(context.Background(), receipt.ID, 0)
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
	require.Contains(t, repo.receipts, receipt.ID)
	require.EqualValues(t, 50, repo.counters["CE1034|"+stageledger.StageCores])
}

func TestAddItemOnlyOnOpenOrders(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, stageledger.StageCores)
	order := openOrder(t, svc)

	_, err := svc.AddItem(context.Background(), order.ID, ItemInput{ProductCode: "CE1458", Quantity: 100}, 0)
	require.NoError(t, err)

	require.NoError(t, svc.CloseOrder(context.Background(), order.ID, 0))

	_, err = svc.AddItem(context.Background(), order.ID, ItemInput{ProductCode: "CE1458", Quantity: 50}, 0)
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
}
