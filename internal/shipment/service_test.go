package shipment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

type fakeLine struct {
	id        int64
	orderID   int64
	product   string
	quantity  int64
	delivered int64
}

type fakeAlloc struct {
	id       int64
	product  string
	orderID  int64
	quantity int64
	status   string
}

type fakeRepo struct {
	lines     []fakeLine
	packed    map[string]int64
	allocs    []fakeAlloc
	shipments map[int64]Shipment
	statuses  map[int64]string
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		packed:    make(map[string]int64),
		shipments: make(map[int64]Shipment),
		statuses:  make(map[int64]string),
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
	c.lines = append([]fakeLine(nil), f.lines...)
	c.allocs = append([]fakeAlloc(nil), f.allocs...)
	for k, v := range f.packed {
		c.packed[k] = v
	}
	for k, v := range f.shipments {
		s := v
		s.Items = append([]Item(nil), v.Items...)
		c.shipments[k] = s
	}
	for k, v := range f.statuses {
		c.statuses[k] = v
	}
	return c
}

func (f *fakeRepo) GetShipment(_ context.Context, id int64) (Shipment, error) {
	s, ok := f.shipments[id]
	if !ok {
		return Shipment{}, shared.ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) ListShipments(_ context.Context, orderID int64) ([]Shipment, error) {
	var out []Shipment
	for _, s := range f.shipments {
		if orderID == 0 || s.OrderID == orderID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetOrderLineForUpdate(_ context.Context, orderID int64, product string) (OrderLine, error) {
	for _, l := range f.lines {
		if l.orderID == orderID && l.product == product {
			return OrderLine{ID: l.id, Quantity: l.quantity, Delivered: l.delivered}, nil
		}
	}
	return OrderLine{}, shared.ErrNotFound
}

func (f *fakeRepo) AddDelivered(_ context.Context, lineID, delta int64) error {
	for i := range f.lines {
		if f.lines[i].id == lineID {
			f.lines[i].delivered += delta
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) RefreshOrderStatus(_ context.Context, orderID int64) error {
	status := "FULFILLED"
	for _, l := range f.lines {
		if l.orderID == orderID && l.delivered < l.quantity {
			status = "OPEN"
		}
	}
	f.statuses[orderID] = status
	return nil
}

func (f *fakeRepo) GetPackedForUpdate(_ context.Context, product string) (int64, error) {
	return f.packed[product], nil
}

func (f *fakeRepo) AddPacked(_ context.Context, product string, delta int64) error {
	f.packed[product] += delta
	return nil
}

func (f *fakeRepo) FindActiveAllocation(_ context.Context, product string, orderID int64) (AllocationRef, bool, error) {
	for _, a := range f.allocs {
		if a.product == product && a.orderID == orderID && a.status == "ACTIVE" {
			return AllocationRef{ID: a.id, Quantity: a.quantity}, true, nil
		}
	}
	return AllocationRef{}, false, nil
}

func (f *fakeRepo) SumActiveAllocations(_ context.Context, product, _ string) (int64, error) {
	var sum int64
	for _, a := range f.allocs {
		if a.product == product && a.status == "ACTIVE" {
			sum += a.quantity
		}
	}
	return sum, nil
}

func (f *fakeRepo) ConsumeAllocation(_ context.Context, id, qty int64) error {
	for i := range f.allocs {
		if f.allocs[i].id == id {
			f.allocs[i].quantity -= qty
			if f.allocs[i].quantity == 0 {
				f.allocs[i].status = "CONSUMED"
			}
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) RestoreAllocation(_ context.Context, id, qty int64) error {
	for i := range f.allocs {
		if f.allocs[i].id == id {
			f.allocs[i].quantity += qty
			f.allocs[i].status = "ACTIVE"
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) InsertShipment(_ context.Context, s Shipment) (int64, error) {
	f.nextID++
	s.ID = f.nextID
	f.shipments[s.ID] = s
	return s.ID, nil
}

func (f *fakeRepo) InsertShipmentItem(_ context.Context, item Item) (int64, error) {
	f.nextID++
	item.ID = f.nextID
	s := f.shipments[item.ShipmentID]
	s.Items = append(s.Items, item)
	f.shipments[item.ShipmentID] = s
	return item.ID, nil
}

func (f *fakeRepo) GetShipmentForUpdate(ctx context.Context, id int64) (Shipment, error) {
	return f.GetShipment(ctx, id)
}

func (f *fakeRepo) DeleteShipment(_ context.Context, id int64) error {
	if _, ok := f.shipments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.shipments, id)
	return nil
}

type fakeIdem struct {
	keys map[string]bool
}

func (f *fakeIdem) CheckAndInsert(_ context.Context, key, _ string) error {
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdem) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

func seedOrder(repo *fakeRepo) {
	repo.lines = []fakeLine{{id: 1, orderID: 10, product: "CE1034", quantity: 100}}
	repo.packed["CE1034"] = 30
	repo.allocs = []fakeAlloc{{id: 5, product: "CE1034", orderID: 10, quantity: 30, status: "ACTIVE"}}
	repo.nextID = 100
}

func TestRecordShipmentOverPackedRejected(t *testing.T) {
	repo := newFakeRepo()
	seedOrder(repo)
	svc := NewService(repo, nil, nil)

	_, err := svc.RecordShipment(context.Background(), ShipmentInput{
		OrderID: 10,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 40}},
	})
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
	require.EqualValues(t, 30, repo.packed["CE1034"])
	require.Empty(t, repo.shipments)
	require.EqualValues(t, 0, repo.lines[0].delivered)
}

func TestRecordShipmentOverRemainingRejected(t *testing.T) {
	repo := newFakeRepo()
	seedOrder(repo)
	repo.lines[0].delivered = 90
	repo.packed["CE1034"] = 50
	svc := NewService(repo, nil, nil)

	_, err := svc.RecordShipment(context.Background(), ShipmentInput{
		OrderID: 10,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 20}},
	})
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
}

func TestRecordShipmentConsumesAllocationAndMovesCounters(t *testing.T) {
	repo := newFakeRepo()
	seedOrder(repo)
	svc := NewService(repo, nil, nil)

	shipment, err := svc.RecordShipment(context.Background(), ShipmentInput{
		OrderID: 10,
		Carrier: "Maersk",
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 30}},
	})
	require.NoError(t, err)
	require.Len(t, shipment.Items, 1)
	require.EqualValues(t, 5, shipment.Items[0].AllocationID)
	require.EqualValues(t, 30, shipment.Items[0].AllocationQty)
	require.EqualValues(t, 0, repo.packed["CE1034"])
	require.EqualValues(t, 30, repo.lines[0].delivered)
	require.Equal(t, "CONSUMED", repo.allocs[0].status)
}

func TestRecordShipmentPartialAllocationConsumption(t *testing.T) {
	repo := newFakeRepo()
	seedOrder(repo)
	svc := NewService(repo, nil, nil)

	shipment, err := svc.RecordShipment(context.Background(), ShipmentInput{
		OrderID: 10,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 10}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 10, shipment.Items[0].AllocationQty)
	require.Equal(t, "ACTIVE", repo.allocs[0].status)
	require.EqualValues(t, 20, repo.allocs[0].quantity)
}

func TestRecordShipmentKeepsOtherOrdersAllocationsCovered(t *testing.T) {
	repo := newFakeRepo()
	repo.lines = []fakeLine{{id: 1, orderID: 10, product: "CE1034", quantity: 100}}
	repo.packed["CE1034"] = 100
	repo.allocs = []fakeAlloc{{id: 7, product: "CE1034", orderID: 99, quantity: 80, status: "ACTIVE"}}
	repo.nextID = 100
	svc := NewService(repo, nil, nil)

	// Only 20 of the 100 packed units are free; order 99 holds the rest.
	_, err := svc.RecordShipment(context.Background(), ShipmentInput{
		OrderID: 10,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 40}},
	})
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
	require.EqualValues(t, 100, repo.packed["CE1034"])
	require.EqualValues(t, 80, repo.allocs[0].quantity)
	require.Empty(t, repo.shipments)

	shipment, err := svc.RecordShipment(context.Background(), ShipmentInput{
		OrderID: 10,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 20}},
	})
	require.NoError(t, err)
	require.Zero(t, shipment.Items[0].AllocationID)
	require.EqualValues(t, 80, repo.packed["CE1034"])
	require.Equal(t, "ACTIVE", repo.allocs[0].status)
}

func TestDeleteShipmentRestoresEverything(t *testing.T) {
	repo := newFakeRepo()
	seedOrder(repo)
	svc := NewService(repo, nil, nil)

	shipment, err := svc.RecordShipment(context.Background(), ShipmentInput{
		OrderID: 10,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 30}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteShipment(context.Background(), shipment.ID, 0))
	require.EqualValues(t, 30, repo.packed["CE1034"])
	require.EqualValues(t, 0, repo.lines[0].delivered)
	require.Equal(t, "ACTIVE", repo.allocs[0].status)
	require.EqualValues(t, 30, repo.allocs[0].quantity)
	require.Empty(t, repo.shipments)
}

func TestRecordShipmentFulfillsOrder(t *testing.T) {
	repo := newFakeRepo()
	seedOrder(repo)
	repo.packed["CE1034"] = 100
	repo.allocs = nil
	svc := NewService(repo, nil, nil)

	_, err := svc.RecordShipment(context.Background(), ShipmentInput{
		OrderID: 10,
		Items:   []ItemInput{{ProductCode: "CE1034", Quantity: 100}},
	})
	require.NoError(t, err)
	require.Equal(t, "FULFILLED", repo.statuses[10])
}

func TestRecordShipmentIdempotencyKey(t *testing.T) {
	repo := newFakeRepo()
	seedOrder(repo)
	idem := &fakeIdem{keys: make(map[string]bool)}
	svc := NewService(repo, nil, idem)

	input := ShipmentInput{
		OrderID:        10,
		Items:          []ItemInput{{ProductCode: "CE1034", Quantity: 10}},
		IdempotencyKey: "ship-abc",
	}
	_, err := svc.RecordShipment(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.RecordShipment(context.Background(), input)
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)

	// A failed posting releases the key for retry.
	input.IdempotencyKey = "ship-def"
	input.Items[0].Quantity = 999
	_, err = svc.RecordShipment(context.Background(), input)
	require.Error(t, err)
	require.False(t, idem.keys["ship-def"])
}
