package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

type fakeRepo struct {
	counters    map[string]int64 // key product|stage
	allocations map[int64]Allocation
	nextID      int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{counters: make(map[string]int64), allocations: make(map[int64]Allocation)}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetAllocation(_ context.Context, id int64) (Allocation, error) {
	a, ok := f.allocations[id]
	if !ok {
		return Allocation{}, shared.ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) ListAllocations(_ context.Context, productCode, status string) ([]Allocation, error) {
	var out []Allocation
	for _, a := range f.allocations {
		if (productCode == "" || a.ProductCode == productCode) && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetStageCounterForUpdate(_ context.Context, productCode, stage string) (int64, error) {
	return f.counters[productCode+"|"+stage], nil
}

func (f *fakeRepo) SumActiveAllocations(_ context.Context, productCode, stage string) (int64, error) {
	var sum int64
	for _, a := range f.allocations {
		if a.ProductCode == productCode && a.Stage == stage && a.Status == StatusActive {
			sum += a.Quantity
		}
	}
	return sum, nil
}

func (f *fakeRepo) InsertAllocation(_ context.Context, a Allocation) (int64, error) {
	f.nextID++
	a.ID = f.nextID
	f.allocations[a.ID] = a
	return a.ID, nil
}

func (f *fakeRepo) GetAllocationForUpdate(ctx context.Context, id int64) (Allocation, error) {
	return f.GetAllocation(ctx, id)
}

func (f *fakeRepo) SetAllocationStatus(_ context.Context, id int64, status string) error {
	a, ok := f.allocations[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.Status = status
	f.allocations[id] = a
	return nil
}

func TestAllocateBoundedByUnallocatedCounter(t *testing.T) {
	repo := newFakeRepo()
	repo.counters["CE1034|"+stageledger.StagePacked] = 100
	svc := NewService(repo, nil)

	first, err := svc.Allocate(context.Background(), AllocateInput{
		ProductCode: "CE1034", Stage: stageledger.StagePacked,
		MarkingType: MarkingStamped, MarkingText: "ACME", Quantity: 70,
	})
	require.NoError(t, err)
	require.Equal(t, StatusActive, first.Status)

	_, err = svc.Allocate(context.Background(), AllocateInput{
		ProductCode: "CE1034", Stage: stageledger.StagePacked,
		MarkingType: MarkingPlain, Quantity: 40,
	})
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)

	_, err = svc.Allocate(context.Background(), AllocateInput{
		ProductCode: "CE1034", Stage: stageledger.StagePacked,
		MarkingType: MarkingPlain, Quantity: 30,
	})
	require.NoError(t, err)
}

func TestAllocateRejectsUnknownStageAndMarking(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	var verr *shared.ValidationError
	_, err := svc.Allocate(context.Background(), AllocateInput{
		ProductCode: "CE1034", Stage: "polished", MarkingType: MarkingPlain, Quantity: 1,
	})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Allocate(context.Background(), AllocateInput{
		ProductCode: "CE1034", Stage: stageledger.StagePacked, MarkingType: "ENGRAVED", Quantity: 1,
	})
	require.ErrorAs(t, err, &verr)
}

func TestReleaseFreesCapacity(t *testing.T) {
	repo := newFakeRepo()
	repo.counters["CE1034|"+stageledger.StagePacked] = 50
	svc := NewService(repo, nil)

	alloc, err := svc.Allocate(context.Background(), AllocateInput{
		ProductCode: "CE1034", Stage: stageledger.StagePacked,
		MarkingType: MarkingStickers, Quantity: 50,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Release(context.Background(), alloc.ID, 0))

	// Releasing twice is a conflict.
	err = svc.Release(context.Background(), alloc.ID, 0)
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)

	_, err = svc.Allocate(context.Background(), AllocateInput{
		ProductCode: "CE1034", Stage: stageledger.StagePacked,
		MarkingType: MarkingPlain, Quantity: 50,
	})
	require.NoError(t, err)
}
