package stageledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

type fakeRepo struct {
	counters    map[string]StageCounterSet
	entries     map[int64]ProductionEntry
	consumption map[int64][]Consumption
	adjustments []StockAdjustment
	rawStock    map[string]decimal.Decimal
	bom         map[string][]BOMLine
	allocations map[string]int64 // key product|stage
	nextID      int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		counters:    make(map[string]StageCounterSet),
		entries:     make(map[int64]ProductionEntry),
		consumption: make(map[int64][]Consumption),
		rawStock:    make(map[string]decimal.Decimal),
		bom:         make(map[string][]BOMLine),
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
	for k, v := range f.counters {
		c.counters[k] = v
	}
	for k, v := range f.entries {
		c.entries[k] = v
	}
	for k, v := range f.consumption {
		c.consumption[k] = append([]Consumption(nil), v...)
	}
	c.adjustments = append([]StockAdjustment(nil), f.adjustments...)
	for k, v := range f.rawStock {
		c.rawStock[k] = v
	}
	for k, v := range f.bom {
		c.bom[k] = v
	}
	for k, v := range f.allocations {
		c.allocations[k] = v
	}
	return c
}

func (f *fakeRepo) GetCounters(_ context.Context, code string) (StageCounterSet, error) {
	c, ok := f.counters[code]
	if !ok {
		return StageCounterSet{ProductCode: code}, nil
	}
	return c, nil
}

func (f *fakeRepo) ListCounters(context.Context) ([]StageCounterSet, error) {
	out := make([]StageCounterSet, 0, len(f.counters))
	for _, c := range f.counters {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) GetProductionEntry(_ context.Context, id int64) (ProductionEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return ProductionEntry{}, shared.ErrNotFound
	}
	return e, nil
}

func (f *fakeRepo) ListProductionEntries(_ context.Context, code string, _ int) ([]ProductionEntry, error) {
	var out []ProductionEntry
	for _, e := range f.entries {
		if e.ProductCode == code {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListConsumption(_ context.Context, entryID int64) ([]Consumption, error) {
	return f.consumption[entryID], nil
}

func (f *fakeRepo) ListAdjustments(_ context.Context, code string, _ int) ([]StockAdjustment, error) {
	var out []StockAdjustment
	for _, a := range f.adjustments {
		if a.ProductCode == code {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetCountersForUpdate(ctx context.Context, code string) (StageCounterSet, error) {
	return f.GetCounters(ctx, code)
}

func (f *fakeRepo) UpsertCounters(_ context.Context, c StageCounterSet) error {
	f.counters[c.ProductCode] = c
	return nil
}

func (f *fakeRepo) InsertProductionEntry(_ context.Context, e ProductionEntry) (int64, error) {
	f.nextID++
	e.ID = f.nextID
	f.entries[e.ID] = e
	return e.ID, nil
}

func (f *fakeRepo) GetProductionEntryForUpdate(ctx context.Context, id int64) (ProductionEntry, error) {
	return f.GetProductionEntry(ctx, id)
}

func (f *fakeRepo) DeleteProductionEntry(_ context.Context, id int64) error {
	if _, ok := f.entries[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.entries, id)
	delete(f.consumption, id)
	return nil
}

func (f *fakeRepo) InsertConsumption(_ context.Context, c Consumption) error {
	f.consumption[c.EntryID] = append(f.consumption[c.EntryID], c)
	return nil
}

func (f *fakeRepo) ListConsumptionForUpdate(ctx context.Context, entryID int64) ([]Consumption, error) {
	return f.ListConsumption(ctx, entryID)
}

func (f *fakeRepo) InsertAdjustment(_ context.Context, adj StockAdjustment) (int64, error) {
	f.nextID++
	adj.ID = f.nextID
	f.adjustments = append(f.adjustments, adj)
	return adj.ID, nil
}

func (f *fakeRepo) GetAdjustmentForUpdate(_ context.Context, id int64) (StockAdjustment, error) {
	for _, a := range f.adjustments {
		if a.ID == id {
			return a, nil
		}
	}
	return StockAdjustment{}, shared.ErrNotFound
}

func (f *fakeRepo) DeleteAdjustment(_ context.Context, id int64) error {
	for i, a := range f.adjustments {
		if a.ID == id {
			f.adjustments = append(f.adjustments[:i], f.adjustments[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) SumActiveAllocations(_ context.Context, code, stage string) (int64, error) {
	return f.allocations[code+"|"+stage], nil
}

func (f *fakeRepo) GetBOM(_ context.Context, code string) ([]BOMLine, error) {
	return f.bom[code], nil
}

func (f *fakeRepo) GetRawCurrentForUpdate(_ context.Context, material string) (decimal.Decimal, error) {
	current, ok := f.rawStock[material]
	if !ok {
		return decimal.Zero, shared.Conflictf("material %s has no stock record", material)
	}
	return current, nil
}

func (f *fakeRepo) AdjustRawStock(_ context.Context, material string, delta decimal.Decimal) error {
	current, ok := f.rawStock[material]
	if !ok {
		return shared.Conflictf("material %s has no stock record", material)
	}
	f.rawStock[material] = current.Add(delta)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedCE1034(repo *fakeRepo) {
	repo.bom["CE1034"] = []BOMLine{
		{Material: "Steel", QtyPerUnit: dec("4.75")},
		{Material: "CopperAnode", QtyPerUnit: dec("0.3")},
	}
	repo.rawStock["Steel"] = dec("1000")
	repo.rawStock["CopperAnode"] = dec("100")
}

func TestRecordProductionChargesBOMAtChargingStage(t *testing.T) {
	repo := newFakeRepo()
	seedCE1034(repo)
	svc := NewService(repo, nil, StagePlated)

	entry, err := svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StagePlated: 100},
	})
	require.NoError(t, err)
	require.Equal(t, StagePlated, entry.ChargedStage)
	require.True(t, repo.rawStock["Steel"].Equal(dec("525")), "got %s", repo.rawStock["Steel"])
	require.True(t, repo.rawStock["CopperAnode"].Equal(dec("70")))

	counters, err := svc.GetCounters(context.Background(), "CE1034")
	require.NoError(t, err)
	require.EqualValues(t, 100, counters.Plated)
	require.Len(t, repo.consumption[entry.ID], 2)
}

func TestRecordProductionNonChargingStageSkipsBOM(t *testing.T) {
	repo := newFakeRepo()
	seedCE1034(repo)
	svc := NewService(repo, nil, StagePlated)

	entry, err := svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StageCores: 50},
	})
	require.NoError(t, err)
	require.Empty(t, entry.ChargedStage)
	require.True(t, repo.rawStock["Steel"].Equal(dec("1000")))
}

func TestRecordProductionInsufficientRawStockRollsBack(t *testing.T) {
	repo := newFakeRepo()
	seedCE1034(repo)
	repo.rawStock["Steel"] = dec("400")
	svc := NewService(repo, nil, StagePlated)

	_, err := svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StagePlated: 100},
	})
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
	require.True(t, repo.rawStock["Steel"].Equal(dec("400")))

	counters, _ := svc.GetCounters(context.Background(), "CE1034")
	require.Zero(t, counters.Plated)
	require.Empty(t, repo.entries)
}

func TestRecordProductionRejectsNegativeCounter(t *testing.T) {
	repo := newFakeRepo()
	seedCE1034(repo)
	svc := NewService(repo, nil, StagePlated)

	_, err := svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StageCores: -10},
	})
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
}

func TestRecordProductionRespectsActiveAllocations(t *testing.T) {
	repo := newFakeRepo()
	seedCE1034(repo)
	repo.counters["CE1034"] = StageCounterSet{ProductCode: "CE1034", Packed: 100}
	repo.allocations["CE1034|"+StagePacked] = 80
	svc := NewService(repo, nil, StagePlated)

	_, err := svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StagePacked: -30},
	})
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)

	_, err = svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StagePacked: -20},
	})
	require.NoError(t, err)
}

func TestDeleteProductionEntryRestoresExactConsumption(t *testing.T) {
	repo := newFakeRepo()
	seedCE1034(repo)
	svc := NewService(repo, nil, StagePlated)

	entry, err := svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StagePlated: 100},
	})
	require.NoError(t, err)

	// BOM changes after posting; the reversal must use the recorded
	// consumption, not the current BOM.
	repo.bom["CE1034"] = []BOMLine{{Material: "Steel", QtyPerUnit: dec("9.99")}}

	require.NoError(t, svc.DeleteProductionEntry(context.Background(), entry.ID, 0))
	require.True(t, repo.rawStock["Steel"].Equal(dec("1000")), "got %s", repo.rawStock["Steel"])
	require.True(t, repo.rawStock["CopperAnode"].Equal(dec("100")))

	counters, _ := svc.GetCounters(context.Background(), "CE1034")
	require.Zero(t, counters.Plated)
}

func TestDeleteProductionEntryBlockedByConsumedCounters(t *testing.T) {
	repo := newFakeRepo()
	seedCE1034(repo)
	svc := NewService(repo, nil, StagePlated)

	entry, err := svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StagePlated: 100},
	})
	require.NoError(t, err)

	// Downstream production already moved the units out of plated.
	_, err = svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StagePlated: -60, StageMachined: 60},
	})
	require.NoError(t, err)

	err = svc.DeleteProductionEntry(context.Background(), entry.ID, 0)
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
	require.Contains(t, repo.entries, entry.ID)
}

func TestBulkDeleteReportsPerEntryOutcomes(t *testing.T) {
	repo := newFakeRepo()
	seedCE1034(repo)
	svc := NewService(repo, nil, StagePlated)

	entry, err := svc.RecordProduction(context.Background(), ProductionInput{
		ProductCode: "CE1034",
		StageDeltas: map[string]int64{StageCores: 10},
	})
	require.NoError(t, err)

	results := svc.BulkDeleteProductionEntries(context.Background(), []int64{entry.ID, 9999}, 0)
	require.Len(t, results, 2)
	require.True(t, results[0].OK)
	require.False(t, results[1].OK)
}

func TestAdjustStockValidatesAndApplies(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, StagePlated)

	_, err := svc.AdjustStock(context.Background(), AdjustmentInput{
		ProductCode: "CE1034", Stage: "polished", Delta: 5, Type: AdjustmentCorrection,
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	adj, err := svc.AdjustStock(context.Background(), AdjustmentInput{
		ProductCode: "CE1034", Stage: StageStamped, Delta: 25, Type: AdjustmentOpeningBalance,
	})
	require.NoError(t, err)
	require.NotZero(t, adj.ID)

	counters, _ := svc.GetCounters(context.Background(), "CE1034")
	require.EqualValues(t, 25, counters.Stamped)

	_, err = svc.AdjustStock(context.Background(), AdjustmentInput{
		ProductCode: "CE1034", Stage: StageStamped, Delta: -30, Type: AdjustmentWriteOff,
	})
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
}

func TestDeleteAdjustmentReversesDelta(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, StagePlated)

	adj, err := svc.AdjustStock(context.Background(), AdjustmentInput{
		ProductCode: "CE1034", Stage: StageQC, Delta: 40, Type: AdjustmentCorrection,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAdjustment(context.Background(), adj.ID, 0))
	counters, _ := svc.GetCounters(context.Background(), "CE1034")
	require.Zero(t, counters.QC)
	require.Empty(t, repo.adjustments)
}
