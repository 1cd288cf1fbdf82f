package reporting

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/earthrod-erp/earthrod-erp/internal/rawmaterial"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

type fakeStages struct {
	calls    int
	counters []stageledger.StageCounterSet
}

func (f *fakeStages) ListCounters(context.Context) ([]stageledger.StageCounterSet, error) {
	f.calls++
	return f.counters, nil
}

type fakeRaw struct {
	calls  int
	stocks []rawmaterial.Stock
}

func (f *fakeRaw) ListStocks(context.Context) ([]rawmaterial.Stock, error) {
	f.calls++
	return f.stocks, nil
}

func newCachedService(t *testing.T) (*Service, *fakeStages, *fakeRaw, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	stages := &fakeStages{counters: []stageledger.StageCounterSet{{ProductCode: "CE1034", Packed: 40}}}
	raw := &fakeRaw{stocks: []rawmaterial.Stock{{Material: "Steel", CurrentStock: decimal.NewFromInt(525)}}}
	svc := NewService(slog.Default(), stages, raw, client, time.Minute)
	return svc, stages, raw, mr
}

func TestStockSnapshotCachesResult(t *testing.T) {
	svc, stages, raw, _ := newCachedService(t)

	first, err := svc.StockSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, first.StageInventory, 1)
	require.Len(t, first.RawMaterials, 1)
	require.Equal(t, 1, stages.calls)
	require.Equal(t, 1, raw.calls)

	second, err := svc.StockSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.GeneratedAt.Unix(), second.GeneratedAt.Unix())
	require.Equal(t, 1, stages.calls, "second read must come from cache")
	require.Equal(t, 1, raw.calls)
}

func TestStockSnapshotRecomputesAfterExpiry(t *testing.T) {
	svc, stages, _, mr := newCachedService(t)

	_, err := svc.StockSnapshot(context.Background())
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	stages.counters[0].Packed = 10
	snap, err := svc.StockSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stages.calls)
	require.EqualValues(t, 10, snap.StageInventory[0].Packed)
}

func TestStockSnapshotWithoutCache(t *testing.T) {
	stages := &fakeStages{}
	raw := &fakeRaw{}
	svc := NewService(slog.Default(), stages, raw, nil, 0)

	_, err := svc.StockSnapshot(context.Background())
	require.NoError(t, err)
	_, err = svc.StockSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stages.calls)
}
