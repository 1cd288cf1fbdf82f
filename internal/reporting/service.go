package reporting

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/earthrod-erp/earthrod-erp/internal/rawmaterial"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

const snapshotCacheKey = "reporting:stock-snapshot"

// Snapshot is the dashboard view of the whole plant: stage counters per
// product plus raw-material balances. It is read-only and
// eventually-consistent; the ledgers stay authoritative.
type Snapshot struct {
	StageInventory []stageledger.StageCounterSet `json:"stage_inventory"`
	RawMaterials   []rawmaterial.Stock           `json:"raw_materials"`
	GeneratedAt    time.Time                     `json:"generated_at"`
}

// StagePort reads stage counters.
type StagePort interface {
	ListCounters(ctx context.Context) ([]stageledger.StageCounterSet, error)
}

// RawMaterialPort reads raw-material balances.
type RawMaterialPort interface {
	ListStocks(ctx context.Context) ([]rawmaterial.Stock, error)
}

// Service serves cached stock snapshots.
type Service struct {
	logger *slog.Logger
	stages StagePort
	raw    RawMaterialPort
	cache  *redis.Client
	ttl    time.Duration
}

// NewService builds Service. cache may be nil; snapshots are then always
// computed fresh.
func NewService(logger *slog.Logger, stages StagePort, raw RawMaterialPort, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{logger: logger, stages: stages, raw: raw, cache: cache, ttl: ttl}
}

// StockSnapshot returns the cached snapshot, computing and caching it on
// a miss. Cache failures degrade to a fresh read.
func (s *Service) StockSnapshot(ctx context.Context) (Snapshot, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, snapshotCacheKey).Bytes()
		if err == nil {
			var snap Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				return snap, nil
			}
		}
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the snapshot and stores it in the cache.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{GeneratedAt: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counters, err := s.stages.ListCounters(gctx)
		if err != nil {
			return err
		}
		snap.StageInventory = counters
		return nil
	})
	g.Go(func() error {
		stocks, err := s.raw.ListStocks(gctx)
		if err != nil {
			return err
		}
		snap.RawMaterials = stocks
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(snap)
		if err == nil {
			if err := s.cache.Set(ctx, snapshotCacheKey, payload, s.ttl).Err(); err != nil {
				s.logger.Warn("snapshot cache write failed", slog.Any("error", err))
			}
		}
	}
	return snap, nil
}
