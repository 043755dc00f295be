package indexer

import (
	"context"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/metrics"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"go.uber.org/zap"
)

// LedgerReader is the read side of the registry. *registry.Client implements it.
type LedgerReader interface {
	ListCases(ctx context.Context) ([]registry.Case, error)
	ListEvidence(ctx context.Context, caseID uint64) ([]registry.Evidence, error)
}

// SyncResult summarizes one pass.
type SyncResult struct {
	Cases    int
	Evidence int
	Duration time.Duration
}

// Syncer copies the whole registry into the store. Every pass re-reads
// every record because isActive and isAdmissible change after creation.
type Syncer struct {
	ledger   LedgerReader
	store    *Store
	interval time.Duration
	logger   *logging.ColoredLogger
}

// NewSyncer returns a syncer running every interval.
func NewSyncer(ledger LedgerReader, store *Store, interval time.Duration, logger *logging.ColoredLogger) *Syncer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Syncer{
		ledger:   ledger,
		store:    store,
		interval: interval,
		logger:   logging.OrNop(logger),
	}
}

// SyncOnce runs a single full pass and records it.
func (s *Syncer) SyncOnce(ctx context.Context) (SyncResult, error) {
	start := time.Now()
	res, err := s.sync(ctx)
	res.Duration = time.Since(start)
	metrics.RecordSync(res.Duration, res.Cases, res.Evidence, err)

	run := SyncRun{
		StartedAt:  start.Unix(),
		FinishedAt: time.Now().Unix(),
		Cases:      res.Cases,
		Evidence:   res.Evidence,
	}
	if err != nil {
		run.Error = err.Error()
	}
	if ctx.Err() == nil {
		if recErr := s.store.RecordSyncRun(ctx, run); recErr != nil {
			s.logger.ComponentWarn(logging.ComponentIndexer, "failed to record sync run", zap.Error(recErr))
		}
	}
	return res, err
}

func (s *Syncer) sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	cases, err := s.ledger.ListCases(ctx)
	if err != nil {
		return res, err
	}
	for _, c := range cases {
		if err := s.store.UpsertCase(ctx, c); err != nil {
			return res, err
		}
		res.Cases++

		items, err := s.ledger.ListEvidence(ctx, c.ID)
		if err != nil {
			return res, err
		}
		for _, ev := range items {
			if err := s.store.UpsertEvidence(ctx, ev); err != nil {
				return res, err
			}
			res.Evidence++
		}
	}
	return res, nil
}

// Run syncs immediately and then every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context) {
	s.logger.ComponentInfo(logging.ComponentIndexer, "sync loop started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		res, err := s.SyncOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.ComponentWarn(logging.ComponentIndexer, "sync pass failed",
				zap.Int("cases", res.Cases), zap.Int("evidence", res.Evidence), zap.Error(err))
		} else {
			s.logger.ComponentDebug(logging.ComponentIndexer, "sync pass complete",
				zap.Int("cases", res.Cases),
				zap.Int("evidence", res.Evidence),
				zap.Duration("duration", res.Duration))
		}

		select {
		case <-ctx.Done():
			s.logger.ComponentInfo(logging.ComponentIndexer, "sync loop stopped")
			return
		case <-ticker.C:
		}
	}
}
