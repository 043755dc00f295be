package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/config"
	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/rqlite/gorqlite/stdlib"
	"go.uber.org/zap"
)

type caseRow struct {
	ID          uint64 `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Owner       string `db:"owner"`
	CreatedAt   uint64 `db:"created_at"`
	IsActive    bool   `db:"is_active"`
}

func (r caseRow) toCase() registry.Case {
	return registry.Case{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Owner:       common.HexToAddress(r.Owner),
		CreatedAt:   r.CreatedAt,
		IsActive:    r.IsActive,
	}
}

type evidenceRow struct {
	CaseID       uint64 `db:"case_id"`
	ID           uint64 `db:"id"`
	MetadataCID  string `db:"metadata_cid"`
	Description  string `db:"description"`
	Submitter    string `db:"submitter"`
	Timestamp    uint64 `db:"timestamp"`
	IsAdmissible bool   `db:"is_admissible"`
}

func (r evidenceRow) toEvidence() registry.Evidence {
	return registry.Evidence{
		ID:           r.ID,
		CaseID:       r.CaseID,
		MetadataCID:  r.MetadataCID,
		Description:  r.Description,
		Submitter:    common.HexToAddress(r.Submitter),
		Timestamp:    r.Timestamp,
		IsAdmissible: r.IsAdmissible,
	}
}

// SyncRun is one recorded sync pass.
type SyncRun struct {
	ID         int64  `db:"id" json:"id"`
	StartedAt  int64  `db:"started_at" json:"startedAt"`
	FinishedAt int64  `db:"finished_at" json:"finishedAt"`
	Cases      int    `db:"cases" json:"cases"`
	Evidence   int    `db:"evidence" json:"evidence"`
	Error      string `db:"error" json:"error,omitempty"`
}

// Store is the SQL mirror of the registry. It works over sqlite3 and
// rqlite alike and does not use explicit transactions.
type Store struct {
	db     *sql.DB
	logger *logging.ColoredLogger
	now    func() time.Time
}

// OpenStore opens driver/dsn, checks connectivity and applies migrations.
func OpenStore(ctx context.Context, driver, dsn string, logger *logging.ColoredLogger) (*Store, error) {
	switch driver {
	case config.DriverSQLite, config.DriverRQLite:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if driver == config.DriverSQLite {
		// One writer at a time avoids SQLITE_BUSY between the syncer and the API.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}
	s, err := NewStore(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database and applies migrations.
func NewStore(ctx context.Context, db *sql.DB, logger *logging.ColoredLogger) (*Store, error) {
	logger = logging.OrNop(logger)
	if err := ApplyMigrations(ctx, db, Migrations(), logger); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertCase inserts or overwrites a case row.
func (s *Store) UpsertCase(ctx context.Context, c registry.Case) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cases (id, name, description, owner, created_at, is_active, synced_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	owner = excluded.owner,
	created_at = excluded.created_at,
	is_active = excluded.is_active,
	synced_at = excluded.synced_at`,
		int64(c.ID), c.Name, c.Description, c.Owner.Hex(), int64(c.CreatedAt), boolInt(c.IsActive), s.now().Unix())
	if err != nil {
		return apperrors.NewServiceError("store", "upsert case", 0, err)
	}
	return nil
}

// UpsertEvidence inserts or overwrites an evidence row.
func (s *Store) UpsertEvidence(ctx context.Context, e registry.Evidence) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO evidence (case_id, id, metadata_cid, description, submitter, timestamp, is_admissible, synced_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(case_id, id) DO UPDATE SET
	metadata_cid = excluded.metadata_cid,
	description = excluded.description,
	submitter = excluded.submitter,
	timestamp = excluded.timestamp,
	is_admissible = excluded.is_admissible,
	synced_at = excluded.synced_at`,
		int64(e.CaseID), int64(e.ID), e.MetadataCID, e.Description, e.Submitter.Hex(), int64(e.Timestamp), boolInt(e.IsAdmissible), s.now().Unix())
	if err != nil {
		return apperrors.NewServiceError("store", "upsert evidence", 0, err)
	}
	return nil
}

// GetCase returns one mirrored case or a NotFound error.
func (s *Store) GetCase(ctx context.Context, id uint64) (registry.Case, error) {
	rows, err := s.query(ctx, `SELECT id, name, description, owner, created_at, is_active FROM cases WHERE id = ?`, int64(id))
	if err != nil {
		return registry.Case{}, err
	}
	defer rows.Close()
	out, err := scanAll[caseRow](rows)
	if err != nil {
		return registry.Case{}, apperrors.NewServiceError("store", "scan case", 0, err)
	}
	if len(out) == 0 {
		return registry.Case{}, apperrors.NewNotFoundError("case", fmt.Sprint(id))
	}
	return out[0].toCase(), nil
}

// ListCases returns every mirrored case in id order.
func (s *Store) ListCases(ctx context.Context) ([]registry.Case, error) {
	rows, err := s.query(ctx, `SELECT id, name, description, owner, created_at, is_active FROM cases ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanAll[caseRow](rows)
	if err != nil {
		return nil, apperrors.NewServiceError("store", "scan cases", 0, err)
	}
	cases := make([]registry.Case, 0, len(out))
	for _, r := range out {
		cases = append(cases, r.toCase())
	}
	return cases, nil
}

// GetEvidence returns one mirrored evidence item or a NotFound error.
func (s *Store) GetEvidence(ctx context.Context, caseID, id uint64) (registry.Evidence, error) {
	rows, err := s.query(ctx, `
SELECT case_id, id, metadata_cid, description, submitter, timestamp, is_admissible
FROM evidence WHERE case_id = ? AND id = ?`, int64(caseID), int64(id))
	if err != nil {
		return registry.Evidence{}, err
	}
	defer rows.Close()
	out, err := scanAll[evidenceRow](rows)
	if err != nil {
		return registry.Evidence{}, apperrors.NewServiceError("store", "scan evidence", 0, err)
	}
	if len(out) == 0 {
		return registry.Evidence{}, apperrors.NewNotFoundError("evidence", fmt.Sprintf("%d/%d", caseID, id))
	}
	return out[0].toEvidence(), nil
}

// ListEvidence returns a case's mirrored evidence in id order.
func (s *Store) ListEvidence(ctx context.Context, caseID uint64) ([]registry.Evidence, error) {
	rows, err := s.query(ctx, `
SELECT case_id, id, metadata_cid, description, submitter, timestamp, is_admissible
FROM evidence WHERE case_id = ? ORDER BY id`, int64(caseID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanAll[evidenceRow](rows)
	if err != nil {
		return nil, apperrors.NewServiceError("store", "scan evidence", 0, err)
	}
	items := make([]registry.Evidence, 0, len(out))
	for _, r := range out {
		items = append(items, r.toEvidence())
	}
	return items, nil
}

// SetAdmissibility updates the mirror row only. The next sync pass
// overwrites it with the ledger value.
func (s *Store) SetAdmissibility(ctx context.Context, caseID, id uint64, admissible bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE evidence SET is_admissible = ? WHERE case_id = ? AND id = ?`,
		boolInt(admissible), int64(caseID), int64(id))
	if err != nil {
		return apperrors.NewServiceError("store", "update admissibility", 0, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("evidence", fmt.Sprintf("%d/%d", caseID, id))
	}
	return nil
}

// RecordSyncRun stores the outcome of a sync pass.
func (s *Store) RecordSyncRun(ctx context.Context, run SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sync_runs (started_at, finished_at, cases, evidence, error) VALUES (?, ?, ?, ?, ?)`,
		run.StartedAt, run.FinishedAt, run.Cases, run.Evidence, run.Error)
	if err != nil {
		return apperrors.NewServiceError("store", "record sync run", 0, err)
	}
	return nil
}

// LastSyncRun returns the most recent sync pass, or NotFound before the first.
func (s *Store) LastSyncRun(ctx context.Context) (SyncRun, error) {
	rows, err := s.query(ctx, `
SELECT id, started_at, finished_at, cases, evidence, error FROM sync_runs ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return SyncRun{}, err
	}
	defer rows.Close()
	out, err := scanAll[SyncRun](rows)
	if err != nil {
		return SyncRun{}, apperrors.NewServiceError("store", "scan sync run", 0, err)
	}
	if len(out) == 0 {
		return SyncRun{}, apperrors.NewNotFoundError("sync_run", "latest")
	}
	return out[0], nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logger.ComponentWarn(logging.ComponentIndexer, "query failed", zap.String("query", snippet(q)), zap.Error(err))
		return nil, apperrors.NewServiceError("store", "query", 0, err)
	}
	return rows, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
