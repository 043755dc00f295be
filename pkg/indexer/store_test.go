package indexer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/config"
	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/ethereum/go-ethereum/common"
)

var owner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(context.Background(), config.DriverSQLite, filepath.Join(t.TempDir(), "index.db"), nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenStore(context.Background(), "postgres", "x", nil); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestStoreCases(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.GetCase(ctx, 1); !apperrors.IsNotFound(err) {
		t.Fatalf("GetCase on empty store: %v, want NotFound", err)
	}

	c := registry.Case{ID: 1, Name: "Smith v. Johnson", Description: "Contract dispute", Owner: owner, CreatedAt: 1700000000, IsActive: true}
	if err := s.UpsertCase(ctx, c); err != nil {
		t.Fatalf("UpsertCase: %v", err)
	}
	got, err := s.GetCase(ctx, 1)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if got != c {
		t.Fatalf("GetCase = %+v, want %+v", got, c)
	}

	c.IsActive = false
	if err := s.UpsertCase(ctx, c); err != nil {
		t.Fatalf("UpsertCase overwrite: %v", err)
	}
	if err := s.UpsertCase(ctx, registry.Case{ID: 2, Name: "Doe v. Roe", Owner: owner, CreatedAt: 1700000100, IsActive: true}); err != nil {
		t.Fatalf("UpsertCase second: %v", err)
	}

	list, err := s.ListCases(ctx)
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("ListCases = %+v", list)
	}
	if list[0].IsActive {
		t.Error("overwrite did not clear isActive")
	}
}

func TestStoreEvidence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ev := registry.Evidence{ID: 1, CaseID: 1, MetadataCID: "bafkreimeta", Description: "Signed contract", Submitter: owner, Timestamp: 1700000200}
	if err := s.UpsertEvidence(ctx, ev); err != nil {
		t.Fatalf("UpsertEvidence: %v", err)
	}
	if err := s.UpsertEvidence(ctx, registry.Evidence{ID: 2, CaseID: 1, MetadataCID: "bafkreiother", Submitter: owner, Timestamp: 1700000300, IsAdmissible: true}); err != nil {
		t.Fatalf("UpsertEvidence second: %v", err)
	}

	got, err := s.GetEvidence(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetEvidence: %v", err)
	}
	if got != ev {
		t.Fatalf("GetEvidence = %+v, want %+v", got, ev)
	}
	if _, err := s.GetEvidence(ctx, 2, 1); !apperrors.IsNotFound(err) {
		t.Fatalf("GetEvidence wrong case: %v, want NotFound", err)
	}

	if err := s.SetAdmissibility(ctx, 1, 1, true); err != nil {
		t.Fatalf("SetAdmissibility: %v", err)
	}
	if err := s.SetAdmissibility(ctx, 1, 1, true); err != nil {
		t.Fatalf("SetAdmissibility repeat: %v", err)
	}
	if err := s.SetAdmissibility(ctx, 1, 9, true); !apperrors.IsNotFound(err) {
		t.Fatalf("SetAdmissibility missing row: %v, want NotFound", err)
	}

	items, err := s.ListEvidence(ctx, 1)
	if err != nil {
		t.Fatalf("ListEvidence: %v", err)
	}
	if len(items) != 2 || !items[0].IsAdmissible || !items[1].IsAdmissible {
		t.Fatalf("ListEvidence = %+v", items)
	}
	if empty, err := s.ListEvidence(ctx, 7); err != nil || len(empty) != 0 {
		t.Fatalf("ListEvidence unknown case = %v, %v", empty, err)
	}
}

func TestStoreSyncRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.LastSyncRun(ctx); !apperrors.IsNotFound(err) {
		t.Fatalf("LastSyncRun before any pass: %v, want NotFound", err)
	}
	now := time.Now().Unix()
	if err := s.RecordSyncRun(ctx, SyncRun{StartedAt: now, FinishedAt: now, Cases: 1}); err != nil {
		t.Fatalf("RecordSyncRun: %v", err)
	}
	if err := s.RecordSyncRun(ctx, SyncRun{StartedAt: now + 1, FinishedAt: now + 2, Cases: 2, Evidence: 3, Error: "boom"}); err != nil {
		t.Fatalf("RecordSyncRun: %v", err)
	}
	last, err := s.LastSyncRun(ctx)
	if err != nil {
		t.Fatalf("LastSyncRun: %v", err)
	}
	if last.Cases != 2 || last.Evidence != 3 || last.Error != "boom" || last.ID != 2 {
		t.Fatalf("LastSyncRun = %+v", last)
	}
}
