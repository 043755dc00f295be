package indexer_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/config"
	"github.com/DeBrosOfficial/caseledger/pkg/indexer"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/DeBrosOfficial/caseledger/pkg/registry/registrytest"
	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

type env struct {
	ledger *registrytest.Ledger
	client *registry.Client
	store  *indexer.Store
	syncer *indexer.Syncer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ledger := registrytest.NewLedger()
	client, err := registry.NewClient(ledger, ledger.ContractAddress())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	store, err := indexer.OpenStore(context.Background(), config.DriverSQLite, filepath.Join(t.TempDir(), "index.db"), nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &env{
		ledger: ledger,
		client: client,
		store:  store,
		syncer: indexer.NewSyncer(client, store, 10*time.Millisecond, nil),
	}
}

// seed creates case 0 with evidence 0 (admissible) and 1 (pending), and
// a closed case 1 without evidence.
func (e *env) seed() {
	c1 := e.ledger.AddCase(alice, "Smith v. Johnson", "Contract dispute", true)
	e.ledger.AddEvidence(c1, alice, "bafkreicontract", "Signed contract", true)
	e.ledger.AddEvidence(c1, bob, "bafkreiemail", "Email thread", false)
	e.ledger.AddCase(bob, "Doe v. Roe", "Property line", false)
}

func TestSyncOnceMirrorsLedger(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed()

	res, err := e.syncer.SyncOnce(ctx)
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if res.Cases != 2 || res.Evidence != 2 {
		t.Fatalf("SyncOnce = %+v, want 2 cases and 2 evidence", res)
	}

	want, err := e.client.GetCase(ctx, 0)
	if err != nil {
		t.Fatalf("ledger GetCase: %v", err)
	}
	got, err := e.store.GetCase(ctx, 0)
	if err != nil {
		t.Fatalf("store GetCase: %v", err)
	}
	if got != want {
		t.Fatalf("mirrored case = %+v, want %+v", got, want)
	}

	ev, err := e.store.GetEvidence(ctx, 0, 1)
	if err != nil {
		t.Fatalf("store GetEvidence: %v", err)
	}
	if ev.Submitter != bob || ev.IsAdmissible {
		t.Fatalf("mirrored evidence = %+v", ev)
	}

	run, err := e.store.LastSyncRun(ctx)
	if err != nil {
		t.Fatalf("LastSyncRun: %v", err)
	}
	if run.Cases != 2 || run.Evidence != 2 || run.Error != "" {
		t.Fatalf("sync run = %+v", run)
	}
}

func TestSyncOverwritesMirrorHints(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed()

	if _, err := e.syncer.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if err := e.store.SetAdmissibility(ctx, 0, 1, true); err != nil {
		t.Fatalf("SetAdmissibility: %v", err)
	}
	if _, err := e.syncer.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	ev, err := e.store.GetEvidence(ctx, 0, 1)
	if err != nil {
		t.Fatalf("GetEvidence: %v", err)
	}
	if ev.IsAdmissible {
		t.Fatal("sync did not restore the ledger value")
	}
}

func TestSyncOnceRecordsFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed()
	e.ledger.FailCalls(errors.New("rpc down"))

	if _, err := e.syncer.SyncOnce(ctx); err == nil {
		t.Fatal("expected sync error")
	}
	run, err := e.store.LastSyncRun(ctx)
	if err != nil {
		t.Fatalf("LastSyncRun: %v", err)
	}
	if run.Error == "" {
		t.Fatalf("failed pass recorded without error: %+v", run)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newEnv(t)
	e.seed()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.syncer.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := e.store.GetCase(context.Background(), 1); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Run never synced")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
