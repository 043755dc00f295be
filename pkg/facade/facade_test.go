package facade_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/contentstore"
	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/facade"
	"github.com/DeBrosOfficial/caseledger/pkg/index"
	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/DeBrosOfficial/caseledger/pkg/registry/registrytest"
	"github.com/DeBrosOfficial/caseledger/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
)

var alice = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// fakeIndex serves canned records or fails every request.
type fakeIndex struct {
	cases    map[uint64]registry.Case
	evidence map[[2]uint64]registry.Evidence
	err      error
	calls    int
}

func (f *fakeIndex) GetCase(_ context.Context, id uint64) (registry.Case, error) {
	f.calls++
	if f.err != nil {
		return registry.Case{}, f.err
	}
	c, ok := f.cases[id]
	if !ok {
		return registry.Case{}, apperrors.NewAuxIndexUnavailableError("cases", 404, nil)
	}
	return c, nil
}

func (f *fakeIndex) GetEvidence(_ context.Context, caseID, id uint64) (registry.Evidence, error) {
	f.calls++
	if f.err != nil {
		return registry.Evidence{}, f.err
	}
	ev, ok := f.evidence[[2]uint64{caseID, id}]
	if !ok {
		return registry.Evidence{}, apperrors.NewAuxIndexUnavailableError("evidence", 404, nil)
	}
	return ev, nil
}

type failingStore struct{}

func (failingStore) Add(context.Context, io.Reader, string) (string, error) {
	return "", errors.New("cluster unreachable")
}

func (failingStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("cluster unreachable")
}

type env struct {
	facade *facade.Facade
	ledger *registrytest.Ledger
	index  *fakeIndex
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ledger := registrytest.NewLedger()
	mock := provider.NewMockProvider(31337, alice)
	ledger.Attach(mock)

	session := wallet.NewSession(mock)
	if _, err := wallet.NewConnectionManager(session, nil).Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	guard := wallet.NewNetworkGuard(session, wallet.Network{ChainID: 31337, Name: "Hardhat"}, nil)
	client, err := registry.NewClient(ledger, ledger.ContractAddress(),
		registry.WithSession(session, guard),
		registry.WithPollInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	mem := contentstore.NewMemoryBackend()
	store := contentstore.NewStore(mem, "https://ipfs.io", nil)
	idx := &fakeIndex{cases: map[uint64]registry.Case{}, evidence: map[[2]uint64]registry.Evidence{}}
	return &env{
		facade: facade.New(client, facade.WithIndex(idx), facade.WithContent(store)),
		ledger: ledger,
		index:  idx,
	}
}

func TestIndexAnswersFirst(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	id := e.ledger.AddCase(alice, "On ledger", "", true)
	// A stale index entry is returned as is.
	e.index.cases[id] = registry.Case{ID: id, Name: "Stale name", IsActive: false}
	e.ledger.ResetReads()

	c, err := e.facade.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.Name != "Stale name" {
		t.Errorf("expected the index record, got %+v", c)
	}
	if n := e.ledger.Reads(); n != 0 {
		t.Errorf("ledger should not be read when the index answers, got %d reads", n)
	}
}

func TestIndexFailureFallsBackToExactlyOneLedgerRead(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	caseID := e.ledger.AddCase(alice, "Smith v. Johnson", "Contract dispute", true)
	e.ledger.AddEvidence(caseID, alice, "bafymeta", "Contract", false)
	e.index.err = apperrors.NewAuxIndexUnavailableError("http://localhost:3001/api", 0, errors.New("connection refused"))

	e.ledger.ResetReads()
	c, err := e.facade.GetCase(ctx, caseID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.Name != "Smith v. Johnson" {
		t.Errorf("unexpected case %+v", c)
	}
	if n := e.ledger.Reads(); n != 1 {
		t.Errorf("expected exactly one ledger read, got %d", n)
	}

	e.ledger.ResetReads()
	ev, err := e.facade.GetEvidence(ctx, caseID, 0)
	if err != nil {
		t.Fatalf("GetEvidence: %v", err)
	}
	if ev.MetadataCID != "bafymeta" {
		t.Errorf("unexpected evidence %+v", ev)
	}
	if n := e.ledger.Reads(); n != 1 {
		t.Errorf("expected exactly one ledger read, got %d", n)
	}
}

func TestEmptyIndexBodyFallsBackToLedger(t *testing.T) {
	for _, body := range []string{`null`, `{}`} {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			ledger := registrytest.NewLedger()
			client, err := registry.NewClient(ledger, ledger.ContractAddress())
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			id := ledger.AddCase(alice, "Smith v. Johnson", "", true)
			f := facade.New(client, facade.WithIndex(index.NewClient(index.Config{BaseURL: server.URL + "/api"}, nil)))

			ledger.ResetReads()
			c, err := f.GetCase(context.Background(), id)
			if err != nil {
				t.Fatalf("GetCase: %v", err)
			}
			if c.Name != "Smith v. Johnson" || c.Owner != alice {
				t.Errorf("expected the ledger record, got %+v", c)
			}
			if n := ledger.Reads(); n != 1 {
				t.Errorf("expected exactly one ledger read, got %d", n)
			}
		})
	}
}

func TestFallbackReturnsLedgerErrorUnchanged(t *testing.T) {
	e := newEnv(t)
	e.index.err = errors.New("index down")

	_, err := e.facade.GetCase(context.Background(), 99)
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected the ledger's NotFound, got %v", err)
	}
	if apperrors.IsAuxIndexUnavailable(err) {
		t.Errorf("index failure must not leak: %v", err)
	}
}

func TestLedgerOnlyWithoutIndex(t *testing.T) {
	ledger := registrytest.NewLedger()
	client, err := registry.NewClient(ledger, ledger.ContractAddress())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	id := ledger.AddCase(alice, "A", "", true)

	f := facade.New(client)
	if _, err := f.GetCase(context.Background(), id); err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if n := ledger.Reads(); n != 1 {
		t.Errorf("expected one ledger read, got %d", n)
	}
}

func TestSmithVJohnsonScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	before, err := e.facade.ListCases(ctx)
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	created, err := e.facade.CreateCase(ctx, "Smith v. Johnson", "Contract dispute")
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	caseID := *created.ID
	after, _ := e.facade.ListCases(ctx)
	if len(after) != len(before)+1 {
		t.Errorf("case count went from %d to %d", len(before), len(after))
	}

	c, err := e.facade.GetCase(ctx, caseID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.Name != "Smith v. Johnson" || c.Description != "Contract dispute" || !c.IsActive || c.Owner != alice {
		t.Errorf("unexpected case %+v", c)
	}

	for i, desc := range []string{"Signed contract", "Email correspondence"} {
		res, err := e.facade.SubmitEvidenceFile(ctx, caseID, contentstore.EvidenceFile{
			Name:        desc + ".pdf",
			ContentType: "application/pdf",
			Data:        []byte(desc),
		}, desc)
		if err != nil {
			t.Fatalf("SubmitEvidenceFile %d: %v", i, err)
		}
		if res.Write.ID == nil || *res.Write.ID != uint64(i) {
			t.Fatalf("evidence %d got id %v", i, res.Write.ID)
		}
		ev, err := e.facade.GetEvidence(ctx, caseID, uint64(i))
		if err != nil {
			t.Fatalf("GetEvidence: %v", err)
		}
		if ev.IsAdmissible {
			t.Errorf("new evidence must not be admissible")
		}
		if ev.MetadataCID != res.Upload.MetadataCID {
			t.Errorf("ledger CID %s, uploaded %s", ev.MetadataCID, res.Upload.MetadataCID)
		}
	}

	if _, err := e.facade.SetEvidenceAdmissibility(ctx, caseID, 0, true); err != nil {
		t.Fatalf("SetEvidenceAdmissibility: %v", err)
	}

	sum, err := e.facade.Summarize(ctx, caseID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 2 || sum.Admissible != 1 || sum.Pending != 1 {
		t.Errorf("summary = %+v, want 2 total, 1 admissible, 1 pending", sum)
	}

	resolved, err := e.facade.ResolveEvidence(ctx, caseID, 0)
	if err != nil {
		t.Fatalf("ResolveEvidence: %v", err)
	}
	if string(resolved.Data) != "Signed contract" {
		t.Errorf("resolved %q", resolved.Data)
	}
	if resolved.FileURL == "" || resolved.Sidecar.Properties.CaseID != caseID {
		t.Errorf("unexpected resolution %+v", resolved)
	}
}

func TestAdmissibilityIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	caseID := e.ledger.AddCase(alice, "A", "", true)
	e.ledger.AddEvidence(caseID, alice, "bafymeta", "desc", false)
	before, _ := e.facade.ListEvidence(ctx, caseID)

	for i := 0; i < 2; i++ {
		if _, err := e.facade.SetEvidenceAdmissibility(ctx, caseID, 0, true); err != nil {
			t.Fatalf("SetEvidenceAdmissibility #%d: %v", i, err)
		}
	}
	after, _ := e.facade.ListEvidence(ctx, caseID)
	want := before[0]
	want.IsAdmissible = true
	if after[0] != want {
		t.Errorf("got %+v, want %+v", after[0], want)
	}
}

func TestUploadFailureMeansNoLedgerWrite(t *testing.T) {
	ctx := context.Background()
	ledger := registrytest.NewLedger()
	mock := provider.NewMockProvider(31337, alice)
	ledger.Attach(mock)
	session := wallet.NewSession(mock)
	if _, err := wallet.NewConnectionManager(session, nil).Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	client, _ := registry.NewClient(ledger, ledger.ContractAddress(), registry.WithSession(session, nil))
	caseID := ledger.AddCase(alice, "A", "", true)

	store := contentstore.NewStore(failingStore{}, "https://ipfs.io", nil)
	f := facade.New(client, facade.WithContent(store))

	_, err := f.SubmitEvidenceFile(ctx, caseID, contentstore.EvidenceFile{Name: "a", Data: []byte("a")}, "a")
	if !apperrors.IsUploadFailure(err) || apperrors.UploadStage(err) != apperrors.StageFile {
		t.Fatalf("expected a file stage UploadFailure, got %v", err)
	}
	if n := mock.CallCount(provider.MethodSendTransaction); n != 0 {
		t.Errorf("no ledger write expected, got %d", n)
	}
}
