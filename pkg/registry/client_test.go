package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/DeBrosOfficial/caseledger/pkg/registry/registrytest"
	"github.com/DeBrosOfficial/caseledger/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

var hardhat = wallet.Network{ChainID: 31337, Name: "Hardhat"}

type fixture struct {
	client *registry.Client
	ledger *registrytest.Ledger
	mock   *provider.MockProvider

	mu     sync.Mutex
	states []registry.WriteState
}

func (f *fixture) observed() []registry.WriteState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]registry.WriteState(nil), f.states...)
}

func newFixture(t *testing.T, chainID uint64, connect bool, accounts ...common.Address) *fixture {
	t.Helper()
	f := &fixture{
		ledger: registrytest.NewLedger(),
		mock:   provider.NewMockProvider(chainID, accounts...),
	}
	f.ledger.Attach(f.mock)

	session := wallet.NewSession(f.mock)
	if connect {
		if _, err := wallet.NewConnectionManager(session, nil).Connect(context.Background()); err != nil {
			t.Fatalf("Connect: %v", err)
		}
	}
	guard := wallet.NewNetworkGuard(session, hardhat, nil)

	client, err := registry.NewClient(f.ledger, f.ledger.ContractAddress(),
		registry.WithSession(session, guard),
		registry.WithPollInterval(time.Millisecond),
		registry.WithStateObserver(func(_ string, s registry.WriteState, _ common.Hash) {
			f.mu.Lock()
			f.states = append(f.states, s)
			f.mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	f.client = client
	return f
}

func TestReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 31337, false)

	if n, err := f.client.CaseCount(ctx); err != nil || n != 0 {
		t.Fatalf("CaseCount on empty ledger = %d, %v", n, err)
	}

	id := f.ledger.AddCase(alice, "Smith v. Johnson", "Contract dispute", true)
	f.ledger.AddEvidence(id, alice, "bafymeta1", "Signed contract", true)
	f.ledger.AddEvidence(id, bob, "bafymeta2", "Email thread", false)

	c, err := f.client.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.ID != id || c.Name != "Smith v. Johnson" || c.Owner != alice || !c.IsActive || c.CreatedAt == 0 {
		t.Errorf("unexpected case %+v", c)
	}

	ev, err := f.client.GetEvidence(ctx, id, 1)
	if err != nil {
		t.Fatalf("GetEvidence: %v", err)
	}
	if ev.CaseID != id || ev.ID != 1 || ev.MetadataCID != "bafymeta2" || ev.Submitter != bob || ev.IsAdmissible {
		t.Errorf("unexpected evidence %+v", ev)
	}

	items, err := f.client.ListEvidence(ctx, id)
	if err != nil || len(items) != 2 {
		t.Fatalf("ListEvidence = %d items, %v", len(items), err)
	}
	sum, err := f.client.Summarize(ctx, id)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 2 || sum.Admissible != 1 || sum.Pending != 1 {
		t.Errorf("Summarize = %+v", sum)
	}

	cases, err := f.client.ListCases(ctx)
	if err != nil || len(cases) != 1 {
		t.Fatalf("ListCases = %d cases, %v", len(cases), err)
	}
}

func TestReadsMissingIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 31337, false)
	id := f.ledger.AddCase(alice, "A", "", true)

	tests := []struct {
		name string
		read func() error
	}{
		{"case", func() error { _, err := f.client.GetCase(ctx, 9); return err }},
		{"evidence count", func() error { _, err := f.client.EvidenceCount(ctx, 9); return err }},
		{"evidence", func() error { _, err := f.client.GetEvidence(ctx, id, 0); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read()
			if !apperrors.IsNotFound(err) {
				t.Fatalf("expected NotFound, got %v", err)
			}
			if apperrors.IsLedgerError(err) {
				t.Errorf("a missing id is not a ledger failure: %v", err)
			}
		})
	}
}

func TestReadFailuresAreLedgerErrors(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, 31337, false)
	f.ledger.FailCalls(errors.New("connection refused"))
	if _, err := f.client.GetCase(ctx, 0); !apperrors.IsLedgerError(err) {
		t.Errorf("expected LedgerError on transport failure, got %v", err)
	}

	ledger := registrytest.NewLedger()
	client, err := registry.NewClient(ledger, common.HexToAddress("0x0000000000000000000000000000000000000bad"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.CaseCount(ctx); !apperrors.IsLedgerError(err) {
		t.Errorf("expected LedgerError when no contract is deployed, got %v", err)
	}
}

func TestCreateCase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 31337, true, alice)

	res, err := f.client.CreateCase(ctx, "Smith v. Johnson", "Contract dispute")
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if res.TxHash == (common.Hash{}) || res.BlockNumber == 0 {
		t.Errorf("incomplete result %+v", res)
	}
	if res.ID == nil || *res.ID != 0 {
		t.Fatalf("expected case id 0, got %v", res.ID)
	}

	want := []registry.WriteState{registry.StateAwaitingSignature, registry.StateSubmitted, registry.StateConfirmed}
	got := f.observed()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	c, err := f.client.GetCase(ctx, *res.ID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.Owner != alice || c.Name != "Smith v. Johnson" || !c.IsActive {
		t.Errorf("unexpected case %+v", c)
	}
}

func TestSubmitEvidenceAndAdmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 31337, true, alice)
	caseID := f.ledger.AddCase(alice, "A", "", true)

	res, err := f.client.SubmitEvidence(ctx, caseID, "bafymeta", "Photo")
	if err != nil {
		t.Fatalf("SubmitEvidence: %v", err)
	}
	if res.ID == nil || *res.ID != 0 {
		t.Fatalf("expected evidence id 0, got %v", res.ID)
	}
	if _, err := f.client.SetEvidenceAdmissibility(ctx, caseID, *res.ID, true); err != nil {
		t.Fatalf("SetEvidenceAdmissibility: %v", err)
	}
	ev, err := f.client.GetEvidence(ctx, caseID, *res.ID)
	if err != nil {
		t.Fatalf("GetEvidence: %v", err)
	}
	if !ev.IsAdmissible || ev.Submitter != alice || ev.MetadataCID != "bafymeta" {
		t.Errorf("unexpected evidence %+v", ev)
	}
	if _, err := f.client.SetCaseStatus(ctx, caseID, false); err != nil {
		t.Fatalf("SetCaseStatus: %v", err)
	}
	if c, _ := f.client.GetCase(ctx, caseID); c.IsActive {
		t.Errorf("case should be closed")
	}
}

func TestWriteRequiresConnection(t *testing.T) {
	f := newFixture(t, 31337, false, alice)
	_, err := f.client.CreateCase(context.Background(), "A", "")
	if !apperrors.IsNotConnected(err) {
		t.Fatalf("expected NotConnected, got %v", err)
	}
	if n := f.mock.CallCount(provider.MethodSendTransaction); n != 0 {
		t.Errorf("no transaction should be sent, got %d", n)
	}
	if len(f.observed()) != 0 {
		t.Errorf("no state transitions expected, got %v", f.observed())
	}
}

func TestWriteOnWrongNetwork(t *testing.T) {
	f := newFixture(t, 1, true, alice)
	f.mock.On(provider.MethodSwitchChain, provider.Reject(provider.CodeUserRejected, "User rejected the request."))

	_, err := f.client.CreateCase(context.Background(), "A", "")
	var wn *apperrors.WrongNetworkError
	if !errors.As(err, &wn) {
		t.Fatalf("expected WrongNetwork, got %v", err)
	}
	if wn.Want != 31337 || wn.Have != 1 {
		t.Errorf("WrongNetwork = want %d have %d", wn.Want, wn.Have)
	}
	if n := f.mock.CallCount(provider.MethodSendTransaction); n != 0 {
		t.Errorf("no transaction should be sent, got %d", n)
	}
}

func TestWriteSwitchesNetworkFirst(t *testing.T) {
	f := newFixture(t, 1, true, alice)
	if _, err := f.client.CreateCase(context.Background(), "A", ""); err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if f.mock.ChainID() != 31337 {
		t.Errorf("expected the guard to move the wallet to 31337, on %d", f.mock.ChainID())
	}
}

func TestWriteUserRejected(t *testing.T) {
	f := newFixture(t, 31337, true, alice)
	f.mock.On(provider.MethodSendTransaction, provider.Reject(provider.CodeUserRejected, "User denied transaction signature."))

	_, err := f.client.CreateCase(context.Background(), "A", "")
	if !apperrors.IsUserRejected(err) {
		t.Fatalf("expected UserRejected, got %v", err)
	}
	got := f.observed()
	if len(got) != 2 || got[1] != registry.StateRejected {
		t.Errorf("states = %v", got)
	}
	if n, _ := f.client.CaseCount(context.Background()); n != 0 {
		t.Errorf("rejected write must not change the ledger, count %d", n)
	}
}

func TestWriteRevertedAtSubmission(t *testing.T) {
	f := newFixture(t, 31337, true, alice)
	caseID := f.ledger.AddCase(bob, "Not mine", "", true)

	_, err := f.client.SetCaseStatus(context.Background(), caseID, false)
	var rev *apperrors.TransactionRevertedError
	if !errors.As(err, &rev) {
		t.Fatalf("expected TransactionReverted, got %v", err)
	}
	if rev.Reason != "Only case owner" {
		t.Errorf("reason = %q", rev.Reason)
	}
	got := f.observed()
	if len(got) == 0 || got[len(got)-1] != registry.StateReverted {
		t.Errorf("states = %v", got)
	}
}

func TestWriteRevertedInBlock(t *testing.T) {
	f := newFixture(t, 31337, true, alice)
	f.ledger.MineReverts(true)

	_, err := f.client.SubmitEvidence(context.Background(), 42, "bafymeta", "")
	var rev *apperrors.TransactionRevertedError
	if !errors.As(err, &rev) {
		t.Fatalf("expected TransactionReverted, got %v", err)
	}
	if rev.Hash == "" {
		t.Errorf("a mined revert should carry the transaction hash")
	}
}

func TestWriteWaitsForReceipt(t *testing.T) {
	f := newFixture(t, 31337, true, alice)
	f.ledger.SetConfirmationDelay(3)
	if _, err := f.client.CreateCase(context.Background(), "A", ""); err != nil {
		t.Fatalf("CreateCase: %v", err)
	}

	f.ledger.SetConfirmationDelay(1 << 20)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.client.CreateCase(ctx, "B", "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConcurrentWritesGetDistinctIDs(t *testing.T) {
	f := newFixture(t, 31337, true, alice)
	const n = 5

	var wg sync.WaitGroup
	ids := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.client.CreateCase(context.Background(), "case", "")
			if err != nil {
				t.Errorf("CreateCase: %v", err)
				return
			}
			ids <- *res.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint64]bool{}
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d ids, got %d", n, len(seen))
	}
}
