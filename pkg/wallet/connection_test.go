package wallet

import (
	"context"
	"sync"
	"testing"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func TestConnectNoProvider(t *testing.T) {
	m := NewConnectionManager(NewSession(nil), nil)
	_, err := m.Connect(context.Background())
	if !apperrors.IsProviderUnavailable(err) {
		t.Fatalf("expected ProviderUnavailable, got %v", err)
	}
	if _, ok := m.CurrentAccount(); ok {
		t.Error("no account expected")
	}
}

func TestConnectRejected(t *testing.T) {
	p := provider.NewMockProvider(31337, alice)
	p.On(provider.MethodRequestAccounts, provider.Reject(provider.CodeUserRejected, "User rejected the request."))

	m := NewConnectionManager(NewSession(p), nil)
	_, err := m.Connect(context.Background())
	if !apperrors.IsUserRejected(err) {
		t.Fatalf("expected UserRejected, got %v", err)
	}
	if _, ok := m.CurrentAccount(); ok {
		t.Error("rejected connect must not set an account")
	}
}

func TestConnectNoAccountsGranted(t *testing.T) {
	p := provider.NewMockProvider(31337)
	m := NewConnectionManager(NewSession(p), nil)
	if _, err := m.Connect(context.Background()); !apperrors.IsUserRejected(err) {
		t.Fatalf("expected UserRejected for empty grant, got %v", err)
	}
}

func TestConnectIdempotent(t *testing.T) {
	p := provider.NewMockProvider(31337, alice, bob)
	m := NewConnectionManager(NewSession(p), nil)
	defer m.Close()

	first, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if first != alice {
		t.Fatalf("expected primary account %s, got %s", alice, first)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := m.Connect(context.Background())
			if err != nil || again != first {
				t.Errorf("Connect again = %s, %v", again, err)
			}
		}()
	}
	wg.Wait()

	if n := p.CallCount(provider.MethodRequestAccounts); n != 1 {
		t.Errorf("expected exactly one provider request, got %d", n)
	}
	current, ok := m.CurrentAccount()
	if !ok || current != alice {
		t.Errorf("CurrentAccount = %s, %v", current, ok)
	}
}

func TestConnectFollowsAccountsChanged(t *testing.T) {
	p := provider.NewMockProvider(31337, alice)
	m := NewConnectionManager(NewSession(p), nil)
	defer m.Close()

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.SetAccounts(bob)
	if current, _ := m.CurrentAccount(); current != bob {
		t.Fatalf("expected account to follow provider, got %s", current)
	}

	p.SetAccounts()
	if _, ok := m.CurrentAccount(); ok {
		t.Fatal("empty accountsChanged should clear the session account")
	}

	// A cleared session asks the provider again.
	p.SetAccounts(alice)
	if got, err := m.Connect(context.Background()); err != nil || got != alice {
		t.Fatalf("reconnect = %s, %v", got, err)
	}
	if n := p.CallCount(provider.MethodRequestAccounts); n != 2 {
		t.Errorf("expected a second provider request after teardown, got %d", n)
	}
}

func TestSessionLockSubmitSerializes(t *testing.T) {
	s := NewSession(nil)
	unlock := s.LockSubmit()

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		s.LockSubmit()()
	}()

	select {
	case <-acquired:
		t.Fatal("second submitter must wait")
	default:
	}
	unlock()
	<-acquired
}
