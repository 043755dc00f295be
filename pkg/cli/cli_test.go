package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DeBrosOfficial/caseledger/pkg/app"
	"github.com/DeBrosOfficial/caseledger/pkg/contentstore"
	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/DeBrosOfficial/caseledger/pkg/registry/registrytest"
	"github.com/ethereum/go-ethereum/common"
)

var alice = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type harness struct {
	t      *testing.T
	config string
	ledger *registrytest.Ledger
	mock   *provider.MockProvider
	opts   []app.Option
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
registry:
  receipt_poll_interval: 1ms
storage:
  backend: memory
index:
  enabled: false
logging:
  level: error
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	h := &harness{
		t:      t,
		config: path,
		ledger: registrytest.NewLedger(),
		mock:   provider.NewMockProvider(31337, alice),
	}
	h.ledger.Attach(h.mock)
	h.opts = []app.Option{
		app.WithProvider(h.mock),
		app.WithBackend(h.ledger),
		app.WithObjectStore(contentstore.NewMemoryBackend()),
	}
	return h
}

// run executes evidencectl with args and returns stdout, stderr and the error.
func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()
	root := NewRootCmd(BuildInfo{Version: "test"}, h.opts...)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", h.config}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, _, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("evidencectl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestCaseLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("case", "create", "Smith v. Johnson", "-d", "Contract dispute")
	if !strings.Contains(out, "Case created") || !strings.Contains(out, "ID:     0") {
		t.Fatalf("create output:\n%s", out)
	}

	out = h.mustRun("--format", "json", "case", "get", "0")
	var c registry.Case
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("decode case: %v\n%s", err, out)
	}
	if c.Name != "Smith v. Johnson" || !c.IsActive || c.Owner != alice {
		t.Fatalf("case = %+v", c)
	}

	h.mustRun("case", "status", "0", "closed")
	out = h.mustRun("case", "list")
	if !strings.Contains(out, "closed") || !strings.Contains(out, "Total: 1") {
		t.Fatalf("list output:\n%s", out)
	}
}

func TestEvidenceLifecycle(t *testing.T) {
	h := newHarness(t)
	h.mustRun("case", "create", "Smith v. Johnson")

	dir := t.TempDir()
	contract := filepath.Join(dir, "contract.txt")
	if err := os.WriteFile(contract, []byte("signed by both parties"), 0o600); err != nil {
		t.Fatal(err)
	}
	email := filepath.Join(dir, "email.txt")
	if err := os.WriteFile(email, []byte("re: delivery"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := h.mustRun("--format", "json", "evidence", "submit", "0", contract, "-d", "Signed contract")
	var sub struct {
		Upload contentstore.Upload  `json:"upload"`
		Write  registry.WriteResult `json:"write"`
	}
	if err := json.Unmarshal([]byte(out), &sub); err != nil {
		t.Fatalf("decode submission: %v\n%s", err, out)
	}
	if sub.Write.ID == nil || *sub.Write.ID != 0 {
		t.Fatalf("submission = %+v", sub)
	}
	if !strings.HasPrefix(sub.Upload.Sidecar.Properties.Type, "text/plain") {
		t.Errorf("content type = %q", sub.Upload.Sidecar.Properties.Type)
	}
	h.mustRun("evidence", "submit", "0", email)

	h.mustRun("evidence", "admit", "0", "0")
	out = h.mustRun("case", "summary", "0")
	for _, want := range []string{"Total:       2", "Admissible:  1", "Pending:     1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	saved := filepath.Join(dir, "copy.txt")
	out = h.mustRun("evidence", "resolve", "0", "0", "-o", saved)
	if !strings.Contains(out, "contract.txt") || !strings.Contains(out, "https://ipfs.io/ipfs/"+sub.Upload.FileCID) {
		t.Fatalf("resolve output:\n%s", out)
	}
	data, err := os.ReadFile(saved)
	if err != nil || string(data) != "signed by both parties" {
		t.Fatalf("saved file = %q, %v", data, err)
	}

	h.mustRun("evidence", "admit", "0", "0", "--reject")
	out = h.mustRun("evidence", "list", "0")
	if strings.Contains(out, "admissible") {
		t.Fatalf("list after reject:\n%s", out)
	}
}

func TestWriteStatesReported(t *testing.T) {
	h := newHarness(t)
	_, stderr, err := h.run("case", "create", "Doe v. Roe")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, want := range []string{"awaiting", "submitted", "confirmed"} {
		if !strings.Contains(strings.ToLower(stderr), want) {
			t.Errorf("progress missing %q:\n%s", want, stderr)
		}
	}
}

func TestErrorsCarryHints(t *testing.T) {
	h := newHarness(t)
	h.mock.On(provider.MethodRequestAccounts, provider.Reject(provider.CodeUserRejected, "User rejected the request."))

	root := NewRootCmd(BuildInfo{}, h.opts...)
	var stderr bytes.Buffer
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", h.config, "case", "create", "X"})
	if code := Execute(root, &stderr); code != ExitWallet {
		t.Fatalf("exit code = %d, want %d", code, ExitWallet)
	}
	if !strings.Contains(stderr.String(), "Error:") || !strings.Contains(stderr.String(), "Hint:") {
		t.Fatalf("stderr:\n%s", stderr.String())
	}
}

func TestErrorOutputFormats(t *testing.T) {
	h := newHarness(t)
	h.mock.On(provider.MethodRequestAccounts, provider.Reject(provider.CodeUserRejected, "User rejected the request."))

	root := NewRootCmd(BuildInfo{}, h.opts...)
	var stderr bytes.Buffer
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", h.config, "--format", "json", "case", "create", "X"})
	Execute(root, &stderr)

	var out struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Hint    string `json:"hint"`
	}
	if err := json.Unmarshal(stderr.Bytes(), &out); err != nil {
		t.Fatalf("decode stderr: %v\n%s", err, stderr.String())
	}
	if out.Code != apperrors.CodeUserRejected || out.Hint == "" {
		t.Errorf("unexpected error output %+v", out)
	}
	if !strings.Contains(out.Message, "rejected by user") || !strings.Contains(out.Detail, out.Message) {
		t.Errorf("message %q should be the typed message inside detail %q", out.Message, out.Detail)
	}

	root = NewRootCmd(BuildInfo{}, h.opts...)
	stderr.Reset()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", h.config, "-v", "case", "create", "X"})
	Execute(root, &stderr)
	if !strings.Contains(stderr.String(), "Stack:") || !strings.Contains(stderr.String(), "caseledger/pkg/wallet") {
		t.Errorf("verbose output should carry the stack trace:\n%s", stderr.String())
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain", errors.New("accepts 1 arg(s), received 0"), ExitFailure},
		{"not found", apperrors.NewNotFoundError("case", "9"), ExitUsage},
		{"wrong network", apperrors.NewWrongNetworkError(31337, 1), ExitWallet},
		{"reverted", apperrors.NewTransactionRevertedError("0xabc", "", nil), ExitLedger},
		{"upload", apperrors.NewUploadFailureError("file", nil), ExitNetwork},
		{"wrapped", fmt.Errorf("create case: %w", apperrors.NewUserRejectedError("createCase", nil)), ExitWallet},
		{"ledger rpc", fmt.Errorf("list cases: %w", apperrors.NewLedgerError("caseCount", errors.New("dial"))), ExitLedger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestArgumentValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"--format", "xml", "version"}},
		{"bad case id", []string{"case", "get", "one"}},
		{"bad status", []string{"case", "status", "1", "archived"}},
		{"missing file", []string{"evidence", "submit", "1", "/does/not/exist"}},
		{"bad cid", []string{"url", "not-a-cid"}},
		{"unknown case", []string{"case", "get", "99"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := h.run(tt.args...); err == nil {
				t.Fatalf("evidencectl %v succeeded", tt.args)
			}
		})
	}
}

func TestConnectNetworkAndURL(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("connect")
	if !strings.Contains(out, alice.Hex()) {
		t.Fatalf("connect output:\n%s", out)
	}

	h.mock.SetChainID(1)
	out = h.mustRun("connect")
	if !strings.Contains(out, "network ensure") {
		t.Fatalf("connect on wrong chain:\n%s", out)
	}
	h.mustRun("network", "ensure")
	if h.mock.ChainID() != 31337 {
		t.Fatalf("chain = %d after ensure", h.mock.ChainID())
	}

	id, err := contentstore.RawCID([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	out = h.mustRun("url", "ipfs://"+id.String())
	if strings.TrimSpace(out) != "https://ipfs.io/ipfs/"+id.String() {
		t.Fatalf("url output = %q", out)
	}

	out = h.mustRun("version")
	if !strings.HasPrefix(out, "evidencectl test") {
		t.Fatalf("version output = %q", out)
	}
}
