// Package registry reads and writes the case registry contract. Reads are
// eth_call against the latest block with no caching; writes are signed by
// the session's provider and block until the receipt is available.
package registry

import (
	"context"
	"fmt"
	"math/big"
	"time"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/metrics"
	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/DeBrosOfficial/caseledger/pkg/telemetry"
	"github.com/DeBrosOfficial/caseledger/pkg/wallet"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often receipts are polled when no interval is configured.
const DefaultPollInterval = time.Second

// Backend is the read side of the ledger. *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client talks to one deployed registry contract.
type Client struct {
	backend  Backend
	address  common.Address
	abi      abi.ABI
	session  *wallet.Session
	guard    *wallet.NetworkGuard
	logger   *logging.ColoredLogger
	interval time.Duration
	observer StateObserver
	tracer   trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithSession enables writes signed through session and gated by guard.
func WithSession(session *wallet.Session, guard *wallet.NetworkGuard) Option {
	return func(c *Client) {
		c.session = session
		c.guard = guard
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.ColoredLogger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithStateObserver reports write state transitions to fn.
func WithStateObserver(fn StateObserver) Option {
	return func(c *Client) { c.observer = fn }
}

// NewClient returns a client for the contract at address.
func NewClient(backend Backend, address common.Address, opts ...Option) (*Client, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	c := &Client{
		backend:  backend,
		address:  address,
		abi:      parsed,
		logger:   logging.NewNop(),
		interval: DefaultPollInterval,
		tracer:   telemetry.Tracer("pkg/registry"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Address returns the contract address.
func (c *Client) Address() common.Address {
	return c.address
}

// CaseCount returns the number of cases. Case ids are 0..count-1.
func (c *Client) CaseCount(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, MethodCaseCount)
	if err != nil {
		return 0, apperrors.NewLedgerError(MethodCaseCount, err)
	}
	return c.unpackCount(MethodCaseCount, out)
}

// GetCase reads one case. Missing ids yield a NotFound error.
func (c *Client) GetCase(ctx context.Context, caseID uint64) (Case, error) {
	out, err := c.call(ctx, MethodGetCase, new(big.Int).SetUint64(caseID))
	if err != nil {
		if provider.IsExecutionReverted(err) {
			return Case{}, apperrors.NewNotFoundError("case", fmt.Sprint(caseID)).WithCause(err)
		}
		return Case{}, apperrors.NewLedgerError(MethodGetCase, err)
	}
	tuple, ok := abi.ConvertType(out[0], new(CaseTuple)).(*CaseTuple)
	if !ok {
		return Case{}, apperrors.NewLedgerError(MethodGetCase, fmt.Errorf("unexpected output %T", out[0]))
	}
	if tuple.Owner == (common.Address{}) {
		return Case{}, apperrors.NewNotFoundError("case", fmt.Sprint(caseID))
	}
	cs, err := tuple.toCase(caseID)
	if err != nil {
		return Case{}, apperrors.NewLedgerError(MethodGetCase, err)
	}
	return cs, nil
}

// EvidenceCount returns the number of evidence items in a case.
func (c *Client) EvidenceCount(ctx context.Context, caseID uint64) (uint64, error) {
	out, err := c.call(ctx, MethodGetEvidenceCount, new(big.Int).SetUint64(caseID))
	if err != nil {
		if provider.IsExecutionReverted(err) {
			return 0, apperrors.NewNotFoundError("case", fmt.Sprint(caseID)).WithCause(err)
		}
		return 0, apperrors.NewLedgerError(MethodGetEvidenceCount, err)
	}
	return c.unpackCount(MethodGetEvidenceCount, out)
}

// GetEvidence reads one evidence item. Missing ids yield a NotFound error.
func (c *Client) GetEvidence(ctx context.Context, caseID, evidenceID uint64) (Evidence, error) {
	out, err := c.call(ctx, MethodGetEvidence, new(big.Int).SetUint64(caseID), new(big.Int).SetUint64(evidenceID))
	if err != nil {
		if provider.IsExecutionReverted(err) {
			return Evidence{}, apperrors.NewNotFoundError("evidence", fmt.Sprintf("%d/%d", caseID, evidenceID)).WithCause(err)
		}
		return Evidence{}, apperrors.NewLedgerError(MethodGetEvidence, err)
	}
	tuple, ok := abi.ConvertType(out[0], new(EvidenceTuple)).(*EvidenceTuple)
	if !ok {
		return Evidence{}, apperrors.NewLedgerError(MethodGetEvidence, fmt.Errorf("unexpected output %T", out[0]))
	}
	if tuple.Submitter == (common.Address{}) {
		return Evidence{}, apperrors.NewNotFoundError("evidence", fmt.Sprintf("%d/%d", caseID, evidenceID))
	}
	ev, err := tuple.toEvidence(caseID, evidenceID)
	if err != nil {
		return Evidence{}, apperrors.NewLedgerError(MethodGetEvidence, err)
	}
	return ev, nil
}

// ListCases reads the count and then every case in id order.
func (c *Client) ListCases(ctx context.Context) ([]Case, error) {
	count, err := c.CaseCount(ctx)
	if err != nil {
		return nil, err
	}
	cases := make([]Case, 0, count)
	for id := uint64(0); id < count; id++ {
		cs, err := c.GetCase(ctx, id)
		if err != nil {
			return nil, err
		}
		cases = append(cases, cs)
	}
	return cases, nil
}

// ListEvidence reads the count and then every item of a case in id order.
func (c *Client) ListEvidence(ctx context.Context, caseID uint64) ([]Evidence, error) {
	count, err := c.EvidenceCount(ctx, caseID)
	if err != nil {
		return nil, err
	}
	items := make([]Evidence, 0, count)
	for id := uint64(0); id < count; id++ {
		ev, err := c.GetEvidence(ctx, caseID, id)
		if err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	return items, nil
}

// Summarize counts a case's evidence by admissibility.
func (c *Client) Summarize(ctx context.Context, caseID uint64) (Summary, error) {
	items, err := c.ListEvidence(ctx, caseID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(caseID, items), nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := c.address
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	metrics.RecordLedgerRead(method, err)
	if err != nil {
		c.logger.ComponentDebug(logging.ComponentLedger, "eth_call failed", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty result from %s: no registry contract at %s", method, c.address.Hex())
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unpack %s: no outputs", method)
	}
	return out, nil
}

func (c *Client) unpackCount(method string, out []interface{}) (uint64, error) {
	n, ok := out[0].(*big.Int)
	if !ok {
		return 0, apperrors.NewLedgerError(method, fmt.Errorf("unexpected output %T", out[0]))
	}
	v, err := toUint64(n, "count")
	if err != nil {
		return 0, apperrors.NewLedgerError(method, err)
	}
	return v, nil
}

func (c *Client) startSpan(ctx context.Context, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "registry."+method, trace.WithAttributes(
		append(attrs, attribute.String("registry.address", c.address.Hex()))...,
	))
}
