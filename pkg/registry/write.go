package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/metrics"
	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// CreateCase opens a new case owned by the connected account. The result
// carries the new case id.
func (c *Client) CreateCase(ctx context.Context, name, description string) (WriteResult, error) {
	if strings.TrimSpace(name) == "" {
		return WriteResult{}, apperrors.NewValidationError("name", "case name is required", name)
	}
	return c.write(ctx, MethodCreateCase, EventCaseCreated, name, description)
}

// SetCaseStatus activates or closes a case. Only the case owner may do so.
func (c *Client) SetCaseStatus(ctx context.Context, caseID uint64, active bool) (WriteResult, error) {
	return c.write(ctx, MethodSetCaseStatus, "", new(big.Int).SetUint64(caseID), active)
}

// SubmitEvidence records a metadata CID under a case. The result carries
// the new evidence id.
func (c *Client) SubmitEvidence(ctx context.Context, caseID uint64, metadataCID, description string) (WriteResult, error) {
	if strings.TrimSpace(metadataCID) == "" {
		return WriteResult{}, apperrors.NewValidationError("metadataCID", "metadata CID is required", metadataCID)
	}
	return c.write(ctx, MethodSubmitEvidence, EventEvidenceSubmitted, new(big.Int).SetUint64(caseID), metadataCID, description)
}

// SetEvidenceAdmissibility marks an evidence item admissible or not.
func (c *Client) SetEvidenceAdmissibility(ctx context.Context, caseID, evidenceID uint64, admissible bool) (WriteResult, error) {
	return c.write(ctx, MethodSetEvidenceAdmissibility, "",
		new(big.Int).SetUint64(caseID), new(big.Int).SetUint64(evidenceID), admissible)
}

// write runs the guarded sign, submit and confirm sequence. idEvent names
// the event whose indexed id is returned in the result, if any.
func (c *Client) write(ctx context.Context, method, idEvent string, args ...any) (res WriteResult, err error) {
	start := time.Now()
	state := StateIdle
	var txHash common.Hash

	ctx, span := c.startSpan(ctx, method)
	defer func() {
		metrics.RecordLedgerWrite(method, state.String(), time.Since(start))
		span.SetAttributes(attribute.String("registry.state", state.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	transition := func(next WriteState) {
		state = next
		c.logger.ComponentDebug(logging.ComponentLedger, "write state",
			zap.String("method", method),
			zap.String("state", next.String()),
			zap.String("tx", txHash.Hex()))
		if c.observer != nil {
			c.observer(method, next, txHash)
		}
	}

	if c.session == nil || c.session.Provider() == nil {
		return WriteResult{}, apperrors.NewNotConnectedError(method)
	}
	from, ok := c.session.Account()
	if !ok {
		return WriteResult{}, apperrors.NewNotConnectedError(method)
	}
	if c.guard != nil {
		if err := c.guard.RequireCorrectNetwork(ctx); err != nil {
			return WriteResult{}, err
		}
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		transition(StateFailed)
		return WriteResult{}, apperrors.NewLedgerError(method, fmt.Errorf("pack: %w", err))
	}

	transition(StateAwaitingSignature)
	txHash, err = c.submit(ctx, from, data)
	if err != nil {
		switch {
		case provider.IsUserRejected(err):
			transition(StateRejected)
			return WriteResult{}, apperrors.NewUserRejectedError(method, err)
		case provider.IsExecutionReverted(err):
			transition(StateReverted)
			return WriteResult{}, apperrors.NewTransactionRevertedError("", revertReason(err), err)
		case ctx.Err() != nil:
			transition(StateFailed)
			return WriteResult{}, ctx.Err()
		default:
			transition(StateFailed)
			return WriteResult{}, apperrors.NewLedgerError(method, err)
		}
	}
	span.SetAttributes(attribute.String("registry.tx", txHash.Hex()))
	transition(StateSubmitted)

	receipt, err := c.waitReceipt(ctx, txHash)
	if err != nil {
		transition(StateFailed)
		if ctx.Err() != nil {
			return WriteResult{}, ctx.Err()
		}
		return WriteResult{}, apperrors.NewLedgerError(method, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		transition(StateReverted)
		return WriteResult{}, apperrors.NewTransactionRevertedError(txHash.Hex(), "", nil)
	}

	res = WriteResult{TxHash: txHash}
	if receipt.BlockNumber != nil && receipt.BlockNumber.IsUint64() {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if idEvent != "" {
		if id, found := c.idFromLogs(idEvent, receipt.Logs); found {
			res.ID = &id
		}
	}
	transition(StateConfirmed)
	c.logger.ComponentInfo(logging.ComponentLedger, "transaction confirmed",
		zap.String("method", method),
		zap.String("tx", txHash.Hex()),
		zap.Uint64("block", res.BlockNumber))
	return res, nil
}

// submit signs and sends the transaction. Only this step is serialized per session.
func (c *Client) submit(ctx context.Context, from common.Address, data []byte) (common.Hash, error) {
	unlock := c.session.LockSubmit()
	defer unlock()

	to := c.address
	raw, err := c.session.Provider().Request(ctx, provider.MethodSendTransaction, provider.TransactionArgs{
		From: from,
		To:   &to,
		Data: hexutil.Bytes(data),
	})
	if err != nil {
		return common.Hash{}, err
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return common.Hash{}, fmt.Errorf("decode transaction hash: %w", err)
	}
	b, err := hexutil.Decode(hash)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q", hash)
	}
	return common.BytesToHash(b), nil
}

func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// idFromLogs returns the id the contract assigned in event. CaseCreated
// indexes the case id first; EvidenceSubmitted indexes it second.
func (c *Client) idFromLogs(event string, logs []*types.Log) (uint64, bool) {
	ev, ok := c.abi.Events[event]
	if !ok {
		return 0, false
	}
	topic := 1
	if event == EventEvidenceSubmitted {
		topic = 2
	}
	for _, l := range logs {
		if l == nil || l.Address != c.address || len(l.Topics) <= topic || l.Topics[0] != ev.ID {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[topic].Bytes())
		if !id.IsUint64() {
			return 0, false
		}
		return id.Uint64(), true
	}
	return 0, false
}
