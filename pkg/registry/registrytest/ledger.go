// Package registrytest provides an in-memory registry contract for tests.
// It serves eth_call and receipt lookups as a registry.Backend and executes
// eth_sendTransaction requests routed to it from a provider.MockProvider.
package registrytest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address is the default contract address used by NewLedger.
var Address = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

var errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

type caseRecord struct {
	registry.CaseTuple
	evidence []registry.EvidenceTuple
}

// Ledger is a single registry contract with instant block production.
type Ledger struct {
	mu        sync.Mutex
	abi       abi.ABI
	address   common.Address
	cases     []*caseRecord
	receipts  map[common.Hash]*types.Receipt
	polls     map[common.Hash]int
	nonce     uint64
	block     uint64
	reads     int
	callErr   error
	delay     int
	mineFails bool
	now       func() time.Time
}

// NewLedger returns an empty ledger deployed at Address.
func NewLedger() *Ledger {
	parsed, err := registry.ABI()
	if err != nil {
		panic(err)
	}
	return &Ledger{
		abi:      parsed,
		address:  Address,
		receipts: make(map[common.Hash]*types.Receipt),
		polls:    make(map[common.Hash]int),
		block:    1,
		now:      time.Now,
	}
}

// ContractAddress returns the address the ledger answers for.
func (l *Ledger) ContractAddress() common.Address {
	return l.address
}

// AddCase seeds a case without a transaction and returns its id.
func (l *Ledger) AddCase(owner common.Address, name, description string, active bool) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cases = append(l.cases, &caseRecord{CaseTuple: registry.CaseTuple{
		Name:        name,
		Description: description,
		Owner:       owner,
		CreatedAt:   big.NewInt(l.now().Unix()),
		IsActive:    active,
	}})
	return uint64(len(l.cases) - 1)
}

// AddEvidence seeds an evidence item without a transaction and returns its id.
func (l *Ledger) AddEvidence(caseID uint64, submitter common.Address, metadataCID, description string, admissible bool) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.cases[caseID]
	c.evidence = append(c.evidence, registry.EvidenceTuple{
		MetadataCID:  metadataCID,
		Description:  description,
		Submitter:    submitter,
		Timestamp:    big.NewInt(l.now().Unix()),
		IsAdmissible: admissible,
	})
	return uint64(len(c.evidence) - 1)
}

// Reads returns the number of eth_call requests served.
func (l *Ledger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// ResetReads zeroes the read counter.
func (l *Ledger) ResetReads() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads = 0
}

// FailCalls makes every eth_call fail with err until cleared with nil.
func (l *Ledger) FailCalls(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callErr = err
}

// SetConfirmationDelay makes each receipt unavailable for the first n lookups.
func (l *Ledger) SetConfirmationDelay(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = n
}

// MineReverts makes rejected transactions land in a block with status 0
// instead of failing at submission.
func (l *Ledger) MineReverts(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mineFails = on
}

// Attach routes eth_sendTransaction requests made through m to the ledger.
func (l *Ledger) Attach(m *provider.MockProvider) {
	m.On(provider.MethodSendTransaction, func(params []json.RawMessage) (any, error) {
		if len(params) != 1 {
			return nil, provider.NewRPCError(provider.CodeInvalidParams, "expected one transaction object")
		}
		var tx provider.TransactionArgs
		if err := json.Unmarshal(params[0], &tx); err != nil {
			return nil, provider.NewRPCError(provider.CodeInvalidParams, err.Error())
		}
		hash, err := l.SendTransaction(tx)
		if err != nil {
			return nil, err
		}
		return hash.Hex(), nil
	})
}

// CallContract implements registry.Backend.
func (l *Ledger) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.callErr != nil {
		return nil, l.callErr
	}
	if call.To == nil || *call.To != l.address {
		return nil, nil
	}
	method, args, err := l.decode(call.Data)
	if err != nil {
		return nil, provider.NewRPCError(provider.CodeInternal, err.Error())
	}

	switch method.Name {
	case registry.MethodCaseCount:
		return method.Outputs.Pack(big.NewInt(int64(len(l.cases))))
	case registry.MethodGetCase:
		c, rerr := l.lookupCase(args[0].(*big.Int))
		if rerr != nil {
			return nil, rerr
		}
		return method.Outputs.Pack(c.CaseTuple)
	case registry.MethodGetEvidenceCount:
		c, rerr := l.lookupCase(args[0].(*big.Int))
		if rerr != nil {
			return nil, rerr
		}
		return method.Outputs.Pack(big.NewInt(int64(len(c.evidence))))
	case registry.MethodGetEvidence:
		c, rerr := l.lookupCase(args[0].(*big.Int))
		if rerr != nil {
			return nil, rerr
		}
		id := args[1].(*big.Int)
		if !id.IsUint64() || id.Uint64() >= uint64(len(c.evidence)) {
			return nil, revert("Evidence does not exist")
		}
		return method.Outputs.Pack(c.evidence[id.Uint64()])
	default:
		return nil, provider.NewRPCError(provider.CodeInternal, fmt.Sprintf("%s is not a view", method.Name))
	}
}

// TransactionReceipt implements registry.Backend.
func (l *Ledger) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if l.polls[hash] > 0 {
		l.polls[hash]--
		return nil, ethereum.NotFound
	}
	return r, nil
}

// SendTransaction executes tx against the contract state and mines it.
func (l *Ledger) SendTransaction(tx provider.TransactionArgs) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tx.To == nil || *tx.To != l.address {
		return common.Hash{}, provider.NewRPCError(provider.CodeInvalidParams, "unknown contract")
	}
	method, args, err := l.decode(tx.Data)
	if err != nil {
		return common.Hash{}, provider.NewRPCError(provider.CodeInvalidParams, err.Error())
	}

	logs, execErr := l.execute(tx.From, method, args)
	if execErr != nil && !l.mineFails {
		return common.Hash{}, execErr
	}

	l.nonce++
	l.block++
	hash := crypto.Keccak256Hash(tx.From.Bytes(), tx.Data, new(big.Int).SetUint64(l.nonce).Bytes())
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(l.block),
		Logs:        logs,
	}
	if execErr != nil {
		receipt.Status = types.ReceiptStatusFailed
		receipt.Logs = nil
	}
	for _, lg := range receipt.Logs {
		lg.TxHash = hash
		lg.BlockNumber = l.block
	}
	l.receipts[hash] = receipt
	l.polls[hash] = l.delay
	return hash, nil
}

func (l *Ledger) execute(from common.Address, method *abi.Method, args []interface{}) ([]*types.Log, error) {
	switch method.Name {
	case registry.MethodCreateCase:
		name, description := args[0].(string), args[1].(string)
		if name == "" {
			return nil, revert("Name required")
		}
		l.cases = append(l.cases, &caseRecord{CaseTuple: registry.CaseTuple{
			Name:        name,
			Description: description,
			Owner:       from,
			CreatedAt:   big.NewInt(l.now().Unix()),
			IsActive:    true,
		}})
		id := big.NewInt(int64(len(l.cases) - 1))
		return l.emit(registry.EventCaseCreated, []common.Hash{common.BigToHash(id), addressTopic(from)}, name)

	case registry.MethodSetCaseStatus:
		id := args[0].(*big.Int)
		c, err := l.lookupCase(id)
		if err != nil {
			return nil, err
		}
		if c.Owner != from {
			return nil, revert("Only case owner")
		}
		c.IsActive = args[1].(bool)
		return l.emit(registry.EventCaseStatusChanged, []common.Hash{common.BigToHash(id)}, c.IsActive)

	case registry.MethodSubmitEvidence:
		id := args[0].(*big.Int)
		c, err := l.lookupCase(id)
		if err != nil {
			return nil, err
		}
		if !c.IsActive {
			return nil, revert("Case is not active")
		}
		cid, description := args[1].(string), args[2].(string)
		c.evidence = append(c.evidence, registry.EvidenceTuple{
			MetadataCID: cid,
			Description: description,
			Submitter:   from,
			Timestamp:   big.NewInt(l.now().Unix()),
		})
		evID := big.NewInt(int64(len(c.evidence) - 1))
		return l.emit(registry.EventEvidenceSubmitted,
			[]common.Hash{common.BigToHash(id), common.BigToHash(evID), addressTopic(from)}, cid)

	case registry.MethodSetEvidenceAdmissibility:
		id, evID := args[0].(*big.Int), args[1].(*big.Int)
		c, err := l.lookupCase(id)
		if err != nil {
			return nil, err
		}
		if c.Owner != from {
			return nil, revert("Only case owner")
		}
		if !evID.IsUint64() || evID.Uint64() >= uint64(len(c.evidence)) {
			return nil, revert("Evidence does not exist")
		}
		c.evidence[evID.Uint64()].IsAdmissible = args[2].(bool)
		return l.emit(registry.EventEvidenceAdmissibilityChanged,
			[]common.Hash{common.BigToHash(id), common.BigToHash(evID)}, args[2].(bool))
	}
	return nil, provider.NewRPCError(provider.CodeInvalidParams, fmt.Sprintf("%s is not a transaction", method.Name))
}

func (l *Ledger) emit(event string, indexed []common.Hash, data ...interface{}) ([]*types.Log, error) {
	ev, ok := l.abi.Events[event]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", event)
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, err
	}
	return []*types.Log{{
		Address: l.address,
		Topics:  append([]common.Hash{ev.ID}, indexed...),
		Data:    packed,
	}}, nil
}

func (l *Ledger) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("calldata too short")
	}
	method, err := l.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (l *Ledger) lookupCase(id *big.Int) (*caseRecord, error) {
	if !id.IsUint64() || id.Uint64() >= uint64(len(l.cases)) {
		return nil, revert("Case does not exist")
	}
	return l.cases[id.Uint64()], nil
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

// revert builds the error a node returns for require(false, reason).
func revert(reason string) error {
	stringTy, _ := abi.NewType("string", "", nil)
	encoded, _ := abi.Arguments{{Type: stringTy}}.Pack(reason)
	data, _ := json.Marshal(hexutil.Encode(append(append([]byte{}, errorSelector...), encoded...)))
	return &provider.RPCError{
		Code:    provider.CodeExecutionReverted,
		Message: "execution reverted: " + reason,
		Data:    data,
	}
}
