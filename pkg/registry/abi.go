package registry

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed registry.abi.json
var registryABIJSON string

// Contract methods
const (
	MethodCaseCount                = "caseCount"
	MethodGetCase                  = "getCase"
	MethodCreateCase               = "createCase"
	MethodSetCaseStatus            = "setCaseStatus"
	MethodGetEvidenceCount         = "getEvidenceCount"
	MethodGetEvidence              = "getEvidence"
	MethodSubmitEvidence           = "submitEvidence"
	MethodSetEvidenceAdmissibility = "setEvidenceAdmissibility"
)

// Contract events
const (
	EventCaseCreated                  = "CaseCreated"
	EventCaseStatusChanged            = "CaseStatusChanged"
	EventEvidenceSubmitted            = "EvidenceSubmitted"
	EventEvidenceAdmissibilityChanged = "EvidenceAdmissibilityChanged"
)

var (
	parsedOnce sync.Once
	parsedABI  abi.ABI
	parsedErr  error
)

// ABI returns the parsed registry contract ABI.
func ABI() (abi.ABI, error) {
	parsedOnce.Do(func() {
		parsedABI, parsedErr = abi.JSON(strings.NewReader(registryABIJSON))
	})
	return parsedABI, parsedErr
}

// CaseTuple is the on-chain layout returned by getCase.
type CaseTuple struct {
	Name        string
	Description string
	Owner       common.Address
	CreatedAt   *big.Int
	IsActive    bool
}

// EvidenceTuple is the on-chain layout returned by getEvidence.
type EvidenceTuple struct {
	MetadataCID  string
	Description  string
	Submitter    common.Address
	Timestamp    *big.Int
	IsAdmissible bool
}

func toUint64(v *big.Int, field string) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%s out of range: %s", field, v)
	}
	return v.Uint64(), nil
}

func (t CaseTuple) toCase(id uint64) (Case, error) {
	createdAt, err := toUint64(t.CreatedAt, "createdAt")
	if err != nil {
		return Case{}, err
	}
	return Case{
		ID:          id,
		Name:        t.Name,
		Description: t.Description,
		Owner:       t.Owner,
		CreatedAt:   createdAt,
		IsActive:    t.IsActive,
	}, nil
}

func (t EvidenceTuple) toEvidence(caseID, id uint64) (Evidence, error) {
	ts, err := toUint64(t.Timestamp, "timestamp")
	if err != nil {
		return Evidence{}, err
	}
	return Evidence{
		ID:           id,
		CaseID:       caseID,
		MetadataCID:  t.MetadataCID,
		Description:  t.Description,
		Submitter:    t.Submitter,
		Timestamp:    ts,
		IsAdmissible: t.IsAdmissible,
	}, nil
}
