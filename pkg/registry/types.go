package registry

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Case is a legal case as recorded on the ledger. Only IsActive changes
// after creation.
type Case struct {
	ID          uint64
	Name        string
	Description string
	Owner       common.Address
	CreatedAt   uint64 // unix seconds, ledger block time
	IsActive    bool
}

// Title is the display alias of Name.
func (c Case) Title() string { return c.Name }

// Timestamp is the display alias of CreatedAt.
func (c Case) Timestamp() uint64 { return c.CreatedAt }

// Created returns CreatedAt as a time.
func (c Case) Created() time.Time { return time.Unix(int64(c.CreatedAt), 0).UTC() }

type caseJSON struct {
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Owner       common.Address `json:"owner"`
	CreatedAt   uint64         `json:"createdAt"`
	Timestamp   uint64         `json:"timestamp"`
	IsActive    bool           `json:"isActive"`
}

// MarshalJSON emits the canonical fields and their display aliases.
func (c Case) MarshalJSON() ([]byte, error) {
	return json.Marshal(caseJSON{
		ID:          c.ID,
		Name:        c.Name,
		Title:       c.Title(),
		Description: c.Description,
		Owner:       c.Owner,
		CreatedAt:   c.CreatedAt,
		Timestamp:   c.Timestamp(),
		IsActive:    c.IsActive,
	})
}

// UnmarshalJSON accepts canonical or alias spellings; canonical wins.
func (c *Case) UnmarshalJSON(data []byte) error {
	var v caseJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	name := v.Name
	if name == "" {
		name = v.Title
	}
	createdAt := v.CreatedAt
	if createdAt == 0 {
		createdAt = v.Timestamp
	}
	*c = Case{
		ID:          v.ID,
		Name:        name,
		Description: v.Description,
		Owner:       v.Owner,
		CreatedAt:   createdAt,
		IsActive:    v.IsActive,
	}
	return nil
}

// Evidence is an item attached to a case. MetadataCID points at the sidecar
// describing the stored file. Only IsAdmissible changes after submission.
type Evidence struct {
	ID           uint64
	CaseID       uint64
	MetadataCID  string
	Description  string
	Submitter    common.Address
	Timestamp    uint64 // unix seconds, ledger block time
	IsAdmissible bool
}

// Submitted returns Timestamp as a time.
func (e Evidence) Submitted() time.Time { return time.Unix(int64(e.Timestamp), 0).UTC() }

type evidenceJSON struct {
	ID           uint64         `json:"id"`
	CaseID       uint64         `json:"caseId"`
	MetadataCID  string         `json:"metadataCID"`
	Description  string         `json:"description"`
	Submitter    common.Address `json:"submitter"`
	Timestamp    uint64         `json:"timestamp"`
	IsAdmissible bool           `json:"isAdmissible"`
}

// MarshalJSON implements json.Marshaler.
func (e Evidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(evidenceJSON(e))
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Evidence) UnmarshalJSON(data []byte) error {
	var v evidenceJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = Evidence(v)
	return nil
}

// Summary counts a case's evidence by admissibility.
type Summary struct {
	CaseID     uint64 `json:"caseId"`
	Total      int    `json:"total"`
	Admissible int    `json:"admissible"`
	Pending    int    `json:"pending"`
}

// Summarize counts items; every item that is not admissible is pending.
func Summarize(caseID uint64, items []Evidence) Summary {
	s := Summary{CaseID: caseID, Total: len(items)}
	for _, e := range items {
		if e.IsAdmissible {
			s.Admissible++
		}
	}
	s.Pending = s.Total - s.Admissible
	return s
}

// WriteResult describes a confirmed write.
type WriteResult struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	// ID is the case or evidence id assigned by createCase or
	// submitEvidence, read from the receipt's event log when present.
	ID *uint64 `json:"id,omitempty"`
}
