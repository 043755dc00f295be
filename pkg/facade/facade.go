// Package facade is the read/write entry point used by the CLI. Reads try
// the auxiliary index and fall back to the ledger; writes go to the ledger
// only.
package facade

import (
	"context"

	"github.com/DeBrosOfficial/caseledger/pkg/contentstore"
	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/metrics"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"go.uber.org/zap"
)

// Ledger is the authoritative store. *registry.Client implements it.
type Ledger interface {
	GetCase(ctx context.Context, caseID uint64) (registry.Case, error)
	GetEvidence(ctx context.Context, caseID, evidenceID uint64) (registry.Evidence, error)
	ListCases(ctx context.Context) ([]registry.Case, error)
	ListEvidence(ctx context.Context, caseID uint64) ([]registry.Evidence, error)
	Summarize(ctx context.Context, caseID uint64) (registry.Summary, error)

	CreateCase(ctx context.Context, name, description string) (registry.WriteResult, error)
	SetCaseStatus(ctx context.Context, caseID uint64, active bool) (registry.WriteResult, error)
	SubmitEvidence(ctx context.Context, caseID uint64, metadataCID, description string) (registry.WriteResult, error)
	SetEvidenceAdmissibility(ctx context.Context, caseID, evidenceID uint64, admissible bool) (registry.WriteResult, error)
}

// Index is the auxiliary read index. *index.Client implements it.
type Index interface {
	GetCase(ctx context.Context, caseID uint64) (registry.Case, error)
	GetEvidence(ctx context.Context, caseID, evidenceID uint64) (registry.Evidence, error)
}

// Content stores evidence files. *contentstore.Store implements it.
type Content interface {
	UploadEvidence(ctx context.Context, file contentstore.EvidenceFile, caseID uint64, description string) (contentstore.Upload, error)
	Resolve(ctx context.Context, metadataCID string) (*contentstore.Sidecar, []byte, error)
	ResolveURL(cid string) string
}

// Facade combines the ledger, the optional index and the content store.
type Facade struct {
	ledger  Ledger
	index   Index
	content Content
	logger  *logging.ColoredLogger
}

// Option configures a Facade.
type Option func(*Facade)

// WithIndex enables index-first reads.
func WithIndex(idx Index) Option {
	return func(f *Facade) { f.index = idx }
}

// WithContent enables file uploads and resolution.
func WithContent(c Content) Option {
	return func(f *Facade) { f.content = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.ColoredLogger) Option {
	return func(f *Facade) { f.logger = logging.OrNop(l) }
}

// New returns a facade over ledger.
func New(ledger Ledger, opts ...Option) *Facade {
	f := &Facade{ledger: ledger, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetCase reads a case from the index, or from the ledger if the index fails.
func (f *Facade) GetCase(ctx context.Context, caseID uint64) (registry.Case, error) {
	sources := []Source[registry.Case]{}
	if f.index != nil {
		sources = append(sources, Source[registry.Case]{Name: SourceIndex, Fetch: func(ctx context.Context) (registry.Case, error) {
			c, err := f.index.GetCase(ctx, caseID)
			if err != nil {
				f.fallback("case", err)
			}
			return c, err
		}})
	}
	sources = append(sources, Source[registry.Case]{Name: SourceLedger, Fetch: func(ctx context.Context) (registry.Case, error) {
		return f.ledger.GetCase(ctx, caseID)
	}})

	c, source, err := FirstOf(ctx, sources...)
	f.report("case", source, err, zap.Uint64("case_id", caseID))
	return c, err
}

// GetEvidence reads an evidence item from the index, or from the ledger if
// the index fails.
func (f *Facade) GetEvidence(ctx context.Context, caseID, evidenceID uint64) (registry.Evidence, error) {
	sources := []Source[registry.Evidence]{}
	if f.index != nil {
		sources = append(sources, Source[registry.Evidence]{Name: SourceIndex, Fetch: func(ctx context.Context) (registry.Evidence, error) {
			ev, err := f.index.GetEvidence(ctx, caseID, evidenceID)
			if err != nil {
				f.fallback("evidence", err)
			}
			return ev, err
		}})
	}
	sources = append(sources, Source[registry.Evidence]{Name: SourceLedger, Fetch: func(ctx context.Context) (registry.Evidence, error) {
		return f.ledger.GetEvidence(ctx, caseID, evidenceID)
	}})

	ev, source, err := FirstOf(ctx, sources...)
	f.report("evidence", source, err, zap.Uint64("case_id", caseID), zap.Uint64("evidence_id", evidenceID))
	return ev, err
}

// ListCases reads every case from the ledger.
func (f *Facade) ListCases(ctx context.Context) ([]registry.Case, error) {
	return f.ledger.ListCases(ctx)
}

// ListEvidence reads every evidence item of a case from the ledger.
func (f *Facade) ListEvidence(ctx context.Context, caseID uint64) ([]registry.Evidence, error) {
	return f.ledger.ListEvidence(ctx, caseID)
}

// Summarize counts a case's evidence on the ledger.
func (f *Facade) Summarize(ctx context.Context, caseID uint64) (registry.Summary, error) {
	return f.ledger.Summarize(ctx, caseID)
}

// CreateCase writes a new case to the ledger.
func (f *Facade) CreateCase(ctx context.Context, name, description string) (registry.WriteResult, error) {
	return f.ledger.CreateCase(ctx, name, description)
}

// SetCaseStatus writes a case's active flag to the ledger.
func (f *Facade) SetCaseStatus(ctx context.Context, caseID uint64, active bool) (registry.WriteResult, error) {
	return f.ledger.SetCaseStatus(ctx, caseID, active)
}

// SubmitEvidence records an already uploaded metadata CID on the ledger.
func (f *Facade) SubmitEvidence(ctx context.Context, caseID uint64, metadataCID, description string) (registry.WriteResult, error) {
	return f.ledger.SubmitEvidence(ctx, caseID, metadataCID, description)
}

// SetEvidenceAdmissibility writes the admissibility flag to the ledger.
func (f *Facade) SetEvidenceAdmissibility(ctx context.Context, caseID, evidenceID uint64, admissible bool) (registry.WriteResult, error) {
	return f.ledger.SetEvidenceAdmissibility(ctx, caseID, evidenceID, admissible)
}

// SubmissionResult is the outcome of SubmitEvidenceFile.
type SubmissionResult struct {
	Upload contentstore.Upload  `json:"upload"`
	Write  registry.WriteResult `json:"write"`
}

// SubmitEvidenceFile uploads file and its sidecar, then records the sidecar
// CID on the ledger. Nothing is written to the ledger if the upload fails.
func (f *Facade) SubmitEvidenceFile(ctx context.Context, caseID uint64, file contentstore.EvidenceFile, description string) (SubmissionResult, error) {
	if f.content == nil {
		return SubmissionResult{}, apperrors.NewInternalError("no content store configured", nil).WithOperation("SubmitEvidenceFile")
	}
	up, err := f.content.UploadEvidence(ctx, file, caseID, description)
	if err != nil {
		return SubmissionResult{}, err
	}
	res, err := f.ledger.SubmitEvidence(ctx, caseID, up.MetadataCID, description)
	if err != nil {
		// The uploaded objects stay in the content store; they are
		// unreferenced but harmless and the next attempt reuses their CIDs.
		f.logger.ComponentWarn(logging.ComponentFacade, "ledger write failed after upload",
			zap.String("metadata_cid", up.MetadataCID), zap.Error(err))
		return SubmissionResult{Upload: up}, err
	}
	return SubmissionResult{Upload: up, Write: res}, nil
}

// Resolved is an evidence item with its sidecar and file contents.
type Resolved struct {
	Evidence registry.Evidence     `json:"evidence"`
	Sidecar  *contentstore.Sidecar `json:"sidecar"`
	FileURL  string                `json:"fileUrl"`
	Data     []byte                `json:"-"`
}

// ResolveEvidence reads an evidence item and follows its metadata CID to
// the stored file.
func (f *Facade) ResolveEvidence(ctx context.Context, caseID, evidenceID uint64) (Resolved, error) {
	if f.content == nil {
		return Resolved{}, apperrors.NewInternalError("no content store configured", nil).WithOperation("ResolveEvidence")
	}
	ev, err := f.GetEvidence(ctx, caseID, evidenceID)
	if err != nil {
		return Resolved{}, err
	}
	sc, data, err := f.content.Resolve(ctx, ev.MetadataCID)
	if err != nil {
		return Resolved{}, err
	}
	fileRef, _ := sc.FileRef()
	return Resolved{Evidence: ev, Sidecar: sc, FileURL: f.content.ResolveURL(fileRef), Data: data}, nil
}

// fallback logs an index failure before the ledger is consulted.
func (f *Facade) fallback(entity string, err error) {
	metrics.RecordFacadeRead(entity, SourceIndex, err)
	f.logger.ComponentWarn(logging.ComponentFacade, "aux index unavailable, reading ledger",
		zap.String("entity", entity), zap.Error(err))
}

func (f *Facade) report(entity, source string, err error, fields ...zap.Field) {
	metrics.RecordFacadeRead(entity, source, err)
	fields = append(fields, zap.String("source", source))
	if err != nil {
		f.logger.ComponentDebug(logging.ComponentFacade, entity+" read failed", append(fields, zap.Error(err))...)
		return
	}
	f.logger.ComponentDebug(logging.ComponentFacade, entity+" read", fields...)
}
