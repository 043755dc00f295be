// Package contentstore puts evidence files and their JSON sidecars into a
// content-addressed object store and resolves them back.
//
// An evidence upload is two hops: the file is stored first (cid1), then a
// sidecar whose image field is ipfs://<cid1> is stored (cid2). The ledger
// only ever records cid2.
package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/metrics"
	"github.com/DeBrosOfficial/caseledger/pkg/telemetry"
	"github.com/ipfs/go-cid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Scheme is the URI prefix used for content references.
const Scheme = "ipfs://"

const (
	maxSidecarNameLen = 100
	maxSidecarSize    = 1 << 20
)

// ErrObjectNotFound is returned by backends for unknown CIDs.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is a content-addressed blob store.
type ObjectStore interface {
	Add(ctx context.Context, r io.Reader, name string) (string, error)
	Get(ctx context.Context, cid string) (io.ReadCloser, error)
}

// Properties describes the original file.
type Properties struct {
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"lastModified"` // unix milliseconds
	DateAdded    string `json:"dateAdded"`    // RFC 3339
	CaseID       uint64 `json:"caseId"`
}

// Sidecar is the JSON metadata object stored next to an evidence file.
type Sidecar struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Image       string     `json:"image"`
	Properties  Properties `json:"properties"`
}

// FileCID returns the root CID referenced by Image. A path after the CID,
// as in ipfs://<cid>/<filename>, is allowed and dropped.
func (s Sidecar) FileCID() (string, error) {
	c, _, err := s.fileRef()
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// FileRef returns Image without its scheme: the file CID, followed by the
// path inside it when the uploader wrapped the file in a directory.
func (s Sidecar) FileRef() (string, error) {
	c, p, err := s.fileRef()
	if err != nil {
		return "", err
	}
	if p == "" {
		return c.String(), nil
	}
	return c.String() + "/" + p, nil
}

func (s Sidecar) fileRef() (cid.Cid, string, error) {
	if !strings.HasPrefix(s.Image, Scheme) {
		return cid.Undef, "", fmt.Errorf("image %q is not an %s reference", s.Image, Scheme)
	}
	return splitRef(s.Image)
}

// EvidenceFile is a file selected for upload.
type EvidenceFile struct {
	Name         string
	ContentType  string
	Data         []byte
	LastModified time.Time
}

// Upload is the result of a completed two-hop upload.
type Upload struct {
	FileCID     string  `json:"fileCid"`
	MetadataCID string  `json:"metadataCid"`
	Sidecar     Sidecar `json:"sidecar"`
}

// Store is the content store facade over an ObjectStore.
type Store struct {
	backend ObjectStore
	gateway string
	logger  *logging.ColoredLogger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewStore returns a store writing to backend. gatewayURL prefixes the
// URLs returned by ResolveURL.
func NewStore(backend ObjectStore, gatewayURL string, logger *logging.ColoredLogger) *Store {
	return &Store{
		backend: backend,
		gateway: strings.TrimRight(gatewayURL, "/"),
		logger:  logging.OrNop(logger),
		tracer:  telemetry.Tracer("pkg/contentstore"),
		now:     time.Now,
	}
}

// PutBytes stores a file and returns its CID.
func (s *Store) PutBytes(ctx context.Context, data []byte, name string) (string, error) {
	id, err := s.backend.Add(ctx, bytes.NewReader(data), name)
	if err == nil {
		_, err = ParseCID(id)
	}
	metrics.RecordUpload(apperrors.StageFile, len(data), err)
	if err != nil {
		return "", apperrors.NewUploadFailureError(apperrors.StageFile, err)
	}
	return id, nil
}

// PutSidecar stores a sidecar as JSON and returns its CID.
func (s *Store) PutSidecar(ctx context.Context, sc Sidecar) (string, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return "", apperrors.NewUploadFailureError(apperrors.StageMetadata, err)
	}
	id, err := s.backend.Add(ctx, bytes.NewReader(data), "metadata.json")
	if err == nil {
		_, err = ParseCID(id)
	}
	metrics.RecordUpload(apperrors.StageMetadata, len(data), err)
	if err != nil {
		return "", apperrors.NewUploadFailureError(apperrors.StageMetadata, err)
	}
	return id, nil
}

// GetBytes fetches the object stored under id, a CID optionally followed
// by a path.
func (s *Store) GetBytes(ctx context.Context, id string) ([]byte, error) {
	return s.get(ctx, id, 0)
}

// GetSidecar fetches and decodes a sidecar. A sidecar that is not valid
// JSON or lacks an ipfs:// image reference is a resolution failure.
func (s *Store) GetSidecar(ctx context.Context, id string) (*Sidecar, error) {
	data, err := s.get(ctx, id, maxSidecarSize)
	if err != nil {
		return nil, err
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, apperrors.NewResolutionFailureError(id, fmt.Errorf("decode sidecar: %w", err))
	}
	if _, err := sc.FileCID(); err != nil {
		return nil, apperrors.NewResolutionFailureError(id, err)
	}
	return &sc, nil
}

// Resolve follows a sidecar CID to the file it describes.
func (s *Store) Resolve(ctx context.Context, metadataCID string) (*Sidecar, []byte, error) {
	ctx, span := s.tracer.Start(ctx, "contentstore.Resolve", trace.WithAttributes(
		attribute.String("content.metadata_cid", metadataCID)))
	defer span.End()

	sc, err := s.GetSidecar(ctx, metadataCID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	fileRef, _ := sc.FileRef()
	data, err := s.GetBytes(ctx, fileRef)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return sc, data, nil
}

// ResolveURL returns the gateway URL of a CID. An ipfs:// prefix is accepted.
func (s *Store) ResolveURL(id string) string {
	return s.gateway + "/ipfs/" + strings.TrimPrefix(id, Scheme)
}

// NewSidecar builds the sidecar for file as the upload form does: the
// name is the description cut to 100 characters.
func (s *Store) NewSidecar(file EvidenceFile, fileCID string, caseID uint64, description string) Sidecar {
	var lastModified int64
	if !file.LastModified.IsZero() {
		lastModified = file.LastModified.UnixMilli()
	}
	return Sidecar{
		Name:        truncate(description, maxSidecarNameLen),
		Description: description,
		Image:       Scheme + fileCID,
		Properties: Properties{
			Type:         file.ContentType,
			Size:         int64(len(file.Data)),
			LastModified: lastModified,
			DateAdded:    s.now().UTC().Format(time.RFC3339),
			CaseID:       caseID,
		},
	}
}

// UploadEvidence stores file and then its sidecar. If the file cannot be
// stored the sidecar is never attempted.
func (s *Store) UploadEvidence(ctx context.Context, file EvidenceFile, caseID uint64, description string) (Upload, error) {
	ctx, span := s.tracer.Start(ctx, "contentstore.UploadEvidence", trace.WithAttributes(
		attribute.Int64("content.case_id", int64(caseID)),
		attribute.Int("content.size", len(file.Data))))
	defer span.End()

	fileCID, err := s.PutBytes(ctx, file.Data, file.Name)
	if err != nil {
		span.RecordError(err)
		s.logger.ComponentWarn(logging.ComponentStorage, "file upload failed",
			zap.String("file", file.Name), zap.Error(err))
		return Upload{}, err
	}

	sc := s.NewSidecar(file, fileCID, caseID, description)
	metadataCID, err := s.PutSidecar(ctx, sc)
	if err != nil {
		span.RecordError(err)
		s.logger.ComponentWarn(logging.ComponentStorage, "metadata upload failed",
			zap.String("file_cid", fileCID), zap.Error(err))
		return Upload{}, err
	}

	s.logger.ComponentInfo(logging.ComponentStorage, "evidence uploaded",
		zap.String("file_cid", fileCID),
		zap.String("metadata_cid", metadataCID),
		zap.Uint64("case_id", caseID))
	return Upload{FileCID: fileCID, MetadataCID: metadataCID, Sidecar: sc}, nil
}

func (s *Store) get(ctx context.Context, id string, limit int64) ([]byte, error) {
	c, p, err := splitRef(id)
	if err != nil {
		return nil, apperrors.NewResolutionFailureError(id, err)
	}
	ref := c.String()
	if p != "" {
		ref += "/" + p
	}
	rc, err := s.backend.Get(ctx, ref)
	if err != nil {
		return nil, apperrors.NewResolutionFailureError(id, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewResolutionFailureError(id, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, apperrors.NewResolutionFailureError(id, fmt.Errorf("object exceeds %d bytes", limit))
	}
	return data, nil
}

// ParseCID validates a CID, with or without the ipfs:// prefix.
func ParseCID(s string) (cid.Cid, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, Scheme))
	if s == "" {
		return cid.Undef, errors.New("empty CID")
	}
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("malformed CID %q: %w", s, err)
	}
	return c, nil
}

// splitRef separates a reference into its root CID and the path below it.
func splitRef(ref string) (cid.Cid, string, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), Scheme)
	root, rest, _ := strings.Cut(ref, "/")
	c, err := ParseCID(root)
	if err != nil {
		return cid.Undef, "", err
	}
	return c, strings.Trim(rest, "/"), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
