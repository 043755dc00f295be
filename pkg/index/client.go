// Package index is the HTTP client of the auxiliary read index. Every
// failure, whatever its cause, is reported as AuxIndexUnavailable so that
// callers can fall back to the ledger.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/DeBrosOfficial/caseledger/pkg/errors"
	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/DeBrosOfficial/caseledger/pkg/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const maxResponseSize = 1 << 20

// Config holds configuration for the index client
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:3001/api"
	BaseURL string

	// Timeout bounds each request. Zero means no client-side timeout;
	// the caller's context still applies.
	Timeout time.Duration
}

// Client reads cases and evidence from the aux index.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.ColoredLogger
}

// NewClient returns a client for cfg.BaseURL.
func NewClient(cfg Config, logger *logging.ColoredLogger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.OrNop(logger),
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetCase fetches GET {base}/cases/{id}.
func (c *Client) GetCase(ctx context.Context, caseID uint64) (registry.Case, error) {
	endpoint := fmt.Sprintf("%s/cases/%d", c.baseURL, caseID)
	var out registry.Case
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return registry.Case{}, err
	}
	if out.ID != caseID {
		return registry.Case{}, apperrors.NewAuxIndexUnavailableError(endpoint, http.StatusOK,
			fmt.Errorf("response is case %d", out.ID))
	}
	// A null or empty body decodes to the zero case; the ledger never
	// stores one without an owner and a name.
	if out.Owner == (common.Address{}) || out.Name == "" {
		return registry.Case{}, apperrors.NewAuxIndexUnavailableError(endpoint, http.StatusOK,
			errors.New("response is missing owner or name"))
	}
	return out, nil
}

// GetEvidence fetches GET {base}/evidence/{caseId}/{evidenceId}.
func (c *Client) GetEvidence(ctx context.Context, caseID, evidenceID uint64) (registry.Evidence, error) {
	endpoint := fmt.Sprintf("%s/evidence/%d/%d", c.baseURL, caseID, evidenceID)
	var out registry.Evidence
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return registry.Evidence{}, err
	}
	if out.ID != evidenceID || out.CaseID != caseID {
		return registry.Evidence{}, apperrors.NewAuxIndexUnavailableError(endpoint, http.StatusOK,
			fmt.Errorf("response is evidence %d/%d", out.CaseID, out.ID))
	}
	if out.Submitter == (common.Address{}) || out.MetadataCID == "" {
		return registry.Evidence{}, apperrors.NewAuxIndexUnavailableError(endpoint, http.StatusOK,
			errors.New("response is missing submitter or metadataCID"))
	}
	return out, nil
}

// SetAdmissibility sends PUT {base}/evidence/{caseId}/{evidenceId}/admissibility.
// The index treats it as a hint for its mirror; the ledger stays authoritative.
func (c *Client) SetAdmissibility(ctx context.Context, caseID, evidenceID uint64, admissible bool) error {
	endpoint := fmt.Sprintf("%s/evidence/%d/%d/admissibility", c.baseURL, caseID, evidenceID)
	body := struct {
		IsAdmissible bool `json:"isAdmissible"`
	}{admissible}
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

// Health checks GET {base}/../health, the service root health endpoint.
func (c *Client) Health(ctx context.Context) error {
	root := strings.TrimSuffix(c.baseURL, "/api")
	return c.do(ctx, http.MethodGet, root+"/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperrors.NewAuxIndexUnavailableError(endpoint, 0, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return apperrors.NewAuxIndexUnavailableError(endpoint, 0, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ComponentDebug(logging.ComponentIndex, "index request failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", reqID),
			zap.Error(err))
		return apperrors.NewAuxIndexUnavailableError(endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.ComponentDebug(logging.ComponentIndex, "index returned error status",
			zap.String("endpoint", endpoint),
			zap.String("request_id", reqID),
			zap.Int("status", resp.StatusCode))
		return apperrors.NewAuxIndexUnavailableError(endpoint, resp.StatusCode,
			fmt.Errorf("%s", strings.TrimSpace(string(msg))))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize))
	if err := dec.Decode(out); err != nil {
		return apperrors.NewAuxIndexUnavailableError(endpoint, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
