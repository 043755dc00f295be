package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"go.uber.org/zap"
)

// IPFSConfig holds configuration for the IPFS backend
type IPFSConfig struct {
	// ClusterAPIURL is the base URL for the IPFS Cluster HTTP API (e.g., "http://localhost:9094")
	// If empty, defaults to "http://localhost:9094"
	ClusterAPIURL string

	// IPFSAPIURL is the base URL for the IPFS HTTP API used for retrieval
	// If empty, defaults to "http://localhost:5001"
	IPFSAPIURL string

	// Timeout bounds each HTTP request. Zero means no client-side timeout;
	// the caller's context still applies.
	Timeout time.Duration

	// ReplicationFactor is the pin replication requested after each add.
	// Zero or less skips the explicit pin.
	ReplicationFactor int
}

// AddResponse is one NDJSON object streamed by the cluster /add endpoint
type AddResponse struct {
	Name string `json:"name"`
	Cid  string `json:"cid"`
	Size int64  `json:"size"`
}

// PinResponse represents the response from pinning a CID
type PinResponse struct {
	Cid  string `json:"cid"`
	Name string `json:"name"`
}

// IPFSBackend stores objects through IPFS Cluster and reads them back
// through an IPFS node.
type IPFSBackend struct {
	clusterURL  string
	ipfsURL     string
	replication int
	httpClient  *http.Client
	logger      *logging.ColoredLogger
}

// NewIPFSBackend creates an IPFS Cluster backed object store
func NewIPFSBackend(cfg IPFSConfig, logger *logging.ColoredLogger) *IPFSBackend {
	clusterURL := cfg.ClusterAPIURL
	if clusterURL == "" {
		clusterURL = "http://localhost:9094"
	}
	ipfsURL := cfg.IPFSAPIURL
	if ipfsURL == "" {
		ipfsURL = "http://localhost:5001"
	}
	return &IPFSBackend{
		clusterURL:  clusterURL,
		ipfsURL:     ipfsURL,
		replication: cfg.ReplicationFactor,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logging.OrNop(logger),
	}
}

// Health checks if the IPFS Cluster API is healthy
func (b *IPFSBackend) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.clusterURL+"/id", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// Add uploads r to the cluster, pins it and returns its CID.
func (b *IPFSBackend) Add(ctx context.Context, r io.Reader, name string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to copy data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.clusterURL+"/add?cid-version=1", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create add request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("add request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("add failed with status %d: %s", resp.StatusCode, string(body))
	}

	// The cluster streams NDJSON. Drain the whole stream so the cluster does
	// not cancel its pin when the connection closes; the last object wins.
	dec := json.NewDecoder(resp.Body)
	var last AddResponse
	for {
		var chunk AddResponse
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("failed to decode add response: %w", err)
		}
		last = chunk
	}
	if last.Cid == "" {
		return "", fmt.Errorf("add response missing CID")
	}

	if b.replication > 0 {
		if _, err := b.Pin(ctx, last.Cid, name, b.replication); err != nil {
			return "", err
		}
	}

	b.logger.ComponentDebug(logging.ComponentStorage, "added object",
		zap.String("cid", last.Cid),
		zap.String("name", name))
	return last.Cid, nil
}

// Pin pins a CID with the given replication factor. IPFS Cluster expects
// pin options as query parameters, not in the body.
func (b *IPFSBackend) Pin(ctx context.Context, cid, name string, replicationFactor int) (*PinResponse, error) {
	values := url.Values{}
	values.Set("replication-min", strconv.Itoa(replicationFactor))
	values.Set("replication-max", strconv.Itoa(replicationFactor))
	if name != "" {
		values.Set("name", name)
	}
	reqURL := b.clusterURL + "/pins/" + url.PathEscape(cid) + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create pin request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("pin failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result PinResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode pin response: %w", err)
	}
	if result.Cid == "" {
		result.Cid = cid
	}
	if result.Name == "" {
		result.Name = name
	}
	return &result, nil
}

// Get retrieves content by CID through the IPFS HTTP API (/api/v0/cat).
// The caller closes the returned reader.
func (b *IPFSBackend) Get(ctx context.Context, cid string) (io.ReadCloser, error) {
	reqURL := b.ipfsURL + "/api/v0/cat?arg=" + url.QueryEscape(cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create get request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, cid)
		}
		return nil, fmt.Errorf("get failed with status %d: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}
