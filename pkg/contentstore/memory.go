package contentstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// MemoryBackend keeps objects in process. CIDs are real CIDv1 identifiers
// (raw codec, sha2-256) so they round-trip through the same validation as
// network-backed ones.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	names   map[string]string
}

// NewMemoryBackend returns an empty in-memory object store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects: make(map[string][]byte),
		names:   make(map[string]string),
	}
}

// Add implements ObjectStore.
func (m *MemoryBackend) Add(ctx context.Context, r io.Reader, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	c, err := RawCID(data)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(c.Hash())
	m.objects[key] = data
	m.names[key] = name
	return c.String(), nil
}

// Get implements ObjectStore. CIDv0 and CIDv1 spellings of the same
// multihash resolve to the same object. Objects are flat, so a path after
// the CID is ignored.
func (m *MemoryBackend) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, _, _ := strings.Cut(id, "/")
	c, err := cid.Decode(root)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[string(c.Hash())]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Len returns the number of stored objects.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// RawCID computes the CIDv1 (raw codec, sha2-256) of data.
func RawCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash object: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}
