package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewIPFSBackendDefaults(t *testing.T) {
	b := NewIPFSBackend(IPFSConfig{}, nil)
	if b.clusterURL != "http://localhost:9094" || b.ipfsURL != "http://localhost:5001" {
		t.Errorf("unexpected defaults %s %s", b.clusterURL, b.ipfsURL)
	}
	if b.httpClient.Timeout != 0 {
		t.Errorf("expected no client timeout by default, got %v", b.httpClient.Timeout)
	}
	if b := NewIPFSBackend(IPFSConfig{Timeout: 3 * time.Second}, nil); b.httpClient.Timeout != 3*time.Second {
		t.Errorf("configured timeout not applied: %v", b.httpClient.Timeout)
	}
}

func TestIPFSBackendAdd(t *testing.T) {
	fileCID, _ := RawCID([]byte("evidence"))

	t.Run("drains_stream_and_pins", func(t *testing.T) {
		var pinQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/add":
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("parse multipart: %v", err)
					return
				}
				file, header, err := r.FormFile("file")
				if err != nil {
					t.Errorf("form file: %v", err)
					return
				}
				defer file.Close()
				if header.Filename != "photo.jpg" {
					t.Errorf("filename = %s", header.Filename)
				}
				enc := json.NewEncoder(w)
				_ = enc.Encode(AddResponse{Name: "partial", Cid: "", Size: 1})
				_ = enc.Encode(AddResponse{Name: "photo.jpg", Cid: fileCID.String(), Size: 8})
			case strings.HasPrefix(r.URL.Path, "/pins/"):
				if r.Method != http.MethodPost {
					t.Errorf("pin method = %s", r.Method)
				}
				pinQuery = r.URL.RawQuery
				w.WriteHeader(http.StatusAccepted)
				_ = json.NewEncoder(w).Encode(PinResponse{Cid: strings.TrimPrefix(r.URL.Path, "/pins/")})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		b := NewIPFSBackend(IPFSConfig{ClusterAPIURL: server.URL, ReplicationFactor: 3}, nil)
		got, err := b.Add(context.Background(), strings.NewReader("evidence"), "photo.jpg")
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if got != fileCID.String() {
			t.Errorf("cid = %s", got)
		}
		if !strings.Contains(pinQuery, "replication-min=3") || !strings.Contains(pinQuery, "replication-max=3") {
			t.Errorf("pin query = %s", pinQuery)
		}
	})

	t.Run("server_error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		b := NewIPFSBackend(IPFSConfig{ClusterAPIURL: server.URL}, nil)
		if _, err := b.Add(context.Background(), strings.NewReader("x"), "x"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing_cid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		b := NewIPFSBackend(IPFSConfig{ClusterAPIURL: server.URL}, nil)
		if _, err := b.Add(context.Background(), strings.NewReader("x"), "x"); err == nil {
			t.Fatal("expected error for an empty add stream")
		}
	})
}

func TestIPFSBackendGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/cat" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("arg") == "missing" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("content"))
	}))
	defer server.Close()

	b := NewIPFSBackend(IPFSConfig{IPFSAPIURL: server.URL}, nil)
	rc, err := b.Get(context.Background(), "bafkreiexample")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "content" {
		t.Errorf("data = %q", data)
	}

	if _, err := b.Get(context.Background(), "missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestIPFSBackendHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	b := NewIPFSBackend(IPFSConfig{ClusterAPIURL: server.URL}, nil)
	if err := b.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
	healthy = false
	if err := b.Health(context.Background()); err == nil {
		t.Error("expected unhealthy error")
	}
}

// fakeNode answers /add and /api/v0/cat from one map keyed by raw CID.
func fakeNode(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	objects := map[string][]byte{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/add":
			file, header, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			c, _ := RawCID(data)
			mu.Lock()
			objects[c.String()] = data
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(AddResponse{Name: header.Filename, Cid: c.String(), Size: int64(len(data))})
		case "/api/v0/cat":
			mu.Lock()
			data, ok := objects[r.URL.Query().Get("arg")]
			mu.Unlock()
			if !ok {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			_, _ = w.Write(data)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestIPFSBackendBinaryRoundTrip(t *testing.T) {
	server := fakeNode(t)
	b := NewIPFSBackend(IPFSConfig{ClusterAPIURL: server.URL, IPFSAPIURL: server.URL}, nil)
	s := NewStore(b, server.URL, nil)
	ctx := context.Background()

	payload := make([]byte, 0, 1024)
	for i := 0; i < 4; i++ {
		for v := 0; v < 256; v++ {
			payload = append(payload, byte(v))
		}
	}
	payload = append(payload, 0xc3, 0x28, 0xff)

	id, err := s.PutBytes(ctx, payload, "scan.tiff")
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	got, err := s.GetBytes(ctx, id)
	if err != nil {
		t.Fatalf("GetBytes: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip changed the payload: got %d bytes, want %d", len(got), len(payload))
	}

	up, err := s.UploadEvidence(ctx, EvidenceFile{Name: "scan.tiff", ContentType: "image/tiff", Data: payload}, 2, "Scanned deed")
	if err != nil {
		t.Fatalf("UploadEvidence: %v", err)
	}
	sc, data, err := s.Resolve(ctx, up.MetadataCID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !bytes.Equal(data, payload) || sc.Properties.Type != "image/tiff" {
		t.Errorf("resolved %d bytes with type %q", len(data), sc.Properties.Type)
	}
}

func TestIPFSBackendGetKeepsPath(t *testing.T) {
	var arg string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arg = r.URL.Query().Get("arg")
		_, _ = w.Write([]byte("deed"))
	}))
	defer server.Close()

	dir, _ := RawCID([]byte("directory"))
	s := NewStore(NewIPFSBackend(IPFSConfig{IPFSAPIURL: server.URL}, nil), server.URL, nil)
	if _, err := s.GetBytes(context.Background(), "ipfs://"+dir.String()+"/deed.pdf"); err != nil {
		t.Fatalf("GetBytes: %v", err)
	}
	if arg != dir.String()+"/deed.pdf" {
		t.Errorf("cat arg = %q", arg)
	}
}
