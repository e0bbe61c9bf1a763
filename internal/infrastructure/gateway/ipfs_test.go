package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/kbunet/talentchain/internal/domain"
)

func newFakeIPFS(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	stored := map[string][]byte{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"Version": "0.24.0"})
	})
	mux.HandleFunc("/api/v0/add", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payload, _ := io.ReadAll(file)
		addr := "QmTest" + string(rune('A'+len(stored)))
		stored[addr] = payload
		json.NewEncoder(w).Encode(map[string]string{"Hash": addr})
	})
	mux.HandleFunc("/api/v0/cat", func(w http.ResponseWriter, r *http.Request) {
		payload, ok := stored[r.URL.Query().Get("arg")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(payload)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, stored
}

func TestIPFSStoreRoundTrip(t *testing.T) {
	server, _ := newFakeIPFS(t)
	store := NewIPFSStore(server.URL, nil, domain.FailClosed)
	if !store.reachable {
		t.Fatal("expected store to be reachable")
	}

	ctx := context.Background()
	addr, err := store.Upload(ctx, map[string]any{"title": "BSc"})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if addr == "" {
		t.Fatal("expected a content address")
	}

	value, err := store.Fetch(ctx, addr)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if value["title"] != "BSc" {
		t.Errorf("unexpected metadata: %v", value)
	}
}

func TestIPFSStoreFetchUnknownAddress(t *testing.T) {
	server, _ := newFakeIPFS(t)
	store := NewIPFSStore(server.URL, nil, domain.FailClosed)

	_, err := store.Fetch(context.Background(), "QmNope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestIPFSStoreFailClosed(t *testing.T) {
	store := NewIPFSStore("http://127.0.0.1:1", nil, domain.FailClosed)
	if store.reachable {
		t.Fatal("expected store to be unreachable")
	}

	ctx := context.Background()
	if _, err := store.Upload(ctx, map[string]any{}); !errors.Is(err, domain.ErrExternalService) {
		t.Errorf("expected external service error on upload, got %v", err)
	}
	if _, err := store.Fetch(ctx, "QmAny"); !errors.Is(err, domain.ErrExternalService) {
		t.Errorf("expected external service error on fetch, got %v", err)
	}
}

func TestIPFSStoreFailOpen(t *testing.T) {
	store := NewIPFSStore("http://127.0.0.1:1", nil, domain.FailOpen)

	ctx := context.Background()
	addr, err := store.Upload(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("fail-open upload errored: %v", err)
	}
	if !strings.HasPrefix(addr, mockAddrSpace) {
		t.Errorf("expected mock address, got %s", addr)
	}
	suffix := strings.TrimPrefix(addr, mockAddrSpace)
	if len(suffix) != 12 || strings.Trim(suffix, "0123456789abcdef") != "" {
		t.Errorf("expected 12 hex chars after the mock prefix, got %q", suffix)
	}

	value, err := store.Fetch(ctx, addr)
	if err != nil {
		t.Fatalf("fail-open fetch errored: %v", err)
	}
	if value["title"] != "Mock Certificate" {
		t.Errorf("expected placeholder metadata, got %v", value)
	}
}
