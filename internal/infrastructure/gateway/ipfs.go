package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"

	"github.com/kbunet/talentchain/internal/domain"
)

const (
	ipfsTimeout   = 10 * time.Second
	metaCacheTTL  = 10 * time.Minute
	mockAddrSpace = "QmMock"
)

// IPFSStore stores certificate metadata on an IPFS node via its HTTP API.
// Reachability is probed once at construction; when the node is down the
// configured fail policy decides between erroring and the original
// degraded-mode behavior of fabricating addresses.
type IPFSStore struct {
	api       string
	client    *http.Client
	cache     *memcache.Client
	policy    domain.FailPolicy
	reachable bool
}

func NewIPFSStore(apiAddr string, cache *memcache.Client, policy domain.FailPolicy) *IPFSStore {
	s := &IPFSStore{
		api:    apiAddr,
		client: &http.Client{Timeout: ipfsTimeout},
		cache:  cache,
		policy: policy,
	}

	version, err := s.version()
	if err != nil {
		slog.Warn("IPFS node unreachable, store is in degraded mode",
			slog.String("addr", apiAddr),
			slog.String("error", err.Error()),
			slog.String("module", "ipfs"),
		)
		return s
	}

	s.reachable = true
	slog.Info("Connected to IPFS node",
		slog.String("version", version),
		slog.String("module", "ipfs"),
	)
	return s
}

func (s *IPFSStore) version() (string, error) {
	resp, err := s.client.Post(s.api+"/api/v0/version", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body struct {
		Version string `json:"Version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Version, nil
}

// Upload serializes value and adds it to IPFS, returning the content
// address. Never returns an error in fail-open mode.
func (s *IPFSStore) Upload(ctx context.Context, value any) (string, error) {
	if !s.reachable {
		return s.degradedAddress("upload")
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "metadata.json")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(payload); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.api+"/api/v0/add?pin=true", &form)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return s.degradedCall("upload", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return s.degradedCall("upload", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var body struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return s.degradedCall("upload", err)
	}

	return body.Hash, nil
}

// Fetch retrieves and deserializes a metadata document. In degraded mode it
// returns a fixed placeholder instead of failing.
func (s *IPFSStore) Fetch(ctx context.Context, address string) (map[string]any, error) {
	if !s.reachable {
		if s.policy == domain.FailOpen {
			slog.Warn("IPFS unreachable, returning placeholder metadata",
				slog.String("address", address),
				slog.String("module", "ipfs"),
			)
			return placeholderMetadata(), nil
		}
		return nil, domain.ExternalServiceError{Service: "ipfs"}
	}

	if cached, ok := s.cacheGet(address); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.api+"/api/v0/cat?arg="+address, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.ExternalServiceError{Service: "ipfs", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NotFoundError{Resource: "metadata"}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ExternalServiceError{Service: "ipfs", Err: err}
	}

	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, domain.NotFoundError{Resource: "metadata"}
	}

	s.cacheSet(address, raw)
	return value, nil
}

func (s *IPFSStore) degradedAddress(op string) (string, error) {
	if s.policy != domain.FailOpen {
		return "", domain.ExternalServiceError{Service: "ipfs"}
	}
	addr := fmt.Sprintf("%s%012x", mockAddrSpace, time.Now().UnixNano()&0xffffffffffff)
	slog.Warn("IPFS unreachable, returning mock address",
		slog.String("op", op),
		slog.String("address", addr),
		slog.String("module", "ipfs"),
	)
	return addr, nil
}

func (s *IPFSStore) degradedCall(op string, err error) (string, error) {
	if s.policy != domain.FailOpen {
		return "", domain.ExternalServiceError{Service: "ipfs", Err: err}
	}
	slog.Warn("IPFS call failed, falling back to mock address",
		slog.String("op", op),
		slog.String("error", err.Error()),
		slog.String("module", "ipfs"),
	)
	return s.degradedAddress(op)
}

// memcached keys are limited to 250 bytes, so addresses are hashed down.
func metaCacheKey(address string) string {
	return "tc:meta:" + strconv.FormatUint(xxh3.HashString(address), 16)
}

func (s *IPFSStore) cacheGet(address string) (map[string]any, bool) {
	if s.cache == nil {
		return nil, false
	}
	item, err := s.cache.Get(metaCacheKey(address))
	if err != nil {
		return nil, false
	}
	var value map[string]any
	if err := json.Unmarshal(item.Value, &value); err != nil {
		return nil, false
	}
	return value, true
}

func (s *IPFSStore) cacheSet(address string, raw []byte) {
	if s.cache == nil {
		return
	}
	s.cache.Set(&memcache.Item{
		Key:        metaCacheKey(address),
		Value:      raw,
		Expiration: int32(metaCacheTTL.Seconds()),
	})
}

func placeholderMetadata() map[string]any {
	return map[string]any{
		"title":       "Mock Certificate",
		"type":        "academic",
		"issuerDid":   "did:kbu:0x0000000000000000000000000000000000000000",
		"holderDid":   "did:kbu:0x0000000000000000000000000000000000000000",
		"description": "placeholder metadata, IPFS unreachable",
	}
}
