package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
	"github.com/kbunet/talentchain/internal/usecase"
)

type memNonceStore struct {
	nonces map[string]string
}

func newMemNonceStore() *memNonceStore {
	return &memNonceStore{nonces: map[string]string{}}
}

func (s *memNonceStore) Set(ctx context.Context, address, nonce string, ttl time.Duration) error {
	s.nonces[address] = nonce
	return nil
}

func (s *memNonceStore) Take(ctx context.Context, address string) (string, error) {
	nonce, ok := s.nonces[address]
	if !ok {
		return "", domain.NotFoundError{Resource: "nonce"}
	}
	delete(s.nonces, address)
	return nonce, nil
}

type memUserRepo struct {
	byDID map[string]domain.User
	byID  map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byDID: map[string]domain.User{}, byID: map[string]domain.User{}}
}

func (m *memUserRepo) Create(ctx context.Context, user domain.User) error {
	if _, ok := m.byDID[user.DID]; ok {
		return domain.DuplicateError{Resource: "user", Key: user.DID}
	}
	m.byDID[user.DID] = user
	m.byID[user.ID] = user
	return nil
}

func (m *memUserRepo) Get(ctx context.Context, id string) (domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}

func (m *memUserRepo) GetByDID(ctx context.Context, did string) (domain.User, error) {
	u, ok := m.byDID[did]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}

func (m *memUserRepo) GetByWallet(ctx context.Context, address string) (domain.User, error) {
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

func (m *memUserRepo) List(ctx context.Context) ([]domain.User, error) { return nil, nil }

func (m *memUserRepo) Update(ctx context.Context, id string, patch usecase.UserPatch) (domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	if patch.WalletAddress != nil {
		u.WalletAddress = *patch.WalletAddress
	}
	m.byID[id] = u
	m.byDID[u.DID] = u
	return u, nil
}

func (m *memUserRepo) Delete(ctx context.Context, id string) error { return nil }

func newTestAuthService(t *testing.T) (*AuthService, *memNonceStore) {
	t.Helper()
	nodeKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	config := domain.Config{
		FQDN:       "talentchain.example.com",
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(nodeKey)),
		Address:    crypto.PubkeyToAddress(nodeKey.PublicKey).Hex(),
	}
	nonces := newMemNonceStore()
	users := usecase.NewUserUsecase(newMemUserRepo())
	return NewAuthService(config, users, nonces), nonces
}

func signPersonal(t *testing.T, message, privHex string) string {
	t.Helper()
	key, err := crypto.HexToECDSA(privHex)
	if err != nil {
		t.Fatalf("bad key: %v", err)
	}
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(prefixed)), key)
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}
	return "0x" + hex.EncodeToString(sig)
}

func TestLoginFlow(t *testing.T) {
	auth, _ := newTestAuthService(t)

	walletKey, _ := crypto.GenerateKey()
	walletHex := hex.EncodeToString(crypto.FromECDSA(walletKey))
	address := crypto.PubkeyToAddress(walletKey.PublicKey).Hex()
	did := talentchain.DIDFromAddress(address)

	ctx := context.Background()
	nonce, err := auth.GenerateNonce(ctx, address)
	if err != nil {
		t.Fatalf("nonce generation failed: %v", err)
	}

	message := auth.LoginMessage(address, nonce)
	result, err := auth.Login(ctx, LoginInput{
		DID:           did,
		WalletAddress: address,
		Signature:     signPersonal(t, message, walletHex),
		Message:       message,
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	if result.User.DID != did {
		t.Fatalf("expected auto-registered user with did %s", did)
	}

	// the issued token resolves back to the same identity
	authResult, err := auth.AuthJwt(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if authResult.DID != did {
		t.Fatalf("expected did %s got %s", did, authResult.DID)
	}
}

func TestLoginRejectsForeignSignature(t *testing.T) {
	auth, _ := newTestAuthService(t)

	walletKey, _ := crypto.GenerateKey()
	address := crypto.PubkeyToAddress(walletKey.PublicKey).Hex()
	did := talentchain.DIDFromAddress(address)

	attackerKey, _ := crypto.GenerateKey()
	attackerHex := hex.EncodeToString(crypto.FromECDSA(attackerKey))

	ctx := context.Background()
	nonce, _ := auth.GenerateNonce(ctx, address)
	message := auth.LoginMessage(address, nonce)

	_, err := auth.Login(ctx, LoginInput{
		DID:           did,
		WalletAddress: address,
		Signature:     signPersonal(t, message, attackerHex),
		Message:       message,
	})
	if err == nil {
		t.Fatalf("expected foreign signature to be rejected")
	}
}

func TestLoginConsumesNonce(t *testing.T) {
	auth, nonces := newTestAuthService(t)

	walletKey, _ := crypto.GenerateKey()
	walletHex := hex.EncodeToString(crypto.FromECDSA(walletKey))
	address := crypto.PubkeyToAddress(walletKey.PublicKey).Hex()
	did := talentchain.DIDFromAddress(address)

	ctx := context.Background()
	nonce, _ := auth.GenerateNonce(ctx, address)
	message := auth.LoginMessage(address, nonce)
	input := LoginInput{
		DID:           did,
		WalletAddress: address,
		Signature:     signPersonal(t, message, walletHex),
		Message:       message,
	}

	if _, err := auth.Login(ctx, input); err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	if len(nonces.nonces) != 0 {
		t.Fatalf("nonce must be consumed")
	}
	if _, err := auth.Login(ctx, input); err == nil {
		t.Fatalf("replayed login must fail")
	}
}

func TestLoginRejectsMismatchedDID(t *testing.T) {
	auth, _ := newTestAuthService(t)

	walletKey, _ := crypto.GenerateKey()
	address := crypto.PubkeyToAddress(walletKey.PublicKey).Hex()

	_, err := auth.Login(context.Background(), LoginInput{
		DID:           "did:kbu:0x9999999999999999999999999999999999999999",
		WalletAddress: address,
		Signature:     "0x00",
		Message:       "hello",
	})
	if err == nil {
		t.Fatalf("expected did/wallet mismatch rejection")
	}
}
