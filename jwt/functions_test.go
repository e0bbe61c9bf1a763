package jwt

import (
	"encoding/hex"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestCreateAndValidate(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	claims := Claims{
		Issuer:         address,
		Subject:        "talentchain",
		Audience:       "talentchain.example.com",
		ExpirationTime: strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
		DID:            "did:kbu:0xab5801a7d398351b8be11c439e05c5b3259aec9b",
		Role:           "user",
	}

	token, err := Create(claims, privHex)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	header, parsed, err := Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if header.Algorithm != "TCHAIN" {
		t.Fatalf("unexpected algorithm %s", header.Algorithm)
	}
	if parsed.DID != claims.DID || parsed.Role != claims.Role {
		t.Fatalf("claims did not round trip")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	key, _ := crypto.GenerateKey()
	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	claims := Claims{
		Issuer:         address,
		Subject:        "talentchain",
		ExpirationTime: strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10),
	}

	token, err := Create(claims, privHex)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := Validate(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateRejectsForgedIssuer(t *testing.T) {
	signer, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	privHex := hex.EncodeToString(crypto.FromECDSA(signer))

	claims := Claims{
		Issuer:  crypto.PubkeyToAddress(other.PublicKey).Hex(),
		Subject: "talentchain",
	}

	token, err := Create(claims, privHex)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := Validate(token); err == nil {
		t.Fatalf("expected issuer mismatch to be rejected")
	}
}
