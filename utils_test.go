package talentchain

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestDIDRoundTrip(t *testing.T) {
	address := "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	did := DIDFromAddress(address)

	if !IsDID(did) {
		t.Fatalf("expected %s to be a valid did", did)
	}

	recovered, err := AddressFromDID(did)
	if err != nil {
		t.Fatalf("address extraction failed: %v", err)
	}
	if !strings.EqualFold(recovered, address) {
		t.Fatalf("expected %s got %s", address, recovered)
	}
}

func TestIsDIDRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "did:kbu:", "did:kbu:nothex", "did:web:example.com", "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"} {
		if IsDID(s) {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestSignAndVerifyBytes(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	payload := []byte("talentchain test payload")
	sig, err := SignBytes(payload, privHex)
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}

	if err := VerifySignature(payload, sig, address); err != nil {
		t.Fatalf("verification failed: %v", err)
	}

	tampered := append([]byte{}, payload...)
	tampered[0] ^= 0xff
	if err := VerifySignature(tampered, sig, address); err == nil {
		t.Fatalf("expected verification to fail on tampered payload")
	}
}

func TestPrivKeyToAddr(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	privHex := hex.EncodeToString(crypto.FromECDSA(key))

	addr, err := PrivKeyToAddr(privHex)
	if err != nil {
		t.Fatalf("derivation failed: %v", err)
	}
	if addr != crypto.PubkeyToAddress(key.PublicKey).Hex() {
		t.Fatalf("derived address mismatch")
	}
}

func TestProfileIDStable(t *testing.T) {
	upper := ProfileIDFromAddress("0xAB5801A7D398351B8BE11C439E05C5B3259AEC9B")
	lower := ProfileIDFromAddress("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
	if upper != lower {
		t.Fatalf("profile id must be case-insensitive over the address")
	}
	if len(upper) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(upper))
	}
}
