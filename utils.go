package talentchain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

const didPrefix = "did:kbu:"

// IsDID reports whether s looks like a talentchain DID
// ("did:kbu:" followed by a hex wallet address).
func IsDID(s string) bool {
	if !strings.HasPrefix(s, didPrefix) {
		return false
	}
	return common.IsHexAddress(strings.TrimPrefix(s, didPrefix))
}

// DIDFromAddress derives the DID for a wallet address.
func DIDFromAddress(address string) string {
	return didPrefix + strings.ToLower(address)
}

// AddressFromDID extracts the wallet address embedded in a DID.
func AddressFromDID(did string) (string, error) {
	if !IsDID(did) {
		return "", fmt.Errorf("invalid did: %s", did)
	}
	return common.HexToAddress(strings.TrimPrefix(did, didPrefix)).Hex(), nil
}

// IsContentHash reports whether s is a hex encoded SHA-256 digest.
func IsContentHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ProfileIDFromAddress derives the KBU profile id for a wallet. The network
// keys profiles by the SHA3-256 of the lowercased address.
func ProfileIDFromAddress(address string) string {
	sum := sha3.Sum256([]byte(strings.ToLower(address)))
	return hex.EncodeToString(sum[:])
}

// SignBytes signs data with a hex encoded secp256k1 private key.
func SignBytes(data []byte, privatekey string) ([]byte, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privatekey, "0x"))
	if err != nil {
		return nil, err
	}
	digest := crypto.Keccak256(data)
	return crypto.Sign(digest, key)
}

// VerifySignature checks that signature over data recovers the given wallet
// address. The recovery id may be offset by 27 depending on the signer.
func VerifySignature(data, signature []byte, address string) error {
	if len(signature) != 65 {
		return fmt.Errorf("invalid signature length: %d", len(signature))
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	digest := crypto.Keccak256(data)
	pubkey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return err
	}

	recovered := crypto.PubkeyToAddress(*pubkey)
	if !strings.EqualFold(recovered.Hex(), address) {
		return fmt.Errorf("signature does not match address %s", address)
	}
	return nil
}

// VerifyPersonalSignature checks an EIP-191 personal_sign signature, the
// format browser wallets produce for the login flow.
func VerifyPersonalSignature(message string, signature []byte, address string) error {
	if len(signature) != 65 {
		return fmt.Errorf("invalid signature length: %d", len(signature))
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	digest := crypto.Keccak256([]byte(prefixed))
	pubkey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return err
	}

	recovered := crypto.PubkeyToAddress(*pubkey)
	if !strings.EqualFold(recovered.Hex(), address) {
		return fmt.Errorf("signature does not match address %s", address)
	}
	return nil
}

// PrivKeyToAddr returns the wallet address for a hex encoded private key.
func PrivKeyToAddr(privatekey string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privatekey, "0x"))
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
