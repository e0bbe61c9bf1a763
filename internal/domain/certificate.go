package domain

import (
	"time"

	talentchain "github.com/kbunet/talentchain"
)

// Certificate is the registry's local record of an issued certificate.
// Hash is unique across all certificates and never recomputed after issuance.
type Certificate struct {
	ID          string                      `json:"id"`
	Title       string                      `json:"title"`
	Type        talentchain.CertificateType `json:"type"`
	IssuerDID   string                      `json:"issuerDid"`
	HolderDID   string                      `json:"holderDid"`
	Hash        string                      `json:"hash"`
	MetadataURI string                      `json:"metadataURI"`
	TxHash      string                      `json:"txHash"`
	Verified    bool                        `json:"verified"`
	IssuedAt    time.Time                   `json:"issuedAt"`
}

// VerificationLog is an append-only audit entry. Exactly one is written per
// verification attempt against an existing certificate.
type VerificationLog struct {
	ID            string                         `json:"id"`
	CertificateID string                         `json:"certificateId"`
	VerifierDID   string                         `json:"verifierDid"`
	Result        talentchain.VerificationResult `json:"result"`
	Timestamp     time.Time                      `json:"timestamp"`
}

// LedgerRecord is the external ledger's view of a registered certificate.
// The registry holds references into it but cannot mutate or roll it back.
type LedgerRecord struct {
	RecordRef   string `json:"recordRef"`
	Owner       string `json:"owner"`
	MetadataURI string `json:"metadataURI"`
}
