package talentchain

import (
	"time"
)

type CertificateType string

const (
	CertificateTypeAcademic   CertificateType = "academic"
	CertificateTypeExperience CertificateType = "experience"
)

func (t CertificateType) Valid() bool {
	return t == CertificateTypeAcademic || t == CertificateTypeExperience
}

type VerificationResult string

const (
	VerificationResultValid   VerificationResult = "valid"
	VerificationResultInvalid VerificationResult = "invalid"
)

type Role string

const (
	RoleUser        Role = "user"
	RoleInstitution Role = "institution"
	RoleEmployer    Role = "employer"
	RoleAdmin       Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleInstitution, RoleEmployer, RoleAdmin:
		return true
	}
	return false
}

// CertificateMetadata is the logical content of a certificate. Its canonical
// serialization is the input to the content hash, so every field here is
// hash-relevant. Extra carries free-form attributes (grade, skills, ...) and
// is merged into the top level of the canonical form.
type CertificateMetadata struct {
	Title     string          `json:"title"`
	Type      CertificateType `json:"type"`
	IssuerDID string          `json:"issuerDid"`
	HolderDID string          `json:"holderDid"`
	IssuedAt  time.Time       `json:"issuedAt"`
	Extra     map[string]any  `json:"extra,omitempty"`
}

const (
	EventCertificateIssued   = "certificate.issued"
	EventCertificateVerified = "certificate.verified"
)

// Event is published on the realtime channel whenever a certificate is
// issued or verified. Dids lists every identity the event concerns so
// subscribers can filter.
type Event struct {
	Type      string    `json:"type"`
	Dids      []string  `json:"dids"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
