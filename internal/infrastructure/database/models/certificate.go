package models

import (
	"time"
)

type Certificate struct {
	ID          string            `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string            `json:"title" gorm:"type:text;not null"`
	Type        string            `json:"type" gorm:"type:text;not null"`
	IssuerDID   string            `json:"issuerDid" gorm:"type:text;index;not null"`
	HolderDID   string            `json:"holderDid" gorm:"type:text;index;not null"`
	Hash        string            `json:"hash" gorm:"type:text;uniqueIndex;not null"`
	MetadataURI string            `json:"metadataURI" gorm:"type:text"`
	TxHash      string            `json:"txHash" gorm:"type:text"`
	Verified    bool              `json:"verified" gorm:"not null;default:false"`
	IssuedAt    time.Time         `json:"issuedAt" gorm:"type:timestamp with time zone;not null;index:,sort:desc"`
	Logs        []VerificationLog `json:"verificationLogs,omitempty" gorm:"foreignKey:CertificateID;constraint:OnDelete:CASCADE;"`
}

type VerificationLog struct {
	ID            string    `json:"id" gorm:"primaryKey;type:uuid"`
	CertificateID string    `json:"certificateId" gorm:"type:uuid;index;not null"`
	VerifierDID   string    `json:"verifierDid" gorm:"type:text;not null"`
	Result        string    `json:"result" gorm:"type:text;not null"`
	Timestamp     time.Time `json:"timestamp" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
