package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
	"github.com/kbunet/talentchain/internal/infrastructure/database/models"
	"github.com/kbunet/talentchain/internal/usecase"
)

type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) Create(ctx context.Context, cert domain.Certificate) error {
	record := models.Certificate{
		ID:          cert.ID,
		Title:       cert.Title,
		Type:        string(cert.Type),
		IssuerDID:   cert.IssuerDID,
		HolderDID:   cert.HolderDID,
		Hash:        cert.Hash,
		MetadataURI: cert.MetadataURI,
		TxHash:      cert.TxHash,
		Verified:    cert.Verified,
		IssuedAt:    cert.IssuedAt,
	}

	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// the unique index on hash is the authoritative duplicate check
		return domain.DuplicateError{Resource: "certificate", Key: cert.Hash}
	}
	return err
}

func (r *CertificateRepository) Get(ctx context.Context, id string) (domain.Certificate, error) {
	var record models.Certificate
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Certificate{}, domain.NotFoundError{Resource: "certificate"}
	}
	if err != nil {
		return domain.Certificate{}, err
	}
	return certificateToDomain(record), nil
}

func (r *CertificateRepository) GetByHash(ctx context.Context, hash string) (domain.Certificate, error) {
	var record models.Certificate
	err := r.db.WithContext(ctx).
		Where("hash = ?", hash).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Certificate{}, domain.NotFoundError{Resource: "certificate"}
	}
	if err != nil {
		return domain.Certificate{}, err
	}
	return certificateToDomain(record), nil
}

func (r *CertificateRepository) List(ctx context.Context) ([]domain.Certificate, error) {
	var records []models.Certificate
	err := r.db.WithContext(ctx).
		Order("issued_at desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return certificatesToDomain(records), nil
}

func (r *CertificateRepository) ListByHolder(ctx context.Context, holderDid string) ([]domain.Certificate, error) {
	var records []models.Certificate
	err := r.db.WithContext(ctx).
		Where("holder_did = ?", holderDid).
		Order("issued_at desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return certificatesToDomain(records), nil
}

func (r *CertificateRepository) ListByIssuer(ctx context.Context, issuerDid string) ([]domain.Certificate, error) {
	var records []models.Certificate
	err := r.db.WithContext(ctx).
		Where("issuer_did = ?", issuerDid).
		Order("issued_at desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return certificatesToDomain(records), nil
}

func (r *CertificateRepository) Update(ctx context.Context, id string, patch usecase.CertificatePatch) (domain.Certificate, error) {
	updates := map[string]any{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Verified != nil {
		updates["verified"] = *patch.Verified
	}

	var record models.Certificate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&record).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&record).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Take(&record).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Certificate{}, domain.NotFoundError{Resource: "certificate"}
	}
	if err != nil {
		return domain.Certificate{}, err
	}
	return certificateToDomain(record), nil
}

func (r *CertificateRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Certificate{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "certificate"}
	}
	return nil
}

func (r *CertificateRepository) AppendVerification(ctx context.Context, entry domain.VerificationLog) error {
	record := models.VerificationLog{
		ID:            entry.ID,
		CertificateID: entry.CertificateID,
		VerifierDID:   entry.VerifierDID,
		Result:        string(entry.Result),
		Timestamp:     entry.Timestamp,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *CertificateRepository) ListVerifications(ctx context.Context, certificateID string) ([]domain.VerificationLog, error) {
	var records []models.VerificationLog
	err := r.db.WithContext(ctx).
		Where("certificate_id = ?", certificateID).
		Order("timestamp desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.VerificationLog, 0, len(records))
	for _, record := range records {
		entries = append(entries, domain.VerificationLog{
			ID:            record.ID,
			CertificateID: record.CertificateID,
			VerifierDID:   record.VerifierDID,
			Result:        talentchain.VerificationResult(record.Result),
			Timestamp:     record.Timestamp,
		})
	}
	return entries, nil
}

func certificateToDomain(record models.Certificate) domain.Certificate {
	return domain.Certificate{
		ID:          record.ID,
		Title:       record.Title,
		Type:        talentchain.CertificateType(record.Type),
		IssuerDID:   record.IssuerDID,
		HolderDID:   record.HolderDID,
		Hash:        record.Hash,
		MetadataURI: record.MetadataURI,
		TxHash:      record.TxHash,
		Verified:    record.Verified,
		IssuedAt:    record.IssuedAt,
	}
}

func certificatesToDomain(records []models.Certificate) []domain.Certificate {
	out := make([]domain.Certificate, 0, len(records))
	for _, record := range records {
		out = append(out, certificateToDomain(record))
	}
	return out
}
