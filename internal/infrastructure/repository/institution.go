package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kbunet/talentchain/internal/domain"
	"github.com/kbunet/talentchain/internal/infrastructure/database/models"
	"github.com/kbunet/talentchain/internal/usecase"
)

type InstitutionRepository struct {
	db *gorm.DB
}

func NewInstitutionRepository(db *gorm.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

func (r *InstitutionRepository) Create(ctx context.Context, institution domain.Institution) error {
	record := models.Institution{
		ID:         institution.ID,
		Name:       institution.Name,
		DID:        institution.DID,
		PublicKeys: institution.PublicKeys,
		Approved:   institution.Approved,
		OwnerID:    institution.OwnerID,
	}

	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.DuplicateError{Resource: "institution", Key: institution.DID}
	}
	return err
}

func (r *InstitutionRepository) Get(ctx context.Context, id string) (domain.Institution, error) {
	var record models.Institution
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Institution{}, domain.NotFoundError{Resource: "institution"}
	}
	if err != nil {
		return domain.Institution{}, err
	}
	return institutionToDomain(record), nil
}

func (r *InstitutionRepository) GetByDID(ctx context.Context, did string) (domain.Institution, error) {
	var record models.Institution
	err := r.db.WithContext(ctx).
		Where("did = ?", did).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Institution{}, domain.NotFoundError{Resource: "institution"}
	}
	if err != nil {
		return domain.Institution{}, err
	}
	return institutionToDomain(record), nil
}

func (r *InstitutionRepository) List(ctx context.Context) ([]domain.Institution, error) {
	var records []models.Institution
	err := r.db.WithContext(ctx).
		Order("c_date desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	institutions := make([]domain.Institution, 0, len(records))
	for _, record := range records {
		institutions = append(institutions, institutionToDomain(record))
	}
	return institutions, nil
}

func (r *InstitutionRepository) Update(ctx context.Context, id string, patch usecase.InstitutionPatch) (domain.Institution, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.PublicKeys != nil {
		updates["public_keys"] = pqStringArray(*patch.PublicKeys)
	}
	if patch.Approved != nil {
		updates["approved"] = *patch.Approved
	}

	var record models.Institution
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
		return domain.Institution{}, domain.NotFoundError{Resource: "institution"}
	}
	if err != nil {
		return domain.Institution{}, err
	}
	return institutionToDomain(record), nil
}

func (r *InstitutionRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Institution{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "institution"}
	}
	return nil
}

func institutionToDomain(record models.Institution) domain.Institution {
	return domain.Institution{
		ID:         record.ID,
		Name:       record.Name,
		DID:        record.DID,
		PublicKeys: record.PublicKeys,
		Approved:   record.Approved,
		OwnerID:    record.OwnerID,
		CreatedAt:  record.CDate,
	}
}
