package repository

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/kbunet/talentchain/internal/domain"
	"github.com/kbunet/talentchain/internal/infrastructure/database/models"
	"github.com/kbunet/talentchain/internal/usecase"
)

func pqStringArray(values []string) pq.StringArray {
	return pq.StringArray(values)
}

type EmployerRepository struct {
	db *gorm.DB
}

func NewEmployerRepository(db *gorm.DB) *EmployerRepository {
	return &EmployerRepository{db: db}
}

func (r *EmployerRepository) Create(ctx context.Context, employer domain.Employer) error {
	record := models.Employer{
		ID:          employer.ID,
		CompanyName: employer.CompanyName,
		DID:         employer.DID,
		PublicKeys:  employer.PublicKeys,
		Approved:    employer.Approved,
		OwnerID:     employer.OwnerID,
	}

	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.DuplicateError{Resource: "employer", Key: employer.DID}
	}
	return err
}

func (r *EmployerRepository) Get(ctx context.Context, id string) (domain.Employer, error) {
	var record models.Employer
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Employer{}, domain.NotFoundError{Resource: "employer"}
	}
	if err != nil {
		return domain.Employer{}, err
	}
	return employerToDomain(record), nil
}

func (r *EmployerRepository) GetByDID(ctx context.Context, did string) (domain.Employer, error) {
	var record models.Employer
	err := r.db.WithContext(ctx).
		Where("did = ?", did).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Employer{}, domain.NotFoundError{Resource: "employer"}
	}
	if err != nil {
		return domain.Employer{}, err
	}
	return employerToDomain(record), nil
}

func (r *EmployerRepository) List(ctx context.Context) ([]domain.Employer, error) {
	var records []models.Employer
	err := r.db.WithContext(ctx).
		Order("c_date desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	employers := make([]domain.Employer, 0, len(records))
	for _, record := range records {
		employers = append(employers, employerToDomain(record))
	}
	return employers, nil
}

func (r *EmployerRepository) Update(ctx context.Context, id string, patch usecase.EmployerPatch) (domain.Employer, error) {
	updates := map[string]any{}
	if patch.CompanyName != nil {
		updates["company_name"] = *patch.CompanyName
	}
	if patch.PublicKeys != nil {
		updates["public_keys"] = pqStringArray(*patch.PublicKeys)
	}
	if patch.Approved != nil {
		updates["approved"] = *patch.Approved
	}

	var record models.Employer
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
		return domain.Employer{}, domain.NotFoundError{Resource: "employer"}
	}
	if err != nil {
		return domain.Employer{}, err
	}
	return employerToDomain(record), nil
}

func (r *EmployerRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Employer{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "employer"}
	}
	return nil
}

func employerToDomain(record models.Employer) domain.Employer {
	return domain.Employer{
		ID:          record.ID,
		CompanyName: record.CompanyName,
		DID:         record.DID,
		PublicKeys:  record.PublicKeys,
		Approved:    record.Approved,
		OwnerID:     record.OwnerID,
		CreatedAt:   record.CDate,
	}
}
