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

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	record := models.User{
		ID:            user.ID,
		DID:           user.DID,
		WalletAddress: user.WalletAddress,
		Name:          user.Name,
		Email:         user.Email,
		Role:          string(user.Role),
	}

	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.DuplicateError{Resource: "user", Key: user.DID}
	}
	return err
}

func (r *UserRepository) Get(ctx context.Context, id string) (domain.User, error) {
	var record models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return domain.User{}, err
	}
	return userToDomain(record), nil
}

func (r *UserRepository) GetByDID(ctx context.Context, did string) (domain.User, error) {
	var record models.User
	err := r.db.WithContext(ctx).
		Where("did = ?", did).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return domain.User{}, err
	}
	return userToDomain(record), nil
}

func (r *UserRepository) GetByWallet(ctx context.Context, address string) (domain.User, error) {
	var record models.User
	err := r.db.WithContext(ctx).
		Where("lower(wallet_address) = lower(?)", address).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return domain.User{}, err
	}
	return userToDomain(record), nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	var records []models.User
	err := r.db.WithContext(ctx).
		Order("c_date desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(records))
	for _, record := range records {
		users = append(users, userToDomain(record))
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, patch usecase.UserPatch) (domain.User, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.WalletAddress != nil {
		updates["wallet_address"] = *patch.WalletAddress
	}
	if patch.Role != nil {
		updates["role"] = string(*patch.Role)
	}

	var record models.User
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
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return domain.User{}, err
	}
	return userToDomain(record), nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "user"}
	}
	return nil
}

func userToDomain(record models.User) domain.User {
	return domain.User{
		ID:            record.ID,
		DID:           record.DID,
		WalletAddress: record.WalletAddress,
		Name:          record.Name,
		Email:         record.Email,
		Role:          talentchain.Role(record.Role),
		CreatedAt:     record.CDate,
	}
}
