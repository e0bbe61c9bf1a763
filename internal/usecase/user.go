package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
)

// UserRepository defines persistence/lookup for users. Create must enforce
// DID uniqueness and return DuplicateError on conflict.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	Get(ctx context.Context, id string) (domain.User, error)
	GetByDID(ctx context.Context, did string) (domain.User, error)
	GetByWallet(ctx context.Context, address string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, id string, patch UserPatch) (domain.User, error)
	Delete(ctx context.Context, id string) error
}

type CreateUserInput struct {
	DID           string
	WalletAddress string
	Name          string
	Email         string
	Role          talentchain.Role
}

type UserPatch struct {
	Name          *string
	Email         *string
	WalletAddress *string
	Role          *talentchain.Role
}

type UserUsecase struct {
	repo UserRepository
}

func NewUserUsecase(repo UserRepository) *UserUsecase {
	return &UserUsecase{repo: repo}
}

func (uc *UserUsecase) Create(ctx context.Context, input CreateUserInput) (domain.User, error) {
	if !talentchain.IsDID(input.DID) {
		return domain.User{}, domain.ValidationError{Message: "invalid did"}
	}
	if input.Name == "" {
		return domain.User{}, domain.ValidationError{Message: "name is required"}
	}
	role := input.Role
	if role == "" {
		role = talentchain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, domain.ValidationError{Message: "invalid role"}
	}

	user := domain.User{
		ID:            uuid.NewString(),
		DID:           input.DID,
		WalletAddress: input.WalletAddress,
		Name:          input.Name,
		Email:         input.Email,
		Role:          role,
		CreatedAt:     time.Now().UTC(),
	}

	if err := uc.repo.Create(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (uc *UserUsecase) Get(ctx context.Context, id string) (domain.User, error) {
	return uc.repo.Get(ctx, id)
}

func (uc *UserUsecase) GetByDID(ctx context.Context, did string) (domain.User, error) {
	return uc.repo.GetByDID(ctx, did)
}

func (uc *UserUsecase) GetByWallet(ctx context.Context, address string) (domain.User, error) {
	return uc.repo.GetByWallet(ctx, address)
}

func (uc *UserUsecase) List(ctx context.Context) ([]domain.User, error) {
	return uc.repo.List(ctx)
}

func (uc *UserUsecase) Update(ctx context.Context, id string, patch UserPatch) (domain.User, error) {
	if patch.Role != nil && !patch.Role.Valid() {
		return domain.User{}, domain.ValidationError{Message: "invalid role"}
	}
	return uc.repo.Update(ctx, id, patch)
}

func (uc *UserUsecase) UpdateRole(ctx context.Context, id string, role talentchain.Role) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, domain.ValidationError{Message: "invalid role"}
	}
	return uc.repo.Update(ctx, id, UserPatch{Role: &role})
}

func (uc *UserUsecase) Remove(ctx context.Context, id string) error {
	return uc.repo.Delete(ctx, id)
}
