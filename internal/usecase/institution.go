package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
)

// InstitutionRepository defines persistence/lookup for institutions.
type InstitutionRepository interface {
	Create(ctx context.Context, institution domain.Institution) error
	Get(ctx context.Context, id string) (domain.Institution, error)
	GetByDID(ctx context.Context, did string) (domain.Institution, error)
	List(ctx context.Context) ([]domain.Institution, error)
	Update(ctx context.Context, id string, patch InstitutionPatch) (domain.Institution, error)
	Delete(ctx context.Context, id string) error
}

type CreateInstitutionInput struct {
	Name       string
	DID        string
	PublicKeys []string
	OwnerID    string
}

type InstitutionPatch struct {
	Name       *string
	PublicKeys *[]string
	Approved   *bool
}

type InstitutionUsecase struct {
	repo InstitutionRepository
}

func NewInstitutionUsecase(repo InstitutionRepository) *InstitutionUsecase {
	return &InstitutionUsecase{repo: repo}
}

func (uc *InstitutionUsecase) Register(ctx context.Context, input CreateInstitutionInput) (domain.Institution, error) {
	if input.Name == "" {
		return domain.Institution{}, domain.ValidationError{Message: "name is required"}
	}
	if !talentchain.IsDID(input.DID) {
		return domain.Institution{}, domain.ValidationError{Message: "invalid did"}
	}

	institution := domain.Institution{
		ID:         uuid.NewString(),
		Name:       input.Name,
		DID:        input.DID,
		PublicKeys: input.PublicKeys,
		Approved:   false, // requires admin approval before issuing
		OwnerID:    input.OwnerID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := uc.repo.Create(ctx, institution); err != nil {
		return domain.Institution{}, err
	}
	return institution, nil
}

func (uc *InstitutionUsecase) Get(ctx context.Context, id string) (domain.Institution, error) {
	return uc.repo.Get(ctx, id)
}

func (uc *InstitutionUsecase) GetByDID(ctx context.Context, did string) (domain.Institution, error) {
	return uc.repo.GetByDID(ctx, did)
}

func (uc *InstitutionUsecase) List(ctx context.Context) ([]domain.Institution, error) {
	return uc.repo.List(ctx)
}

func (uc *InstitutionUsecase) Update(ctx context.Context, id string, patch InstitutionPatch) (domain.Institution, error) {
	return uc.repo.Update(ctx, id, patch)
}

func (uc *InstitutionUsecase) Approve(ctx context.Context, id string) (domain.Institution, error) {
	approved := true
	return uc.repo.Update(ctx, id, InstitutionPatch{Approved: &approved})
}

func (uc *InstitutionUsecase) Remove(ctx context.Context, id string) error {
	return uc.repo.Delete(ctx, id)
}
