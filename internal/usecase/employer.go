package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
)

// EmployerRepository defines persistence/lookup for employers.
type EmployerRepository interface {
	Create(ctx context.Context, employer domain.Employer) error
	Get(ctx context.Context, id string) (domain.Employer, error)
	GetByDID(ctx context.Context, did string) (domain.Employer, error)
	List(ctx context.Context) ([]domain.Employer, error)
	Update(ctx context.Context, id string, patch EmployerPatch) (domain.Employer, error)
	Delete(ctx context.Context, id string) error
}

type CreateEmployerInput struct {
	CompanyName string
	DID         string
	PublicKeys  []string
	OwnerID     string
}

type EmployerPatch struct {
	CompanyName *string
	PublicKeys  *[]string
	Approved    *bool
}

type EmployerUsecase struct {
	repo EmployerRepository
}

func NewEmployerUsecase(repo EmployerRepository) *EmployerUsecase {
	return &EmployerUsecase{repo: repo}
}

func (uc *EmployerUsecase) Register(ctx context.Context, input CreateEmployerInput) (domain.Employer, error) {
	if input.CompanyName == "" {
		return domain.Employer{}, domain.ValidationError{Message: "companyName is required"}
	}
	if !talentchain.IsDID(input.DID) {
		return domain.Employer{}, domain.ValidationError{Message: "invalid did"}
	}

	employer := domain.Employer{
		ID:          uuid.NewString(),
		CompanyName: input.CompanyName,
		DID:         input.DID,
		PublicKeys:  input.PublicKeys,
		Approved:    false,
		OwnerID:     input.OwnerID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := uc.repo.Create(ctx, employer); err != nil {
		return domain.Employer{}, err
	}
	return employer, nil
}

func (uc *EmployerUsecase) Get(ctx context.Context, id string) (domain.Employer, error) {
	return uc.repo.Get(ctx, id)
}

func (uc *EmployerUsecase) GetByDID(ctx context.Context, did string) (domain.Employer, error) {
	return uc.repo.GetByDID(ctx, did)
}

func (uc *EmployerUsecase) List(ctx context.Context) ([]domain.Employer, error) {
	return uc.repo.List(ctx)
}

func (uc *EmployerUsecase) Update(ctx context.Context, id string, patch EmployerPatch) (domain.Employer, error) {
	return uc.repo.Update(ctx, id, patch)
}

func (uc *EmployerUsecase) Approve(ctx context.Context, id string) (domain.Employer, error) {
	approved := true
	return uc.repo.Update(ctx, id, EmployerPatch{Approved: &approved})
}

func (uc *EmployerUsecase) Remove(ctx context.Context, id string) error {
	return uc.repo.Delete(ctx, id)
}
