package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
)

// ReputationRepository defines persistence for reputation scores.
type ReputationRepository interface {
	Create(ctx context.Context, rep domain.Reputation) error
	ListByTarget(ctx context.Context, targetDid string) ([]domain.Reputation, error)
	AverageScore(ctx context.Context, targetDid string) (float64, int64, error)
}

type SubmitReputationInput struct {
	TargetDID string
	SourceDID string
	Score     int
	Message   string
}

type ReputationScore struct {
	TargetDID string  `json:"targetDid"`
	Average   float64 `json:"average"`
	Count     int64   `json:"count"`
}

type ReputationUsecase struct {
	repo ReputationRepository
}

func NewReputationUsecase(repo ReputationRepository) *ReputationUsecase {
	return &ReputationUsecase{repo: repo}
}

func (uc *ReputationUsecase) Submit(ctx context.Context, input SubmitReputationInput) (domain.Reputation, error) {
	if !talentchain.IsDID(input.TargetDID) {
		return domain.Reputation{}, domain.ValidationError{Message: "invalid target did"}
	}
	if !talentchain.IsDID(input.SourceDID) {
		return domain.Reputation{}, domain.ValidationError{Message: "invalid source did"}
	}
	if input.Score < 0 || input.Score > 100 {
		return domain.Reputation{}, domain.ValidationError{Message: "score must be between 0 and 100"}
	}

	rep := domain.Reputation{
		ID:        uuid.NewString(),
		TargetDID: input.TargetDID,
		SourceDID: input.SourceDID,
		Score:     input.Score,
		Message:   input.Message,
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.repo.Create(ctx, rep); err != nil {
		return domain.Reputation{}, err
	}
	return rep, nil
}

func (uc *ReputationUsecase) ListByTarget(ctx context.Context, targetDid string) ([]domain.Reputation, error) {
	return uc.repo.ListByTarget(ctx, targetDid)
}

func (uc *ReputationUsecase) Score(ctx context.Context, targetDid string) (ReputationScore, error) {
	average, count, err := uc.repo.AverageScore(ctx, targetDid)
	if err != nil {
		return ReputationScore{}, err
	}
	return ReputationScore{TargetDID: targetDid, Average: average, Count: count}, nil
}
