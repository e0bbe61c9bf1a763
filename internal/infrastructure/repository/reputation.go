package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kbunet/talentchain/internal/domain"
	"github.com/kbunet/talentchain/internal/infrastructure/database/models"
)

type ReputationRepository struct {
	db *gorm.DB
}

func NewReputationRepository(db *gorm.DB) *ReputationRepository {
	return &ReputationRepository{db: db}
}

func (r *ReputationRepository) Create(ctx context.Context, rep domain.Reputation) error {
	record := models.Reputation{
		ID:        rep.ID,
		TargetDID: rep.TargetDID,
		SourceDID: rep.SourceDID,
		Score:     rep.Score,
		Message:   rep.Message,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *ReputationRepository) ListByTarget(ctx context.Context, targetDid string) ([]domain.Reputation, error) {
	var records []models.Reputation
	err := r.db.WithContext(ctx).
		Where("target_did = ?", targetDid).
		Order("c_date desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	reputations := make([]domain.Reputation, 0, len(records))
	for _, record := range records {
		reputations = append(reputations, domain.Reputation{
			ID:        record.ID,
			TargetDID: record.TargetDID,
			SourceDID: record.SourceDID,
			Score:     record.Score,
			Message:   record.Message,
			CreatedAt: record.CDate,
		})
	}
	return reputations, nil
}

func (r *ReputationRepository) AverageScore(ctx context.Context, targetDid string) (float64, int64, error) {
	var result struct {
		Average float64
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Reputation{}).
		Select("coalesce(avg(score), 0) as average, count(*) as count").
		Where("target_did = ?", targetDid).
		Scan(&result).Error
	if err != nil {
		return 0, 0, err
	}
	return result.Average, result.Count, nil
}
