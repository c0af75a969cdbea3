package db

import (
	"context"

	"github.com/ExcursionClub/ExCSystem/models"
)

func (r *Repo) CreateRFIDCheck(ctx context.Context, c *models.RFIDCheck) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *Repo) ListRFIDChecks(ctx context.Context, limit int) ([]models.RFIDCheck, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var cs []models.RFIDCheck
	err := r.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&cs).Error
	return cs, err
}
