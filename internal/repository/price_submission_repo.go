package repository

import (
	"context"
	"time"

	"carmen/internal/model"

	"gorm.io/gorm"
)

type PriceSubmissionRepository interface {
	Create(ctx context.Context, s *model.PriceSubmission) error
	// ListValidAt returns every submission for productID whose validity window
	// contains at, superseded ones included. Vendor is preloaded.
	ListValidAt(ctx context.Context, productID string, at time.Time) ([]model.PriceSubmission, error)
}

type priceSubmissionRepo struct{ db *gorm.DB }

func NewPriceSubmissionRepository(db *gorm.DB) PriceSubmissionRepository {
	return &priceSubmissionRepo{db: db}
}

func (r *priceSubmissionRepo) Create(ctx context.Context, s *model.PriceSubmission) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *priceSubmissionRepo) ListValidAt(ctx context.Context, productID string, at time.Time) ([]model.PriceSubmission, error) {
	var subs []model.PriceSubmission
	err := r.db.WithContext(ctx).
		Preload("Vendor").
		Joins("JOIN vendors ON vendors.id = price_submissions.vendor_id AND vendors.active = true").
		Where("price_submissions.product_id = ?", productID).
		Where("price_submissions.valid_from <= ?", at).
		Where("price_submissions.valid_to IS NULL OR price_submissions.valid_to > ?", at).
		Order("price_submissions.vendor_id ASC, price_submissions.submitted_at DESC").
		Find(&subs).Error
	return subs, err
}
