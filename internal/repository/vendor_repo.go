package repository

import (
	"context"

	"carmen/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VendorRepository interface {
	Create(ctx context.Context, v *model.Vendor) error
	Upsert(ctx context.Context, v *model.Vendor) error
	FindByID(ctx context.Context, id string) (*model.Vendor, error)
	List(ctx context.Context, includeInactive bool) ([]model.Vendor, error)
}

type vendorRepo struct{ db *gorm.DB }

func NewVendorRepository(db *gorm.DB) VendorRepository { return &vendorRepo{db: db} }

func (r *vendorRepo) Create(ctx context.Context, v *model.Vendor) error {
	return r.db.WithContext(ctx).Create(v).Error
}

// Upsert is used by the seed command; an existing vendor code is refreshed in place.
func (r *vendorRepo) Upsert(ctx context.Context, v *model.Vendor) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "categories", "preferred", "rating", "lead_time_days", "email", "active", "updated_at"}),
	}).Create(v).Error
}

func (r *vendorRepo) FindByID(ctx context.Context, id string) (*model.Vendor, error) {
	var v model.Vendor
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, notFound(err, "vendor", id)
	}
	return &v, nil
}

func (r *vendorRepo) List(ctx context.Context, includeInactive bool) ([]model.Vendor, error) {
	var vendors []model.Vendor
	q := r.db.WithContext(ctx).Order("id ASC")
	if !includeInactive {
		q = q.Where("active = true")
	}
	err := q.Find(&vendors).Error
	return vendors, err
}
