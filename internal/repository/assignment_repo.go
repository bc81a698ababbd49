package repository

import (
	"context"
	"time"

	"carmen/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssignmentStats are the aggregates behind the analytics endpoint.
type AssignmentStats struct {
	Total             int64
	Overridden        int64
	RuleApplied       int64
	ReviewFlagged     int64
	AverageConfidence decimal.Decimal
}

type AssignmentRepository interface {
	// Create stores the assignment together with its first history entry.
	Create(ctx context.Context, a *model.PriceAssignment, first model.AssignmentHistory) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PriceAssignment, error)
	// AppendOverride writes a's current view and appends entry, provided the
	// stored version still equals expectedVersion. Otherwise ErrVersionConflict.
	AppendOverride(ctx context.Context, a *model.PriceAssignment, expectedVersion int, entry model.AssignmentHistory) error
	// ListHistory returns the audit trail newest-first.
	ListHistory(ctx context.Context, id uuid.UUID) ([]model.AssignmentHistory, error)
	Stats(ctx context.Context, from, to *time.Time) (*AssignmentStats, error)
}

type assignmentRepo struct{ db *gorm.DB }

func NewAssignmentRepository(db *gorm.DB) AssignmentRepository { return &assignmentRepo{db: db} }

func (r *assignmentRepo) Create(ctx context.Context, a *model.PriceAssignment, first model.AssignmentHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		first.AssignmentID = a.ID
		first.CreatedAt = a.CreatedAt
		return tx.Create(&first).Error
	})
}

func (r *assignmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PriceAssignment, error) {
	var a model.PriceAssignment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "price assignment", id.String())
	}
	return &a, nil
}

func (r *assignmentRepo) AppendOverride(ctx context.Context, a *model.PriceAssignment, expectedVersion int, entry model.AssignmentHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PriceAssignment{}).
			Where("id = ? AND version = ?", a.ID, expectedVersion).
			Updates(map[string]any{
				"current_vendor_id":        a.CurrentVendorID,
				"current_vendor_name":      a.CurrentVendorName,
				"current_price":            a.CurrentPrice,
				"current_currency":         a.CurrentCurrency,
				"current_normalized_price": a.CurrentNormalizedPrice,
				"overridden":               true,
				"override_count":           a.OverrideCount,
				"version":                  a.Version,
				"updated_at":               a.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return tx.Create(&entry).Error
	})
}

func (r *assignmentRepo) ListHistory(ctx context.Context, id uuid.UUID) ([]model.AssignmentHistory, error) {
	var exists int64
	if err := r.db.WithContext(ctx).Model(&model.PriceAssignment{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, notFound(gorm.ErrRecordNotFound, "price assignment", id.String())
	}
	var rows []model.AssignmentHistory
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		Order("seq DESC").
		Find(&rows).Error
	return rows, err
}

func (r *assignmentRepo) Stats(ctx context.Context, from, to *time.Time) (*AssignmentStats, error) {
	var row struct {
		Total         int64
		Overridden    int64
		RuleApplied   int64
		ReviewFlagged int64
		AvgConfidence decimal.NullDecimal
	}
	q := r.db.WithContext(ctx).Model(&model.PriceAssignment{}).Select(`
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE overridden) AS overridden,
		COUNT(*) FILTER (WHERE rule_id IS NOT NULL AND NOT rule_not_honored) AS rule_applied,
		COUNT(*) FILTER (WHERE requires_review) AS review_flagged,
		AVG(confidence) AS avg_confidence`)
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at < ?", *to)
	}
	if err := q.Scan(&row).Error; err != nil {
		return nil, err
	}
	stats := &AssignmentStats{
		Total:         row.Total,
		Overridden:    row.Overridden,
		RuleApplied:   row.RuleApplied,
		ReviewFlagged: row.ReviewFlagged,
	}
	if row.AvgConfidence.Valid {
		stats.AverageConfidence = row.AvgConfidence.Decimal
	}
	return stats, nil
}
