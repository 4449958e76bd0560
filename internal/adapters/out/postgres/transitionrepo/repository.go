package transitionrepo

import (
	"context"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormTransitionRepository implements ports.TransitionRepository.
type GormTransitionRepository struct {
	db *gorm.DB
}

func NewGormTransitionRepository(db *gorm.DB) *GormTransitionRepository {
	return &GormTransitionRepository{db: db}
}

// Append inserts a record.
func (r *GormTransitionRepository) Append(ctx context.Context, record ports.TransitionRecord) error {
	if err := record.ID.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("transition id", err)
	}
	if err := record.OrderID.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("order id", err)
	}
	dto := fromRecord(record)
	return r.db.WithContext(ctx).Create(&dto).Error
}

// MarkPublished stamps published_at once. A record already stamped is left
// untouched.
func (r *GormTransitionRepository) MarkPublished(ctx context.Context, id kernel.UUID, at time.Time) error {
	if err := id.Validate(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&TransitionDTO{}).
		Where("id = ? AND published_at IS NULL", id.Bytes()).
		Update("published_at", at.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&TransitionDTO{}).Where("id = ?", id.Bytes()).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errs.NewObjectNotFoundError("transition", id.String())
		}
	}
	return nil
}

// ListUnpublished returns the oldest unpublished records first.
func (r *GormTransitionRepository) ListUnpublished(
	ctx context.Context,
	occurredBefore time.Time,
	limit int,
) ([]ports.TransitionRecord, error) {
	if limit <= 0 {
		return nil, errs.NewValueIsOutOfRangeError("limit", limit, 1, "unbounded")
	}

	var dtos []TransitionDTO
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND occurred_at < ?", occurredBefore.UTC()).
		Order("occurred_at").
		Limit(limit).
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	records := make([]ports.TransitionRecord, 0, len(dtos))
	for _, dto := range dtos {
		rec, err := toRecord(dto)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
