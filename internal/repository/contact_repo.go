package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

type ContactRepository interface {
	FindSegment(ctx context.Context, tenantID string, filter domain.SegmentFilter) ([]domain.Contact, error)
}

type GormContactRepo struct {
	db *gorm.DB
}

func NewGormContactRepo(db *gorm.DB) *GormContactRepo {
	return &GormContactRepo{db: db}
}

// FindSegment resolves a typed filter into the matching contacts. The
// baseline is always the owning tenant's ACTIVE contacts; predicates only
// narrow it further, so an explicit status predicate can never resurface
// anonymized records.
func (r *GormContactRepo) FindSegment(ctx context.Context, tenantID string, filter domain.SegmentFilter) ([]domain.Contact, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&ContactModel{}).
		Where("tenant_id = ?", tenantID).
		Where("status = ?", domain.ContactActive)

	if filter.Tag != nil {
		// Tags are stored comma-separated; wrap both sides so the match is
		// on whole tags, not substrings.
		query = query.Where("(',' || tags || ',') LIKE ?", "%,"+filter.Tag.Tag+",%")
	}
	if filter.Donation != nil {
		if filter.Donation.Min != nil {
			query = query.Where("total_donated >= ?", *filter.Donation.Min)
		}
		if filter.Donation.Max != nil {
			query = query.Where("total_donated <= ?", *filter.Donation.Max)
		}
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.Status)
	}

	var models []ContactModel
	if err := query.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	contacts := make([]domain.Contact, 0, len(models))
	for i := range models {
		contacts = append(contacts, *contactModelToDomain(&models[i]))
	}

	return contacts, nil
}
