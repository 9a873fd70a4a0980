package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/wahelp/mailing-engine/models"
	"github.com/wahelp/mailing-engine/utils"
	"gorm.io/gorm"
)

// MailingRepositoryImpl implements the MailingRepository interface
type MailingRepositoryImpl struct {
	*BaseRepository[models.Mailing, models.MailingFilter]
}

// NewMailingRepository creates a new mailing repository
func NewMailingRepository(db *gorm.DB) MailingRepository {
	return &MailingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Mailing, models.MailingFilter](db),
	}
}

func (r *MailingRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Mailing, error) {
	db := r.getDB(ctx)

	var mailing models.Mailing
	if err := db.Last(&mailing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find mailing by ID %d: %w", id, err)
	}

	return &mailing, nil
}

func (r *MailingRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Mailing, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	filter := models.MailingFilter{UUID: &parsedUUID}
	mailings, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find mailing by UUID: %w", err)
	}
	if len(mailings) == 0 {
		return nil, nil
	}
	return mailings[0], nil
}

// UpdateStatus advances the mailing lifecycle. The current status is read
// first and the transition checked against CanTransitionTo, so a completed
// mailing can never move backwards no matter how the engine is invoked.
func (r *MailingRepositoryImpl) UpdateStatus(ctx context.Context, mailingID uint, status models.MailingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid mailing status: %s", status)
	}

	db := r.getDB(ctx)

	var mailing models.Mailing
	if err := db.Last(&mailing, mailingID).Error; err != nil {
		return fmt.Errorf("failed to load mailing %d for status update: %w", mailingID, err)
	}

	if mailing.Status == status {
		return nil
	}
	if !mailing.Status.CanTransitionTo(status) {
		return fmt.Errorf("illegal mailing status transition %s -> %s for mailing %d", mailing.Status, status, mailingID)
	}

	err := db.Model(&models.Mailing{}).
		Where("id = ? AND status = ?", mailingID, mailing.Status).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update mailing %d status to %s: %w", mailingID, status, err)
	}

	return nil
}

// List returns mailings newest first with pagination
func (r *MailingRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.Mailing, error) {
	return r.ByFilter(ctx, models.MailingFilter{}, "created_at DESC, id DESC", limit, offset)
}

func (r *MailingRepositoryImpl) applyFilter(db *gorm.DB, f models.MailingFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Title != nil {
		db = db.Where("title = ?", *f.Title)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *MailingRepositoryImpl) ByFilter(ctx context.Context, filter models.MailingFilter, orderBy string, limit, offset int) ([]*models.Mailing, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Mailing{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var mailings []*models.Mailing
	if err := query.Find(&mailings).Error; err != nil {
		return nil, fmt.Errorf("failed to find mailings by filter: %w", err)
	}
	return mailings, nil
}

func (r *MailingRepositoryImpl) Count(ctx context.Context, filter models.MailingFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Mailing{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count mailings: %w", err)
	}
	return count, nil
}
