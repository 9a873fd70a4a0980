package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wahelp/mailing-engine/models"
	"gorm.io/gorm"
)

// MailingRecipientRepositoryImpl implements the MailingRecipientRepository interface
type MailingRecipientRepositoryImpl struct {
	*BaseRepository[models.MailingRecipient, models.MailingRecipientFilter]
}

// NewMailingRecipientRepository creates a new mailing recipient repository
func NewMailingRecipientRepository(db *gorm.DB) MailingRecipientRepository {
	return &MailingRecipientRepositoryImpl{
		BaseRepository: NewBaseRepository[models.MailingRecipient, models.MailingRecipientFilter](db),
	}
}

func (r *MailingRecipientRepositoryImpl) ByID(ctx context.Context, id uint) (*models.MailingRecipient, error) {
	db := r.getDB(ctx)

	var recipient models.MailingRecipient
	if err := db.Last(&recipient, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find recipient by ID %d: %w", id, err)
	}

	return &recipient, nil
}

// ListPendingWithUsers selects every pending recipient of the mailing
// with its user preloaded, ordered by recipient id. Already-sent rows are
// never revisited, which is what makes dispatch runs resumable.
func (r *MailingRecipientRepositoryImpl) ListPendingWithUsers(ctx context.Context, mailingID uint) ([]*models.MailingRecipient, error) {
	db := r.getDB(ctx)

	var recipients []*models.MailingRecipient
	err := db.Preload("User").
		Where("mailing_id = ? AND status = ?", mailingID, models.RecipientStatusPending).
		Order("id ASC").
		Find(&recipients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending recipients for mailing %d: %w", mailingID, err)
	}

	return recipients, nil
}

// MarkSent performs the guarded pending -> sent transition. The WHERE
// clause claims the row: when another invocation already flipped it the
// update touches nothing and false is returned. sent_at is written in the
// same statement as the status change.
func (r *MailingRecipientRepositoryImpl) MarkSent(ctx context.Context, recipientID uint, sentAt time.Time) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.MailingRecipient{}).
		Where("id = ? AND status = ?", recipientID, models.RecipientStatusPending).
		Updates(map[string]any{
			"status":  models.RecipientStatusSent,
			"sent_at": sentAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark recipient %d sent: %w", recipientID, res.Error)
	}

	return res.RowsAffected == 1, nil
}

func (r *MailingRecipientRepositoryImpl) CountByStatus(ctx context.Context, mailingID uint, status models.RecipientStatus) (int64, error) {
	filter := models.MailingRecipientFilter{MailingID: &mailingID, Status: &status}
	return r.Count(ctx, filter)
}

func (r *MailingRecipientRepositoryImpl) CountByMailing(ctx context.Context, mailingID uint) (int64, error) {
	filter := models.MailingRecipientFilter{MailingID: &mailingID}
	return r.Count(ctx, filter)
}

func (r *MailingRecipientRepositoryImpl) applyFilter(db *gorm.DB, f models.MailingRecipientFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.MailingID != nil {
		db = db.Where("mailing_id = ?", *f.MailingID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

func (r *MailingRecipientRepositoryImpl) ByFilter(ctx context.Context, filter models.MailingRecipientFilter, orderBy string, limit, offset int) ([]*models.MailingRecipient, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MailingRecipient{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var recipients []*models.MailingRecipient
	if err := query.Find(&recipients).Error; err != nil {
		return nil, fmt.Errorf("failed to find recipients by filter: %w", err)
	}
	return recipients, nil
}

func (r *MailingRecipientRepositoryImpl) Count(ctx context.Context, filter models.MailingRecipientFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MailingRecipient{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}
	return count, nil
}
