// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/wahelp/mailing-engine/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// UserRepository defines operations for the user store
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error)
	// Upsert creates a user keyed on phone number, or overwrites the name
	// of the existing user with that number. Never creates a duplicate
	// identity for the same number.
	Upsert(ctx context.Context, user *models.User) error
	ListAll(ctx context.Context) ([]*models.User, error)
}

// MailingRepository defines operations for mailings
type MailingRepository interface {
	Repository[models.Mailing, models.MailingFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Mailing, error)
	// UpdateStatus moves a mailing to the given status. Transitions must
	// respect MailingStatus.CanTransitionTo; illegal transitions return
	// an error without touching the row.
	UpdateStatus(ctx context.Context, mailingID uint, status models.MailingStatus) error
	List(ctx context.Context, limit, offset int) ([]*models.Mailing, error)
}

// MailingRecipientRepository defines operations for mailing recipients
type MailingRecipientRepository interface {
	Repository[models.MailingRecipient, models.MailingRecipientFilter]
	// ListPendingWithUsers returns every pending recipient of the mailing
	// joined with its user, in stable id order.
	ListPendingWithUsers(ctx context.Context, mailingID uint) ([]*models.MailingRecipient, error)
	// MarkSent flips a single recipient from pending to sent and stamps
	// sent_at in the same statement. Returns false when the row was not
	// pending anymore, so callers can detect a lost claim.
	MarkSent(ctx context.Context, recipientID uint, sentAt time.Time) (bool, error)
	CountByStatus(ctx context.Context, mailingID uint, status models.RecipientStatus) (int64, error)
	CountByMailing(ctx context.Context, mailingID uint) (int64, error)
}
