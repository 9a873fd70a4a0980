package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MailingStatus represents the lifecycle status of a mailing
type MailingStatus string

const (
	MailingStatusPending    MailingStatus = "pending"
	MailingStatusInProgress MailingStatus = "in_progress"
	MailingStatusCompleted  MailingStatus = "completed"
)

// String returns the string representation of the status
func (s MailingStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s MailingStatus) Valid() bool {
	switch s {
	case MailingStatusPending, MailingStatusInProgress, MailingStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving to target is a legal lifecycle
// step. The lifecycle is monotonic: pending -> in_progress -> completed,
// and completed is terminal. Setting the current status again is allowed
// so repeated dispatch runs stay idempotent.
func (s MailingStatus) CanTransitionTo(target MailingStatus) bool {
	if s == target {
		return s != MailingStatusPending
	}
	switch s {
	case MailingStatusPending:
		return target == MailingStatusInProgress
	case MailingStatusInProgress:
		return target == MailingStatusCompleted
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for MailingStatus
func (s *MailingStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = MailingStatus(v)
	case []byte:
		*s = MailingStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MailingStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MailingStatus
func (s MailingStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid MailingStatus: %s", s)
	}
	return string(s), nil
}

// Mailing represents a notification campaign. Content is fixed at
// creation; status is mutated only by the dispatch engine.
type Mailing struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_mailings_uuid" json:"uuid"`
	Title     string        `gorm:"size:255;not null" json:"title"`
	Text      string        `gorm:"not null" json:"text"`
	Status    MailingStatus `gorm:"type:mailing_status;not null;default:'pending';index:idx_mailings_status" json:"status"`
	CreatedAt time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_mailings_created_at" json:"created_at"`
	UpdatedAt time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Recipients []MailingRecipient `gorm:"foreignKey:MailingID" json:"-"`
}

func (Mailing) TableName() string {
	return "mailings"
}

// MailingFilter provides filter fields for repository queries
type MailingFilter struct {
	ID            *uint          `json:"id,omitempty"`
	UUID          *uuid.UUID     `json:"uuid,omitempty"`
	Status        *MailingStatus `json:"status,omitempty"`
	Title         *string        `json:"title,omitempty"`
	CreatedAfter  *time.Time     `json:"created_after,omitempty"`
	CreatedBefore *time.Time     `json:"created_before,omitempty"`
}
