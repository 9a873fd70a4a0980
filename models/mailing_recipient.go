package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// RecipientStatus enumerates delivery state of a single recipient row
type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSent    RecipientStatus = "sent"
	// RecipientStatusFailed is reserved in the schema but never assigned:
	// the send capability does not report failure.
	RecipientStatusFailed RecipientStatus = "failed"
)

// String returns the string representation of the status
func (s RecipientStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RecipientStatus) Valid() bool {
	switch s {
	case RecipientStatusPending, RecipientStatusSent, RecipientStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RecipientStatus
func (s *RecipientStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RecipientStatus(v)
	case []byte:
		*s = RecipientStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RecipientStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RecipientStatus
func (s RecipientStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RecipientStatus: %s", s)
	}
	return string(s), nil
}

// MailingRecipient joins a mailing to a user and tracks delivery state.
// Rows are bulk-inserted once at mailing creation; cohort membership
// never changes afterwards. SentAt is stamped in the same update that
// moves the row from pending to sent.
type MailingRecipient struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	MailingID uint            `gorm:"not null;index:idx_mailing_recipients_mailing_id;uniqueIndex:uk_mailing_recipients_mailing_user" json:"mailing_id"`
	UserID    uint            `gorm:"not null;uniqueIndex:uk_mailing_recipients_mailing_user" json:"user_id"`
	Status    RecipientStatus `gorm:"type:mailing_recipient_status;not null;default:'pending';index:idx_mailing_recipients_status" json:"status"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
	CreatedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
}

func (MailingRecipient) TableName() string {
	return "mailing_recipients"
}

// MailingRecipientFilter provides filter fields for repository queries
type MailingRecipientFilter struct {
	ID        *uint            `json:"id,omitempty"`
	MailingID *uint            `json:"mailing_id,omitempty"`
	UserID    *uint            `json:"user_id,omitempty"`
	Status    *RecipientStatus `json:"status,omitempty"`
}
