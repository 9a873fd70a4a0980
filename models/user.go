// Package models contains domain entities and business models for the mailing engine
package models

import "time"

// User is an addressable recipient. Rows are created and updated only by
// the bulk import flow; the dispatch engine consumes them read-only.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PhoneNumber string    `gorm:"column:phone_number;size:20;not null;uniqueIndex:uk_users_phone_number" json:"phone_number"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// UserFilter provides filter fields for repository queries
type UserFilter struct {
	ID            *uint      `json:"id,omitempty"`
	PhoneNumber   *string    `json:"phone_number,omitempty"`
	Name          *string    `json:"name,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
