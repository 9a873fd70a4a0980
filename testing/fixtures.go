// Package testing provides test utilities and database setup for testing the mailing engine
package testing

import (
	"fmt"
	"math/rand"

	"github.com/wahelp/mailing-engine/models"
	"github.com/wahelp/mailing-engine/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates a user with a random unique phone number
func (tf *TestFixtures) CreateTestUser(name string) (*models.User, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	user := &models.User{
		PhoneNumber: fmt.Sprintf("+1555%s", randomDigits),
		Name:        name,
	}

	err := tf.DB.DB.Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestUsers creates count users named User 1..count
func (tf *TestFixtures) CreateTestUsers(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 1; i <= count; i++ {
		user, err := tf.CreateTestUser(fmt.Sprintf("User %d", i))
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// CreateTestMailing creates a mailing without recipients
func (tf *TestFixtures) CreateTestMailing(title, text string) (*models.Mailing, error) {
	mailing := &models.Mailing{
		UUID:   utils.NewUUID(),
		Title:  title,
		Text:   text,
		Status: models.MailingStatusPending,
	}

	err := tf.DB.DB.Create(mailing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test mailing: %w", err)
	}

	return mailing, nil
}

// CreateTestMailingWithRecipients creates a mailing whose cohort is the given users
func (tf *TestFixtures) CreateTestMailingWithRecipients(title, text string, users []*models.User) (*models.Mailing, error) {
	mailing, err := tf.CreateTestMailing(title, text)
	if err != nil {
		return nil, err
	}

	for _, user := range users {
		recipient := &models.MailingRecipient{
			MailingID: mailing.ID,
			UserID:    user.ID,
			Status:    models.RecipientStatusPending,
		}
		if err := tf.DB.DB.Create(recipient).Error; err != nil {
			return nil, fmt.Errorf("failed to create test recipient: %w", err)
		}
	}

	return mailing, nil
}

// MarkRecipientsSent flips the first count pending recipients of a mailing to sent
func (tf *TestFixtures) MarkRecipientsSent(mailingID uint, count int) error {
	err := tf.DB.DB.Exec(`
		UPDATE mailing_recipients SET status = 'sent', sent_at = NOW()
		WHERE id IN (
			SELECT id FROM mailing_recipients
			WHERE mailing_id = ? AND status = 'pending'
			ORDER BY id ASC LIMIT ?
		)`, mailingID, count).Error
	if err != nil {
		return fmt.Errorf("failed to mark recipients sent: %w", err)
	}
	return nil
}
