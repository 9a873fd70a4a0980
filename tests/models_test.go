// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/wahelp/mailing-engine/models"
	testingutil "github.com/wahelp/mailing-engine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailingStatus(t *testing.T) {
	t.Run("Constants", func(t *testing.T) {
		assert.Equal(t, "pending", models.MailingStatusPending.String())
		assert.Equal(t, "in_progress", models.MailingStatusInProgress.String())
		assert.Equal(t, "completed", models.MailingStatusCompleted.String())
	})

	t.Run("Valid", func(t *testing.T) {
		assert.True(t, models.MailingStatusPending.Valid())
		assert.True(t, models.MailingStatusInProgress.Valid())
		assert.True(t, models.MailingStatusCompleted.Valid())
		assert.False(t, models.MailingStatus("cancelled").Valid())
		assert.False(t, models.MailingStatus("").Valid())
	})

	t.Run("CanTransitionTo", func(t *testing.T) {
		// Forward steps
		assert.True(t, models.MailingStatusPending.CanTransitionTo(models.MailingStatusInProgress))
		assert.True(t, models.MailingStatusInProgress.CanTransitionTo(models.MailingStatusCompleted))

		// Re-setting the current status is legal for repeated dispatch runs
		assert.True(t, models.MailingStatusInProgress.CanTransitionTo(models.MailingStatusInProgress))
		assert.True(t, models.MailingStatusCompleted.CanTransitionTo(models.MailingStatusCompleted))

		// The lifecycle never moves backwards
		assert.False(t, models.MailingStatusInProgress.CanTransitionTo(models.MailingStatusPending))
		assert.False(t, models.MailingStatusCompleted.CanTransitionTo(models.MailingStatusPending))
		assert.False(t, models.MailingStatusCompleted.CanTransitionTo(models.MailingStatusInProgress))

		// Pending never skips in_progress
		assert.False(t, models.MailingStatusPending.CanTransitionTo(models.MailingStatusCompleted))
	})

	t.Run("ScanAndValue", func(t *testing.T) {
		var status models.MailingStatus
		require.NoError(t, status.Scan("in_progress"))
		assert.Equal(t, models.MailingStatusInProgress, status)

		require.NoError(t, status.Scan([]byte("completed")))
		assert.Equal(t, models.MailingStatusCompleted, status)

		require.NoError(t, status.Scan(nil))
		assert.Equal(t, models.MailingStatus(""), status)

		assert.Error(t, status.Scan(42))

		value, err := models.MailingStatusPending.Value()
		require.NoError(t, err)
		assert.Equal(t, "pending", value)

		_, err = models.MailingStatus("bogus").Value()
		assert.Error(t, err)
	})
}

func TestRecipientStatus(t *testing.T) {
	t.Run("Constants", func(t *testing.T) {
		assert.Equal(t, "pending", models.RecipientStatusPending.String())
		assert.Equal(t, "sent", models.RecipientStatusSent.String())
		assert.Equal(t, "failed", models.RecipientStatusFailed.String())
	})

	t.Run("Valid", func(t *testing.T) {
		assert.True(t, models.RecipientStatusPending.Valid())
		assert.True(t, models.RecipientStatusSent.Valid())
		assert.True(t, models.RecipientStatusFailed.Valid())
		assert.False(t, models.RecipientStatus("queued").Valid())
	})

	t.Run("ScanAndValue", func(t *testing.T) {
		var status models.RecipientStatus
		require.NoError(t, status.Scan("sent"))
		assert.Equal(t, models.RecipientStatusSent, status)

		value, err := models.RecipientStatusPending.Value()
		require.NoError(t, err)
		assert.Equal(t, "pending", value)

		_, err = models.RecipientStatus("bogus").Value()
		assert.Error(t, err)
	})
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "users", models.User{}.TableName())
	assert.Equal(t, "mailings", models.Mailing{}.TableName())
	assert.Equal(t, "mailing_recipients", models.MailingRecipient{}.TableName())
}

func TestModelPersistence(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("CreateUser", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("Alice")
			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assert.Equal(t, "Alice", user.Name)
			assert.NotEmpty(t, user.PhoneNumber)
		})

		t.Run("DuplicatePhoneNumberRejected", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("Bob")
			require.NoError(t, err)

			dup := &models.User{PhoneNumber: user.PhoneNumber, Name: "Impostor"}
			err = testDB.DB.Create(dup).Error
			assert.Error(t, err)
		})

		t.Run("CreateMailingDefaultsToPending", func(t *testing.T) {
			mailing, err := fixtures.CreateTestMailing("Spring Sale", "Everything half off")
			require.NoError(t, err)
			assert.NotZero(t, mailing.ID)
			assert.Equal(t, models.MailingStatusPending, mailing.Status)

			var loaded models.Mailing
			require.NoError(t, testDB.DB.First(&loaded, mailing.ID).Error)
			assert.Equal(t, models.MailingStatusPending, loaded.Status)
			assert.Equal(t, mailing.UUID, loaded.UUID)
		})

		t.Run("DuplicateRecipientRejected", func(t *testing.T) {
			users, err := fixtures.CreateTestUsers(1)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailingWithRecipients("Weekly", "News", users)
			require.NoError(t, err)

			dup := &models.MailingRecipient{
				MailingID: mailing.ID,
				UserID:    users[0].ID,
				Status:    models.RecipientStatusPending,
			}
			err = testDB.DB.Create(dup).Error
			assert.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}
