// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/wahelp/mailing-engine/models"
	"github.com/wahelp/mailing-engine/repository"
	testingutil "github.com/wahelp/mailing-engine/testing"
	"github.com/wahelp/mailing-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewUserRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("ByID", func(t *testing.T) {
			created, err := fixtures.CreateTestUser("Alice")
			require.NoError(t, err)

			user, err := repo.ByID(ctx, created.ID)
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, created.ID, user.ID)
			assert.Equal(t, "Alice", user.Name)
		})

		t.Run("ByIDNotFound", func(t *testing.T) {
			user, err := repo.ByID(ctx, 999999)
			assert.NoError(t, err)
			assert.Nil(t, user)
		})

		t.Run("ByPhoneNumber", func(t *testing.T) {
			created, err := fixtures.CreateTestUser("Bob")
			require.NoError(t, err)

			user, err := repo.ByPhoneNumber(ctx, created.PhoneNumber)
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, created.ID, user.ID)

			missing, err := repo.ByPhoneNumber(ctx, "+10000000000")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("UpsertCreatesNewUser", func(t *testing.T) {
			user := &models.User{PhoneNumber: "+15550001111", Name: "Carol"}
			require.NoError(t, repo.Upsert(ctx, user))

			loaded, err := repo.ByPhoneNumber(ctx, "+15550001111")
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, "Carol", loaded.Name)
		})

		t.Run("UpsertOverwritesNameKeepsIdentity", func(t *testing.T) {
			first := &models.User{PhoneNumber: "+15550002222", Name: "Dave"}
			require.NoError(t, repo.Upsert(ctx, first))

			original, err := repo.ByPhoneNumber(ctx, "+15550002222")
			require.NoError(t, err)
			require.NotNil(t, original)

			second := &models.User{PhoneNumber: "+15550002222", Name: "Dave Jr."}
			require.NoError(t, repo.Upsert(ctx, second))

			updated, err := repo.ByPhoneNumber(ctx, "+15550002222")
			require.NoError(t, err)
			require.NotNil(t, updated)
			assert.Equal(t, original.ID, updated.ID)
			assert.Equal(t, "Dave Jr.", updated.Name)

			// Still exactly one row for this number
			count, err := repo.Count(ctx, models.UserFilter{PhoneNumber: utils.ToPtr("+15550002222")})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("ListAllOrderedByID", func(t *testing.T) {
			users, err := repo.ListAll(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, users)
			for i := 1; i < len(users); i++ {
				assert.Greater(t, users[i].ID, users[i-1].ID)
			}
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMailingRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewMailingRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("ByUUID", func(t *testing.T) {
			created, err := fixtures.CreateTestMailing("Launch", "We are live")
			require.NoError(t, err)

			mailing, err := repo.ByUUID(ctx, created.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, mailing)
			assert.Equal(t, created.ID, mailing.ID)

			_, err = repo.ByUUID(ctx, "not-a-uuid")
			assert.Error(t, err)
		})

		t.Run("UpdateStatusForward", func(t *testing.T) {
			mailing, err := fixtures.CreateTestMailing("Forward", "Step by step")
			require.NoError(t, err)

			require.NoError(t, repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusInProgress))
			loaded, err := repo.ByID(ctx, mailing.ID)
			require.NoError(t, err)
			assert.Equal(t, models.MailingStatusInProgress, loaded.Status)

			require.NoError(t, repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusCompleted))
			loaded, err = repo.ByID(ctx, mailing.ID)
			require.NoError(t, err)
			assert.Equal(t, models.MailingStatusCompleted, loaded.Status)
		})

		t.Run("UpdateStatusSameStatusIsNoop", func(t *testing.T) {
			mailing, err := fixtures.CreateTestMailing("Idempotent", "Run twice")
			require.NoError(t, err)

			require.NoError(t, repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusInProgress))
			require.NoError(t, repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusInProgress))

			loaded, err := repo.ByID(ctx, mailing.ID)
			require.NoError(t, err)
			assert.Equal(t, models.MailingStatusInProgress, loaded.Status)
		})

		t.Run("UpdateStatusNeverMovesBackwards", func(t *testing.T) {
			mailing, err := fixtures.CreateTestMailing("Terminal", "Done is done")
			require.NoError(t, err)

			require.NoError(t, repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusInProgress))
			require.NoError(t, repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusCompleted))

			assert.Error(t, repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusInProgress))
			assert.Error(t, repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusPending))

			loaded, err := repo.ByID(ctx, mailing.ID)
			require.NoError(t, err)
			assert.Equal(t, models.MailingStatusCompleted, loaded.Status)
		})

		t.Run("UpdateStatusSkippingInProgressRejected", func(t *testing.T) {
			mailing, err := fixtures.CreateTestMailing("Skip", "No shortcuts")
			require.NoError(t, err)

			assert.Error(t, repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusCompleted))
		})

		t.Run("ListNewestFirst", func(t *testing.T) {
			mailings, err := repo.List(ctx, 100, 0)
			require.NoError(t, err)
			require.NotEmpty(t, mailings)
			for i := 1; i < len(mailings); i++ {
				assert.False(t, mailings[i].CreatedAt.After(mailings[i-1].CreatedAt))
			}
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMailingRecipientRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewMailingRecipientRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("ListPendingWithUsers", func(t *testing.T) {
			users, err := fixtures.CreateTestUsers(3)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailingWithRecipients("Digest", "Weekly digest", users)
			require.NoError(t, err)

			pending, err := repo.ListPendingWithUsers(ctx, mailing.ID)
			require.NoError(t, err)
			require.Len(t, pending, 3)
			for i, recipient := range pending {
				require.NotNil(t, recipient.User)
				assert.Equal(t, users[i].ID, recipient.User.ID)
				assert.Equal(t, models.RecipientStatusPending, recipient.Status)
				if i > 0 {
					assert.Greater(t, recipient.ID, pending[i-1].ID)
				}
			}
		})

		t.Run("MarkSentClaimsRowExactlyOnce", func(t *testing.T) {
			users, err := fixtures.CreateTestUsers(1)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailingWithRecipients("Claim", "One shot", users)
			require.NoError(t, err)

			pending, err := repo.ListPendingWithUsers(ctx, mailing.ID)
			require.NoError(t, err)
			require.Len(t, pending, 1)

			transitioned, err := repo.MarkSent(ctx, pending[0].ID, utils.UTCNow())
			require.NoError(t, err)
			assert.True(t, transitioned)

			// The second claim must lose: the row is no longer pending
			transitioned, err = repo.MarkSent(ctx, pending[0].ID, utils.UTCNow())
			require.NoError(t, err)
			assert.False(t, transitioned)

			loaded, err := repo.ByID(ctx, pending[0].ID)
			require.NoError(t, err)
			assert.Equal(t, models.RecipientStatusSent, loaded.Status)
			require.NotNil(t, loaded.SentAt)
		})

		t.Run("SentRowsAreNeverListedAgain", func(t *testing.T) {
			users, err := fixtures.CreateTestUsers(2)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailingWithRecipients("Resume", "Pick up where we left off", users)
			require.NoError(t, err)

			require.NoError(t, fixtures.MarkRecipientsSent(mailing.ID, 1))

			pending, err := repo.ListPendingWithUsers(ctx, mailing.ID)
			require.NoError(t, err)
			assert.Len(t, pending, 1)
		})

		t.Run("Counts", func(t *testing.T) {
			users, err := fixtures.CreateTestUsers(4)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailingWithRecipients("Counts", "Numbers", users)
			require.NoError(t, err)

			require.NoError(t, fixtures.MarkRecipientsSent(mailing.ID, 3))

			sent, err := repo.CountByStatus(ctx, mailing.ID, models.RecipientStatusSent)
			require.NoError(t, err)
			assert.Equal(t, int64(3), sent)

			pending, err := repo.CountByStatus(ctx, mailing.ID, models.RecipientStatusPending)
			require.NoError(t, err)
			assert.Equal(t, int64(1), pending)

			total, err := repo.CountByMailing(ctx, mailing.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(4), total)
		})

		return nil
	})
	require.NoError(t, err)
}
