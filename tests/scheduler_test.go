package tests

import (
	"context"
	"testing"
	"time"

	"github.com/wahelp/mailing-engine/app/scheduler"
	"github.com/wahelp/mailing-engine/app/services"
	"github.com/wahelp/mailing-engine/models"
	"github.com/wahelp/mailing-engine/repository"
	testingutil "github.com/wahelp/mailing-engine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// markMailingStuck forces a mailing into in_progress with a stale updated_at,
// simulating a run that died before finishing.
func markMailingStuck(testDB *testingutil.TestDB, mailingID uint, age time.Duration) error {
	return testDB.DB.Exec(
		"UPDATE mailings SET status = 'in_progress', updated_at = NOW() - ?::interval WHERE id = ?",
		age.String(), mailingID,
	).Error
}

func TestDispatchScheduler(t *testing.T) {
	t.Run("ResumesStuckMailing", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)

			users, err := fixtures.CreateTestUsers(3)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailingWithRecipients("Stuck run", "Still owed to you", users)
			require.NoError(t, err)
			require.NoError(t, markMailingStuck(testDB, mailing.ID, time.Hour))

			sender := services.NewMockMessageSender()
			flow := newMailingFlowForTest(testDB, sender)
			sched := scheduler.NewDispatchScheduler(
				repository.NewMailingRepository(testDB.DB),
				repository.NewMailingRecipientRepository(testDB.DB),
				flow,
				nil,
				50*time.Millisecond,
				time.Millisecond,
			)

			stop := sched.Start(context.Background())
			defer stop()

			mailingRepo := repository.NewMailingRepository(testDB.DB)
			ctx := testingutil.CreateTestContext()
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				fresh, err := mailingRepo.ByID(ctx, mailing.ID)
				require.NoError(t, err)
				if fresh.Status == models.MailingStatusCompleted {
					break
				}
				time.Sleep(50 * time.Millisecond)
			}

			fresh, err := mailingRepo.ByID(ctx, mailing.ID)
			require.NoError(t, err)
			assert.Equal(t, models.MailingStatusCompleted, fresh.Status)
			assert.Equal(t, 3, sender.SentCount())
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("LeavesFreshMailingsAlone", func(t *testing.T) {
		err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
			fixtures := testingutil.NewTestFixtures(testDB)

			users, err := fixtures.CreateTestUsers(2)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailingWithRecipients("Live run", "In flight", users)
			require.NoError(t, err)
			// Recently touched, so a live run may still own it
			require.NoError(t, markMailingStuck(testDB, mailing.ID, 0))

			sender := services.NewMockMessageSender()
			flow := newMailingFlowForTest(testDB, sender)
			sched := scheduler.NewDispatchScheduler(
				repository.NewMailingRepository(testDB.DB),
				repository.NewMailingRecipientRepository(testDB.DB),
				flow,
				nil,
				50*time.Millisecond,
				time.Hour,
			)

			stop := sched.Start(context.Background())
			time.Sleep(300 * time.Millisecond)
			stop()

			mailingRepo := repository.NewMailingRepository(testDB.DB)
			ctx := testingutil.CreateTestContext()
			fresh, err := mailingRepo.ByID(ctx, mailing.ID)
			require.NoError(t, err)
			assert.Equal(t, models.MailingStatusInProgress, fresh.Status)
			assert.Equal(t, 0, sender.SentCount())
			return nil
		})
		require.NoError(t, err)
	})
}
