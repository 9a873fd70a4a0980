package tests

import (
	"sync"
	"testing"

	"github.com/wahelp/mailing-engine/app/dto"
	"github.com/wahelp/mailing-engine/app/services"
	businessflow "github.com/wahelp/mailing-engine/business_flow"
	"github.com/wahelp/mailing-engine/models"
	testingutil "github.com/wahelp/mailing-engine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDispatchRejectsConcurrentRun holds the per-mailing advisory lock on
// a second session and verifies a dispatch attempt is turned away without
// touching the sender, then succeeds once the lock is gone.
func TestDispatchRejectsConcurrentRun(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		users, err := fixtures.CreateTestUsers(2)
		require.NoError(t, err)
		mailing, err := fixtures.CreateTestMailingWithRecipients("Contended", "One run at a time", users)
		require.NoError(t, err)

		sender := services.NewMockMessageSender()
		flow := newMailingFlowForTest(testDB, sender)

		sqlDB, err := testDB.DB.DB()
		require.NoError(t, err)
		conn, err := sqlDB.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.ExecContext(ctx, "SELECT pg_advisory_lock($1, $2)", 7342, int64(mailing.ID))
		require.NoError(t, err)

		_, err = flow.Dispatch(ctx, &dto.DispatchMailingRequest{MailingID: mailing.ID}, testMetadata())
		require.Error(t, err)
		assert.True(t, businessflow.IsDispatchAlreadyRunning(err))
		assert.Equal(t, 0, sender.SentCount())

		_, err = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1, $2)", 7342, int64(mailing.ID))
		require.NoError(t, err)

		resp, err := flow.Dispatch(ctx, &dto.DispatchMailingRequest{MailingID: mailing.ID}, testMetadata())
		require.NoError(t, err)
		assert.Equal(t, string(models.MailingStatusCompleted), resp.Status)
		assert.Equal(t, 2, sender.SentCount())

		return nil
	})
	require.NoError(t, err)
}

// TestDispatchConcurrentRunsNeverDoubleSend races two dispatch runs over
// the same mailing. Each attempt must either finish cleanly or report the
// overlap, and every recipient receives exactly one message.
func TestDispatchConcurrentRunsNeverDoubleSend(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		users, err := fixtures.CreateTestUsers(4)
		require.NoError(t, err)
		mailing, err := fixtures.CreateTestMailingWithRecipients("Raced", "Delivered once", users)
		require.NoError(t, err)

		sender := services.NewMockMessageSender()
		flow := newMailingFlowForTest(testDB, sender)

		var wg sync.WaitGroup
		runErrs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, runErrs[i] = flow.Dispatch(ctx, &dto.DispatchMailingRequest{MailingID: mailing.ID}, testMetadata())
			}(i)
		}
		wg.Wait()

		for _, runErr := range runErrs {
			if runErr != nil {
				assert.True(t, businessflow.IsDispatchAlreadyRunning(runErr), "unexpected dispatch error: %v", runErr)
			}
		}

		assert.Equal(t, 4, sender.SentCount())

		var sent int64
		require.NoError(t, testDB.DB.Model(&models.MailingRecipient{}).
			Where("mailing_id = ? AND status = ?", mailing.ID, models.RecipientStatusSent).
			Count(&sent).Error)
		assert.Equal(t, int64(4), sent)

		var fresh models.Mailing
		require.NoError(t, testDB.DB.First(&fresh, mailing.ID).Error)
		assert.Equal(t, models.MailingStatusCompleted, fresh.Status)

		return nil
	})
	require.NoError(t, err)
}
