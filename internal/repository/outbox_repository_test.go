package repository_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oadeyemi/clinic-messenger/internal/models"
	"github.com/oadeyemi/clinic-messenger/internal/repository"
)

func newQueuedMessage(t *testing.T, repo repository.OutboxRepository, to string) *models.OutboundMessage {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	msg := &models.OutboundMessage{
		ID:          id,
		PatientID:   "patient-1",
		Channel:     models.ChannelSMS,
		To:          to,
		Locale:      "en",
		TemplateKey: "appointment_reminder",
		Payload:     models.Payload{"name": "Ada", "date": "2026-09-01"},
		Status:      models.MessageStatusQueued,
	}
	require.NoError(t, repo.CreateMessage(msg))

	return msg
}

func TestOutboxRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewOutboxRepository(db)

	msg := newQueuedMessage(t, repo, "+2348031234567")

	got, err := repo.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "+2348031234567", got.To)
	assert.Equal(t, models.MessageStatusQueued, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, "Ada", got.Payload["name"])

	t.Run("missing id returns ErrNotFound", func(t *testing.T) {
		_, err := repo.GetMessage(uuid.New())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestOutboxRepository_ClaimPending(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewOutboxRepository(db)

	t.Run("claims oldest first and flips to sending", func(t *testing.T) {
		cleanupTestData(db)

		first := newQueuedMessage(t, repo, "+2348031234501")
		second := newQueuedMessage(t, repo, "+2348031234502")

		claimed, err := repo.ClaimPending(10)
		require.NoError(t, err)
		require.Len(t, claimed, 2)
		assert.Equal(t, first.ID, claimed[0].ID)
		assert.Equal(t, second.ID, claimed[1].ID)
		for _, m := range claimed {
			assert.Equal(t, models.MessageStatusSending, m.Status)
		}
	})

	t.Run("claimed messages are invisible to a second claim", func(t *testing.T) {
		cleanupTestData(db)

		newQueuedMessage(t, repo, "+2348031234503")

		claimed, err := repo.ClaimPending(10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		again, err := repo.ClaimPending(10)
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("respects the batch limit", func(t *testing.T) {
		cleanupTestData(db)

		for i := 0; i < 5; i++ {
			newQueuedMessage(t, repo, "+2348031234510")
		}

		claimed, err := repo.ClaimPending(3)
		require.NoError(t, err)
		assert.Len(t, claimed, 3)
	})

	t.Run("excludes messages scheduled in the future", func(t *testing.T) {
		cleanupTestData(db)

		msg := newQueuedMessage(t, repo, "+2348031234504")
		_, err := db.Exec(`UPDATE messages SET scheduled_for = NOW() + INTERVAL '1 hour' WHERE id = $1`, msg.ID)
		require.NoError(t, err)

		due := newQueuedMessage(t, repo, "+2348031234505")

		claimed, err := repo.ClaimPending(10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, due.ID, claimed[0].ID)
	})
}

func TestOutboxRepository_MarkSent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewOutboxRepository(db)

	msg := newQueuedMessage(t, repo, "+2348031234506")
	_, err := repo.ClaimPending(1)
	require.NoError(t, err)

	gatewayID := "gw-abc-123"
	require.NoError(t, repo.MarkSent(msg.ID, &gatewayID))

	got, err := repo.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, got.Status)
	assert.Equal(t, "gw-abc-123", got.GatewayMessageID.String)
	assert.Equal(t, 0, got.Attempts)

	t.Run("repeat call is a no-op success", func(t *testing.T) {
		require.NoError(t, repo.MarkSent(msg.ID, nil))

		got, err := repo.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusSent, got.Status)
		assert.Equal(t, "gw-abc-123", got.GatewayMessageID.String)
	})
}

func TestOutboxRepository_MarkFailed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewOutboxRepository(db)
	const maxAttempts = 3

	t.Run("requeues below the attempt limit", func(t *testing.T) {
		cleanupTestData(db)

		msg := newQueuedMessage(t, repo, "+2348031234507")
		_, err := repo.ClaimPending(1)
		require.NoError(t, err)

		found, err := repo.MarkFailed(msg.ID, "gateway timeout", maxAttempts)
		require.NoError(t, err)
		assert.True(t, found)

		got, err := repo.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusQueued, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, "gateway timeout", got.Error.String)
	})

	t.Run("goes terminal at the attempt limit and stays unclaimed", func(t *testing.T) {
		cleanupTestData(db)

		msg := newQueuedMessage(t, repo, "+2348031234508")

		for i := 0; i < maxAttempts; i++ {
			claimed, err := repo.ClaimPending(1)
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			found, err := repo.MarkFailed(msg.ID, "gateway rejected", maxAttempts)
			require.NoError(t, err)
			assert.True(t, found)
		}

		got, err := repo.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusFailed, got.Status)
		assert.Equal(t, maxAttempts, got.Attempts)

		claimed, err := repo.ClaimPending(10)
		require.NoError(t, err)
		assert.Empty(t, claimed)

		// A failed message is terminal even if failure is reported again.
		found, err := repo.MarkFailed(msg.ID, "late report", maxAttempts)
		require.NoError(t, err)
		assert.False(t, found)

		got, err = repo.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, maxAttempts, got.Attempts)
	})

	t.Run("missing id reports found=false", func(t *testing.T) {
		found, err := repo.MarkFailed(uuid.New(), "whatever", maxAttempts)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestOutboxRepository_MarkDelivered(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewOutboxRepository(db)

	msg := newQueuedMessage(t, repo, "+2348031234509")

	t.Run("rejects a receipt for an unsent message", func(t *testing.T) {
		err := repo.MarkDelivered(msg.ID, time.Now())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("records a receipt for a sent message", func(t *testing.T) {
		_, err := repo.ClaimPending(1)
		require.NoError(t, err)
		require.NoError(t, repo.MarkSent(msg.ID, nil))

		receivedAt := time.Now()
		require.NoError(t, repo.MarkDelivered(msg.ID, receivedAt))

		got, err := repo.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusDelivered, got.Status)
		assert.True(t, got.DeliveryReceiptAt.Valid)
	})
}

func TestOutboxRepository_RequeueStale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewOutboxRepository(db)

	msg := newQueuedMessage(t, repo, "+2348031234511")
	_, err := repo.ClaimPending(1)
	require.NoError(t, err)

	// Backdate the lease to simulate a processor that died mid-send.
	_, err = db.Exec(`UPDATE messages SET updated_at = NOW() - INTERVAL '20 minutes' WHERE id = $1`, msg.ID)
	require.NoError(t, err)

	requeued, err := repo.RequeueStale(time.Now().Add(-10 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), requeued)

	got, err := repo.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusQueued, got.Status)

	t.Run("fresh leases are left alone", func(t *testing.T) {
		_, err := repo.ClaimPending(1)
		require.NoError(t, err)

		requeued, err := repo.RequeueStale(time.Now().Add(-10 * time.Minute))
		require.NoError(t, err)
		assert.Zero(t, requeued)
	})
}

func TestOutboxRepository_GetStats(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewOutboxRepository(db)

	newQueuedMessage(t, repo, "+2348031234512")
	sent := newQueuedMessage(t, repo, "+2348031234513")

	setStatus(t, db, sent.ID, models.MessageStatusSent)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Queued)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Zero(t, stats.Failed)
}

func setStatus(t *testing.T, db *sqlx.DB, id uuid.UUID, status models.MessageStatus) {
	t.Helper()
	_, err := db.Exec(`UPDATE messages SET status = $2 WHERE id = $1`, id, status)
	require.NoError(t, err)
}
