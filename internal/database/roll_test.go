package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

func TestRollPosition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := SetupTestDB(t)
	defer tdb.Cleanup(t)

	userID := uuid.New()
	accountID := seedAccount(t, tdb, userID)

	rollRequest := func() *models.PositionRoll {
		closePrice := decimal.NewFromFloat(0.45)
		open := coveredCallCreate(accountID)
		open.OpenDate = models.NewDate(2024, time.January, 19)
		open.ExpirationDate = models.NewDate(2024, time.February, 16)
		open.StrikePrice = decimal.NewFromInt(155)
		return &models.PositionRoll{
			Close: models.RollClose{
				CloseDate:          models.NewDate(2024, time.January, 19),
				ClosePricePerShare: &closePrice,
			},
			Open: *open,
		}
	}

	t.Run("closes the original and opens the successor atomically", func(t *testing.T) {
		original, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		result, err := tdb.RollPosition(userID, original.ID, rollRequest())
		require.NoError(t, err)

		assert.Equal(t, original.ID, result.Closed.ID)
		assert.Equal(t, models.StatusClosed, result.Closed.Status)
		require.NotNil(t, result.Closed.Outcome)
		assert.Equal(t, models.OutcomeRolled, *result.Closed.Outcome)

		assert.NotEqual(t, original.ID, result.Opened.ID)
		assert.Equal(t, models.StatusOpen, result.Opened.Status)
		assert.True(t, decimal.NewFromInt(155).Equal(result.Opened.StrikePrice))

		// Both halves share the same freshly generated roll group
		require.NotNil(t, result.Closed.RollGroupID)
		require.NotNil(t, result.Opened.RollGroupID)
		assert.Equal(t, *result.Closed.RollGroupID, *result.Opened.RollGroupID)

		// And the linkage is durable
		stored, err := tdb.GetPosition(userID, result.Opened.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.RollGroupID)
		assert.Equal(t, *result.Closed.RollGroupID, *stored.RollGroupID)
	})

	t.Run("invalid open payload leaves the original untouched", func(t *testing.T) {
		original, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		req := rollRequest()
		req.Open.StrikePrice = decimal.Zero

		_, err = tdb.RollPosition(userID, original.ID, req)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)

		stored, err := tdb.GetPosition(userID, original.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOpen, stored.Status)
		assert.Nil(t, stored.Outcome)
		assert.Nil(t, stored.RollGroupID)
	})

	t.Run("failing open insert rolls back the close", func(t *testing.T) {
		original, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		before, err := tdb.ListPositions(userID, &models.PositionFilter{})
		require.NoError(t, err)

		// The successor references an account the caller does not own, which
		// only surfaces inside the transaction.
		req := rollRequest()
		req.Open.AccountID = seedAccount(t, tdb, uuid.New())

		_, err = tdb.RollPosition(userID, original.ID, req)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "open.account_id", verr.Field)

		stored, err := tdb.GetPosition(userID, original.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOpen, stored.Status, "close half must not commit")

		after, err := tdb.ListPositions(userID, &models.PositionFilter{})
		require.NoError(t, err)
		assert.Len(t, after, len(before), "no orphan successor row")
	})

	t.Run("rolling a closed position conflicts", func(t *testing.T) {
		original, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)
		_, err = tdb.ClosePosition(userID, original.ID, &models.PositionClose{
			Outcome:   models.OutcomeExpired,
			CloseDate: models.NewDate(2024, time.January, 22),
		})
		require.NoError(t, err)

		_, err = tdb.RollPosition(userID, original.ID, rollRequest())
		var cerr *models.ConflictError
		assert.ErrorAs(t, err, &cerr)
	})

	t.Run("rolling another user's position is not found", func(t *testing.T) {
		original, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		otherUser := uuid.New()
		req := rollRequest()
		req.Open.AccountID = seedAccount(t, tdb, otherUser)

		_, err = tdb.RollPosition(otherUser, original.ID, req)
		var nferr *models.NotFoundError
		assert.ErrorAs(t, err, &nferr)
	})
}
