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

// seedAccount creates an account for userID and returns its id
func seedAccount(t *testing.T, tdb *TestDB, userID uuid.UUID) uuid.UUID {
	t.Helper()
	account, err := tdb.CreateAccount(userID, &models.AccountCreate{
		Name:   "Test Account",
		Broker: models.BrokerOther,
	})
	require.NoError(t, err)
	return account.ID
}

func coveredCallCreate(accountID uuid.UUID) *models.PositionCreate {
	return &models.PositionCreate{
		AccountID:       accountID,
		Ticker:          "aapl",
		Type:            models.TypeCoveredCall,
		OpenDate:        models.NewDate(2024, time.January, 1),
		ExpirationDate:  models.NewDate(2024, time.January, 22),
		StrikePrice:     decimal.NewFromInt(150),
		Contracts:       2,
		PremiumPerShare: decimal.NewFromFloat(2.50),
	}
}

func TestCreatePosition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := SetupTestDB(t)
	defer tdb.Cleanup(t)

	userID := uuid.New()
	accountID := seedAccount(t, tdb, userID)

	t.Run("creates an open position with derived metrics", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, p.ID)
		assert.Equal(t, "AAPL", p.Ticker, "ticker is normalized to uppercase")
		assert.Equal(t, models.StatusOpen, p.Status)
		assert.Equal(t, 100, p.Multiplier, "multiplier defaults to 100")
		assert.True(t, p.OpenFees.IsZero())
		assert.Nil(t, p.RollGroupID)

		assert.True(t, decimal.NewFromInt(500).Equal(p.PremiumTotal), "premium_total = %s", p.PremiumTotal)
		assert.True(t, decimal.NewFromInt(30000).Equal(p.Collateral), "collateral = %s", p.Collateral)
		assert.Equal(t, 21, p.DTE)
		require.NotNil(t, p.AnnualizedROC)
	})

	t.Run("rejects an account owned by someone else", func(t *testing.T) {
		otherAccount := seedAccount(t, tdb, uuid.New())

		req := coveredCallCreate(otherAccount)
		_, err := tdb.CreatePosition(userID, req)

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "account_id", verr.Field)
	})

	t.Run("validation failures", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*models.PositionCreate)
			field  string
		}{
			{"empty ticker", func(r *models.PositionCreate) { r.Ticker = "  " }, "ticker"},
			{"unknown type", func(r *models.PositionCreate) { r.Type = "NAKED_CALL" }, "type"},
			{"expiration before open", func(r *models.PositionCreate) {
				r.ExpirationDate = models.NewDate(2023, time.December, 29)
			}, "expiration_date"},
			{"zero strike", func(r *models.PositionCreate) { r.StrikePrice = decimal.Zero }, "strike_price"},
			{"zero contracts", func(r *models.PositionCreate) { r.Contracts = 0 }, "contracts"},
			{"negative premium", func(r *models.PositionCreate) {
				r.PremiumPerShare = decimal.NewFromInt(-1)
			}, "premium_per_share"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				req := coveredCallCreate(accountID)
				tc.mutate(req)

				_, err := tdb.CreatePosition(userID, req)

				var verr *models.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tc.field, verr.Field)
			})
		}
	})
}

func TestListPositions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := SetupTestDB(t)
	defer tdb.Cleanup(t)

	userID := uuid.New()
	accountID := seedAccount(t, tdb, userID)

	seed := func(ticker string, posType models.PositionType, expiration models.Date) *models.Position {
		req := coveredCallCreate(accountID)
		req.Ticker = ticker
		req.Type = posType
		req.ExpirationDate = expiration
		p, err := tdb.CreatePosition(userID, req)
		require.NoError(t, err)
		return p
	}

	aapl := seed("AAPL", models.TypeCoveredCall, models.NewDate(2024, time.January, 19))
	msft := seed("MSFT", models.TypeCashSecuredPut, models.NewDate(2024, time.February, 16))
	seed("SPY", models.TypeCoveredCall, models.NewDate(2024, time.March, 15))

	closeDate := models.NewDate(2024, time.January, 19)
	_, err := tdb.ClosePosition(userID, aapl.ID, &models.PositionClose{
		Outcome:   models.OutcomeExpired,
		CloseDate: closeDate,
	})
	require.NoError(t, err)

	t.Run("filters by status", func(t *testing.T) {
		status := models.StatusOpen
		positions, err := tdb.ListPositions(userID, &models.PositionFilter{Status: &status})
		require.NoError(t, err)
		assert.Len(t, positions, 2)
	})

	t.Run("filters by ticker case-insensitively", func(t *testing.T) {
		positions, err := tdb.ListPositions(userID, &models.PositionFilter{Ticker: "msft"})
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, msft.ID, positions[0].ID)
	})

	t.Run("filters by type", func(t *testing.T) {
		posType := models.TypeCashSecuredPut
		positions, err := tdb.ListPositions(userID, &models.PositionFilter{Type: &posType})
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, "MSFT", positions[0].Ticker)
	})

	t.Run("filters by expiration range", func(t *testing.T) {
		start := models.NewDate(2024, time.February, 1)
		end := models.NewDate(2024, time.February, 28)
		positions, err := tdb.ListPositions(userID, &models.PositionFilter{
			ExpirationStart: &start,
			ExpirationEnd:   &end,
		})
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, "MSFT", positions[0].Ticker)
	})

	t.Run("sorts by a whitelisted column", func(t *testing.T) {
		positions, err := tdb.ListPositions(userID, &models.PositionFilter{Sort: "ticker", Order: "asc"})
		require.NoError(t, err)
		require.Len(t, positions, 3)
		assert.Equal(t, "AAPL", positions[0].Ticker)
		assert.Equal(t, "SPY", positions[2].Ticker)
	})

	t.Run("ignores a non-whitelisted sort column", func(t *testing.T) {
		positions, err := tdb.ListPositions(userID, &models.PositionFilter{Sort: "id; DROP TABLE positions"})
		require.NoError(t, err)
		assert.Len(t, positions, 3)
	})

	t.Run("another user sees nothing", func(t *testing.T) {
		positions, err := tdb.ListPositions(uuid.New(), &models.PositionFilter{})
		require.NoError(t, err)
		assert.Empty(t, positions)
	})
}

func TestUpdatePosition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := SetupTestDB(t)
	defer tdb.Cleanup(t)

	userID := uuid.New()
	accountID := seedAccount(t, tdb, userID)

	t.Run("applies partial changes and recomputes metrics", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		premium := decimal.NewFromFloat(3.00)
		notes := "rolled strike up"
		updated, err := tdb.UpdatePosition(userID, p.ID, &models.PositionUpdate{
			PremiumPerShare: &premium,
			Notes:           &notes,
		})
		require.NoError(t, err)

		assert.Equal(t, "rolled strike up", updated.Notes)
		assert.True(t, decimal.NewFromInt(600).Equal(updated.PremiumTotal), "premium_total = %s", updated.PremiumTotal)
		// Untouched fields survive
		assert.Equal(t, "AAPL", updated.Ticker)
		assert.Equal(t, 2, updated.Contracts)
	})

	t.Run("rejects a close price on an open position", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		closePrice := decimal.NewFromFloat(0.10)
		_, err = tdb.UpdatePosition(userID, p.ID, &models.PositionUpdate{ClosePricePerShare: &closePrice})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "close_price_per_share", verr.Field)

		stored, err := tdb.GetPosition(userID, p.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.ClosePricePerShare)
	})

	t.Run("rejects updates to a closed position", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		_, err = tdb.ClosePosition(userID, p.ID, &models.PositionClose{
			Outcome:   models.OutcomeExpired,
			CloseDate: models.NewDate(2024, time.January, 22),
		})
		require.NoError(t, err)

		notes := "too late"
		_, err = tdb.UpdatePosition(userID, p.ID, &models.PositionUpdate{Notes: &notes})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "status", verr.Field)
	})

	t.Run("rejects an update that breaks an invariant", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		badExpiration := models.NewDate(2023, time.December, 1)
		_, err = tdb.UpdatePosition(userID, p.ID, &models.PositionUpdate{ExpirationDate: &badExpiration})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "expiration_date", verr.Field)
	})

	t.Run("another user's position is not found", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		notes := "not yours"
		_, err = tdb.UpdatePosition(uuid.New(), p.ID, &models.PositionUpdate{Notes: &notes})

		var nferr *models.NotFoundError
		assert.ErrorAs(t, err, &nferr)
	})
}

func TestClosePosition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := SetupTestDB(t)
	defer tdb.Cleanup(t)

	userID := uuid.New()
	accountID := seedAccount(t, tdb, userID)

	t.Run("closes an open position", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		closePrice := decimal.NewFromFloat(0.15)
		closeFees := decimal.NewFromInt(1)
		closed, err := tdb.ClosePosition(userID, p.ID, &models.PositionClose{
			Outcome:            models.OutcomeClosedEarly,
			CloseDate:          models.NewDate(2024, time.January, 15),
			ClosePricePerShare: &closePrice,
			CloseFees:          &closeFees,
		})
		require.NoError(t, err)

		assert.Equal(t, models.StatusClosed, closed.Status)
		require.NotNil(t, closed.Outcome)
		assert.Equal(t, models.OutcomeClosedEarly, *closed.Outcome)
		require.NotNil(t, closed.CloseDate)
		assert.Equal(t, "2024-01-15", closed.CloseDate.String())
		assert.True(t, closeFees.Equal(closed.CloseFees))

		// premium_net reflects the close fees: 500 - 0 - 1
		assert.True(t, decimal.NewFromInt(499).Equal(closed.PremiumNet), "premium_net = %s", closed.PremiumNet)
	})

	t.Run("second close conflicts", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		req := &models.PositionClose{
			Outcome:   models.OutcomeExpired,
			CloseDate: models.NewDate(2024, time.January, 22),
		}
		_, err = tdb.ClosePosition(userID, p.ID, req)
		require.NoError(t, err)

		_, err = tdb.ClosePosition(userID, p.ID, req)
		var cerr *models.ConflictError
		assert.ErrorAs(t, err, &cerr)
	})

	t.Run("rejects ROLLED as a direct close outcome", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		_, err = tdb.ClosePosition(userID, p.ID, &models.PositionClose{
			Outcome:   models.OutcomeRolled,
			CloseDate: models.NewDate(2024, time.January, 22),
		})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "outcome", verr.Field)
	})

	t.Run("another user's position is not found", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		_, err = tdb.ClosePosition(uuid.New(), p.ID, &models.PositionClose{
			Outcome:   models.OutcomeExpired,
			CloseDate: models.NewDate(2024, time.January, 22),
		})

		var nferr *models.NotFoundError
		require.ErrorAs(t, err, &nferr)

		stored, err := tdb.GetPosition(userID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOpen, stored.Status)
	})

	t.Run("requires a close date", func(t *testing.T) {
		p, err := tdb.CreatePosition(userID, coveredCallCreate(accountID))
		require.NoError(t, err)

		_, err = tdb.ClosePosition(userID, p.ID, &models.PositionClose{Outcome: models.OutcomeExpired})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "close_date", verr.Field)
	})
}

func TestOpenTickers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := SetupTestDB(t)
	defer tdb.Cleanup(t)

	userA := uuid.New()
	userB := uuid.New()
	accountA := seedAccount(t, tdb, userA)
	accountB := seedAccount(t, tdb, userB)

	for _, seed := range []struct {
		user    uuid.UUID
		account uuid.UUID
		ticker  string
	}{
		{userA, accountA, "AAPL"},
		{userA, accountA, "MSFT"},
		{userB, accountB, "AAPL"}, // duplicate across users
	} {
		req := coveredCallCreate(seed.account)
		req.Ticker = seed.ticker
		_, err := tdb.CreatePosition(seed.user, req)
		require.NoError(t, err)
	}

	closed, err := tdb.CreatePosition(userA, func() *models.PositionCreate {
		req := coveredCallCreate(accountA)
		req.Ticker = "GONE"
		return req
	}())
	require.NoError(t, err)
	_, err = tdb.ClosePosition(userA, closed.ID, &models.PositionClose{
		Outcome:   models.OutcomeExpired,
		CloseDate: models.NewDate(2024, time.January, 22),
	})
	require.NoError(t, err)

	tickers, err := tdb.OpenTickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
}
