// Package export serializes position listings to CSV, stored fields first and
// derived metrics last, matching the columns the web UI shows.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/trogers1052/wheel-tracker/internal/metrics"
	"github.com/trogers1052/wheel-tracker/internal/models"
)

// Columns is the CSV header, in output order.
var Columns = []string{
	"id",
	"user_id",
	"account_id",
	"ticker",
	"type",
	"status",
	"open_date",
	"expiration_date",
	"close_date",
	"strike_price",
	"contracts",
	"multiplier",
	"premium_per_share",
	"open_fees",
	"close_fees",
	"close_price_per_share",
	"outcome",
	"roll_group_id",
	"notes",
	"tags",
	"created_at",
	"updated_at",
	"premium_total",
	"premium_net",
	"collateral",
	"roc_period",
	"dte",
	"annualized_roc",
}

// WritePositions writes the header and one row per position. Nil optional
// fields become empty cells; tags are joined with ';'.
func WritePositions(w io.Writer, positions []*models.Position) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}

	for _, p := range positions {
		derived := metrics.Compute(p)

		closeDate := ""
		if p.CloseDate != nil {
			closeDate = p.CloseDate.String()
		}
		closePrice := ""
		if p.ClosePricePerShare != nil {
			closePrice = p.ClosePricePerShare.String()
		}
		outcome := ""
		if p.Outcome != nil {
			outcome = string(*p.Outcome)
		}
		rollGroup := ""
		if p.RollGroupID != nil {
			rollGroup = p.RollGroupID.String()
		}
		rocPeriod := ""
		if derived.ROCPeriod != nil {
			rocPeriod = derived.ROCPeriod.String()
		}
		annualized := ""
		if derived.AnnualizedROC != nil {
			annualized = derived.AnnualizedROC.String()
		}

		row := []string{
			p.ID.String(),
			p.UserID.String(),
			p.AccountID.String(),
			p.Ticker,
			string(p.Type),
			string(p.Status),
			p.OpenDate.String(),
			p.ExpirationDate.String(),
			closeDate,
			p.StrikePrice.String(),
			strconv.Itoa(p.Contracts),
			strconv.Itoa(p.Multiplier),
			p.PremiumPerShare.String(),
			p.OpenFees.String(),
			p.CloseFees.String(),
			closePrice,
			outcome,
			rollGroup,
			p.Notes,
			strings.Join(p.Tags, ";"),
			p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			p.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			derived.PremiumTotal.String(),
			derived.PremiumNet.String(),
			derived.Collateral.String(),
			rocPeriod,
			strconv.Itoa(derived.DTE),
			annualized,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
