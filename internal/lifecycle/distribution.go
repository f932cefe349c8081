package lifecycle

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"fracpool/internal/domain"
)

var (
	royaltyRate = decimal.NewFromFloat(domain.PlatformRoyaltyRate)
	hundred     = decimal.NewFromInt(100)
)

// DistributionPlan is the cent-exact payout breakdown for one resale.
// RoyaltyUSD + NetProceedsUSD == the resale price, and the entry amounts
// sum to NetProceedsUSD exactly.
type DistributionPlan struct {
	GrossUSD       float64
	RoyaltyUSD     float64
	NetProceedsUSD float64
	Entries        []domain.DistributionEntry
}

// VendorSplit splits collected funds into the platform royalty and the
// vendor payment, rounded to cents.
func VendorSplit(totalCollectedUSD float64) (royaltyUSD, vendorPaymentUSD float64) {
	total := decimal.NewFromFloat(totalCollectedUSD)
	royalty := total.Mul(royaltyRate).Round(2)
	return royalty.InexactFloat64(), total.Sub(royalty).InexactFloat64()
}

// ComputeDistribution allocates resale proceeds pro rata across the pool's
// participants. The platform royalty comes off the top; each participant
// receives net * shares / totalShares rounded down to cents, and the
// leftover cents go to the largest holder so the plan conserves the net
// amount exactly.
func ComputeDistribution(p *domain.Pool, resalePriceUSD float64) DistributionPlan {
	gross := decimal.NewFromFloat(resalePriceUSD)
	royalty := gross.Mul(royaltyRate).Round(2)
	net := gross.Sub(royalty)

	plan := DistributionPlan{
		GrossUSD:       gross.InexactFloat64(),
		RoyaltyUSD:     royalty.InexactFloat64(),
		NetProceedsUSD: net.InexactFloat64(),
	}
	if len(p.Participants) == 0 || p.TotalShares == 0 {
		return plan
	}

	totalShares := decimal.NewFromInt(p.TotalShares)
	allocated := decimal.Zero
	largest := 0

	plan.Entries = make([]domain.DistributionEntry, len(p.Participants))
	for i, part := range p.Participants {
		shares := decimal.NewFromInt(part.Shares)
		amount := net.Mul(shares).Div(totalShares).RoundDown(2)
		allocated = allocated.Add(amount)

		invested := decimal.NewFromFloat(part.InvestedUSD)
		entry := domain.DistributionEntry{
			Wallet:           part.Wallet,
			Shares:           part.Shares,
			OwnershipPercent: shares.Div(totalShares).Mul(hundred).InexactFloat64(),
			AmountUSD:        amount.InexactFloat64(),
			ProfitUSD:        amount.Sub(invested).InexactFloat64(),
		}
		if invested.IsPositive() {
			entry.ROI = amount.Div(invested).Sub(decimal.NewFromInt(1)).InexactFloat64()
		}
		plan.Entries[i] = entry

		if part.Shares > p.Participants[largest].Shares {
			largest = i
		}
	}

	// Residual cents from rounding down go to the largest holder.
	if residual := net.Sub(allocated); residual.IsPositive() {
		entry := &plan.Entries[largest]
		amount := decimal.NewFromFloat(entry.AmountUSD).Add(residual)
		invested := decimal.NewFromFloat(p.Participants[largest].InvestedUSD)
		entry.AmountUSD = amount.InexactFloat64()
		entry.ProfitUSD = amount.Sub(invested).InexactFloat64()
		if invested.IsPositive() {
			entry.ROI = amount.Div(invested).Sub(decimal.NewFromInt(1)).InexactFloat64()
		}
	}
	return plan
}

// TotalDistributed sums the allocated amounts of a plan, cent-exact.
func TotalDistributed(entries []domain.DistributionEntry) float64 {
	total := lo.Reduce(entries, func(acc decimal.Decimal, e domain.DistributionEntry, _ int) decimal.Decimal {
		return acc.Add(decimal.NewFromFloat(e.AmountUSD))
	}, decimal.Zero)
	return total.InexactFloat64()
}
