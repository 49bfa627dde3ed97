// Package kpi aggregates validated accounting records into per-area
// financial metrics. Every function is a pure reduction over its inputs:
// nothing is mutated, no state is kept between calls, and results are
// independent of input ordering.
package kpi

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
)

// ErrNoPositiveWeight is returned when an allocation basis is supplied but
// contains no strictly positive weight, so undirected costs cannot be
// distributed. The caller must fix the basis or omit allocation.
var ErrNoPositiveWeight = errors.New("allocation basis must contain at least one positive weight")

// Monetary totals round to 2 fractional digits, dimensionless ratios to 4,
// inventory coverage days to 1. shopspring's Round is round-half-away-from-
// zero, which matches the ROUND_HALF_UP convention of financial reporting.
// The three rules are not interchangeable.

func roundCurrency(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func roundRatio(d decimal.Decimal) decimal.Decimal { return d.Round(4) }

func roundDays(d decimal.Decimal) decimal.Decimal { return d.Round(1) }

func present(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func absent() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

// POSResult is the revenue and discount aggregation over a set of POS lines.
// DiscountRate is absent (not zero) when no price list was supplied or no
// priced item contributed a positive theoretical value.
type POSResult struct {
	RevenueTotal     decimal.Decimal                          `json:"revenue_total"`
	RevenueByArea    map[domain.Area]decimal.Decimal          `json:"revenue_by_area"`
	RevenueByPayment map[domain.PaymentMethod]decimal.Decimal `json:"revenue_by_payment"`
	ReceiptCount     int                                      `json:"receipt_count"`
	AverageReceipt   decimal.Decimal                          `json:"average_receipt"`
	DiscountRate     decimal.NullDecimal                      `json:"discount_rate"`
}

// POSOnly aggregates POS lines in a single pass: currency-rounded revenue
// totals grouped by area and payment method, distinct-receipt count, average
// receipt with a max(count,1) guard, and the discount rate against the
// optional price list.
func POSOnly(lines []domain.POSLine, priceList map[string]decimal.Decimal) POSResult {
	revTotal := decimal.Zero
	byArea := make(map[domain.Area]decimal.Decimal)
	byPayment := make(map[domain.PaymentMethod]decimal.Decimal)
	receipts := make(map[string]struct{})
	discountNumer := decimal.Zero
	discountDenom := decimal.Zero

	hasPrices := len(priceList) > 0

	for _, line := range lines {
		total := line.TotalPrice
		revTotal = revTotal.Add(total)
		byArea[line.Area] = byArea[line.Area].Add(total)
		byPayment[line.PaymentMethod] = byPayment[line.PaymentMethod].Add(total)
		receipts[line.ReceiptID] = struct{}{}

		if !hasPrices {
			continue
		}
		theo, ok := priceList[line.ItemName]
		if !ok {
			continue
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		actual := total.Div(qty)
		if theo.GreaterThan(actual) {
			discountNumer = discountNumer.Add(theo.Sub(actual).Mul(qty))
		}
		// The denominator grows for every priced match, discounted or not.
		discountDenom = discountDenom.Add(theo.Mul(qty))
	}

	receiptCount := len(receipts)
	divisor := receiptCount
	if divisor < 1 {
		divisor = 1
	}
	avgReceipt := revTotal.Div(decimal.NewFromInt(int64(divisor)))

	discountRate := absent()
	if discountDenom.IsPositive() {
		discountRate = present(roundRatio(discountNumer.Div(discountDenom)))
	}

	for area, v := range byArea {
		byArea[area] = roundCurrency(v)
	}
	for method, v := range byPayment {
		byPayment[method] = roundCurrency(v)
	}

	return POSResult{
		RevenueTotal:     roundCurrency(revTotal),
		RevenueByArea:    byArea,
		RevenueByPayment: byPayment,
		ReceiptCount:     receiptCount,
		AverageReceipt:   roundCurrency(avgReceipt),
		DiscountRate:     discountRate,
	}
}

// AddSalesInvoices blends non-POS revenue into an area-keyed revenue map.
// The input map is left untouched; a fresh map is returned with invoice
// amounts added per area, creating areas that were not yet present.
func AddSalesInvoices(revenueByArea map[domain.Area]decimal.Decimal, invoices []domain.SalesInvoice) map[domain.Area]decimal.Decimal {
	out := make(map[domain.Area]decimal.Decimal, len(revenueByArea))
	for area, v := range revenueByArea {
		out[area] = v
	}
	for _, inv := range invoices {
		out[inv.Area] = out[inv.Area].Add(inv.Amount)
	}
	return out
}

// normalizedWeights keeps the strictly positive entries of the allocation
// basis and scales them to sum to 1.
func normalizedWeights(allocBasis map[domain.Area]decimal.Decimal) (map[domain.Area]decimal.Decimal, error) {
	clean := make(map[domain.Area]decimal.Decimal, len(allocBasis))
	total := decimal.Zero
	for area, w := range allocBasis {
		if !w.IsPositive() {
			continue
		}
		clean[area] = w
		total = total.Add(w)
	}
	if !total.IsPositive() {
		return nil, ErrNoPositiveWeight
	}
	for area, w := range clean {
		clean[area] = w.Div(total)
	}
	return clean, nil
}

// COGSResult is the per-area cost-of-goods-sold breakdown. Values are left
// unrounded so downstream margin math does not accumulate rounding error.
// Unallocated carries any undirected pool that could not be distributed
// because no allocation basis was supplied; it is not part of ByArea.
type COGSResult struct {
	ByArea      map[domain.Area]decimal.Decimal `json:"by_area"`
	Unallocated decimal.Decimal                 `json:"unallocated"`
}

// ComputeCOGS sums area-tagged purchases directly and distributes the
// undirected pool across the allocation basis, normalized over its strictly
// positive weights. Supplying a basis with no positive weight is a
// configuration error.
func ComputeCOGS(purchases []domain.PurchaseInvoice, allocBasis map[domain.Area]decimal.Decimal) (COGSResult, error) {
	byArea := make(map[domain.Area]decimal.Decimal)
	undirected := decimal.Zero
	for _, p := range purchases {
		if p.Area != nil {
			byArea[*p.Area] = byArea[*p.Area].Add(p.Amount)
		} else {
			undirected = undirected.Add(p.Amount)
		}
	}

	if undirected.IsPositive() && len(allocBasis) > 0 {
		weights, err := normalizedWeights(allocBasis)
		if err != nil {
			return COGSResult{}, err
		}
		for area, w := range weights {
			byArea[area] = byArea[area].Add(undirected.Mul(w))
		}
		undirected = decimal.Zero
	}

	return COGSResult{ByArea: byArea, Unallocated: undirected}, nil
}

// GrossMarginByArea computes revenue minus COGS over the union of areas in
// either map, treating a missing side as zero, currency-rounded.
func GrossMarginByArea(revByArea, cogsByArea map[domain.Area]decimal.Decimal) map[domain.Area]decimal.Decimal {
	margins := make(map[domain.Area]decimal.Decimal, len(revByArea))
	for area, rev := range revByArea {
		margins[area] = roundCurrency(rev.Sub(cogsByArea[area]))
	}
	for area, cogs := range cogsByArea {
		if _, seen := revByArea[area]; seen {
			continue
		}
		margins[area] = roundCurrency(cogs.Neg())
	}
	return margins
}

// OperatingMarginTotal subtracts labor, fixed and other costs from the gross
// total, currency-rounded.
func OperatingMarginTotal(grossTotal, labor, fixed, other decimal.Decimal) decimal.Decimal {
	return roundCurrency(grossTotal.Sub(labor).Sub(fixed).Sub(other))
}

// ROIMonthly is operating profit over capital, ratio-rounded. Absent when no
// positive capital is recorded; that is a degenerate business state, not an
// error.
func ROIMonthly(operatingProfit, capitalValue decimal.Decimal) decimal.NullDecimal {
	if !capitalValue.IsPositive() {
		return absent()
	}
	return present(roundRatio(operatingProfit.Div(capitalValue)))
}

// InventoryTurnover is total COGS over average stock, ratio-rounded, absent
// when average stock is not positive.
func InventoryTurnover(cogsTotal, avgStock decimal.Decimal) decimal.NullDecimal {
	if !avgStock.IsPositive() {
		return absent()
	}
	return present(roundRatio(cogsTotal.Div(avgStock)))
}

// InventoryCoverageDays is stock value over average daily consumption,
// rounded to one decimal, absent when consumption is not positive.
func InventoryCoverageDays(stockValue, avgDailyConsumption decimal.Decimal) decimal.NullDecimal {
	if !avgDailyConsumption.IsPositive() {
		return absent()
	}
	return present(roundDays(stockValue.Div(avgDailyConsumption)))
}
