package dataprocessing

import (
	"math"

	"github.com/shopspring/decimal"
)

// RatioFallback is written by every guarded ratio whose condition fails.
// It is indistinguishable from a ratio that is genuinely zero.
const RatioFallback = 0.0

// Combined input columns
const (
	ColSales             = "sales_pnl"
	ColRawMaterialCost   = "raw material cost_pnl"
	ColPowerAndFuel      = "power and fuel_pnl"
	ColOtherMfrExp       = "other mfr. exp_pnl"
	ColEmployeeCost      = "employee cost_pnl"
	ColSellingAndAdmin   = "selling and admin_pnl"
	ColOtherExpenses     = "other expenses_pnl"
	ColChangeInInventory = "change in inventory_pnl"
	ColNetProfit         = "net profit_pnl"
	ColDividendAmount    = "dividend amount_pnl"

	ColEquityShareCapital = "equity share capital_balance"
	ColReserves           = "reserves_balance"
	ColOtherAssets        = "other assets_balance"
	ColOtherLiabilities   = "other liabilities_balance"
	ColReceivables        = "receivables_balance"
	ColInventory          = "inventory_balance"

	ColAdjustedShares = "adjusted equity shares in cr_cashflow"
	ColPrice          = "price"

	ColQuarterlySales           = "sales_quarters"
	ColQuarterlyOperatingProfit = "operating profit_quarters"
)

// Derived columns
const (
	ColExpenses          = "expenses_pnl"
	ColOperatingProfit   = "operating_profit_pnl"
	ColDividendPayout    = "dividend_payout_pnl"
	ColEPS               = "EPS"
	ColYearlyOPM         = "yearly_OPM"
	ColROE               = "ROE"
	ColPriceToEarning    = "price_to_earning"
	ColWorkingCapital    = "working_capital"
	ColDebtorDays        = "debtor_days"
	ColInventoryTurnover = "inventory_turnover"

	ColQuarterlyOPM = "quarterly_OPM_quarters"
)

var annualRequiredColumns = []string{
	ColSales, ColRawMaterialCost, ColPowerAndFuel, ColOtherMfrExp, ColEmployeeCost,
	ColSellingAndAdmin, ColOtherExpenses, ColChangeInInventory, ColNetProfit, ColDividendAmount,
	ColEquityShareCapital, ColReserves, ColOtherAssets, ColOtherLiabilities, ColReceivables,
	ColInventory, ColAdjustedShares, ColPrice,
}

var quarterlyRequiredColumns = []string{ColQuarterlySales, ColQuarterlyOperatingProfit}

// annualDerivations run in this order; later ones read earlier results
var annualDerivations = []struct {
	column string
	fn     func(WideRow) float64
}{
	{ColExpenses, expenses},
	{ColOperatingProfit, operatingProfit},
	{ColDividendPayout, dividendPayout},
	{ColEPS, earningsPerShare},
	{ColYearlyOPM, yearlyOPM},
	{ColROE, returnOnEquity},
	{ColPriceToEarning, priceToEarning},
	{ColWorkingCapital, workingCapital},
	{ColDebtorDays, debtorDays},
	{ColInventoryTurnover, inventoryTurnover},
}

func deriveAnnual(t *WideTable) {
	for _, d := range annualDerivations {
		t.addColumn(d.column, d.fn)
	}
}

func deriveQuarterly(t *WideTable) {
	t.addColumn(ColQuarterlyOPM, quarterlyOPM)
}

func expenses(r WideRow) float64 {
	return r.Get(ColRawMaterialCost) +
		r.Get(ColPowerAndFuel) +
		r.Get(ColOtherMfrExp) +
		r.Get(ColEmployeeCost) +
		r.Get(ColSellingAndAdmin) +
		r.Get(ColOtherExpenses) -
		r.Get(ColChangeInInventory)
}

func operatingProfit(r WideRow) float64 {
	return r.Get(ColSales) - r.Get(ColExpenses)
}

func dividendPayout(r WideRow) float64 {
	netProfit := r.Get(ColNetProfit)
	if !(netProfit > 0) {
		return RatioFallback
	}
	return round(r.Get(ColDividendAmount)/netProfit*100, 2)
}

func earningsPerShare(r WideRow) float64 {
	shares := r.Get(ColAdjustedShares)
	if !(shares > 0) {
		return RatioFallback
	}
	return round(r.Get(ColNetProfit)/shares, 2)
}

// yearlyOPM rounds twice (2 decimals, then whole percent)
func yearlyOPM(r WideRow) float64 {
	op, sales := r.Get(ColOperatingProfit), r.Get(ColSales)
	if !(op > 0) || !(sales > 0) {
		return RatioFallback
	}
	return round(round(op/sales*100, 2), 0)
}

// returnOnEquity rounds twice like yearlyOPM
func returnOnEquity(r WideRow) float64 {
	equity := r.Get(ColEquityShareCapital) + r.Get(ColReserves)
	if !(equity > 0) {
		return RatioFallback
	}
	return round(round(r.Get(ColNetProfit)/equity*100, 2), 0)
}

func priceToEarning(r WideRow) float64 {
	eps := r.Get(ColEPS)
	if !(eps > 0) {
		return RatioFallback
	}
	return round(r.Get(ColPrice)/eps, 2)
}

func workingCapital(r WideRow) float64 {
	return r.Get(ColOtherAssets) - r.Get(ColOtherLiabilities)
}

func debtorDays(r WideRow) float64 {
	sales := r.Get(ColSales)
	if !(sales > 0) {
		return RatioFallback
	}
	return round(r.Get(ColReceivables)/(sales/365), 2)
}

func inventoryTurnover(r WideRow) float64 {
	inventory := r.Get(ColInventory)
	if !(inventory > 0) {
		return RatioFallback
	}
	return round(r.Get(ColSales)/inventory, 2)
}

func quarterlyOPM(r WideRow) float64 {
	op, sales := r.Get(ColQuarterlyOperatingProfit), r.Get(ColQuarterlySales)
	if !(op > 0) || !(sales > 0) {
		return RatioFallback
	}
	return round(op/sales*100, 0)
}

// round is half-to-even at the given number of decimal places.
// NaN and infinities pass through.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).RoundBank(places).Float64()
	return f
}
