// Package valuation implements a parameterized discounted-cash-flow model.
// Compute is a pure function with no I/O: the UI pushes slider values in
// and renders the per-year projection arrays it gets back.
package valuation

import "math"

// Horizon is the projection length in years.
const Horizon = 5

// rampSchedule scales the target run-rate into early projection years:
// year 1 at 33%, year 2 at 66%, year 3 onward at full run-rate.
var rampSchedule = [Horizon]float64{0.33, 0.66, 1.0, 1.0, 1.0}

// DefaultTaxRate is the flat corporate tax rate in percent. Compute uses
// TaxRate exactly as given (zero means untaxed); callers that want the
// statutory default apply it themselves.
const DefaultTaxRate = 21.0

// Input holds the model parameters. Monetary values are in millions of
// USD and shares in millions, so FairPrice comes out in dollars per
// share. Rates and margins are percentages (e.g. 4.5 for 4.5%).
type Input struct {
	TargetRevenue     float64 `json:"target_revenue"`      // terminal-year run-rate of the primary stream
	OperatingMargin   float64 `json:"operating_margin"`    // primary stream margin
	CommodityPrice    float64 `json:"commodity_price"`     // per-unit price of the second stream
	CommodityVolume   float64 `json:"commodity_volume"`    // units at full run-rate, in millions
	SecondMargin      float64 `json:"second_margin"`       // second stream margin
	NetDebt           float64 `json:"net_debt"`
	CapEx             float64 `json:"capex"`               // annual capital expenditure
	RiskFreeRate      float64 `json:"risk_free_rate"`
	RiskPremium       float64 `json:"risk_premium"`
	TerminalMultiple  float64 `json:"terminal_multiple"`   // exit multiple on final-year FCF
	SharesOutstanding float64 `json:"shares_outstanding"`  // in millions
	TaxRate           float64 `json:"tax_rate"`            // flat rate on positive operating income
	MarketPrice       float64 `json:"market_price"`        // current price per share, for DeltaPercent
}

// Result holds the fair-value estimate and the per-year breakdowns the
// UI charts.
type Result struct {
	FairPrice       float64   `json:"fair_price"`
	DeltaPercent    float64   `json:"delta_percent"`
	Revenues        []float64 `json:"revenues"`
	OperatingIncome []float64 `json:"operating_income"`
	FCF             []float64 `json:"fcf"`
	DiscountedFCF   []float64 `json:"discounted_fcf"`
	TerminalValue   float64   `json:"terminal_value"` // discounted
	EnterpriseValue float64   `json:"enterprise_value"`
	EquityValue     float64   `json:"equity_value"`
}

// Compute runs the five-year two-stream DCF model.
func Compute(in Input) Result {
	taxRate := in.TaxRate / 100
	discountRate := (in.RiskFreeRate + in.RiskPremium) / 100
	secondRevenue := in.CommodityPrice * in.CommodityVolume

	res := Result{
		Revenues:        make([]float64, Horizon),
		OperatingIncome: make([]float64, Horizon),
		FCF:             make([]float64, Horizon),
		DiscountedFCF:   make([]float64, Horizon),
	}

	var sumDiscounted float64
	for year := 0; year < Horizon; year++ {
		ramp := rampSchedule[year]

		rev1 := in.TargetRevenue * ramp
		rev2 := secondRevenue * ramp
		res.Revenues[year] = rev1 + rev2

		// Blend the two streams' operating income at their own margins.
		opIncome := rev1*(in.OperatingMargin/100) + rev2*(in.SecondMargin/100)
		res.OperatingIncome[year] = opIncome

		// Flat tax on positive operating income only; no benefit on losses.
		afterTax := opIncome
		if opIncome > 0 {
			afterTax = opIncome * (1 - taxRate)
		}

		fcf := afterTax - in.CapEx
		res.FCF[year] = fcf

		discounted := fcf / math.Pow(1+discountRate, float64(year+1))
		res.DiscountedFCF[year] = discounted
		sumDiscounted += discounted
	}

	terminal := res.FCF[Horizon-1] * in.TerminalMultiple
	res.TerminalValue = terminal / math.Pow(1+discountRate, Horizon)

	res.EnterpriseValue = sumDiscounted + res.TerminalValue
	res.EquityValue = res.EnterpriseValue - in.NetDebt

	if in.SharesOutstanding > 0 {
		res.FairPrice = res.EquityValue / in.SharesOutstanding
	}
	if res.FairPrice < 0 {
		res.FairPrice = 0
	}

	if in.MarketPrice > 0 {
		res.DeltaPercent = (res.FairPrice - in.MarketPrice) / in.MarketPrice * 100
	}

	return res
}
