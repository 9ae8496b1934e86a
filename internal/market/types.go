package market

// Wire types for the Polygon REST API. These are boundary structs only;
// handlers and services consume the normalized models instead.

type polygonSnapshotResponse struct {
	Status  string            `json:"status"`
	Tickers []polygonSnapshot `json:"tickers"`
	Ticker  *polygonSnapshot  `json:"ticker"` // single-ticker variant
}

type polygonSnapshot struct {
	Ticker           string  `json:"ticker"`
	TodaysChange     float64 `json:"todaysChange"`
	TodaysChangePerc float64 `json:"todaysChangePerc"`
	LastTrade        struct {
		Price float64 `json:"p"`
	} `json:"lastTrade"`
	PrevDay struct {
		Close float64 `json:"c"`
	} `json:"prevDay"`
}

type polygonDailyOpenClose struct {
	Status string  `json:"status"`
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type polygonAggsResponse struct {
	Status  string       `json:"status"`
	Ticker  string       `json:"ticker"`
	Results []polygonAgg `json:"results"`
}

type polygonAgg struct {
	Timestamp int64   `json:"t"` // unix millis
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

type polygonFinancialsResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FiscalPeriod string `json:"fiscal_period"`
		FiscalYear   string `json:"fiscal_year"`
		Financials   struct {
			IncomeStatement struct {
				Revenues            polygonLineItem `json:"revenues"`
				OperatingIncome     polygonLineItem `json:"operating_income_loss"`
				DilutedAvgShares    polygonLineItem `json:"diluted_average_shares"`
			} `json:"income_statement"`
			BalanceSheet struct {
				LongTermDebt polygonLineItem `json:"long_term_debt"`
				Cash         polygonLineItem `json:"cash"`
			} `json:"balance_sheet"`
			CashFlowStatement struct {
				InvestingCashFlow polygonLineItem `json:"net_cash_flow_from_investing_activities"`
			} `json:"cash_flow_statement"`
		} `json:"financials"`
	} `json:"results"`
}

type polygonLineItem struct {
	Value float64 `json:"value"`
}
