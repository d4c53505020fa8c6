package models

// Opportunity is one row of the offline analytics CSV: a (symbol,
// exchange1, exchange2) triple ranked by an external batch process.
// OpportunityFilter loads, filters, and caches these; this module never
// produces them.
type Opportunity struct {
	Symbol               string
	Exchange1            string
	Exchange2            string
	OpportunityCycles040bp float64
}

// Key identifies the (symbol, exchangeA, exchangeB) triple that
// ChartAssembler joins windows for.
func (o Opportunity) Key() OpportunityKey {
	return OpportunityKey{Symbol: o.Symbol, ExchangeA: o.Exchange1, ExchangeB: o.Exchange2}
}

// OpportunityKey identifies one cross-venue pair ChartAssembler tracks.
type OpportunityKey struct {
	Symbol    string
	ExchangeA string
	ExchangeB string
}
