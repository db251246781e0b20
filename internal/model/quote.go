package model

// Quote is a single point-in-time price snapshot for a ticker, already
// denominated in the requesting country's currency.
type Quote struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"changePercent"`
	Volume        int64    `json:"volume"`
	MarketCap     *float64 `json:"marketCap,omitempty"`
	Sector        string   `json:"sector,omitempty"`
	Country       string   `json:"country"`
}

// QuoteDetail extends Quote with the session's open/high/low and the
// previous close.
type QuoteDetail struct {
	Quote
	Open          float64       `json:"open"`
	High          float64       `json:"high"`
	Low           float64       `json:"low"`
	PreviousClose float64       `json:"previousClose"`
	Description   string        `json:"description,omitempty"`
	News          []NewsArticle `json:"news,omitempty"`
}

// ChartSeries holds parallel label/value arrays, oldest first.
type ChartSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Len returns the number of points in the series.
func (s ChartSeries) Len() int { return len(s.Values) }
