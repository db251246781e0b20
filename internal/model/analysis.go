package model

// Recommendation is the three-way action produced by the analyzer.
type Recommendation string

const (
	RecommendBuy  Recommendation = "BUY"
	RecommendHold Recommendation = "HOLD"
	RecommendSell Recommendation = "SELL"
)

// RiskLevel grades how volatile a quote looks.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// FactorScore represents a single sub-score's result.
type FactorScore struct {
	Name       string  `json:"name"`
	RawScore   float64 `json:"rawScore"`
	Weight     float64 `json:"weight"`
	Weighted   float64 `json:"weighted"`
	Commentary string  `json:"commentary"`
}

// Analysis is the recommendation derived from a single quote snapshot.
type Analysis struct {
	Recommendation  Recommendation `json:"recommendation"`
	RiskLevel       RiskLevel      `json:"riskLevel"`
	TargetPrice     float64        `json:"targetPrice"`
	Reasoning       string         `json:"reasoning"`
	EstimatedReturn float64        `json:"estimatedReturn"`
	Summary         string         `json:"summary"`
}
