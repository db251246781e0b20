package analyzer

import (
	"fmt"
	"math"
	"strings"

	"StockPulse/internal/currency"
	"StockPulse/internal/model"
)

var highRiskSectors = map[string]bool{
	"Energy":         true,
	"Biotechnology":  true,
	"Cryptocurrency": true,
}

var sectorTargetMultiplier = map[string]float64{
	"Technology":         1.2,
	"Healthcare":         1.1,
	"Financial Services": 1.05,
	"Energy":             0.95,
	"Utilities":          0.9,
}

// Evaluation is the heuristic result with its sub-scores.
type Evaluation struct {
	Factors  []model.FactorScore
	Score    float64
	Analysis model.Analysis
}

// Factor returns the named sub-score.
func (e *Evaluation) Factor(name string) model.FactorScore {
	for _, f := range e.Factors {
		if f.Name == name {
			return f
		}
	}
	return model.FactorScore{}
}

// Evaluate computes the heuristic analysis. It is a pure function of d.
func Evaluate(d *model.QuoteDetail) *Evaluation {
	tech := scoreTechnical(d)
	fund := scoreFundamental(d)
	mom := scoreMomentum(d)
	vol := scoreVolume(d)
	volat := scoreVolatility(d)

	factors := []model.FactorScore{tech, fund, mom, vol, volat}
	score := tech.Weighted + fund.Weighted + mom.Weighted + vol.Weighted + volat.Weighted

	rec := recommend(score)
	target := targetPrice(d, score)
	estReturn := 0.0
	if d.Price != 0 {
		estReturn = (target - d.Price) / d.Price * 100
	}

	return &Evaluation{
		Factors: factors,
		Score:   score,
		Analysis: model.Analysis{
			Recommendation:  rec,
			RiskLevel:       riskLevel(d, volat.RawScore),
			TargetPrice:     currency.RoundPlaces(target, 2),
			Reasoning:       reasoning(d, tech.RawScore, fund.RawScore),
			EstimatedReturn: currency.RoundPlaces(estReturn, 2),
			Summary:         summary(d, rec, score),
		},
	}
}

func recommend(score float64) model.Recommendation {
	switch {
	case score > 0.75:
		return model.RecommendBuy
	case score > 0.35:
		return model.RecommendHold
	default:
		return model.RecommendSell
	}
}

func riskLevel(d *model.QuoteDetail, volatility float64) model.RiskLevel {
	r := math.Abs(d.ChangePercent) + dailyRange(d)*100
	if highRiskSectors[d.Sector] {
		r++
	}
	switch {
	case r > 8 || volatility < 0.3:
		return model.RiskHigh
	case r > 4 || volatility < 0.6:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func targetPrice(d *model.QuoteDetail, score float64) float64 {
	v := math.Abs(d.ChangePercent) / 100

	var m float64
	switch {
	case score > 0.8:
		m = 1.20 + v*0.3
	case score > 0.6:
		m = 1.12 + v*0.2
	case score > 0.4:
		m = 1.05 + v*0.1
	case score > 0.2:
		m = 0.95 - v*0.1
	default:
		m = 0.85 - v*0.2
	}

	sm, ok := sectorTargetMultiplier[d.Sector]
	if !ok {
		sm = 1.0
	}
	return d.Price * m * sm
}

func summary(d *model.QuoteDetail, rec model.Recommendation, score float64) string {
	momentum := "negative"
	if d.ChangePercent > 0 {
		momentum = "positive"
	}
	strength := "weak"
	switch {
	case score > 0.7:
		strength = "strong"
	case score > 0.4:
		strength = "moderate"
	}
	volatility := "normal"
	if math.Abs(d.ChangePercent) > 3 {
		volatility = "elevated"
	}
	return fmt.Sprintf("%s demonstrates %s fundamentals with %s momentum (%.2f%%). Technical analysis indicates %s signals with %s volatility in the %s sector. Overall score %.2f.",
		d.Name, strength, momentum, d.ChangePercent, strings.ToLower(string(rec)), volatility, d.Sector, score)
}

func reasoning(d *model.QuoteDetail, technical, fundamental float64) string {
	var reasons []string

	switch {
	case technical > 0.7:
		reasons = append(reasons, fmt.Sprintf("Strong technical setup with price at %.0f%% of daily range", rangePosition(d)*100))
	case technical < 0.3:
		reasons = append(reasons, "Weak technical position with price under pressure near support levels")
	}
	if fundamental > 0.7 {
		reasons = append(reasons, fmt.Sprintf("Solid fundamental outlook supported by %s sector strength", d.Sector))
	}
	if d.Volume > 10_000_000 {
		reasons = append(reasons, fmt.Sprintf("High trading volume (%.1fM) confirms institutional interest", float64(d.Volume)/1e6))
	}

	capText, outlook := "N/A", "growth potential"
	if d.MarketCap != nil {
		capText = fmt.Sprintf("%.1f", *d.MarketCap/1e9)
		if *d.MarketCap > 50e9 {
			outlook = "stability"
		}
	}
	reasons = append(reasons, fmt.Sprintf("Market cap of $%sB provides %s", capText, outlook))

	if len(reasons) > 3 {
		reasons = reasons[:3]
	}
	return strings.Join(reasons, ". ") + "."
}
