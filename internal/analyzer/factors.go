package analyzer

import (
	"fmt"
	"math"

	"StockPulse/internal/model"
)

const (
	weightTechnical   = 0.30
	weightFundamental = 0.25
	weightMomentum    = 0.25
	weightVolume      = 0.10
	weightVolatility  = 0.10
)

var sectorBase = map[string]float64{
	"Technology":             0.8,
	"Healthcare":             0.7,
	"Financial Services":     0.6,
	"Consumer Discretionary": 0.6,
	"Energy":                 0.5,
	"Utilities":              0.5,
}

// expectedVolume is keyed by the cleaned symbol, without exchange suffix.
var expectedVolume = map[string]float64{
	"AAPL":     50_000_000,
	"GOOGL":    25_000_000,
	"MSFT":     30_000_000,
	"TSLA":     40_000_000,
	"AMZN":     35_000_000,
	"RELIANCE": 15_000_000,
}

const defaultExpectedVolume = 10_000_000

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func factor(name string, score, weight float64, commentary string) model.FactorScore {
	return model.FactorScore{
		Name:       name,
		RawScore:   score,
		Weight:     weight,
		Weighted:   score * weight,
		Commentary: commentary,
	}
}

// rangePosition is where price sits inside [low, high]; 0.5 for a flat range.
func rangePosition(d *model.QuoteDetail) float64 {
	if d.High == d.Low {
		return 0.5
	}
	return (d.Price - d.Low) / (d.High - d.Low)
}

func dailyRange(d *model.QuoteDetail) float64 {
	if d.Price == 0 {
		return 0
	}
	return (d.High - d.Low) / d.Price
}

// scoreTechnical scores intraday price action.
// Weight: 0.30
func scoreTechnical(d *model.QuoteDetail) model.FactorScore {
	pos := rangePosition(d)
	score := 0.5 + pos*0.3

	if d.Open != 0 {
		score += clamp((d.Price-d.Open)/d.Open*5, -0.2, 0.2)
	}
	if d.PreviousClose != 0 {
		score += clamp((d.Price-d.PreviousClose)/d.PreviousClose*4, -0.3, 0.3)

		gap := (d.Open - d.PreviousClose) / d.PreviousClose
		if math.Abs(gap) > 0.02 {
			if gap > 0 {
				score += 0.1
			} else {
				score -= 0.1
			}
		}
	}

	score = clamp(score, 0, 1)
	return factor("technical", score, weightTechnical, fmt.Sprintf("price at %.0f%% of daily range", pos*100))
}

// scoreFundamental scores sector and size.
// Weight: 0.25
func scoreFundamental(d *model.QuoteDetail) model.FactorScore {
	score, ok := sectorBase[d.Sector]
	if !ok {
		score = 0.6
	}
	tier := "unknown cap"
	if d.MarketCap != nil {
		switch mc := *d.MarketCap; {
		case mc > 100e9:
			score += 0.1
			tier = "large cap"
		case mc < 2e9:
			score -= 0.1
			tier = "small cap"
		default:
			tier = "mid cap"
		}
	}
	score = clamp(score, 0, 1)
	return factor("fundamental", score, weightFundamental, fmt.Sprintf("%s, %s", d.Sector, tier))
}

// scoreMomentum bands changePercent. Each band includes its lower edge.
// Weight: 0.25
func scoreMomentum(d *model.QuoteDetail) model.FactorScore {
	cp := d.ChangePercent
	var score float64
	switch {
	case cp >= 8:
		score = 1.0
	case cp >= 5:
		score = 0.9
	case cp >= 3:
		score = 0.8
	case cp >= 1:
		score = 0.7
	case cp >= 0:
		score = 0.6
	case cp >= -1:
		score = 0.4
	case cp >= -3:
		score = 0.3
	case cp >= -5:
		score = 0.2
	case cp >= -8:
		score = 0.1
	default:
		score = 0.0
	}
	return factor("momentum", score, weightMomentum, fmt.Sprintf("%+.2f%% today", cp))
}

// scoreVolume compares volume with the symbol's usual turnover.
// Weight: 0.10
func scoreVolume(d *model.QuoteDetail) model.FactorScore {
	expected, ok := expectedVolume[d.Symbol]
	if !ok {
		expected = defaultExpectedVolume
	}
	ratio := float64(d.Volume) / expected

	var score float64
	switch {
	case ratio > 2.0:
		score = 1.0
	case ratio > 1.5:
		score = 0.8
	case ratio > 1.0:
		score = 0.6
	case ratio > 0.5:
		score = 0.4
	default:
		score = 0.2
	}
	return factor("volume", score, weightVolume, fmt.Sprintf("%.2fx expected volume", ratio))
}

// scoreVolatility rewards stability: a tight range and a small move score high.
// Weight: 0.10
func scoreVolatility(d *model.QuoteDetail) model.FactorScore {
	r := dailyRange(d)
	c := math.Abs(d.ChangePercent)

	var score float64
	switch {
	case r < 0.015 && c < 1:
		score = 1.0
	case r < 0.03 && c < 2:
		score = 0.8
	case r < 0.05 && c < 3:
		score = 0.6
	case r < 0.08 && c < 5:
		score = 0.4
	default:
		score = 0.2
	}
	return factor("volatility", score, weightVolatility, fmt.Sprintf("range %.1f%%, move %.2f%%", r*100, c))
}
