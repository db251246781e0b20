// Package calculator derives summary statistics from a price series.
package calculator

import (
	"errors"
	"math"
)

const (
	rsiPeriod = 14
	smaPeriod = 20
)

// Stats summarises a chart series. SMA is zero when the series is shorter
// than the averaging window.
type Stats struct {
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Average  float64 `json:"average"`
	SMA20    float64 `json:"sma20,omitempty"`
	RSI14    float64 `json:"rsi14"`
	Position float64 `json:"position"`
	Change   float64 `json:"changePercent"`
}

// Summarize returns the stats of values (oldest first), or nil for an empty
// series.
func Summarize(values []float64) *Stats {
	if len(values) == 0 {
		return nil
	}
	high, low, _ := Range(values)
	last := values[len(values)-1]
	s := &Stats{High: high, Low: low}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	s.Average = sum / float64(len(values))
	s.SMA20, _ = SMA(values, smaPeriod)
	s.RSI14, _ = RSI(values, rsiPeriod)
	s.Position, _ = Position(last, high, low)
	if first := values[0]; first != 0 {
		s.Change = (last - first) / first * 100
	}
	return s
}

// SMA computes the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// RSI computes the Wilder-smoothed RSI over the given period.
// Returns 50 when there are fewer than period+1 values.
func RSI(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period+1 {
		return 50, nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	return 100 - 100/(1+avgGain/avgLoss), nil
}

// Range returns the highest and lowest value.
func Range(values []float64) (high, low float64, err error) {
	if len(values) == 0 {
		return 0, 0, errors.New("no values provided")
	}
	high, low = math.Inf(-1), math.Inf(1)
	for _, v := range values {
		high = math.Max(high, v)
		low = math.Min(low, v)
	}
	return high, low, nil
}

// Position returns where current sits within [low, high], clamped to 0..1.
func Position(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	return math.Min(1, math.Max(0, (current-low)/(high-low))), nil
}
