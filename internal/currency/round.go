package currency

import "github.com/shopspring/decimal"

// Decimals is the number of minor-unit digits shown for a currency.
func Decimals(currency string) int32 {
	switch currency {
	case "JPY":
		return 0
	default:
		return 2
	}
}

// Round rounds v half away from zero to the currency's minor unit.
func Round(v float64, currency string) float64 {
	return RoundPlaces(v, Decimals(currency))
}

// RoundPlaces rounds v half away from zero to the given number of places.
func RoundPlaces(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
