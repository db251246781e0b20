package currency

// staticRates is the fallback used when the live lookup fails. The entries
// were captured by hand and are not exact inverses of each other.
var staticRates = map[string]map[string]float64{
	"USD": {"INR": 83.25, "GBP": 0.79, "CAD": 1.35, "AUD": 1.52, "EUR": 0.92, "JPY": 149.50},
	"INR": {"USD": 0.012, "GBP": 0.0095, "CAD": 0.016, "AUD": 0.018, "EUR": 0.011, "JPY": 1.8},
	"GBP": {"USD": 1.27, "INR": 105.4, "CAD": 1.71, "AUD": 1.92, "EUR": 1.17, "JPY": 189.2},
	"CAD": {"USD": 0.74, "INR": 61.6, "GBP": 0.58, "AUD": 1.12, "EUR": 0.68, "JPY": 110.7},
	"AUD": {"USD": 0.66, "INR": 54.7, "GBP": 0.52, "CAD": 0.89, "EUR": 0.61, "JPY": 98.4},
	"EUR": {"USD": 1.09, "INR": 90.6, "GBP": 0.86, "CAD": 1.47, "AUD": 1.65, "JPY": 162.5},
	"JPY": {"USD": 0.0067, "INR": 0.56, "GBP": 0.0053, "CAD": 0.009, "AUD": 0.01, "EUR": 0.0062},
}

var countryCurrency = map[string]string{
	"US": "USD",
	"IN": "INR",
	"GB": "GBP",
	"CA": "CAD",
	"AU": "AUD",
	"DE": "EUR",
	"JP": "JPY",
}

// StaticRate looks a pair up in the fallback table.
func StaticRate(from, to string) (float64, bool) {
	r, ok := staticRates[from][to]
	return r, ok
}

// Currencies lists every currency the fallback table knows about.
func Currencies() []string {
	return []string{"USD", "INR", "GBP", "CAD", "AUD", "EUR", "JPY"}
}

// ForCountry maps a country code to its currency, defaulting to USD.
func ForCountry(country string) string {
	if c, ok := countryCurrency[country]; ok {
		return c
	}
	return "USD"
}
