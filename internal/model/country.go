package model

// Country is a market the app can browse, with its display currency.
type Country struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Currency  string   `json:"currency"`
	Exchanges []string `json:"exchanges"`
}

// Countries lists the supported markets.
var Countries = []Country{
	{Code: "US", Name: "United States", Currency: "USD", Exchanges: []string{"NASDAQ", "NYSE"}},
	{Code: "IN", Name: "India", Currency: "INR", Exchanges: []string{"NSE", "BSE"}},
	{Code: "GB", Name: "United Kingdom", Currency: "GBP", Exchanges: []string{"LSE"}},
	{Code: "CA", Name: "Canada", Currency: "CAD", Exchanges: []string{"TSX"}},
	{Code: "AU", Name: "Australia", Currency: "AUD", Exchanges: []string{"ASX"}},
	{Code: "DE", Name: "Germany", Currency: "EUR", Exchanges: []string{"XETRA"}},
	{Code: "JP", Name: "Japan", Currency: "JPY", Exchanges: []string{"TSE"}},
}

// LookupCountry returns the country with the given code.
func LookupCountry(code string) (Country, bool) {
	for _, c := range Countries {
		if c.Code == code {
			return c, true
		}
	}
	return Country{}, false
}
