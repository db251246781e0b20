package collector

import "strings"

var countrySymbols = map[string][]string{
	"US": {"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN", "META", "NVDA", "NFLX", "AMD", "INTC", "CRM", "ORCL"},
	"IN": {"RELIANCE.BSE", "TCS.BSE", "INFY.BSE", "HDFCBANK.BSE", "ICICIBANK.BSE", "SBIN.BSE", "ITC.BSE", "LT.BSE"},
	"GB": {"SHEL.LON", "AZN.LON", "ULVR.LON", "HSBA.LON", "BP.LON", "VOD.LON", "GSK.LON", "DGE.LON"},
	"CA": {"SHOP.TRT", "RY.TRT", "TD.TRT", "BNS.TRT", "BMO.TRT", "CNR.TRT", "CP.TRT", "ENB.TRT"},
	"AU": {"CBA.AUS", "BHP.AUS", "ANZ.AUS", "WBC.AUS", "NAB.AUS", "CSL.AUS", "MQG.AUS", "WOW.AUS"},
	"DE": {"SAP.DEX", "ASME.DEX", "SIE.DEX", "ALV.DEX", "DTE.DEX", "BAS.DEX", "VOW3.DEX", "BMW.DEX"},
	"JP": {"7203.TYO", "6758.TYO", "9984.TYO", "6861.TYO", "8306.TYO", "9432.TYO", "6098.TYO", "4063.TYO"},
}

var suffixCountry = []struct {
	suffix  string
	country string
}{
	{".BSE", "IN"},
	{".NSE", "IN"},
	{".LON", "GB"},
	{".TRT", "CA"},
	{".AUS", "AU"},
	{".DEX", "DE"},
	{".TYO", "JP"},
}

// CountrySymbols returns the browse list for country; unknown codes get the
// US list. The returned slice is a copy.
func CountrySymbols(country string) []string {
	list, ok := countrySymbols[strings.ToUpper(country)]
	if !ok {
		list = countrySymbols["US"]
	}
	return append([]string(nil), list...)
}

// CountryFromSymbol infers the listing country from an exchange suffix.
func CountryFromSymbol(symbol string) string {
	upper := strings.ToUpper(symbol)
	for _, s := range suffixCountry {
		if strings.Contains(upper, s.suffix) {
			return s.country
		}
	}
	return "US"
}

// CleanSymbol strips the exchange suffix: "RELIANCE.BSE" becomes "RELIANCE".
func CleanSymbol(symbol string) string {
	base, _, _ := strings.Cut(strings.TrimSpace(symbol), ".")
	return base
}
