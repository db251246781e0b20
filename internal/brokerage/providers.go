package brokerage

import "math/rand/v2"

// Provider is a broker the user can link.
type Provider struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	APIURL      string   `json:"apiUrl"`
	Features    []string `json:"features"`
	Currency    string   `json:"currency"`
}

var catalogue = map[string][]Provider{
	"US": {
		{ID: "alpaca", Name: "Alpaca Markets", Description: "Commission-free trading with API access", APIURL: "https://paper-api.alpaca.markets", Features: []string{"Stocks", "ETFs", "Crypto"}, Currency: "USD"},
		{ID: "td_ameritrade", Name: "TD Ameritrade", Description: "Professional trading platform", APIURL: "https://api.tdameritrade.com", Features: []string{"Stocks", "Options", "Futures"}, Currency: "USD"},
		{ID: "interactive_brokers", Name: "Interactive Brokers", Description: "Global trading platform", APIURL: "https://api.interactivebrokers.com", Features: []string{"Global Markets", "Low Fees"}, Currency: "USD"},
	},
	"IN": {
		{ID: "zerodha", Name: "Zerodha Kite", Description: "India's largest discount broker", APIURL: "https://api.kite.trade", Features: []string{"NSE", "BSE", "MCX"}, Currency: "INR"},
		{ID: "upstox", Name: "Upstox", Description: "Technology-first trading platform", APIURL: "https://api.upstox.com", Features: []string{"Stocks", "F&O", "Commodities"}, Currency: "INR"},
		{ID: "angel_broking", Name: "Angel One", Description: "Full-service broker with API", APIURL: "https://apiconnect.angelbroking.com", Features: []string{"Equity", "Derivatives", "Currency"}, Currency: "INR"},
	},
	"GB": {
		{ID: "trading212", Name: "Trading 212", Description: "Commission-free trading", APIURL: "https://live.trading212.com", Features: []string{"Stocks", "ETFs", "CFDs"}, Currency: "GBP"},
		{ID: "freetrade", Name: "Freetrade", Description: "Mobile-first investing", APIURL: "https://api.freetrade.io", Features: []string{"UK Stocks", "US Stocks", "ETFs"}, Currency: "GBP"},
	},
	"CA": {
		{ID: "questrade", Name: "Questrade", Description: "Self-directed investing", APIURL: "https://api.questrade.com", Features: []string{"Stocks", "ETFs", "Options"}, Currency: "CAD"},
		{ID: "wealthsimple", Name: "Wealthsimple Trade", Description: "Commission-free trading", APIURL: "https://api.wealthsimple.com", Features: []string{"Canadian Stocks", "US Stocks", "ETFs"}, Currency: "CAD"},
	},
	"AU": {
		{ID: "commsec", Name: "CommSec", Description: "Australia's leading online broker", APIURL: "https://api.commsec.com.au", Features: []string{"ASX", "International", "Options"}, Currency: "AUD"},
	},
	"DE": {
		{ID: "trade_republic", Name: "Trade Republic", Description: "Mobile-first broker", APIURL: "https://api.traderepublic.com", Features: []string{"Stocks", "ETFs", "Derivatives"}, Currency: "EUR"},
	},
	"JP": {
		{ID: "sbi_securities", Name: "SBI Securities", Description: "Japan's largest online broker", APIURL: "https://api.sbisec.co.jp", Features: []string{"Japanese Stocks", "US Stocks", "Bonds"}, Currency: "JPY"},
	},
}

// Opening balances in the provider's currency.
var balanceRanges = map[string][2]float64{
	"alpaca":         {5000, 50000},
	"zerodha":        {100000, 1000000},
	"trading212":     {2000, 20000},
	"questrade":      {8000, 80000},
	"commsec":        {10000, 100000},
	"trade_republic": {3000, 30000},
	"sbi_securities": {500000, 5000000},
}

var holdingsByProvider = map[string][]string{
	"alpaca":         {"AAPL", "GOOGL", "MSFT", "TSLA"},
	"zerodha":        {"RELIANCE", "TCS", "HDFCBANK", "INFY"},
	"trading212":     {"SHEL", "AZN", "ULVR"},
	"questrade":      {"SHOP", "RY", "TD"},
	"commsec":        {"CBA", "BHP", "ANZ"},
	"trade_republic": {"SAP", "SIE"},
	"sbi_securities": {"7203", "6758"},
}

var tradedByProvider = map[string][]string{
	"alpaca":         {"AAPL", "GOOGL", "MSFT"},
	"zerodha":        {"RELIANCE", "TCS", "HDFCBANK"},
	"trading212":     {"SHEL", "AZN"},
	"questrade":      {"SHOP", "RY"},
	"commsec":        {"CBA", "BHP"},
	"trade_republic": {"SAP"},
	"sbi_securities": {"7203"},
}

// Providers lists the brokers available in country. Unknown countries get
// the US list.
func Providers(country string) []Provider {
	if ps, ok := catalogue[country]; ok {
		return ps
	}
	return catalogue["US"]
}

// LookupProvider finds a provider by id in any country. Unknown ids return
// a bare Provider carrying only the id.
func LookupProvider(id string) (Provider, bool) {
	for _, ps := range catalogue {
		for _, p := range ps {
			if p.ID == id {
				return p, true
			}
		}
	}
	return Provider{ID: id}, false
}

func (p Provider) currency() string {
	if p.Currency == "" {
		return "USD"
	}
	return p.Currency
}

func (p Provider) balanceRange() (float64, float64) {
	if r, ok := balanceRanges[p.ID]; ok {
		return r[0], r[1]
	}
	return 5000, 50000
}

func holdings(provider string) []string {
	if s, ok := holdingsByProvider[provider]; ok {
		return s
	}
	return []string{"AAPL", "GOOGL", "MSFT"}
}

func traded(provider string) []string {
	if s, ok := tradedByProvider[provider]; ok {
		return s
	}
	return []string{"AAPL", "GOOGL"}
}

func defaultFloat() float64 { return rand.Float64() }
