package collector

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"StockPulse/internal/provider/alphavantage"
)

// MetadataSource supplies company fundamentals.
type MetadataSource interface {
	Overview(ctx context.Context, symbol string) (*alphavantage.Overview, error)
}

// CompanyInfo is the name/sector/cap triple attached to every quote.
type CompanyInfo struct {
	Name        string
	Sector      string
	MarketCap   *float64
	Description string
}

const defaultSector = "Technology"

var knownCompanies = map[string]struct{ name, sector string }{
	"AAPL":  {"Apple Inc.", "Technology"},
	"GOOGL": {"Alphabet Inc.", "Technology"},
	"MSFT":  {"Microsoft Corporation", "Technology"},
	"TSLA":  {"Tesla Inc.", "Automotive"},
	"AMZN":  {"Amazon.com Inc.", "Consumer Discretionary"},
	"META":  {"Meta Platforms Inc.", "Technology"},
	"NVDA":  {"NVIDIA Corporation", "Technology"},
	"NFLX":  {"Netflix Inc.", "Entertainment"},
	"AMD":   {"Advanced Micro Devices Inc.", "Technology"},
	"INTC":  {"Intel Corporation", "Technology"},
	"CRM":   {"Salesforce Inc.", "Technology"},
	"ORCL":  {"Oracle Corporation", "Technology"},
}

var titleCaser = cases.Title(language.English)

// StaticCompanyInfo returns the built-in metadata for symbol.
func StaticCompanyInfo(symbol string) CompanyInfo {
	info := CompanyInfo{
		Name:        symbol + " Corporation",
		Sector:      defaultSector,
		Description: DefaultDescription(symbol),
	}
	if known, ok := knownCompanies[symbol]; ok {
		info.Name = known.name
		info.Sector = known.sector
	}
	return info
}

// DefaultDescription is used when no provider returns a company profile.
func DefaultDescription(symbol string) string {
	return fmt.Sprintf("%s is a publicly traded company providing innovative products and services to customers worldwide.", symbol)
}

// companyInfo asks the metadata source first and falls back to the static
// table. It never fails.
func (c *Collector) companyInfo(ctx context.Context, symbol string) CompanyInfo {
	if c.metadata == nil {
		return StaticCompanyInfo(symbol)
	}

	ov, err := c.metadata.Overview(ctx, symbol)
	if err != nil {
		c.logger.Debug().Str("symbol", symbol).Err(err).Msg("Company overview unavailable, using static metadata")
		return StaticCompanyInfo(symbol)
	}

	info := CompanyInfo{
		Name:        ov.Name,
		Sector:      normalizeSector(ov.Sector),
		Description: ov.Description,
	}
	if ov.MarketCap > 0 {
		mc := ov.MarketCap
		info.MarketCap = &mc
	}
	if info.Description == "" {
		info.Description = DefaultDescription(symbol)
	}
	return info
}

// normalizeSector maps Alpha Vantage's upper-case sectors ("FINANCIAL
// SERVICES") onto the title-case names the analyzer keys on.
func normalizeSector(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return defaultSector
	}
	if s == strings.ToUpper(s) {
		return titleCaser.String(strings.ToLower(s))
	}
	return s
}
