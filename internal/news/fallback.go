package news

import (
	"fmt"
	"time"

	"StockPulse/internal/model"
)

type template struct {
	title, summary, source, url string
}

var marketTemplates = []template{
	{
		title:   "Federal Reserve Maintains Hawkish Stance on Interest Rates Amid Persistent Inflation",
		summary: "The Federal Reserve signals continued monetary tightening as inflation remains above target levels. Markets are pricing in additional rate hikes, impacting bond yields and equity valuations across sectors.",
		source:  "Reuters",
		url:     "https://www.reuters.com/markets/us/",
	},
	{
		title:   "Technology Stocks Rally on AI Breakthrough Announcements and Cloud Growth",
		summary: "Major technology companies report accelerating artificial intelligence adoption and robust cloud computing revenue growth. Semiconductor stocks lead gains as demand for AI chips continues to surge.",
		source:  "Bloomberg",
		url:     "https://www.bloomberg.com/technology",
	},
	{
		title:   "Energy Sector Surges on Geopolitical Tensions and Supply Chain Disruptions",
		summary: "Oil and gas companies outperform broader markets as crude prices climb above $85 per barrel. Geopolitical tensions in key producing regions raise concerns about global energy supply stability.",
		source:  "MarketWatch",
		url:     "https://www.marketwatch.com/investing/stock/xle",
	},
	{
		title:   "Banking Stocks Under Pressure from Credit Quality Concerns and Regulatory Changes",
		summary: "Financial institutions face headwinds from potential credit losses and evolving regulatory requirements. Regional banks particularly affected by commercial real estate exposure and deposit outflows.",
		source:  "Financial Times",
		url:     "https://www.ft.com/companies/banks",
	},
	{
		title:   "Healthcare Stocks Gain on FDA Drug Approvals and Biotech Innovation",
		summary: "Pharmaceutical companies see significant gains following breakthrough drug approvals and positive clinical trial results. Biotech sector benefits from increased investment in personalized medicine and gene therapy.",
		source:  "CNBC",
		url:     "https://www.cnbc.com/health-and-science/",
	},
	{
		title:   "Consumer Spending Data Reveals Resilient Economic Activity Despite Headwinds",
		summary: "Latest retail sales figures exceed expectations, indicating continued consumer strength. E-commerce growth and services spending offset weakness in discretionary goods categories.",
		source:  "Wall Street Journal",
		url:     "https://www.wsj.com/economy",
	},
	{
		title:   "Cryptocurrency Market Volatility Impacts Related Stocks and ETFs",
		summary: "Digital asset price swings create trading opportunities in cryptocurrency-exposed companies. Bitcoin ETF flows and regulatory developments continue to drive market sentiment.",
		source:  "CoinDesk",
		url:     "https://www.coindesk.com/markets/",
	},
	{
		title:   "Manufacturing PMI Data Points to Economic Expansion and Industrial Growth",
		summary: "Industrial production figures beat forecasts, signaling robust manufacturing activity. Supply chain improvements and inventory rebuilding support cyclical stock sectors.",
		source:  "Associated Press",
		url:     "https://apnews.com/hub/business",
	},
}

var symbolSources = []string{"Reuters", "Bloomberg", "MarketWatch", "Financial Times"}

const (
	marketWindow = 8 * time.Hour
	symbolWindow = 5 * 24 * time.Hour
)

// marketFallback returns every market template in shuffled order, each
// stamped within the last eight hours.
func (a *Aggregator) marketFallback() []model.NewsArticle {
	now := a.now()
	order := make([]int, len(marketTemplates))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := min(int(a.float()*float64(i+1)), i)
		order[i], order[j] = order[j], order[i]
	}

	out := make([]model.NewsArticle, 0, len(order))
	for _, idx := range order {
		t := marketTemplates[idx]
		out = append(out, model.NewsArticle{
			Title:       t.title,
			Summary:     t.summary,
			URL:         t.url,
			PublishedAt: now.Add(-time.Duration(a.float() * float64(marketWindow))),
			Source:      t.source,
		})
	}
	return out
}

// symbolFallback returns four headlines about symbol stamped within the last
// five days.
func (a *Aggregator) symbolFallback(symbol string) []model.NewsArticle {
	now := a.now()
	name := CompanyName(symbol)
	templates := []template{
		{
			title:   fmt.Sprintf("%s Reports Strong Quarterly Earnings, Beats Wall Street Expectations", name),
			summary: fmt.Sprintf("%s (%s) delivered quarterly results with revenue and earnings exceeding analyst forecasts. The company cited strong demand across key business segments and improved operational efficiency.", name, symbol),
			url:     fmt.Sprintf("https://finance.yahoo.com/quote/%s/", symbol),
		},
		{
			title:   fmt.Sprintf("Analysts Upgrade %s Price Target Following Strategic Partnership Announcement", symbol),
			summary: fmt.Sprintf("Several investment firms raised their price targets for %s after a strategic partnership expected to accelerate growth and market expansion.", name),
			url:     fmt.Sprintf("https://www.marketwatch.com/investing/stock/%s", symbol),
		},
		{
			title:   fmt.Sprintf("%s Announces Major Innovation Initiative, Stock Rallies in Pre-Market Trading", name),
			summary: fmt.Sprintf("%s shares rose in early trading after the company unveiled plans for substantial investment in research and development, positioning %s at the forefront of its industry.", symbol, name),
			url:     fmt.Sprintf("https://www.cnbc.com/quotes/%s", symbol),
		},
		{
			title:   fmt.Sprintf("Institutional Investors Increase Stakes in %s Amid Strong Fundamentals", symbol),
			summary: fmt.Sprintf("Recent SEC filings show major institutional investors increased their positions in %s, reflecting confidence in its long-term growth prospects.", name),
			url:     fmt.Sprintf("https://www.bloomberg.com/quote/%s:US", symbol),
		},
	}

	out := make([]model.NewsArticle, 0, len(templates))
	for i, t := range templates {
		out = append(out, model.NewsArticle{
			Title:       t.title,
			Summary:     t.summary,
			URL:         t.url,
			PublishedAt: now.Add(-time.Duration(a.float() * float64(symbolWindow))),
			Source:      symbolSources[i%len(symbolSources)],
		})
	}
	return out
}
