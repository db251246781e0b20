package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"StockPulse/internal/model"
	"StockPulse/internal/recorder"
)

// digestHeadlines caps the market headlines in a digest.
const digestHeadlines = 5

// DigestEntry is one symbol's section of the daily digest.
type DigestEntry struct {
	Detail   *model.QuoteDetail
	Analysis model.Analysis
	Origin   string
}

var recommendationIcon = map[model.Recommendation]string{
	model.RecommendBuy:  "🟢",
	model.RecommendHold: "🟡",
	model.RecommendSell: "🔴",
}

func esc(s string) string { return html.EscapeString(s) }

// FormatDigest formats the daily market digest as Telegram HTML.
func FormatDigest(date time.Time, headlines []model.NewsArticle, entries []DigestEntry) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>StockPulse Daily Digest</b> | %s\n\n", date.Format("2006-01-02")))

	if len(headlines) > 0 {
		b.WriteString("📰 <b>Market headlines:</b>\n")
		for i, a := range headlines {
			if i == digestHeadlines {
				break
			}
			b.WriteString(fmt.Sprintf("  • %s <i>(%s)</i>\n", esc(a.Title), esc(a.Source)))
		}
		b.WriteString("\n")
	}

	if len(entries) == 0 {
		b.WriteString("No quotes available for the watch symbols today.\n")
		return b.String()
	}

	b.WriteString("📈 <b>Watch symbols:</b>\n")
	for _, e := range entries {
		d := e.Detail
		b.WriteString(fmt.Sprintf("%s <b>%s</b> %.2f (%+.2f%%) → %s, risk %s, target %.2f\n",
			recommendationIcon[e.Analysis.Recommendation], esc(d.Symbol), d.Price, d.ChangePercent,
			e.Analysis.Recommendation, e.Analysis.RiskLevel, e.Analysis.TargetPrice))
	}
	return b.String()
}

// FormatQuote formats a detail record for the /quote command.
func FormatQuote(d *model.QuoteDetail) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💹 <b>%s</b> %s\n\n", esc(d.Symbol), esc(d.Name)))
	b.WriteString(fmt.Sprintf("Price: %.2f (%+.2f, %+.2f%%)\n", d.Price, d.Change, d.ChangePercent))
	b.WriteString(fmt.Sprintf("Open: %.2f | High: %.2f | Low: %.2f\n", d.Open, d.High, d.Low))
	b.WriteString(fmt.Sprintf("Prev close: %.2f\n", d.PreviousClose))
	b.WriteString(fmt.Sprintf("Volume: %d\n", d.Volume))
	if d.MarketCap != nil {
		b.WriteString(fmt.Sprintf("Market cap: %.1fB\n", *d.MarketCap/1e9))
	}
	if d.Sector != "" {
		b.WriteString(fmt.Sprintf("Sector: %s\n", esc(d.Sector)))
	}
	return b.String()
}

// FormatAnalysis formats an analysis with its factor breakdown.
func FormatAnalysis(d *model.QuoteDetail, a model.Analysis, factors []model.FactorScore, origin string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧠 <b>%s analysis</b> <i>(%s)</i>\n\n", esc(d.Symbol), esc(origin)))
	b.WriteString(fmt.Sprintf("%s <b>%s</b> | Risk: %s\n", recommendationIcon[a.Recommendation], a.Recommendation, a.RiskLevel))
	b.WriteString(fmt.Sprintf("Price: %.2f → Target: %.2f (%+.1f%%)\n\n", d.Price, a.TargetPrice, a.EstimatedReturn))

	if len(factors) > 0 {
		b.WriteString("📈 <b>Factor scores:</b>\n")
		total := 0.0
		for _, f := range factors {
			b.WriteString(fmt.Sprintf("  %s (%s): %.2f (×%.2f) = %.3f\n",
				f.Name, esc(f.Commentary), f.RawScore, f.Weight, f.Weighted))
			total += f.Weighted
		}
		b.WriteString("  ─────────────────\n")
		b.WriteString(fmt.Sprintf("  Composite: %.3f\n\n", total))
	}

	if a.Summary != "" {
		b.WriteString(esc(a.Summary) + "\n")
	}
	return b.String()
}

// FormatNews lists headlines with links.
func FormatNews(title string, articles []model.NewsArticle, limit int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📰 <b>%s</b>\n\n", esc(title)))
	if len(articles) == 0 {
		b.WriteString("No news right now.")
		return b.String()
	}
	for i, a := range articles {
		if i == limit {
			break
		}
		if a.URL != "" {
			b.WriteString(fmt.Sprintf("• <a href=\"%s\">%s</a>", esc(a.URL), esc(a.Title)))
		} else {
			b.WriteString("• " + esc(a.Title))
		}
		b.WriteString(fmt.Sprintf(" <i>(%s)</i>\n", esc(a.Source)))
	}
	return b.String()
}

// FormatHistory lists recorded digest analyses for a symbol, newest first.
func FormatHistory(symbol string, snaps []recorder.AnalysisSnapshot) string {
	if len(snaps) == 0 {
		return fmt.Sprintf("No recorded analyses for %s yet.", esc(symbol))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗂 <b>%s history</b>\n", esc(symbol))
	for _, s := range snaps {
		fmt.Fprintf(&b, "%s %s %s %.2f score %.3f → %s\n",
			s.Time.Format("2006-01-02"), recommendationIcon[s.Recommendation], s.Recommendation,
			s.Price, s.TotalScore, s.RiskLevel)
	}
	return strings.TrimRight(b.String(), "\n")
}
