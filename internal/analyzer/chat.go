package analyzer

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"StockPulse/internal/currency"
	"StockPulse/internal/model"
)

// ChatTurn is one prior message in a conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const chatHistoryLimit = 5

var blankLines = regexp.MustCompile(`\n{3,}`)

// Chat answers a free-form question about d. It uses the remote model when
// configured and the keyword responder otherwise or on any remote failure.
func (a *Analyzer) Chat(ctx context.Context, message string, d *model.QuoteDetail, history ...ChatTurn) (string, Origin) {
	if d == nil {
		return "Pick a stock first and I can walk you through its analysis, price targets and risk profile.", OriginHeuristic
	}
	if a.chat == nil {
		return LocalReply(message, d), OriginHeuristic
	}

	prompt := a.chatPrompt(d, message, history, a.marketContext(ctx, d.Symbol))
	text, err := a.chat.Complete(ctx, systemPrompt, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		a.logger.Warn().Str("symbol", d.Symbol).Err(err).Msg("Remote chat failed, using local responder")
		return LocalReply(message, d), OriginHeuristic
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n")), OriginRemote
}

func (a *Analyzer) chatPrompt(d *model.QuoteDetail, message string, history []ChatTurn, marketContext string) string {
	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}
	turns := make([]string, 0, len(history))
	for _, h := range history {
		turns = append(turns, h.Role+": "+h.Content)
	}
	an := Evaluate(d).Analysis
	cur := currency.ForCountry(d.Country)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior equity research analyst providing expert insights about %s (%s) on %s.\n\n", d.Symbol, d.Name, a.now().Format("2006-01-02"))
	b.WriteString("REAL-TIME STOCK DATA:\n")
	fmt.Fprintf(&b, "- Current Price: %s (%+.2f%%)\n", money(d.Price, cur), d.ChangePercent)
	fmt.Fprintf(&b, "- Daily Range: %s - %s\n", money(d.Low, cur), money(d.High, cur))
	fmt.Fprintf(&b, "- Volume: %d shares\n", d.Volume)
	fmt.Fprintf(&b, "- Market Cap: %s\n", formatCap(d.MarketCap))
	fmt.Fprintf(&b, "- Sector: %s\n\n", d.Sector)
	b.WriteString("CURRENT ANALYSIS:\n")
	fmt.Fprintf(&b, "- Recommendation: %s\n- Risk Level: %s\n- Target Price: %s\n- Est. Return: %.1f%%\n\n",
		an.Recommendation, an.RiskLevel, money(an.TargetPrice, cur), an.EstimatedReturn)
	b.WriteString("MARKET INTELLIGENCE:\n" + marketContext + "\n\n")
	b.WriteString("CONVERSATION HISTORY:\n" + strings.Join(turns, "\n") + "\n\n")
	b.WriteString("USER QUESTION: " + message + "\n\n")
	b.WriteString(`Provide a professional, data-driven response that:
1. Uses specific numbers and current market data
2. Offers actionable insights based on technical and fundamental analysis
3. Includes appropriate risk disclaimers for investment advice
4. Maintains a conversational yet authoritative tone
5. Keeps response under 250 words for clarity`)
	return b.String()
}

func money(v float64, cur string) string {
	amount := fmt.Sprintf("%.*f", int(currency.Decimals(cur)), v)
	if cur == "USD" {
		return "$" + amount
	}
	return amount + " " + cur
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// LocalReply is the keyword responder used without a remote model.
func LocalReply(message string, d *model.QuoteDetail) string {
	msg := strings.ToLower(message)
	ev := Evaluate(d)
	an := ev.Analysis
	tech := ev.Factor("technical").RawScore
	cur := currency.ForCountry(d.Country)

	momentum := "Negative"
	if d.ChangePercent > 0 {
		momentum = "Positive"
	}
	volumeNote := "Normal"
	if d.Volume > 10_000_000 {
		volumeNote = "Above average"
	}
	move := math.Abs(d.ChangePercent)
	rangePct := rangePosition(d) * 100
	spread := dailyRange(d) * 100

	var b strings.Builder
	switch {
	case containsAny(msg, "analysis", "analyze"):
		fmt.Fprintf(&b, "**%s Comprehensive Analysis:**\n\n", d.Symbol)
		fmt.Fprintf(&b, "Current Status: %s (%+.2f%%)\n", money(d.Price, cur), d.ChangePercent)
		fmt.Fprintf(&b, "Technical Strength: %.0f/100\n", tech*100)
		fmt.Fprintf(&b, "Recommendation: %s\nRisk Profile: %s\n\n", an.Recommendation, an.RiskLevel)
		b.WriteString("**Key Metrics**:\n")
		fmt.Fprintf(&b, "- Trading at %.0f%% of daily range\n", rangePct)
		fmt.Fprintf(&b, "- Volume: %.1fM (%s)\n", float64(d.Volume)/1e6, volumeNote)
		fmt.Fprintf(&b, "- %s momentum with %.2f%% move\n\n", momentum, move)
		fmt.Fprintf(&b, "**12-Month Outlook**: %s target (%+.1f%% potential)", money(an.TargetPrice, cur), an.EstimatedReturn)

	case containsAny(msg, "buy", "sell", "invest", "purchase"):
		fmt.Fprintf(&b, "**Investment Perspective on %s:**\n\n", d.Symbol)
		fmt.Fprintf(&b, "Current Signal: %s\n\n", an.Recommendation)
		b.WriteString("**Investment Case**:\n")
		fmt.Fprintf(&b, "- Price Action: %s momentum (%.2f%%)\n", momentum, d.ChangePercent)
		fmt.Fprintf(&b, "- Technical Score: %.0f/100\n", tech*100)
		fmt.Fprintf(&b, "- Risk Level: %s\n", an.RiskLevel)
		fmt.Fprintf(&b, "- Price Target: %s\n\n", money(an.TargetPrice, cur))
		fmt.Fprintf(&b, "**Key Considerations**:\n%s\n\n", an.Reasoning)
		b.WriteString("This analysis is for educational purposes. Consider your risk tolerance and investment timeline before making investment decisions.")

	case containsAny(msg, "price", "target", "forecast"):
		fmt.Fprintf(&b, "**%s Price Analysis:**\n\n", d.Symbol)
		fmt.Fprintf(&b, "Current: %s\nDaily Range: %s - %s\n12M Target: %s\nPotential: %+.1f%%\n\n",
			money(d.Price, cur), money(d.Low, cur), money(d.High, cur), money(an.TargetPrice, cur), an.EstimatedReturn)
		verb := "Lost"
		if d.ChangePercent >= 0 {
			verb = "Gained"
		}
		fmt.Fprintf(&b, "- Currently %.0f%% through today's range\n", rangePct)
		fmt.Fprintf(&b, "- %s %.2f%% from previous close (%s)\n", verb, move, money(d.PreviousClose, cur))
		fmt.Fprintf(&b, "- Volume: %.1fM shares\n\n", float64(d.Volume)/1e6)
		b.WriteString("Price targets are estimates and actual results may vary significantly.")

	case containsAny(msg, "risk", "danger", "safe"):
		fmt.Fprintf(&b, "**Risk Assessment for %s:**\n\n", d.Symbol)
		fmt.Fprintf(&b, "Risk Level: %s\nVolatility: %.2f%% daily move\n\n", an.RiskLevel, move)
		b.WriteString("**Risk Factors**:\n")
		switch an.RiskLevel {
		case model.RiskHigh:
			fmt.Fprintf(&b, "- High volatility (%.2f%% move today)\n- Significant price swings possible\n- Consider smaller position sizes\n- Use stop-loss orders\n", move)
		case model.RiskMedium:
			b.WriteString("- Moderate volatility within normal ranges\n- Standard market correlation risks\n- Suitable for balanced portfolios\n- Monitor sector trends\n")
		default:
			b.WriteString("- Low volatility suggests stability\n- Predictable price patterns\n- Lower downside risk profile\n- Suitable for conservative investors\n")
		}
		fmt.Fprintf(&b, "\n**Risk Metrics**:\n- Daily range: %.1f%%\n- Volume activity: %s\n- Sector: %s dynamics\n\n", spread, volumeNote, d.Sector)
		b.WriteString("Always diversify investments and never invest more than you can afford to lose.")

	default:
		fmt.Fprintf(&b, "**%s Market Update:**\n\n", d.Symbol)
		fmt.Fprintf(&b, "Price: %s (%+.2f%%)\nTrend: %s with %.2f%% move\nSignal: %s\nRisk: %s\n\n",
			money(d.Price, cur), d.ChangePercent, momentum, move, an.Recommendation, an.RiskLevel)
		fmt.Fprintf(&b, "**Market Snapshot**:\n- Range: %s - %s (%.1f%% spread)\n- Volume: %.1fM shares\n- Target: %s (%+.1f%%)\n\n",
			money(d.Low, cur), money(d.High, cur), spread, float64(d.Volume)/1e6, money(an.TargetPrice, cur), an.EstimatedReturn)
		fmt.Fprintf(&b, "Ask me about analysis, investment advice, risk assessment or price targets for %s.", d.Symbol)
	}
	return b.String()
}
