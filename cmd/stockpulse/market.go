package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"StockPulse/internal/analyzer"
	"StockPulse/internal/chart"
	"StockPulse/internal/model"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), commandTimeout)
}

func capString(mc *float64) string {
	if mc == nil {
		return "-"
	}
	return humanize.SIWithDigits(*mc, 2, "")
}

func newQuoteCmd(get func() *app, flags *rootFlags) *cobra.Command {
	var country string
	cmd := &cobra.Command{
		Use:     "quote SYMBOL...",
		Short:   "Fetch quotes through the provider chain",
		Example: "  stockpulse quote AAPL MSFT\n  stockpulse quote RELIANCE.BSE --country IN",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			for i := range args {
				args[i] = strings.ToUpper(args[i])
			}
			var quotes []model.Quote
			if len(args) == 1 {
				res, err := a.quotes.FetchQuote(ctx, args[0], country)
				if err != nil {
					return err
				}
				for _, at := range res.Attempts {
					a.logger.Debug().Str("provider", at.Source).Err(at.Err).Msg("Provider skipped")
				}
				quotes = []model.Quote{res.Quote}
			} else {
				var err error
				if quotes, err = a.quotes.FetchBatch(ctx, args, country); err != nil {
					return err
				}
			}

			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), quotes)
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintln(tw, "SYMBOL\tNAME\tPRICE\tCHANGE\t%\tVOLUME\tCAP\tSECTOR")
			for _, q := range quotes {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%+.2f\t%+.2f\t%s\t%s\t%s\n",
					q.Symbol, q.Name, q.Price, q.Change, q.ChangePercent,
					humanize.Comma(q.Volume), capString(q.MarketCap), q.Sector)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&country, "country", "US", "market country code (US IN GB CA AU DE JP)")
	return cmd
}

func newDetailCmd(get func() *app, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "detail SYMBOL",
		Short: "Fetch a quote with session range, description and news",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			d, err := get().quotes.FetchDetail(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), d)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s (%s)\n", d.Symbol, d.Name, d.Sector)
			fmt.Fprintf(w, "Price %.2f  %+.2f (%+.2f%%)\n", d.Price, d.Change, d.ChangePercent)
			fmt.Fprintf(w, "Open %.2f  High %.2f  Low %.2f  Prev %.2f\n", d.Open, d.High, d.Low, d.PreviousClose)
			fmt.Fprintf(w, "Volume %s  Cap %s\n\n", humanize.Comma(d.Volume), capString(d.MarketCap))
			if d.Description != "" {
				fmt.Fprintln(w, d.Description)
			}
			printArticles(w, d.News)
			return nil
		},
	}
}

func newChartCmd(get func() *app, flags *rootFlags) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "chart SYMBOL",
		Short: "Fetch a price series for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			res, err := get().charts.Fetch(ctx, strings.ToUpper(args[0]), chart.Period(strings.ToUpper(period)))
			if err != nil {
				return err
			}
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintf(tw, "TIME\tPRICE (%s via %s)\n", res.Currency, res.Provider)
			for i, v := range res.Values {
				fmt.Fprintf(tw, "%s\t%.2f\n", res.Labels[i], v)
			}
			if st := res.Stats; st != nil {
				fmt.Fprintf(tw, "\nHIGH/LOW\t%.2f / %.2f\n", st.High, st.Low)
				fmt.Fprintf(tw, "CHANGE\t%+.2f%%\n", st.Change)
				fmt.Fprintf(tw, "RSI(14)\t%.1f\n", st.RSI14)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", string(chart.Period1D), "1H, 1D, 1W, 1M, 6M or 1Y")
	return cmd
}

type analysisOutput struct {
	Symbol   string              `json:"symbol"`
	Analysis model.Analysis      `json:"analysis"`
	Origin   analyzer.Origin     `json:"origin"`
	Factors  []model.FactorScore `json:"factors"`
}

func newAnalyzeCmd(get func() *app, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Score a symbol and recommend BUY, HOLD or SELL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			d, err := a.quotes.FetchDetail(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			an, origin := a.analyst.Analyze(ctx, d)
			out := analysisOutput{Symbol: d.Symbol, Analysis: an, Origin: origin, Factors: analyzer.Evaluate(d).Factors}
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s  risk %s  target %.2f (%+.2f%%)  [%s]\n\n",
				d.Symbol, an.Recommendation, an.RiskLevel, an.TargetPrice, an.EstimatedReturn, origin)
			tw := table(w)
			fmt.Fprintln(tw, "FACTOR\tSCORE\tWEIGHT\tWEIGHTED\tNOTE")
			for _, f := range out.Factors {
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.3f\t%s\n", f.Name, f.RawScore, f.Weight, f.Weighted, f.Commentary)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(w, "\n%s\n%s\n", an.Summary, an.Reasoning)
			return nil
		},
	}
}

func newNewsCmd(get func() *app, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "news [SYMBOL]",
		Short: "Show market news, or news for one symbol",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			var arts []model.NewsArticle
			if len(args) == 0 {
				arts, _ = a.news.Market(ctx)
			} else {
				arts, _ = a.news.Symbol(ctx, strings.ToUpper(args[0]))
			}
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), arts)
			}
			printArticles(cmd.OutOrStdout(), arts)
			return nil
		},
	}
}

func printArticles(w io.Writer, arts []model.NewsArticle) {
	for _, art := range arts {
		fmt.Fprintf(w, "• %s\n  %s, %s\n", art.Title, art.Source, humanize.Time(art.PublishedAt))
		if art.URL != "" {
			fmt.Fprintf(w, "  %s\n", art.URL)
		}
	}
}

func newSearchCmd(get func() *app, flags *rootFlags) *cobra.Command {
	var country string
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Find tickers by name or symbol",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			quotes := get().quotes.Search(ctx, strings.Join(args, " "), country)
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), quotes)
			}
			if len(quotes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintln(tw, "SYMBOL\tNAME\tPRICE\t%")
			for _, q := range quotes {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%+.2f\n", q.Symbol, q.Name, q.Price, q.ChangePercent)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&country, "country", "US", "market country code")
	return cmd
}
