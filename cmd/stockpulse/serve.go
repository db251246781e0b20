package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/banner"

	"StockPulse/internal/api"
	"StockPulse/internal/brokerage"
	"StockPulse/internal/httpx"
	"StockPulse/internal/notifier"
	"StockPulse/internal/portfolio"
	"StockPulse/internal/recorder"
	"StockPulse/internal/scheduler"
)

// telegramTimeout must exceed the 30s getUpdates long poll.
const telegramTimeout = 40 * time.Second

func newServeCmd(get func() *app) *cobra.Command {
	var digestNow bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduled jobs and Telegram commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if os.Getenv("RUN_ON_START") == "true" {
				digestNow = true
			}
			return runServe(cmd.Context(), get(), digestNow)
		},
	}
	cmd.Flags().BoolVar(&digestNow, "digest-now", false, "send the market digest once at startup")
	return cmd
}

func runServe(ctx context.Context, a *app, digestNow bool) error {
	cfg, log := a.cfg, a.logger
	banner.PrintSimple("StockPulse", version)

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("Close store")
		}
	}()
	log.Info().Str("driver", cfg.Store.Driver).Msg("Store opened")

	pf := portfolio.NewService(st, a.quotes, portfolio.WithLogger(log))

	delays := brokerage.Delays{}
	if cfg.Brokerage.SimulateLatency {
		delays = brokerage.DefaultDelays
	}
	broker := brokerage.New(a.quotes, brokerage.WithLogger(log), brokerage.WithDelays(delays))

	srv := api.New(api.Deps{
		Quotes:    a.quotes,
		Charts:    a.charts,
		Analyst:   a.analyst,
		News:      a.news,
		Users:     st,
		Portfolio: pf,
		Brokerage: broker,
	}, api.WithLogger(log), api.WithCORSOrigins(cfg.Server.CORSOrigins...))

	deps := scheduler.Deps{
		Quotes:    a.quotes,
		Analyst:   a.analyst,
		News:      a.news,
		Portfolio: pf,
	}
	if cfg.History.Path != "" {
		rec, err := recorder.NewSQLiteRecorder(cfg.History.Path, log)
		if err != nil {
			return err
		}
		defer rec.Close()
		deps.Recorder = rec
	}
	var tg *notifier.Telegram
	if cfg.TelegramEnabled() {
		tg = notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			notifier.WithHTTPClient(httpx.New(telegramTimeout, cfg.Proxy)),
			notifier.WithLogger(log),
		)
		deps.Sender = tg
	} else {
		log.Info().Msg("Telegram not configured, digests are logged only")
	}

	sched := scheduler.New(ctx, deps,
		scheduler.WithLogger(log),
		scheduler.WithDigestSymbols(cfg.Schedule.DigestSymbols...),
		scheduler.WithRefreshUsers(cfg.Schedule.RefreshUsers...),
	)
	if err := sched.RegisterAll(cfg.Schedule.DigestCron, cfg.Schedule.RefreshCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tg != nil {
		go tg.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("Telegram polling started")
	}
	if digestNow {
		go sched.RunDigestNow()
	}

	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
