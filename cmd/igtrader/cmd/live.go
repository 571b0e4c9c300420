package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/igtrader/config"
	"github.com/rustyeddy/igtrader/ig"
	"github.com/rustyeddy/igtrader/journal"
	"github.com/rustyeddy/igtrader/notify"
	"github.com/rustyeddy/igtrader/store"
	"github.com/rustyeddy/igtrader/trader"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Trade the strategy live against IG Markets",
	Long: `Live opens an IG dealing session and runs the analysis pipeline on
every resolution boundary until interrupted.

Credentials come from the environment (or a .env file):
  IG_API_KEY, IG_IDENTIFIER, IG_PASSWORD`,
	RunE: runLive,
}

var liveWarmBars int

func init() {
	rootCmd.AddCommand(liveCmd)
	liveCmd.Flags().IntVar(&liveWarmBars, "warm", 64, "closed bars to preload into the price store")
}

func runLive(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ig.NewClient(ig.Config{
		APIKey:     os.Getenv("IG_API_KEY"),
		Identifier: os.Getenv("IG_IDENTIFIER"),
		Password:   os.Getenv("IG_PASSWORD"),
		AccountID:  cfg.IG.AccountID,
		Demo:       cfg.IG.Demo,
	}, logger)

	sess, err := client.Login(ctx)
	if err != nil {
		return err
	}
	logger.Info("logged in",
		zap.String("account", sess.AccountID),
		zap.Float64("balance", sess.Balance))

	// The venue's instrument details win over whatever the config says.
	mkt, err := client.GetMarket(ctx, cfg.Market.Epic)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	strategy := cfg.TraderStrategy()
	if quotes, err := client.GetPrices(ctx, mkt.Epic, strategy.Resolution, liveWarmBars); err != nil {
		logger.Warn("price warm-up failed", zap.Error(err))
	} else {
		for _, q := range quotes {
			if err := st.UpsertQuote(ctx, q); err != nil {
				return err
			}
		}
		logger.Info("price store warmed", zap.Int("bars", len(quotes)))
	}

	var jnl journal.Journal = journal.NewMemory()
	if cfg.Journal.Path != "" {
		sj, err := journal.NewSQLite(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer sj.Close()
		jnl = sj
	}

	tr, err := trader.New(mkt, strategy, ig.NewBroker(client, mkt, logger), st, logger, trader.Options{
		Journal:  jnl,
		Notifier: notify.NewLog(logger),
		Bars:     client,
		Live:     true,
	})
	if err != nil {
		return err
	}
	return tr.Run(ctx)
}

func openStore(cfg *config.Config) (*store.SQLite, error) {
	return store.NewSQLite(cfg.Store.Path)
}
