package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/igtrader/backtest"
	"github.com/rustyeddy/igtrader/config"
	"github.com/rustyeddy/igtrader/journal"
	"github.com/rustyeddy/igtrader/ledger"
	"github.com/rustyeddy/igtrader/sim"
	"github.com/rustyeddy/igtrader/trader"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the strategy over stored price history",
	Long: `Backtest steps the analysis pipeline over the stored quote history,
one cycle per resolution boundary, against a simulated account. The
pipeline is the same code live trading runs, so a backtest is a dress
rehearsal, not an approximation.

Example:
  igtrader backtest -c trader.yaml --start 2024-01-02 --end 2024-03-01`,
	RunE: runBacktest,
}

var (
	btStart   string
	btEnd     string
	btBalance float64
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btStart, "start", "", "interval start, YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "interval end, YYYY-MM-DD (required)")
	backtestCmd.Flags().Float64VarP(&btBalance, "balance", "b", 0, "override the configured starting balance")
	_ = backtestCmd.MarkFlagRequired("start")
	_ = backtestCmd.MarkFlagRequired("end")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	start, err := time.Parse("2006-01-02", btStart)
	if err != nil {
		return errors.Wrap(err, "parse --start")
	}
	end, err := time.Parse("2006-01-02", btEnd)
	if err != nil {
		return errors.Wrap(err, "parse --end")
	}
	balance := cfg.Account.Balance
	if btBalance > 0 {
		balance = btBalance
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var jnl journal.Journal = journal.NewMemory()
	if cfg.Journal.Path != "" {
		sj, err := journal.NewSQLite(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer sj.Close()
		jnl = sj
	}

	led := ledger.New(ledger.Account{
		ID:       cfg.Account.ID,
		Currency: cfg.Account.Currency,
		Balance:  balance,
	}, cfg.Market.MinDealSize)
	brk := sim.New(led)

	tr, err := trader.New(cfg.TraderMarket(), cfg.TraderStrategy(), brk, st, logger, trader.Options{
		Journal: jnl,
	})
	if err != nil {
		return err
	}

	driver := backtest.New(tr, brk, cfg.Strategy.Resolution, logger).WithJournal(jnl)
	res, err := driver.Run(cmd.Context(), start, end)
	if err != nil {
		return err
	}

	printResult(res, balance)
	return nil
}

func printResult(res *backtest.Result, startBalance float64) {
	fmt.Printf("\nrun %s  %s -> %s  (%d cycles, %d skipped)\n\n",
		res.RunID,
		res.Start.Format("2006-01-02 15:04"),
		res.End.Format("2006-01-02 15:04"),
		res.Cycles, res.Skipped)

	if len(res.Trades) > 0 {
		tbl := tablewriter.NewWriter(os.Stdout)
		tbl.Header("Deal", "Dir", "Size", "Opened", "Closed", "Pips", "PnL", "Cause")
		for _, t := range res.Trades {
			tbl.Append(
				t.DealID,
				t.Direction.String(),
				fmt.Sprintf("%.0f", t.Size),
				t.OpenTime.Format("01-02 15:04"),
				t.CloseTime.Format("01-02 15:04"),
				fmt.Sprintf("%.1f", t.Profit),
				fmt.Sprintf("%.2f", t.ProfitCcy),
				string(t.Cause),
			)
		}
		tbl.Render()
	}

	e := res.Expectancy
	sum := tablewriter.NewWriter(os.Stdout)
	sum.Header("Trades", "Wins", "Losses", "Win rate", "Avg win", "Avg loss", "Pips", "Expectancy", "Balance")
	sum.Append(
		fmt.Sprintf("%d", e.Trades),
		fmt.Sprintf("%d", e.Wins),
		fmt.Sprintf("%d", e.Losses),
		fmt.Sprintf("%.1f%%", e.WinRate*100),
		fmt.Sprintf("%.1f", e.AvgWin),
		fmt.Sprintf("%.1f", e.AvgLoss),
		fmt.Sprintf("%.1f", e.TotalPips),
		fmt.Sprintf("%.3f", e.Expectancy),
		fmt.Sprintf("%.2f (%+.2f)", res.Account.Balance, res.Account.Balance-startBalance),
	)
	sum.Render()
}
