package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/igtrader/config"
	"github.com/rustyeddy/igtrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recorded trades",
	Long:  `Journal prints the trades recorded by past backtests and live sessions.`,
	RunE:  runJournal,
}

var journalRun string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().StringVar(&journalRun, "run", "", "only show trades from this run ID")
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Journal.Path == "" {
		return fmt.Errorf("no journal.path configured")
	}
	jnl, err := journal.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer jnl.Close()

	trades, err := jnl.Trades(journalRun)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Println("no trades recorded")
		return nil
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.Header("Run", "Deal", "Epic", "Dir", "Size", "Closed", "Pips", "PnL", "Cause")
	for _, t := range trades {
		tbl.Append(
			t.RunID,
			t.DealID,
			t.Epic,
			t.Direction,
			fmt.Sprintf("%.0f", t.Size),
			t.CloseTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.1f", t.Profit),
			fmt.Sprintf("%.2f", t.ProfitCcy),
			t.Cause,
		)
	}
	tbl.Render()
	return nil
}
