// Package main prints a one-shot profit and loss report for a day.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/yourusername/boat-better/internal/config"
	"github.com/yourusername/boat-better/internal/ledger"
	"github.com/yourusername/boat-better/internal/models"
)

var (
	configFile string
	reportDate string
)

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&reportDate, "date", "d", "", "Day to report on as YYYYMMDD (default today)")
}

var rootCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the wager ledger's results for one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithDefaults(configFile)
		if err != nil {
			return err
		}

		date := reportDate
		if date == "" {
			date = time.Now().Format(models.DateLayout)
		}
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			return fmt.Errorf("bad date %q, want YYYYMMDD: %w", date, err)
		}

		store, err := ledger.NewSQLiteLedger(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("failed to open ledger at %s: %w", cfg.Ledger.Path, err)
		}
		defer store.Close()

		return printReport(cmd.Context(), store, date)
	},
}

func printReport(ctx context.Context, store ledger.WagerLedger, date string) error {
	finished, err := store.FinishedByDate(ctx, date)
	if err != nil {
		return err
	}
	day, err := store.DayStats(ctx, date)
	if err != nil {
		return err
	}

	fmt.Printf("Results for %s\n\n", date)

	if len(finished) == 0 {
		fmt.Println("No settled wagers.")
	} else {
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Race", "Market", "Combo", "Result", "Stake", "Payout", "Profit")
		for _, w := range finished {
			result := "miss"
			if w.IsWin() {
				result = "HIT"
			}
			settled := "?"
			if w.SettledCombo != nil {
				settled = w.SettledCombo.String()
			}
			table.Append(
				w.Key.String(),
				string(w.Market),
				w.Combo.String()+" / "+settled,
				result,
				w.Stake.StringFixed(0),
				w.Payout.StringFixed(0),
				w.Profit.StringFixed(0),
			)
		}
		table.Render()
	}

	fmt.Printf("\nSettled: %d  Hits: %d  Pending: %d  P/L: %s\n",
		day.Finished, day.Wins, day.Pending, day.Profit.StringFixed(0))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
