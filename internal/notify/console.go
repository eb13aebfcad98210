package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/yourusername/boat-better/internal/ledger"
	"github.com/yourusername/boat-better/internal/models"
)

// Console prints events to a writer, as a line per event plus a table
// for periodic reports.
type Console struct {
	out io.Writer
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) NotifyAdmissions(_ context.Context, key models.RaceKey, wagers []models.WagerRecord) error {
	now := time.Now().Format("15:04:05")
	for _, w := range wagers {
		fmt.Fprintf(c.out, "[%s] admitted %s %s %s p=%.3f odds=%.1f ev=%.2f\n",
			now, key, w.Market, w.Combo, w.Probability, w.Price, w.ExpectedValue)
	}
	return nil
}

func (c *Console) NotifySettlement(_ context.Context, wager models.WagerRecord, day ledger.DayStats) error {
	outcome := "miss"
	if wager.IsWin() {
		outcome = "HIT"
	}
	fmt.Fprintf(c.out, "[%s] settled %s %s %s %s profit=%s (day %d/%d, P/L %s)\n",
		time.Now().Format("15:04:05"), wager.Key, wager.Market, wager.Combo, outcome,
		wager.Profit.StringFixed(0), day.Wins, day.Finished, day.Profit.StringFixed(0))
	return nil
}

func (c *Console) NotifyReport(_ context.Context, report Report) error {
	fmt.Fprintf(c.out, "\nDaily report %s\n", report.Date)

	table := tablewriter.NewWriter(c.out)
	table.Header("Settled", "Hits", "Pending", "P/L")
	table.Append(
		fmt.Sprintf("%d", report.Finished),
		fmt.Sprintf("%d", report.Wins),
		fmt.Sprintf("%d", report.Pending),
		report.Profit,
	)
	table.Render()
	return nil
}
