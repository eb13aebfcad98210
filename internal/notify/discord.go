package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/boat-better/internal/ledger"
	"github.com/yourusername/boat-better/internal/models"
)

// Discord posts messages to a Discord webhook. An empty webhook URL
// disables it entirely, and delivery failures are swallowed after
// logging so an outage never stalls scanning or settlement.
type Discord struct {
	client     *http.Client
	webhookURL string
	logger     *logrus.Logger
}

// NewDiscord creates a Discord webhook notifier.
func NewDiscord(webhookURL string, logger *logrus.Logger) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// NotifyAdmissions posts one message listing the race's admitted wagers.
func (d *Discord) NotifyAdmissions(ctx context.Context, key models.RaceKey, wagers []models.WagerRecord) error {
	if len(wagers) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎯 Wagers admitted: %s\n", key)
	for _, w := range wagers {
		fmt.Fprintf(&sb, "  %s %s  p=%.3f  odds=%.1f  EV=%.2f  stake=%s\n",
			w.Market, w.Combo, w.Probability, w.Price, w.ExpectedValue, w.Stake.StringFixed(0))
	}
	d.post(ctx, sb.String())
	return nil
}

// NotifySettlement posts the outcome of one settled wager.
func (d *Discord) NotifySettlement(ctx context.Context, wager models.WagerRecord, day ledger.DayStats) error {
	outcome := "❌ MISS"
	if wager.IsWin() {
		outcome = "🎉 HIT"
	}
	settled := "?"
	if wager.SettledCombo != nil {
		settled = wager.SettledCombo.String()
	}

	msg := fmt.Sprintf("%s %s %s %s (result %s)\npayout=%s profit=%s\n📊 today: %d/%d hits, P/L %s (%d pending)",
		outcome, wager.Key, wager.Market, wager.Combo, settled,
		wager.Payout.StringFixed(0), wager.Profit.StringFixed(0),
		day.Wins, day.Finished, day.Profit.StringFixed(0), day.Pending)
	d.post(ctx, msg)
	return nil
}

// NotifyReport posts a periodic daily summary.
func (d *Discord) NotifyReport(ctx context.Context, report Report) error {
	msg := fmt.Sprintf("📊 Daily report %s\nsettled: %d, hits: %d, pending: %d\nP/L: %s",
		report.Date, report.Finished, report.Wins, report.Pending, report.Profit)
	d.post(ctx, msg)
	return nil
}

func (d *Discord) post(ctx context.Context, content string) {
	if d.webhookURL == "" {
		return
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		d.logger.WithError(err).Warn("Failed to encode Discord payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		d.logger.WithError(err).Warn("Failed to build Discord request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.WithError(err).Warn("Discord notification failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		d.logger.WithField("status", resp.StatusCode).Warn("Discord webhook rejected message")
	}
}
