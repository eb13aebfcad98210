package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/boat-better/internal/models"
)

const extractorSourceName = "extractor"

// ExtractorClient consumes the extraction service's structured API. It
// implements SnapshotSource, PriceSource and ResultSource; the HTML
// scraping itself lives in the extraction service, not here.
type ExtractorClient struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	logger     *logrus.Logger
}

// NewExtractorClient creates a client for the extraction service.
func NewExtractorClient(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, logger *logrus.Logger) *ExtractorClient {
	return &ExtractorClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// snapshotPayload mirrors the extraction service's snapshot document.
type snapshotPayload struct {
	Deadline string `json:"deadline"` // "15:04" local, empty if unknown
	Wind     string `json:"wind"`
	Entrants []struct {
		Lane           int     `json:"lane"`
		RacerID        int     `json:"racer_id"`
		WinRate        float64 `json:"win_rate"`
		MotorRate      float64 `json:"motor_rate"`
		ExhibitionTime float64 `json:"exhibition_time"`
		AvgStartTiming float64 `json:"avg_start_timing"`
		FalseStarts    int     `json:"false_starts"`
	} `json:"entrants"`
}

type pricesPayload struct {
	Market string             `json:"market"`
	Odds   map[string]float64 `json:"odds"` // combo -> payout multiplier
}

type settlementPayload struct {
	Results []struct {
		Market string `json:"market"`
		Combo  string `json:"combo"`
		Payout string `json:"payout"` // per 100-unit ticket
	} `json:"results"`
	Settled bool `json:"settled"`
}

// FetchSnapshot retrieves the typed snapshot for one race.
func (c *ExtractorClient) FetchSnapshot(ctx context.Context, key models.RaceKey) (*models.RaceSnapshot, error) {
	url := fmt.Sprintf("%s/v1/races/%s/%02d/%d/snapshot", c.baseURL, key.Date, key.VenueID, key.RaceNumber)

	var payload snapshotPayload
	if err := c.getJSON(ctx, "snapshot", key, url, &payload); err != nil {
		return nil, err
	}

	snap := &models.RaceSnapshot{Key: key}
	if payload.Wind != "" {
		if w, err := strconv.ParseFloat(payload.Wind, 64); err == nil {
			snap.WindSpeed = w
		}
	}
	if payload.Deadline != "" {
		if t, err := parseDeadline(key.Date, payload.Deadline); err == nil {
			snap.Deadline = &t
		} else {
			c.logger.WithField("race", key.String()).WithError(err).Debug("Unparseable deadline in snapshot")
		}
	}
	for _, e := range payload.Entrants {
		snap.Entrants = append(snap.Entrants, models.EntrantFeatures{
			Lane:           e.Lane,
			RacerID:        e.RacerID,
			WinRate:        e.WinRate,
			MotorRate:      e.MotorRate,
			ExhibitionTime: e.ExhibitionTime,
			AvgStartTiming: e.AvgStartTiming,
			FalseStarts:    e.FalseStarts,
		})
	}
	return snap, nil
}

// FetchPrices retrieves the quoted payout multipliers for one market.
func (c *ExtractorClient) FetchPrices(ctx context.Context, key models.RaceKey, market models.MarketType) (map[models.Combo]float64, error) {
	url := fmt.Sprintf("%s/v1/races/%s/%02d/%d/odds?market=%s", c.baseURL, key.Date, key.VenueID, key.RaceNumber, market)

	var payload pricesPayload
	if err := c.getJSON(ctx, "prices", key, url, &payload); err != nil {
		return nil, err
	}

	prices := make(map[models.Combo]float64, len(payload.Odds))
	for comboStr, price := range payload.Odds {
		combo, err := models.ParseCombo(comboStr)
		if err != nil {
			c.logger.WithField("combo", comboStr).Debug("Skipping unparseable combo in odds payload")
			continue
		}
		if price > 0 {
			prices[combo] = price
		}
	}
	return prices, nil
}

// FetchSettlement retrieves the winning combos and payouts for one race.
func (c *ExtractorClient) FetchSettlement(ctx context.Context, key models.RaceKey) (*models.Settlement, error) {
	url := fmt.Sprintf("%s/v1/races/%s/%02d/%d/result", c.baseURL, key.Date, key.VenueID, key.RaceNumber)

	var payload settlementPayload
	if err := c.getJSON(ctx, "settlement", key, url, &payload); err != nil {
		return nil, err
	}
	if !payload.Settled {
		return nil, NewSourceError(extractorSourceName, "settlement", key, ErrNotYetSettled)
	}

	settlement := &models.Settlement{
		Key:     key,
		Winning: make(map[models.MarketType]models.Combo),
		Payouts: make(map[models.MarketType]decimal.Decimal),
	}
	for _, r := range payload.Results {
		market := models.MarketType(r.Market)
		combo, err := models.ParseCombo(r.Combo)
		if err != nil {
			return nil, NewSourceError(extractorSourceName, "settlement", key,
				fmt.Errorf("winning combo %q: %w", r.Combo, err))
		}
		payout, err := decimal.NewFromString(r.Payout)
		if err != nil {
			return nil, NewSourceError(extractorSourceName, "settlement", key,
				fmt.Errorf("payout %q: %w", r.Payout, err))
		}
		settlement.Winning[market] = combo
		settlement.Payouts[market] = payout
	}
	return settlement, nil
}

func (c *ExtractorClient) getJSON(ctx context.Context, stage string, key models.RaceKey, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewSourceError(extractorSourceName, stage, key, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return NewSourceError(extractorSourceName, stage, key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return NewSourceError(extractorSourceName, stage, key, ErrNotYetAvailable)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return NewSourceError(extractorSourceName, stage, key,
			fmt.Errorf("%w: status %d: %s", ErrTransient, resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewSourceError(extractorSourceName, stage, key,
			fmt.Errorf("%w: decode: %v", ErrTransient, err))
	}
	return nil
}

// parseDeadline combines the race date with a "15:04" local deadline.
func parseDeadline(date, hhmm string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateLayout+" 15:04", date+" "+hhmm, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
