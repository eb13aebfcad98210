package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/yourusername/boat-better/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS wagers (
    wager_id       TEXT NOT NULL,
    race_date      TEXT NOT NULL,
    venue_id       INTEGER NOT NULL,
    race_number    INTEGER NOT NULL,
    market_type    TEXT NOT NULL,
    combo          TEXT NOT NULL,
    probability    REAL NOT NULL,
    price          REAL NOT NULL,
    expected_value REAL NOT NULL,
    stake          TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'PENDING',
    settled_combo  TEXT,
    payout         TEXT NOT NULL DEFAULT '0',
    profit         TEXT NOT NULL DEFAULT '0',
    created_at     DATETIME NOT NULL,
    settled_at     DATETIME,
    PRIMARY KEY (race_date, venue_id, race_number, combo, market_type)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_wagers_id     ON wagers(wager_id);
CREATE INDEX        IF NOT EXISTS idx_wagers_status ON wagers(status);
CREATE INDEX        IF NOT EXISTS idx_wagers_day    ON wagers(race_date, status);
`

// SQLiteLedger implements WagerLedger on a single-file SQLite database
// (pure Go driver, no CGo). Concurrent admission safety rests on the
// composite primary key, not on locks in this package.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) the ledger database at path and
// applies the schema. Use ":memory:" in tests.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", path, err)
	}
	// SQLite is single-writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: enable WAL: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// TryAdmit inserts the draft with ON CONFLICT DO NOTHING so concurrent
// attempts for the same key resolve inside the store.
func (l *SQLiteLedger) TryAdmit(ctx context.Context, draft *models.WagerRecord) (AdmitResult, error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO wagers
			(wager_id, race_date, venue_id, race_number, market_type, combo,
			 probability, price, expected_value, stake, status, payout, profit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '0', '0', ?)
		ON CONFLICT(race_date, venue_id, race_number, combo, market_type) DO NOTHING`,
		draft.ID, draft.Key.Date, draft.Key.VenueID, draft.Key.RaceNumber,
		string(draft.Market), draft.Combo.String(),
		draft.Probability, draft.Price, draft.ExpectedValue,
		draft.Stake.String(), string(models.WagerStatusPending), draft.CreatedAt.UTC(),
	)
	if err != nil {
		return AlreadyExists, fmt.Errorf("ledger: admit %s: %w", draft.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AlreadyExists, fmt.Errorf("ledger: admit %s: %w", draft.ID, err)
	}
	if n == 0 {
		return AlreadyExists, nil
	}
	return Admitted, nil
}

const selectColumns = `
	wager_id, race_date, venue_id, race_number, market_type, combo,
	probability, price, expected_value, stake, status, settled_combo,
	payout, profit, created_at, settled_at`

func (l *SQLiteLedger) ListPending(ctx context.Context) ([]*models.WagerRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT`+selectColumns+` FROM wagers WHERE status = ? ORDER BY created_at ASC`,
		string(models.WagerStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: query pending: %w", err)
	}
	defer rows.Close()
	return scanWagers(rows)
}

// Settle flips PENDING to FINISHED in one guarded UPDATE; the fallback
// read only runs when the row was no longer PENDING.
func (l *SQLiteLedger) Settle(ctx context.Context, wagerID string, settledCombo models.Combo, payout, profit decimal.Decimal) (SettleResult, error) {
	now := time.Now().UTC()
	res, err := l.db.ExecContext(ctx, `
		UPDATE wagers
		SET status = ?, settled_combo = ?, payout = ?, profit = ?, settled_at = ?
		WHERE wager_id = ? AND status = ?`,
		string(models.WagerStatusFinished), settledCombo.String(),
		payout.String(), profit.String(), now,
		wagerID, string(models.WagerStatusPending),
	)
	if err != nil {
		return AlreadySettled, fmt.Errorf("ledger: settle %s: %w", wagerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AlreadySettled, fmt.Errorf("ledger: settle %s: %w", wagerID, err)
	}
	if n == 1 {
		return Settled, nil
	}

	existing, err := l.Get(ctx, wagerID)
	if err != nil {
		return AlreadySettled, err
	}
	if existing.Status != models.WagerStatusFinished || existing.SettledCombo == nil {
		return AlreadySettled, fmt.Errorf("ledger: settle %s: unexpected status %s", wagerID, existing.Status)
	}
	if *existing.SettledCombo == settledCombo &&
		existing.Payout.Equal(payout) && existing.Profit.Equal(profit) {
		return AlreadySettled, nil
	}
	return AlreadySettled, fmt.Errorf(
		"ledger: settle %s: recorded %s/%s vs new %s/%s: %w",
		wagerID, existing.SettledCombo, existing.Payout, settledCombo, payout,
		models.ErrSettlementConflict,
	)
}

func (l *SQLiteLedger) Get(ctx context.Context, wagerID string) (*models.WagerRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT`+selectColumns+` FROM wagers WHERE wager_id = ?`, wagerID)
	w, err := scanWager(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get %s: %w", wagerID, err)
	}
	return w, nil
}

// DayStats aggregates from the rows themselves rather than maintaining
// counters, so totals cannot drift from the ledger.
func (l *SQLiteLedger) DayStats(ctx context.Context, date string) (DayStats, error) {
	stats := DayStats{Profit: decimal.Zero}

	finished, err := l.FinishedByDate(ctx, date)
	if err != nil {
		return stats, err
	}
	for _, w := range finished {
		stats.Finished++
		if w.IsWin() {
			stats.Wins++
		}
		stats.Profit = stats.Profit.Add(w.Profit)
	}

	err = l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wagers WHERE race_date = ? AND status = ?`,
		date, string(models.WagerStatusPending),
	).Scan(&stats.Pending)
	if err != nil {
		return stats, fmt.Errorf("ledger: day stats %s: %w", date, err)
	}
	return stats, nil
}

func (l *SQLiteLedger) ProfitBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT profit FROM wagers WHERE status = ? AND settled_at >= ? AND settled_at < ?`,
		string(models.WagerStatusFinished), from.UTC(), to.UTC(),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: profit between: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("ledger: profit between: %w", err)
		}
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("ledger: profit between: parse %q: %w", raw, err)
		}
		total = total.Add(p)
	}
	return total, rows.Err()
}

func (l *SQLiteLedger) FinishedByDate(ctx context.Context, date string) ([]*models.WagerRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT`+selectColumns+` FROM wagers WHERE race_date = ? AND status = ? ORDER BY settled_at ASC`,
		date, string(models.WagerStatusFinished),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: query finished %s: %w", date, err)
	}
	defer rows.Close()
	return scanWagers(rows)
}

func (l *SQLiteLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWager(row rowScanner) (*models.WagerRecord, error) {
	var (
		w            models.WagerRecord
		market       string
		comboStr     string
		stakeStr     string
		status       string
		settledCombo sql.NullString
		payoutStr    string
		profitStr    string
		settledAt    sql.NullTime
	)
	err := row.Scan(
		&w.ID, &w.Key.Date, &w.Key.VenueID, &w.Key.RaceNumber, &market, &comboStr,
		&w.Probability, &w.Price, &w.ExpectedValue, &stakeStr, &status, &settledCombo,
		&payoutStr, &profitStr, &w.CreatedAt, &settledAt,
	)
	if err != nil {
		return nil, err
	}

	w.Market = models.MarketType(market)
	w.Status = models.WagerStatus(status)
	if w.Combo, err = models.ParseCombo(comboStr); err != nil {
		return nil, err
	}
	if w.Stake, err = decimal.NewFromString(stakeStr); err != nil {
		return nil, fmt.Errorf("stake %q: %w", stakeStr, err)
	}
	if w.Payout, err = decimal.NewFromString(payoutStr); err != nil {
		return nil, fmt.Errorf("payout %q: %w", payoutStr, err)
	}
	if w.Profit, err = decimal.NewFromString(profitStr); err != nil {
		return nil, fmt.Errorf("profit %q: %w", profitStr, err)
	}
	if settledCombo.Valid {
		c, err := models.ParseCombo(settledCombo.String)
		if err != nil {
			return nil, err
		}
		w.SettledCombo = &c
	}
	if settledAt.Valid {
		t := settledAt.Time
		w.SettledAt = &t
	}
	return &w, nil
}

func scanWagers(rows *sql.Rows) ([]*models.WagerRecord, error) {
	var out []*models.WagerRecord
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan wager: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
