// Package tradelog is the audit store: decisions, trades, market snapshots and
// daily stats, kept in SQLite or Postgres through gorm.
package tradelog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vadiminshakov/hlpilot/config"
	"github.com/vadiminshakov/hlpilot/internal/domain"
)

// Store persists the audit trail.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite, "":
		if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create database dir")
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.AutoMigrate(&Trade{}, &Decision{}, &MarketSnapshot{}, &DailyStats{}); err != nil {
		return nil, errors.Wrap(err, "migrate database")
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LogDecision stores a model decision with the context it was made on.
func (s *Store) LogDecision(ctx context.Context, mc domain.MarketContext, d domain.TradingDecision, raw string) (uint, error) {
	contextJSON, err := json.Marshal(mc)
	if err != nil {
		return 0, errors.Wrap(err, "marshal context")
	}
	analysisJSON, err := json.Marshal(d)
	if err != nil {
		return 0, errors.Wrap(err, "marshal decision")
	}

	confidence := d.Confidence
	rec := Decision{
		CreatedAt:       time.Now().UTC(),
		ContextJSON:     contextJSON,
		AnalysisJSON:    analysisJSON,
		RawResponse:     raw,
		ConfluenceScore: &confidence,
		Reason:          d.Reasoning,
		Operation:       string(d.Action),
		Coin:            d.Coin,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, errors.Wrap(err, "insert decision")
	}
	return rec.ID, nil
}

// LogTradeOpen stores a new OPEN trade and links the decision that caused it.
func (s *Store) LogTradeOpen(ctx context.Context, t domain.TradeOpen) (uint, error) {
	now := time.Now().UTC()
	rec := Trade{
		CreatedAt:     now,
		TimestampOpen: now,
		Coin:          t.Coin,
		Direction:     string(t.Direction),
		EntryPrice:    t.EntryPrice,
		SLPrice:       nullDecimal(t.StopLoss),
		TPPrice:       nullDecimal(t.TakeProfit),
		Size:          t.Size,
		SizeUSD:       t.SizeUSD,
		Leverage:      t.Leverage,
		Result:        string(domain.TradeResultOpen),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return errors.Wrap(err, "insert trade")
		}
		if t.DecisionID == nil {
			return nil
		}
		return errors.Wrap(tx.Model(&Decision{}).
			Where("id = ?", *t.DecisionID).
			Updates(map[string]any{"trade_id": rec.ID, "was_executed": true}).Error,
			"link decision")
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// LogTradeClose closes an OPEN trade at exitPrice. It returns false when the
// trade does not exist or is already closed.
func (s *Store) LogTradeClose(ctx context.Context, id uint, exitPrice decimal.Decimal, reason domain.ExitReason) (bool, error) {
	closed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Trade
		err := tx.Where("id = ? AND result = ?", id, string(domain.TradeResultOpen)).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "load trade")
		}

		outcome := domain.ComputeClose(domain.PositionSide(rec.Direction), rec.EntryPrice, exitPrice, rec.Leverage, rec.SizeUSD)
		now := time.Now().UTC()
		r := string(reason)

		rec.TimestampClose = &now
		rec.ExitPrice = decimal.NewNullDecimal(exitPrice)
		rec.PnLPct = decimal.NewNullDecimal(outcome.PnLPct)
		rec.PnLUSD = decimal.NewNullDecimal(outcome.PnLUSD)
		rec.Result = string(outcome.Result)
		rec.ExitReason = &r
		if err := tx.Save(&rec).Error; err != nil {
			return errors.Wrap(err, "update trade")
		}

		closed = true
		return upsertDaily(tx, now, outcome)
	})
	return closed, err
}

func upsertDaily(tx *gorm.DB, at time.Time, outcome domain.CloseOutcome) error {
	win, loss := 0, 0
	if outcome.Result == domain.TradeResultWin {
		win = 1
	} else {
		loss = 1
	}
	pnl := outcome.PnLUSD.InexactFloat64()
	rate := float64(win) * 100

	row := DailyStats{
		Date:        time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC),
		TotalTrades: 1,
		Wins:        win,
		Losses:      loss,
		PnLUSD:      pnl,
		WinRate:     &rate,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_trades": gorm.Expr("daily_stats.total_trades + 1"),
			"wins":         gorm.Expr("daily_stats.wins + ?", win),
			"losses":       gorm.Expr("daily_stats.losses + ?", loss),
			"pnl_usd":      gorm.Expr("daily_stats.pnl_usd + ?", pnl),
			"win_rate":     gorm.Expr("(daily_stats.wins + ?) * 100.0 / (daily_stats.total_trades + 1)", win),
		}),
	}).Create(&row).Error
	return errors.Wrap(err, "upsert daily stats")
}

// SaveSnapshot stores the market context of a cycle.
func (s *Store) SaveSnapshot(ctx context.Context, mc domain.MarketContext) error {
	payload, err := json.Marshal(mc)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	rec := MarketSnapshot{
		Timestamp:    mc.Timestamp.UTC(),
		SnapshotJSON: payload,
		FearGreed:    mc.Sentiment.FearGreed.Value,
	}
	if btc, ok := mc.Market("BTC"); ok {
		price := btc.Report.Price
		rec.BTCPrice = &price
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(&rec).Error, "insert snapshot")
}

// OpenTrades returns OPEN trades, oldest first.
func (s *Store) OpenTrades(ctx context.Context) ([]domain.TradeRecord, error) {
	var recs []Trade
	err := s.db.WithContext(ctx).
		Where("result = ?", string(domain.TradeResultOpen)).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, errors.Wrap(err, "load open trades")
	}
	return toRecords(recs), nil
}

// OpenTradeForCoin returns the newest OPEN trade of coin.
func (s *Store) OpenTradeForCoin(ctx context.Context, coin string) (domain.TradeRecord, bool, error) {
	var rec Trade
	err := s.db.WithContext(ctx).
		Where("coin = ? AND result = ?", coin, string(domain.TradeResultOpen)).
		Order("id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.TradeRecord{}, false, nil
	}
	if err != nil {
		return domain.TradeRecord{}, false, errors.Wrap(err, "load open trade")
	}
	return toRecord(rec), true, nil
}

// Stats summarises closed trades.
func (s *Store) Stats(ctx context.Context) (domain.TradeStats, error) {
	var recs []Trade
	err := s.db.WithContext(ctx).
		Where("result <> ?", string(domain.TradeResultOpen)).
		Find(&recs).Error
	if err != nil {
		return domain.TradeStats{}, errors.Wrap(err, "load closed trades")
	}

	stats := domain.TradeStats{TotalTrades: len(recs)}
	if len(recs) == 0 {
		return stats, nil
	}

	total := decimal.Zero
	for _, r := range recs {
		if r.Result == string(domain.TradeResultWin) {
			stats.Wins++
		}
		if r.PnLUSD.Valid {
			total = total.Add(r.PnLUSD.Decimal)
		}
	}
	stats.Losses = stats.TotalTrades - stats.Wins
	stats.WinRate = decimal.NewFromInt(int64(stats.Wins)).
		Div(decimal.NewFromInt(int64(stats.TotalTrades))).
		Mul(decimal.NewFromInt(100)).
		Round(1)
	stats.TotalPnLUSD = total.Round(2)
	return stats, nil
}

// DailyStats returns the aggregate row for the UTC day containing at.
func (s *Store) DailyStats(ctx context.Context, at time.Time) (DailyStats, bool, error) {
	at = at.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)

	var row DailyStats
	err := s.db.WithContext(ctx).Where("date = ?", day).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DailyStats{}, false, nil
	}
	if err != nil {
		return DailyStats{}, false, errors.Wrap(err, "load daily stats")
	}
	return row, true, nil
}

// Decision loads a stored decision by id.
func (s *Store) Decision(ctx context.Context, id uint) (Decision, error) {
	var rec Decision
	err := s.db.WithContext(ctx).First(&rec, id).Error
	return rec, errors.Wrap(err, "load decision")
}

func toRecords(recs []Trade) []domain.TradeRecord {
	out := make([]domain.TradeRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecord(r))
	}
	return out
}

func toRecord(r Trade) domain.TradeRecord {
	rec := domain.TradeRecord{
		ID:         r.ID,
		Coin:       r.Coin,
		Direction:  domain.PositionSide(r.Direction),
		EntryPrice: r.EntryPrice,
		ExitPrice:  decimalPtr(r.ExitPrice),
		StopLoss:   decimalPtr(r.SLPrice),
		TakeProfit: decimalPtr(r.TPPrice),
		Size:       r.Size,
		SizeUSD:    r.SizeUSD,
		Leverage:   r.Leverage,
		PnLUSD:     decimalPtr(r.PnLUSD),
		PnLPct:     decimalPtr(r.PnLPct),
		Result:     domain.TradeResult(r.Result),
		OpenedAt:   r.TimestampOpen,
		ClosedAt:   r.TimestampClose,
	}
	if r.ExitReason != nil {
		reason := domain.ExitReason(*r.ExitReason)
		rec.ExitReason = &reason
	}
	return rec
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
