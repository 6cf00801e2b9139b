package tradelog

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Trade is one position from entry to exit.
type Trade struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	TimestampOpen  time.Time `gorm:"not null;index"`
	TimestampClose *time.Time

	Coin      string `gorm:"size:10;not null;index"`
	Direction string `gorm:"size:5;not null"`

	EntryPrice decimal.Decimal     `gorm:"type:decimal(24,8);not null"`
	ExitPrice  decimal.NullDecimal `gorm:"type:decimal(24,8)"`
	SLPrice    decimal.NullDecimal `gorm:"type:decimal(24,8)"`
	TPPrice    decimal.NullDecimal `gorm:"type:decimal(24,8)"`

	Size     decimal.Decimal `gorm:"type:decimal(24,8);not null"`
	SizeUSD  decimal.Decimal `gorm:"type:decimal(24,8)"`
	Leverage int             `gorm:"default:1"`

	PnLUSD     decimal.NullDecimal `gorm:"column:pnl_usd;type:decimal(24,8)"`
	PnLPct     decimal.NullDecimal `gorm:"column:pnl_pct;type:decimal(24,8)"`
	FeesPaid   decimal.Decimal     `gorm:"type:decimal(24,8);default:0"`
	Result     string              `gorm:"size:10;index;default:OPEN"`
	ExitReason *string             `gorm:"size:12"`
}

// Decision is one model response together with the context it was given.
type Decision struct {
	ID              uint           `gorm:"primaryKey"`
	TradeID         *uint          `gorm:"index"`
	CreatedAt       time.Time      `gorm:"index"`
	ContextJSON     datatypes.JSON `gorm:"not null"`
	AnalysisJSON    datatypes.JSON
	RawResponse     string `gorm:"type:text"`
	ConfluenceScore *float64
	Reason          string `gorm:"type:text"`
	Operation       string `gorm:"size:10"`
	Coin            string `gorm:"size:10"`
	WasExecuted     bool   `gorm:"default:false"`
}

// MarketSnapshot stores the full market context of a cycle.
type MarketSnapshot struct {
	ID           uint           `gorm:"primaryKey"`
	Timestamp    time.Time      `gorm:"index"`
	SnapshotJSON datatypes.JSON `gorm:"not null"`
	BTCPrice     *float64       `gorm:"column:btc_price"`
	FearGreed    *int
}

// DailyStats aggregates closes per UTC day.
type DailyStats struct {
	ID          uint      `gorm:"primaryKey"`
	Date        time.Time `gorm:"not null;uniqueIndex"`
	TotalTrades int       `gorm:"default:0"`
	Wins        int       `gorm:"default:0"`
	Losses      int       `gorm:"default:0"`
	PnLUSD      float64   `gorm:"column:pnl_usd;default:0"`
	WinRate     *float64
	MaxDrawdown float64 `gorm:"default:0"`
}
