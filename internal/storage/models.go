package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// FlaggedPurchase is a persisted anomaly.
type FlaggedPurchase struct {
	ID          int64
	UserID      int64
	PurchasedAt time.Time
	Amount      decimal.Decimal
	Mean        decimal.Decimal
	StdDev      decimal.Decimal
	Baseline    int
	Degree      int
	HistorySize int
	CreatedAt   time.Time
}
