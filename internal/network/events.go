package network

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the wire format of purchase timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Event is one of PurchaseEvent, BefriendEvent or UnfriendEvent.
type Event interface {
	eventKind() string
}

// PurchaseEvent records a user spending Amount at Timestamp.
type PurchaseEvent struct {
	UserID    int64
	Timestamp time.Time
	Amount    decimal.Decimal
	// AmountText is the amount as it appeared on the wire, echoed in output.
	AmountText string
	// IDToken is the raw JSON token of the id ("7" or 7), echoed in output.
	IDToken string
}

// BefriendEvent creates the friendship between User1 and User2.
type BefriendEvent struct {
	User1 int64
	User2 int64
}

// UnfriendEvent removes the friendship between User1 and User2.
type UnfriendEvent struct {
	User1 int64
	User2 int64
}

func (PurchaseEvent) eventKind() string { return "purchase" }
func (BefriendEvent) eventKind() string { return "befriend" }
func (UnfriendEvent) eventKind() string { return "unfriend" }

// Kind reports the event_type name of ev, or "" for nil.
func Kind(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventKind()
}

// DisplayAmount returns the amount text to echo in flagged output.
func (p PurchaseEvent) DisplayAmount() string {
	if p.AmountText != "" {
		return p.AmountText
	}
	return p.Amount.String()
}
