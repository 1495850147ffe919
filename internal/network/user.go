package network

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRecord is one entry of a user's purchase history.
type PurchaseRecord struct {
	Timestamp time.Time
	// Rank orders purchases sharing the same timestamp, starting at 0.
	Rank   int
	Amount decimal.Decimal
}

// Less orders records by timestamp, then rank, then amount.
func (r PurchaseRecord) Less(o PurchaseRecord) bool {
	if !r.Timestamp.Equal(o.Timestamp) {
		return r.Timestamp.Before(o.Timestamp)
	}
	if r.Rank != o.Rank {
		return r.Rank < o.Rank
	}
	return r.Amount.LessThan(o.Amount)
}

type user struct {
	id        int64
	friends   map[int64]struct{}
	purchases []PurchaseRecord
}

func newUser(id int64) *user {
	return &user{id: id, friends: make(map[int64]struct{})}
}

func (u *user) befriend(id int64) {
	u.friends[id] = struct{}{}
}

func (u *user) unfriend(id int64) bool {
	if _, ok := u.friends[id]; !ok {
		return false
	}
	delete(u.friends, id)
	return true
}

func (u *user) isFriend(id int64) bool {
	_, ok := u.friends[id]
	return ok
}

func (u *user) purchase(ts time.Time, amount decimal.Decimal) PurchaseRecord {
	rank := 0
	if n := len(u.purchases); n > 0 {
		last := u.purchases[n-1]
		if last.Timestamp.Equal(ts) {
			rank = last.Rank + 1
		}
	}
	rec := PurchaseRecord{Timestamp: ts, Rank: rank, Amount: amount}
	u.purchases = append(u.purchases, rec)
	return rec
}
