// Package network holds the social purchase network: users, their friendships
// and purchase histories, and the anomaly test run against a user's
// neighborhood.
package network

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Anomaly is a flagged streaming purchase together with the baseline it was
// judged against.
type Anomaly struct {
	Purchase PurchaseEvent
	Stats    Stats
}

// Mean returns the baseline mean rounded to two decimals, ties to even.
func (a Anomaly) Mean() string { return a.Stats.Mean.StringFixedBank(2) }

// StdDev returns the baseline standard deviation rounded to two decimals,
// ties to even.
func (a Anomaly) StdDev() string { return a.Stats.StdDev.StringFixedBank(2) }

// Network owns the user registry. It is not safe for concurrent use.
type Network struct {
	degree      int
	historySize int
	users       map[int64]*user
}

// New constructs an empty network that compares purchases against the last
// historySize purchases made within degree hops.
func New(degree, historySize int) (*Network, error) {
	if degree < 0 || historySize < 0 {
		return nil, fmt.Errorf("%w: D=%d T=%d", ErrInvalidParameters, degree, historySize)
	}
	return &Network{
		degree:      degree,
		historySize: historySize,
		users:       make(map[int64]*user),
	}, nil
}

// Degree is D.
func (n *Network) Degree() int { return n.degree }

// HistorySize is T.
func (n *Network) HistorySize() int { return n.historySize }

// UserCount returns the number of registered users.
func (n *Network) UserCount() int { return len(n.users) }

// ApplyInitial mutates the network with a batch event. No anomaly check runs.
func (n *Network) ApplyInitial(ev Event) error {
	switch e := ev.(type) {
	case PurchaseEvent:
		n.AddPurchase(e.UserID, e.Timestamp, e.Amount)
		return nil
	case BefriendEvent:
		n.AddFriendship(e.User1, e.User2)
		return nil
	case UnfriendEvent:
		return n.RemoveFriendship(e.User1, e.User2)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEventKind, ev)
	}
}

// ApplyStreaming mutates the network with a stream event. Purchases are
// tested against the pre-update neighborhood history before being recorded;
// a non-nil Anomaly is returned when the purchase is flagged.
func (n *Network) ApplyStreaming(ev Event) (*Anomaly, error) {
	switch e := ev.(type) {
	case PurchaseEvent:
		stats, flagged := n.Check(e.UserID, e.Amount)
		n.AddPurchase(e.UserID, e.Timestamp, e.Amount)
		if !flagged {
			return nil, nil
		}
		return &Anomaly{Purchase: e, Stats: stats}, nil
	case BefriendEvent:
		n.AddFriendship(e.User1, e.User2)
		return nil, nil
	case UnfriendEvent:
		return nil, n.RemoveFriendship(e.User1, e.User2)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventKind, ev)
	}
}

// Check evaluates amount against the recent purchases of id's neighborhood
// without mutating anything. The user's own purchases are never included.
func (n *Network) Check(id int64, amount decimal.Decimal) (Stats, bool) {
	recent := n.RecentPurchases(n.Neighborhood(id, n.degree), n.historySize)
	amounts := make([]decimal.Decimal, len(recent))
	for i, rec := range recent {
		amounts[i] = rec.Amount
	}
	return Evaluate(amount, amounts)
}

// AddPurchase appends a purchase to id's history, registering id if needed.
func (n *Network) AddPurchase(id int64, ts time.Time, amount decimal.Decimal) PurchaseRecord {
	return n.getOrCreate(id).purchase(ts, amount)
}

// AddFriendship links id1 and id2, registering either if needed.
func (n *Network) AddFriendship(id1, id2 int64) {
	u1 := n.getOrCreate(id1)
	u2 := n.getOrCreate(id2)
	u1.befriend(id2)
	u2.befriend(id1)
}

// RemoveFriendship unlinks id1 and id2.
func (n *Network) RemoveFriendship(id1, id2 int64) error {
	u1, ok := n.users[id1]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownUser, id1)
	}
	u2, ok := n.users[id2]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownUser, id2)
	}
	if !u1.isFriend(id2) || !u2.isFriend(id1) {
		return fmt.Errorf("%w: %d and %d", ErrNotFriends, id1, id2)
	}
	u1.unfriend(id2)
	u2.unfriend(id1)
	return nil
}

// Friends returns a copy of id's friend ids.
func (n *Network) Friends(id int64) []int64 {
	u, ok := n.users[id]
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(u.friends))
	for f := range u.friends {
		out = append(out, f)
	}
	return out
}

// Purchases returns a copy of id's history in arrival order.
func (n *Network) Purchases(id int64) []PurchaseRecord {
	u, ok := n.users[id]
	if !ok {
		return nil
	}
	return append([]PurchaseRecord(nil), u.purchases...)
}

func (n *Network) getOrCreate(id int64) *user {
	u, ok := n.users[id]
	if !ok {
		u = newUser(id)
		n.users[id] = u
	}
	return u
}
