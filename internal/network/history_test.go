package network

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amountsOf(recs []PurchaseRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Amount.String()
	}
	return out
}

func TestRecentPurchasesMergesAndOrders(t *testing.T) {
	n := newNetwork(t, 1, 3)
	n.AddPurchase(1, ts(t, "2017-06-13 11:00:00"), decimal.NewFromInt(1))
	n.AddPurchase(1, ts(t, "2017-06-13 11:00:03"), decimal.NewFromInt(4))
	n.AddPurchase(2, ts(t, "2017-06-13 11:00:01"), decimal.NewFromInt(2))
	n.AddPurchase(2, ts(t, "2017-06-13 11:00:05"), decimal.NewFromInt(6))
	n.AddPurchase(3, ts(t, "2017-06-13 11:00:04"), decimal.NewFromInt(5))
	n.AddPurchase(3, ts(t, "2017-06-13 11:00:02"), decimal.NewFromInt(3))

	got := n.RecentPurchases([]int64{1, 2, 3}, 3)
	assert.Equal(t, []string{"6", "5", "4"}, amountsOf(got))

	got = n.RecentPurchases([]int64{3, 1}, 10)
	assert.Equal(t, []string{"5", "4", "3", "1"}, amountsOf(got))
}

func TestRecentPurchasesTieBreaks(t *testing.T) {
	n := newNetwork(t, 1, 2)
	same := ts(t, "2017-06-13 11:33:01")
	// rank breaks ties within a user, so the later arrival wins
	n.AddPurchase(1, same, decimal.NewFromInt(90))
	n.AddPurchase(1, same, decimal.NewFromInt(10))
	// across users with equal timestamp and rank, amount decides
	n.AddPurchase(2, same, decimal.NewFromInt(50))

	got := n.RecentPurchases([]int64{1, 2}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"10", "90"}, amountsOf(got))
	assert.Equal(t, 1, got[0].Rank)

	got = n.RecentPurchases([]int64{1, 2}, 3)
	assert.Equal(t, []string{"10", "90", "50"}, amountsOf(got))
}

func TestRecentPurchasesDoesNotMutateHistory(t *testing.T) {
	n := newNetwork(t, 1, 2)
	n.AddPurchase(1, ts(t, "2017-06-13 11:00:02"), decimal.NewFromInt(2))
	n.AddPurchase(1, ts(t, "2017-06-13 11:00:01"), decimal.NewFromInt(1))
	n.AddPurchase(1, ts(t, "2017-06-13 11:00:03"), decimal.NewFromInt(3))
	before := n.Purchases(1)

	_ = n.RecentPurchases([]int64{1}, 2)
	assert.Equal(t, before, n.Purchases(1))
	assert.Equal(t, []string{"2", "1", "3"}, amountsOf(n.Purchases(1)))
}

func TestRecentPurchasesLimits(t *testing.T) {
	n := newNetwork(t, 1, 2)
	n.AddPurchase(1, ts(t, "2017-06-13 11:00:00"), decimal.NewFromInt(1))

	assert.Empty(t, n.RecentPurchases([]int64{1}, 0))
	assert.Empty(t, n.RecentPurchases(nil, 5))
	assert.Empty(t, n.RecentPurchases([]int64{404}, 5))
	assert.Len(t, n.RecentPurchases([]int64{1}, 5), 1)
}
