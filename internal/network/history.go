package network

import (
	"container/heap"
	"slices"
)

// RecentPurchases returns up to limit records across the given users that
// compare greatest by (timestamp, rank, amount), most recent first. Stored
// histories are not modified.
func (n *Network) RecentPurchases(ids []int64, limit int) []PurchaseRecord {
	if limit <= 0 {
		return nil
	}

	h := make(recordHeap, 0, limit)
	for _, id := range ids {
		u, ok := n.users[id]
		if !ok {
			continue
		}
		for _, rec := range u.purchases {
			if len(h) < limit {
				heap.Push(&h, rec)
				continue
			}
			if h[0].Less(rec) {
				h[0] = rec
				heap.Fix(&h, 0)
			}
		}
	}

	out := []PurchaseRecord(h)
	slices.SortFunc(out, func(a, b PurchaseRecord) int {
		switch {
		case b.Less(a):
			return -1
		case a.Less(b):
			return 1
		default:
			return 0
		}
	})
	return out
}

// recordHeap is a min-heap keyed on PurchaseRecord.Less.
type recordHeap []PurchaseRecord

func (h recordHeap) Len() int           { return len(h) }
func (h recordHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h recordHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *recordHeap) Push(x any) { *h = append(*h, x.(PurchaseRecord)) }

func (h *recordHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	*h = old[:n-1]
	return rec
}
