package network

import "fmt"

type hop struct {
	id    int64
	depth int
}

// Neighborhood returns the distinct users reachable from id within degree
// hops, excluding id itself, in breadth-first discovery order.
func (n *Network) Neighborhood(id int64, degree int) []int64 {
	if degree <= 0 {
		return nil
	}
	origin, ok := n.users[id]
	if !ok || len(origin.friends) == 0 {
		return nil
	}

	visited := map[int64]struct{}{id: {}}
	queue := []hop{{id: id, depth: 0}}
	var result []int64

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth == degree {
			continue
		}

		u, ok := n.users[cur.id]
		if !ok {
			panic(fmt.Sprintf("network: user %d reached through a friendship is not registered", cur.id))
		}
		for friend := range u.friends {
			if _, seen := visited[friend]; seen {
				continue
			}
			visited[friend] = struct{}{}
			result = append(result, friend)
			queue = append(queue, hop{id: friend, depth: cur.depth + 1})
		}
	}
	return result
}
