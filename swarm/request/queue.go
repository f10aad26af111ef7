package request

import "container/heap"

// Queue pops open requests in global order. Requests that are assigned or
// completed are skipped on Push.
type Queue struct {
	h queueHeap
}

// NewQueue creates an empty queue ordered with rank.
func NewQueue(rank Rank) *Queue {
	return &Queue{h: queueHeap{rank: rank}}
}

// Push adds every open request of reqs.
func (q *Queue) Push(reqs ...*Request) {
	for _, r := range reqs {
		if r.Open() {
			heap.Push(&q.h, r)
		}
	}
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	return q.h.Len()
}

// Pop removes and returns the most urgent request.
func (q *Queue) Pop() (*Request, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*Request), true
}

type queueHeap struct {
	rank  Rank
	items []*Request
}

func (h queueHeap) Len() int           { return len(h.items) }
func (h queueHeap) Less(i, j int) bool { return Less(h.items[i], h.items[j], h.rank) }
func (h queueHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *queueHeap) Push(x any) {
	h.items = append(h.items, x.(*Request))
}

func (h *queueHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}
