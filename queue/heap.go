package queue

import "github.com/mues-io/muesd/event"

// eventHeap is a container/heap.Interface over pending events, ordered by
// event.Less: lowest priority value first, then earliest creation time,
// then construction order.
type eventHeap []*event.Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return event.Less(h[i], h[j]) }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)         { *h = append(*h, x.(*event.Event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
