package scheduler

import "container/heap"

// eventHeap is a min-heap of events ordered by TriggerAt.
type eventHeap []event

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].TriggerAt.Before(h[j].TriggerAt) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func heapPush(h *eventHeap, e event) {
	heap.Push(h, e)
}

func heapPop(h *eventHeap) event {
	return heap.Pop(h).(event)
}

// heapRemove drops the events of tag accepted by match (all of them when
// match is nil) and returns how many were removed.
func heapRemove(h *eventHeap, tag string, match func(event) bool) int {
	kept := (*h)[:0]
	removed := 0
	for _, e := range *h {
		if e.Tag == tag && (match == nil || match(e)) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	*h = kept
	if removed > 0 {
		heap.Init(h)
	}
	return removed
}

func isDeferred(e event) bool { return e.Deferred }
