package engine

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

// queueItem is a deferred request plus its ordering and cancellation state.
type queueItem struct {
	req   domain.DeferredRequest
	seq   uint64
	index int

	// unbind detaches the request from the submitting caller's context.
	unbind func() bool
}

// itemHeap orders by due time, then submission sequence.
type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if !h[i].req.DueAt.Equal(h[j].req.DueAt) {
		return h[i].req.DueAt.Before(h[j].req.DueAt)
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// deferredQueue is a mutex-guarded min-heap of deferred requests.
type deferredQueue struct {
	mu    sync.Mutex
	items itemHeap
	byID  map[string]*queueItem
	seq   uint64
}

func newDeferredQueue() *deferredQueue {
	return &deferredQueue{byID: make(map[string]*queueItem)}
}

// push adds req, replacing any queued request with the same ID.
func (q *deferredQueue) push(req domain.DeferredRequest, unbind func() bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if old, ok := q.byID[req.ID]; ok {
		heap.Remove(&q.items, old.index)
		delete(q.byID, req.ID)
	}
	q.seq++
	item := &queueItem{req: req, seq: q.seq, unbind: unbind}
	heap.Push(&q.items, item)
	q.byID[req.ID] = item
}

// remove drops the request with id, reporting whether it was queued.
func (q *deferredQueue) remove(id string) (domain.DeferredRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.byID[id]
	if !ok {
		return domain.DeferredRequest{}, false
	}
	heap.Remove(&q.items, item.index)
	delete(q.byID, id)
	if item.unbind != nil {
		item.unbind()
	}
	return item.req, true
}

// popDue removes and returns every request due at or before now, in
// queue order.
func (q *deferredQueue) popDue(now time.Time) []domain.DeferredRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []domain.DeferredRequest
	for q.items.Len() > 0 && !q.items[0].req.DueAt.After(now) {
		item := heap.Pop(&q.items).(*queueItem)
		delete(q.byID, item.req.ID)
		if item.unbind != nil {
			item.unbind()
		}
		due = append(due, item.req)
	}
	return due
}

// nextDue returns the earliest due time.
func (q *deferredQueue) nextDue() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return time.Time{}, false
	}
	return q.items[0].req.DueAt, true
}

func (q *deferredQueue) contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byID[id]
	return ok
}

func (q *deferredQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// snapshot returns the queued requests in execution order.
func (q *deferredQueue) snapshot() []domain.DeferredRequest {
	q.mu.Lock()
	items := make([]queueItem, len(q.items))
	for i, it := range q.items {
		items[i] = *it
	}
	q.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].req.DueAt.Equal(items[j].req.DueAt) {
			return items[i].req.DueAt.Before(items[j].req.DueAt)
		}
		return items[i].seq < items[j].seq
	})
	out := make([]domain.DeferredRequest, len(items))
	for i, it := range items {
		out[i] = it.req
	}
	return out
}
