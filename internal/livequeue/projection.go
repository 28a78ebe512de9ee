// Package livequeue maintains the courier-facing set of ready, unassigned
// parent orders as an incrementally updated projection of the change feed.
package livequeue

import (
	"sort"
	"sync"

	"marketplace-system/internal/domain"
)

// Member reports whether a parent-order row belongs in the live queue.
func Member(r *domain.ParentOrderRecord) bool {
	return r != nil && r.Status == domain.ParentReadyForPickup && r.DeliveryUserID == nil
}

// Projection is a keyed view (id -> row) of the parent orders currently
// visible to unassigned couriers. It holds no state that is not derivable
// from the authoritative store: seed it from a snapshot query, then feed
// it change events in arrival order.
//
// The mutex is for the consumer goroutine vs HTTP readers; Apply itself
// is a single deterministic state step.
type Projection struct {
	mu      sync.Mutex
	entries map[string]domain.ParentOrderRecord
}

func NewProjection() *Projection {
	return &Projection{entries: make(map[string]domain.ParentOrderRecord)}
}

// Seed replaces the whole state with a fresh snapshot. Used at startup
// and after a stream gap; missed deltas are never inferred.
func (p *Projection) Seed(rows []domain.ParentOrderRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]domain.ParentOrderRecord, len(rows))
	for _, r := range rows {
		if Member(&r) {
			p.entries[r.ID] = r
		}
	}
}

// Reset drops all state. The next Seed resynchronizes with the store.
func (p *Projection) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]domain.ParentOrderRecord)
}

// Apply reduces one change event into the projection. Safe against
// duplicate delivery and unknown ids: upsert and remove are idempotent,
// removing an absent id is a no-op.
func (p *Projection) Apply(ev domain.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.EventType {
	case domain.EventInsert:
		if Member(ev.New) {
			p.entries[ev.New.ID] = *ev.New
		}
	case domain.EventUpdate:
		if ev.New == nil {
			return
		}
		if Member(ev.New) {
			// covers both "became ready" and an in-place refresh
			p.entries[ev.New.ID] = *ev.New
		} else {
			// assigned to a courier, or status advanced past ready
			delete(p.entries, ev.New.ID)
		}
	case domain.EventDelete:
		if ev.Old != nil {
			delete(p.entries, ev.Old.ID)
		} else if ev.New != nil {
			delete(p.entries, ev.New.ID)
		}
	}
}

// Entries returns the queue oldest-ready-first (FIFO fairness for
// couriers), order_number as a stable tiebreak.
func (p *Projection) Entries() []domain.ParentOrderRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ParentOrderRecord, 0, len(p.entries))
	for _, r := range p.entries {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderNumber < out[j].OrderNumber
	})
	return out
}

// Len returns the current queue size.
func (p *Projection) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
