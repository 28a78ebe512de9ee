package livequeue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-system/internal/domain"
)

func ready(id, number string, createdAt time.Time) domain.ParentOrderRecord {
	return domain.ParentOrderRecord{
		ID:          id,
		OrderNumber: number,
		Status:      domain.ParentReadyForPickup,
		CreatedAt:   createdAt,
	}
}

func assigned(r domain.ParentOrderRecord, courier string) domain.ParentOrderRecord {
	r.DeliveryUserID = &courier
	return r
}

func TestProjection_InsertAndDuplicate(t *testing.T) {
	p := NewProjection()
	a := ready("a", "ORD_20260829_001", time.Now())

	p.Apply(domain.ChangeEvent{EventType: domain.EventInsert, New: &a})
	assert.Equal(t, 1, p.Len())

	// duplicate delivery of the same INSERT must not grow the set
	p.Apply(domain.ChangeEvent{EventType: domain.EventInsert, New: &a})
	assert.Equal(t, 1, p.Len())
}

func TestProjection_InsertNotReadyIgnored(t *testing.T) {
	p := NewProjection()
	a := ready("a", "ORD_20260829_001", time.Now())
	a.Status = domain.ParentProcessing

	p.Apply(domain.ChangeEvent{EventType: domain.EventInsert, New: &a})
	assert.Equal(t, 0, p.Len())

	b := assigned(ready("b", "ORD_20260829_002", time.Now()), "courier123")
	p.Apply(domain.ChangeEvent{EventType: domain.EventInsert, New: &b})
	assert.Equal(t, 0, p.Len())
}

func TestProjection_ClaimRemoves(t *testing.T) {
	p := NewProjection()
	a := ready("a", "ORD_20260829_001", time.Now())
	p.Seed([]domain.ParentOrderRecord{a})
	require.Equal(t, 1, p.Len())

	claimed := assigned(a, "courier123")
	p.Apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &claimed, Old: &a})
	assert.Equal(t, 0, p.Len())
}

func TestProjection_UpdateUpsertsAndRefreshes(t *testing.T) {
	p := NewProjection()
	a := ready("a", "ORD_20260829_001", time.Now())

	// became ready: upsert even though no INSERT was ever seen
	p.Apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &a})
	require.Equal(t, 1, p.Len())

	// in-place refresh replaces the stored row
	refreshed := a
	refreshed.Total = 42.50
	p.Apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &refreshed})
	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 42.50, entries[0].Total)

	// advanced past ready: removed
	done := a
	done.Status = domain.ParentOutForDelivery
	p.Apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &done})
	assert.Equal(t, 0, p.Len())
}

func TestProjection_UnknownIDsAreNoops(t *testing.T) {
	p := NewProjection()
	ghost := assigned(ready("ghost", "ORD_20260829_009", time.Now()), "someone")

	p.Apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &ghost})
	p.Apply(domain.ChangeEvent{EventType: domain.EventDelete, Old: &ghost})
	p.Apply(domain.ChangeEvent{EventType: domain.EventUpdate}) // malformed, no payload
	assert.Equal(t, 0, p.Len())
}

func TestProjection_DeleteRemovesUnconditionally(t *testing.T) {
	p := NewProjection()
	a := ready("a", "ORD_20260829_001", time.Now())
	p.Seed([]domain.ParentOrderRecord{a})

	p.Apply(domain.ChangeEvent{EventType: domain.EventDelete, Old: &a})
	assert.Equal(t, 0, p.Len())
}

func TestProjection_FIFOOrdering(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	p := NewProjection()
	p.Seed([]domain.ParentOrderRecord{
		ready("c", "ORD_20260829_003", base.Add(2*time.Minute)),
		ready("a", "ORD_20260829_001", base),
		ready("b", "ORD_20260829_002", base.Add(time.Minute)),
	})

	var numbers []string
	for _, e := range p.Entries() {
		numbers = append(numbers, e.OrderNumber)
	}
	assert.Equal(t, []string{"ORD_20260829_001", "ORD_20260829_002", "ORD_20260829_003"}, numbers)
}

// Membership exactness: after a finite event sequence the projection
// equals the set of rows satisfying ready-and-unassigned among all rows
// the sequence ever mentioned.
func TestProjection_MembershipExactness(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	p := NewProjection()

	latest := map[string]domain.ParentOrderRecord{}
	apply := func(ev domain.ChangeEvent) {
		p.Apply(ev)
		switch ev.EventType {
		case domain.EventInsert, domain.EventUpdate:
			if ev.New != nil {
				latest[ev.New.ID] = *ev.New
			}
		case domain.EventDelete:
			if ev.Old != nil {
				delete(latest, ev.Old.ID)
			}
		}
	}

	rows := make([]domain.ParentOrderRecord, 6)
	for i := range rows {
		rows[i] = ready(fmt.Sprintf("id-%d", i), fmt.Sprintf("ORD_20260829_%03d", i), base.Add(time.Duration(i)*time.Second))
	}

	for i, r := range rows {
		r := r
		apply(domain.ChangeEvent{EventType: domain.EventInsert, New: &r})
		// duplicate every second event
		if i%2 == 0 {
			apply(domain.ChangeEvent{EventType: domain.EventInsert, New: &r})
		}
	}
	claimed := assigned(rows[1], "courier123")
	apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &claimed, Old: &rows[1]})
	advanced := rows[3]
	advanced.Status = domain.ParentDelivered
	apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &advanced, Old: &rows[3]})
	apply(domain.ChangeEvent{EventType: domain.EventDelete, Old: &rows[5]})
	reopened := rows[1] // courier unassigned again
	apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &reopened, Old: &claimed})

	want := map[string]bool{}
	for id, r := range latest {
		if Member(&r) {
			want[id] = true
		}
	}
	got := map[string]bool{}
	for _, e := range p.Entries() {
		got[e.ID] = true
	}
	assert.Equal(t, want, got)
}

func TestProjection_ResetThenReseed(t *testing.T) {
	p := NewProjection()
	p.Seed([]domain.ParentOrderRecord{ready("a", "ORD_20260829_001", time.Now())})
	require.Equal(t, 1, p.Len())

	p.Reset()
	assert.Equal(t, 0, p.Len())

	// recovery from a stream gap is a fresh snapshot, not inferred deltas
	p.Seed([]domain.ParentOrderRecord{
		ready("b", "ORD_20260829_002", time.Now()),
		ready("c", "ORD_20260829_003", time.Now()),
	})
	assert.Equal(t, 2, p.Len())
}

func TestSeed_FiltersNonMembers(t *testing.T) {
	p := NewProjection()
	stale := ready("x", "ORD_20260829_004", time.Now())
	stale.Status = domain.ParentDelivered
	p.Seed([]domain.ParentOrderRecord{stale, ready("y", "ORD_20260829_005", time.Now())})
	assert.Equal(t, 1, p.Len())
}
