package domain

// ParentStatus is the lifecycle of a parent order (one checkout spanning
// one or more shops). It is always derived from the sub-order statuses,
// except OUT_FOR_DELIVERY / DELIVERED which couriers set explicitly and
// CANCELLED which can be forced externally.
type ParentStatus string

const (
	ParentPlaced             ParentStatus = "PLACED"
	ParentProcessing         ParentStatus = "PROCESSING"
	ParentPartiallyReady     ParentStatus = "PARTIALLY_READY"
	ParentReadyForPickup     ParentStatus = "READY_FOR_PICKUP"
	ParentOutForDelivery     ParentStatus = "OUT_FOR_DELIVERY"
	ParentDelivered          ParentStatus = "DELIVERED"
	ParentPartiallyCancelled ParentStatus = "PARTIALLY_CANCELLED"
	ParentCancelled          ParentStatus = "CANCELLED"
)

// SubStatus is the independent lifecycle of one shop's portion of a
// parent order, mutated only by the owning shop (or the courier for the
// delivery-side transition).
type SubStatus string

const (
	SubPlaced         SubStatus = "PLACED"
	SubConfirmed      SubStatus = "CONFIRMED"
	SubPreparing      SubStatus = "PREPARING"
	SubReadyForPickup SubStatus = "READY_FOR_PICKUP"
	SubDelivered      SubStatus = "DELIVERED"
	SubCancelled      SubStatus = "CANCELLED"
)

// Terminal reports whether no further sub-order mutation may change the
// parent status.
func (s ParentStatus) Terminal() bool {
	return s == ParentDelivered || s == ParentCancelled || s == ParentPartiallyCancelled
}

func (s SubStatus) Terminal() bool {
	return s == SubDelivered || s == SubCancelled
}

// subTransitions holds the shop/courier-side state machine for sub-orders.
var subTransitions = map[SubStatus]map[SubStatus]bool{
	SubPlaced:         {SubConfirmed: true, SubCancelled: true},
	SubConfirmed:      {SubPreparing: true, SubCancelled: true},
	SubPreparing:      {SubReadyForPickup: true, SubCancelled: true},
	SubReadyForPickup: {SubDelivered: true},
	SubDelivered:      {},
	SubCancelled:      {},
}

// ValidSubTransition reports whether a sub-order may go from -> to.
func ValidSubTransition(from, to SubStatus) bool {
	return subTransitions[from][to]
}

// ValidSubStatus reports whether s is one of the known sub-order statuses.
func ValidSubStatus(s SubStatus) bool {
	_, ok := subTransitions[s]
	return ok
}

// DeriveParentStatus computes the parent status from the multiset of its
// sub-order statuses. Pure and idempotent: same inputs, same output. The
// rules are checked in priority order, first match wins.
//
// current is needed for two locks: terminal parent states never change,
// and a parent already OUT_FOR_DELIVERY never regresses to a pre-pickup
// status (late shop-side events must not re-open the pickup phase).
func DeriveParentStatus(current ParentStatus, subs []SubStatus) ParentStatus {
	if current.Terminal() {
		return current
	}
	if len(subs) == 0 {
		return current
	}

	var cancelled, delivered, ready, inKitchen int
	for _, s := range subs {
		switch s {
		case SubCancelled:
			cancelled++
		case SubDelivered:
			delivered++
		case SubReadyForPickup:
			ready++
		case SubConfirmed, SubPreparing:
			inKitchen++
		}
	}
	active := len(subs) - cancelled

	derived := func() ParentStatus {
		switch {
		case cancelled == len(subs):
			return ParentCancelled
		case cancelled > 0 && delivered == active:
			return ParentPartiallyCancelled
		case delivered == active:
			return ParentDelivered
		case ready == active:
			return ParentReadyForPickup
		case ready > 0:
			return ParentPartiallyReady
		case inKitchen > 0:
			return ParentProcessing
		default:
			return ParentPlaced
		}
	}()

	if current == ParentOutForDelivery && !derived.Terminal() {
		return current
	}
	return derived
}
