package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveParentStatus(t *testing.T) {
	tests := []struct {
		name    string
		current ParentStatus
		subs    []SubStatus
		want    ParentStatus
	}{
		{
			name:    "single_shop_ready",
			current: ParentProcessing,
			subs:    []SubStatus{SubReadyForPickup},
			want:    ParentReadyForPickup,
		},
		{
			name:    "one_ready_one_preparing",
			current: ParentProcessing,
			subs:    []SubStatus{SubReadyForPickup, SubPreparing},
			want:    ParentPartiallyReady,
		},
		{
			name:    "delivered_plus_cancelled",
			current: ParentOutForDelivery,
			subs:    []SubStatus{SubDelivered, SubCancelled},
			want:    ParentPartiallyCancelled,
		},
		{
			name:    "all_cancelled",
			current: ParentProcessing,
			subs:    []SubStatus{SubCancelled, SubCancelled},
			want:    ParentCancelled,
		},
		{
			name:    "all_delivered",
			current: ParentOutForDelivery,
			subs:    []SubStatus{SubDelivered, SubDelivered},
			want:    ParentDelivered,
		},
		{
			name:    "all_placed",
			current: ParentPlaced,
			subs:    []SubStatus{SubPlaced, SubPlaced, SubPlaced},
			want:    ParentPlaced,
		},
		{
			name:    "confirmed_means_processing",
			current: ParentPlaced,
			subs:    []SubStatus{SubConfirmed, SubPlaced},
			want:    ParentProcessing,
		},
		{
			name:    "ready_with_cancelled_sibling",
			current: ParentProcessing,
			subs:    []SubStatus{SubReadyForPickup, SubCancelled},
			want:    ParentReadyForPickup,
		},
		{
			name:    "cancelled_sibling_still_preparing",
			current: ParentProcessing,
			subs:    []SubStatus{SubPreparing, SubCancelled},
			want:    ParentProcessing,
		},
		{
			name:    "delivered_mixed_with_preparing",
			current: ParentOutForDelivery,
			subs:    []SubStatus{SubDelivered, SubPreparing},
			want:    ParentOutForDelivery,
		},
		{
			name:    "delivered_mixed_with_ready",
			current: ParentPartiallyReady,
			subs:    []SubStatus{SubDelivered, SubReadyForPickup},
			want:    ParentPartiallyReady,
		},
		{
			name:    "terminal_delivered_locked",
			current: ParentDelivered,
			subs:    []SubStatus{SubPreparing, SubPlaced},
			want:    ParentDelivered,
		},
		{
			name:    "terminal_cancelled_locked",
			current: ParentCancelled,
			subs:    []SubStatus{SubReadyForPickup},
			want:    ParentCancelled,
		},
		{
			name:    "terminal_partially_cancelled_locked",
			current: ParentPartiallyCancelled,
			subs:    []SubStatus{SubDelivered, SubDelivered},
			want:    ParentPartiallyCancelled,
		},
		{
			name:    "out_for_delivery_does_not_regress",
			current: ParentOutForDelivery,
			subs:    []SubStatus{SubReadyForPickup, SubReadyForPickup},
			want:    ParentOutForDelivery,
		},
		{
			name:    "out_for_delivery_can_cancel",
			current: ParentOutForDelivery,
			subs:    []SubStatus{SubCancelled, SubCancelled},
			want:    ParentCancelled,
		},
		{
			name:    "no_subs_keeps_current",
			current: ParentPlaced,
			subs:    nil,
			want:    ParentPlaced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveParentStatus(tt.current, tt.subs)
			assert.Equal(t, tt.want, got)

			// idempotence: re-deriving from the result changes nothing
			assert.Equal(t, got, DeriveParentStatus(got, tt.subs))
		})
	}
}

func TestDeriveParentStatus_TerminalLock(t *testing.T) {
	sequences := [][]SubStatus{
		{SubPlaced, SubPlaced},
		{SubPreparing, SubReadyForPickup},
		{SubReadyForPickup, SubReadyForPickup},
		{SubDelivered, SubCancelled},
	}
	for _, terminal := range []ParentStatus{ParentDelivered, ParentCancelled, ParentPartiallyCancelled} {
		for _, subs := range sequences {
			assert.Equal(t, terminal, DeriveParentStatus(terminal, subs))
		}
	}
}

func TestValidSubTransition(t *testing.T) {
	tests := []struct {
		from, to SubStatus
		ok       bool
	}{
		{SubPlaced, SubConfirmed, true},
		{SubPlaced, SubCancelled, true},
		{SubPlaced, SubReadyForPickup, false},
		{SubConfirmed, SubPreparing, true},
		{SubPreparing, SubReadyForPickup, true},
		{SubPreparing, SubConfirmed, false},
		{SubReadyForPickup, SubDelivered, true},
		{SubReadyForPickup, SubCancelled, false},
		{SubDelivered, SubCancelled, false},
		{SubCancelled, SubConfirmed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, ValidSubTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
