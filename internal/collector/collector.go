// Package collector defines the notification boundary to the query-fee
// voucher collector: the reconciler's only obligation toward voucher
// redemption is to announce allocation lifecycle events (spec §1's "the
// reconciler must notify the collector of allocation open/close events").
// No HTTP client is implemented here; this interface is the seam a
// production build wires to the collector's exchange API.
package collector

import "indexer-agent/internal/types"

// Notifier is implemented by whatever tells the voucher collector about
// allocation lifecycle events.
type Notifier interface {
	NotifyAllocationOpened(allocation types.Allocation)
	NotifyAllocationClosed(allocation types.Allocation, poi [32]byte)
}

// NoopNotifier discards every notification; used where no collector is
// configured for a network.
type NoopNotifier struct{}

func (NoopNotifier) NotifyAllocationOpened(types.Allocation)          {}
func (NoopNotifier) NotifyAllocationClosed(types.Allocation, [32]byte) {}
