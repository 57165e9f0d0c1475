package service

import (
	"sync"
)

// OfferBoard is the in-process rendezvous between the dispatch loop and
// the driver-response endpoint. The dispatcher opens a slot per offer
// attempt and blocks on its channel; the response handler resolves the
// slot if, and only if, it still belongs to the same driver. Opening a
// new attempt replaces the slot, so answers to superseded offers find
// nothing to resolve and fall away.
type OfferBoard struct {
	mu    sync.Mutex
	slots map[string]*offerSlot
}

type offerSlot struct {
	driverID string
	ch       chan bool
}

func NewOfferBoard() *OfferBoard {
	return &OfferBoard{slots: make(map[string]*offerSlot)}
}

// Open registers the current offer attempt for a ride and returns the
// channel the dispatcher should wait on. Any previous slot for the ride
// is discarded.
func (b *OfferBoard) Open(rideID, driverID string) <-chan bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	slot := &offerSlot{driverID: driverID, ch: make(chan bool, 1)}
	b.slots[rideID] = slot
	return slot.ch
}

// Resolve delivers a driver's answer to the waiting dispatcher. Returns
// false when no offer is pending for that ride/driver pair, which covers
// late answers after a timeout and answers from superseded candidates.
func (b *OfferBoard) Resolve(rideID, driverID string, accepted bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	slot, ok := b.slots[rideID]
	if !ok || slot.driverID != driverID {
		return false
	}

	delete(b.slots, rideID)
	slot.ch <- accepted
	return true
}

// Close drops the ride's slot, if any. Called by the dispatcher when an
// attempt times out or the loop finishes.
func (b *OfferBoard) Close(rideID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.slots, rideID)
}
