package jobs

import (
	"context"
	"log"
	"time"

	"github.com/flowride/flow/internal/cache"
	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/repository"
)

// Reaper sweeps drivers whose apps stopped reporting. A driver that has
// not heartbeated within the staleness window is forced offline in the
// database and in the geo index so the matcher never offers rides to a
// dead client. The sweep only touches currently-online rows, so running
// it twice in a row is a no-op.
type Reaper struct {
	driverRepo repository.DriverRepository
	index      cache.DriverIndex
	staleAfter time.Duration
}

func NewReaper(driverRepo repository.DriverRepository, index cache.DriverIndex, staleAfter time.Duration) *Reaper {
	return &Reaper{
		driverRepo: driverRepo,
		index:      index,
		staleAfter: staleAfter,
	}
}

// Run performs one sweep and returns how many drivers went offline.
func (r *Reaper) Run(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.staleAfter)

	ids, err := r.driverRepo.MarkStaleOffline(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := r.index.SetPresence(ctx, id, false, models.DriverStatusOffline); err != nil {
			log.Printf("reaper: failed to clear index presence for driver %s: %v", id, err)
		}
	}

	if len(ids) > 0 {
		log.Printf("reaper: marked %d stale drivers offline", len(ids))
	}
	return len(ids), nil
}
