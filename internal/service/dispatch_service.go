package service

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/flowride/flow/internal/cache"
	"github.com/flowride/flow/internal/geo"
	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/push"
	"github.com/flowride/flow/internal/repository"
)

// DispatchConfig carries the tunables of the matching loop.
type DispatchConfig struct {
	RadiusKM     float64
	OfferTimeout time.Duration
	OfferLockTTL time.Duration
}

// DispatchService finds a driver for a pending ride by offering it to
// nearby candidates one at a time. Each candidate gets a bounded window
// to answer; a timeout counts as a rejection and the loop moves on. The
// loop ends in exactly one terminal write: accepted, no_drivers_available
// or error.
type DispatchService interface {
	Dispatch(ctx context.Context, rideID string)
	RespondOffer(ctx context.Context, driverID string, req *models.RespondOfferRequest) (bool, error)
}

type dispatchService struct {
	rideRepo   repository.RideRepository
	driverRepo repository.DriverRepository
	riderRepo  repository.RiderRepository
	offerRepo  repository.OfferRepository
	index      cache.DriverIndex
	board      *OfferBoard
	payments   PaymentService
	pusher     push.Sender
	cfg        DispatchConfig
}

func NewDispatchService(
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	riderRepo repository.RiderRepository,
	offerRepo repository.OfferRepository,
	index cache.DriverIndex,
	board *OfferBoard,
	payments PaymentService,
	pusher push.Sender,
	cfg DispatchConfig,
) DispatchService {
	return &dispatchService{
		rideRepo:   rideRepo,
		driverRepo: driverRepo,
		riderRepo:  riderRepo,
		offerRepo:  offerRepo,
		index:      index,
		board:      board,
		payments:   payments,
		pusher:     pusher,
		cfg:        cfg,
	}
}

// RankCandidates filters a proximity search result down to available
// drivers and orders them nearest first. Distance ties break on driver ID
// so the ordering is deterministic.
func RankCandidates(candidates []cache.Candidate) []cache.Candidate {
	ranked := make([]cache.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Status != models.DriverStatusAvailable {
			continue
		}
		if !geo.ValidCoordinates(c.Lat, c.Lng) {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].DriverID < ranked[j].DriverID
	})
	return ranked
}

// Dispatch runs the full matching loop for one pending ride. It is meant
// to run in its own goroutine; any panic is converted into a terminal
// error status so the ride never hangs in pending.
func (s *dispatchService) Dispatch(ctx context.Context, rideID string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("dispatch: panic for ride %s: %v", rideID, rec)
			if err := s.rideRepo.MarkError(ctx, rideID, "dispatch aborted unexpectedly"); err != nil {
				log.Printf("dispatch: failed to mark ride %s as error: %v", rideID, err)
			}
		}
	}()

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil || ride == nil {
		log.Printf("dispatch: cannot load ride %s: %v", rideID, err)
		return
	}
	if ride.Status != models.RideStatusPending {
		return
	}

	found, err := s.index.Search(ctx, ride.PickupLat, ride.PickupLng, s.cfg.RadiusKM)
	if err != nil {
		log.Printf("dispatch: proximity search failed for ride %s: %v", rideID, err)
		_ = s.rideRepo.MarkError(ctx, rideID, "proximity search failed")
		return
	}

	candidates := RankCandidates(found)
	if len(candidates) == 0 {
		s.finishUnmatched(ctx, ride, models.RefundReasonNoDriversAvailable)
		return
	}

	for attempt, candidate := range candidates {
		// Bail out if the rider canceled while we were offering.
		current, err := s.rideRepo.GetByID(ctx, rideID)
		if err != nil || current == nil || current.Status != models.RideStatusPending {
			s.offerCleanup(ctx, rideID)
			return
		}

		accepted, offered := s.offerToDriver(ctx, ride, candidate.DriverID, attempt+1)
		if !offered {
			continue
		}
		if accepted && s.finishAccepted(ctx, ride, candidate.DriverID) {
			return
		}
	}

	s.offerCleanup(ctx, rideID)
	s.finishUnmatched(ctx, ride, models.RefundReasonNoDriversAccepted)
}

// offerToDriver runs a single offer attempt. The second return value is
// false when the driver could not be offered to at all (busy lock, gone
// from the system) and should not consume the attempt window.
func (s *dispatchService) offerToDriver(ctx context.Context, ride *models.Ride, driverID string, attempt int) (accepted, offered bool) {
	locked, err := s.index.AcquireOfferLock(ctx, driverID, s.cfg.OfferLockTTL)
	if err != nil {
		log.Printf("dispatch: offer lock error for driver %s: %v", driverID, err)
		return false, false
	}
	if !locked {
		// Another ride is mid-offer to this driver.
		return false, false
	}
	defer func() {
		if err := s.index.ReleaseOfferLock(ctx, driverID); err != nil {
			log.Printf("dispatch: failed to release offer lock for driver %s: %v", driverID, err)
		}
	}()

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil || driver == nil || !driver.Online || driver.Status != models.DriverStatusAvailable {
		return false, false
	}

	if err := s.offerRepo.Put(ctx, &models.DriverOffer{
		RideID:   ride.ID,
		DriverID: driverID,
		Attempt:  attempt,
	}); err != nil {
		log.Printf("dispatch: failed to record offer for ride %s: %v", ride.ID, err)
		return false, false
	}

	answer := s.board.Open(ride.ID, driverID)

	if driver.ExpoPushToken != nil {
		s.pusher.Send(ctx, *driver.ExpoPushToken, "New ride request",
			"A rider nearby needs a ride. Open the app to respond.",
			map[string]string{"ride_id": ride.ID, "type": "ride_offer"})
	}

	timer := time.NewTimer(s.cfg.OfferTimeout)
	defer timer.Stop()

	select {
	case ok := <-answer:
		return ok, true
	case <-timer.C:
		// Timed out: same as a rejection. The board slot is dropped so a
		// late answer from this driver resolves nothing.
		s.board.Close(ride.ID)
		return false, true
	case <-ctx.Done():
		s.board.Close(ride.ID)
		return false, true
	}
}

// finishAccepted settles the ride onto the accepting driver. The
// assignment write is guarded on the ride still being pending; if it does
// not land the rider canceled mid-answer, the hold is left alone and the
// loop stops. Capture only happens after the assignment lands and is
// fail-open: a capture error is recorded for reconciliation and the
// acceptance stands. Returns false only when the assignment write itself
// errors, which lets the loop try the next candidate.
func (s *dispatchService) finishAccepted(ctx context.Context, ride *models.Ride, driverID string) bool {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil || driver == nil {
		return false
	}

	assigned, err := s.rideRepo.MarkAccepted(ctx, ride.ID, driverID, driver.Snapshot())
	if err != nil {
		log.Printf("dispatch: failed to assign ride %s to driver %s: %v", ride.ID, driverID, err)
		return false
	}
	if !assigned {
		log.Printf("dispatch: ride %s no longer pending, dropping acceptance by driver %s", ride.ID, driverID)
		s.offerCleanup(ctx, ride.ID)
		return true
	}

	s.payments.CaptureRide(ctx, ride)

	if err := s.driverRepo.UpdateStatus(ctx, driverID, models.DriverStatusOnTrip); err != nil {
		log.Printf("dispatch: failed to mark driver %s on trip: %v", driverID, err)
	}
	if err := s.driverRepo.SetActiveRide(ctx, driverID, &ride.ID); err != nil {
		log.Printf("dispatch: failed to set active ride for driver %s: %v", driverID, err)
	}
	if err := s.index.SetPresence(ctx, driverID, true, models.DriverStatusOnTrip); err != nil {
		log.Printf("dispatch: failed to update index presence for driver %s: %v", driverID, err)
	}

	s.offerCleanup(ctx, ride.ID)
	s.notifyRider(ctx, ride, "Driver found",
		driver.Name+" is on the way in a "+driver.Vehicle+".")

	log.Printf("dispatch: ride %s accepted by driver %s", ride.ID, driverID)
	return true
}

// finishUnmatched refunds the hold and closes the ride. Refund failures
// are stamped on the row but never change the outcome.
func (s *dispatchService) finishUnmatched(ctx context.Context, ride *models.Ride, reason string) {
	refundID, refundErr := s.payments.RefundRide(ctx, ride, reason)

	if err := s.rideRepo.MarkNoDrivers(ctx, ride.ID, reason, refundID, refundErr); err != nil {
		log.Printf("dispatch: failed to close unmatched ride %s: %v", ride.ID, err)
		return
	}

	s.notifyRider(ctx, ride, "No drivers available",
		"We couldn't find a driver for your ride. Your payment hold has been released.")
	log.Printf("dispatch: ride %s closed unmatched (%s)", ride.ID, reason)
}

// RespondOffer handles a driver's answer to their current offer. Answers
// that no longer match a pending offer for this driver are rejected with
// a conflict so the client stops retrying.
func (s *dispatchService) RespondOffer(ctx context.Context, driverID string, req *models.RespondOfferRequest) (bool, error) {
	response := models.OfferResponseRejected
	if req.Accept {
		response = models.OfferResponseAccepted
	}

	recorded, err := s.offerRepo.Respond(ctx, req.RideID, driverID, response)
	if err != nil {
		return false, err
	}
	if !recorded {
		return false, nil
	}

	// The persisted row is the source of truth; the board wakes the
	// dispatcher if it is still waiting on this attempt.
	s.board.Resolve(req.RideID, driverID, req.Accept)
	return true, nil
}

func (s *dispatchService) offerCleanup(ctx context.Context, rideID string) {
	s.board.Close(rideID)
	if err := s.offerRepo.Delete(ctx, rideID); err != nil {
		log.Printf("dispatch: failed to clear offer row for ride %s: %v", rideID, err)
	}
}

func (s *dispatchService) notifyRider(ctx context.Context, ride *models.Ride, title, body string) {
	rider, err := s.riderRepo.GetByID(ctx, ride.RiderID)
	if err != nil || rider == nil || rider.ExpoPushToken == nil {
		return
	}
	s.pusher.Send(ctx, *rider.ExpoPushToken, title, body,
		map[string]string{"ride_id": ride.ID, "type": "ride_update"})
}
