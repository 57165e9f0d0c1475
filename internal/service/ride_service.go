package service

import (
	"context"
	"log"

	"github.com/flowride/flow/internal/cache"
	apperrors "github.com/flowride/flow/internal/errors"
	"github.com/flowride/flow/internal/geo"
	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/push"
	"github.com/flowride/flow/internal/repository"
)

type RideService interface {
	CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.RideResponse, error)
	GetRide(ctx context.Context, id string) (*models.RideResponse, error)
	CancelRide(ctx context.Context, rideID string, req *models.CancelRideRequest) (*models.RideResponse, error)
	UpdateRideStatus(ctx context.Context, rideID, driverID string, req *models.UpdateRideStatusRequest) (*models.RideResponse, error)
	EstimateFare(ctx context.Context, pickup, dropoff models.Location) int64
}

type rideService struct {
	rideRepo   repository.RideRepository
	riderRepo  repository.RiderRepository
	driverRepo repository.DriverRepository
	index      cache.DriverIndex
	payments   PaymentService
	pricing    PricingService
	dispatcher DispatchService
	pusher     push.Sender
}

func NewRideService(
	rideRepo repository.RideRepository,
	riderRepo repository.RiderRepository,
	driverRepo repository.DriverRepository,
	index cache.DriverIndex,
	payments PaymentService,
	pricing PricingService,
	dispatcher DispatchService,
	pusher push.Sender,
) RideService {
	return &rideService{
		rideRepo:   rideRepo,
		riderRepo:  riderRepo,
		driverRepo: driverRepo,
		index:      index,
		payments:   payments,
		pricing:    pricing,
		dispatcher: dispatcher,
		pusher:     pusher,
	}
}

// CreateRide quotes the fare, places the card hold and persists the ride
// in pending, then hands it to the dispatcher in the background. The hold
// must succeed before anything is written; a declined card means no ride.
func (s *rideService) CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.RideResponse, error) {
	if !geo.ValidCoordinates(req.Pickup.Lat, req.Pickup.Lng) ||
		!geo.ValidCoordinates(req.Dropoff.Lat, req.Dropoff.Lng) {
		return nil, apperrors.BadRequest("invalid pickup or dropoff coordinates")
	}

	rider, err := s.riderRepo.GetByID(ctx, req.RiderID)
	if err != nil {
		return nil, apperrors.InternalError("failed to load rider")
	}
	if rider == nil {
		return nil, apperrors.NotFound("rider")
	}

	active, err := s.rideRepo.GetActiveRideByRiderID(ctx, req.RiderID)
	if err != nil {
		return nil, apperrors.InternalError("failed to check active rides")
	}
	if active != nil {
		return nil, apperrors.RiderHasActiveRide()
	}

	fareCents := s.pricing.QuoteFareCents(req.Pickup.Lat, req.Pickup.Lng, req.Dropoff.Lat, req.Dropoff.Lng)

	paymentIntentID, err := s.payments.AuthorizeRide(ctx, rider, fareCents)
	if err != nil {
		return nil, apperrors.PaymentFailed("could not place a hold on your payment method")
	}

	ride := &models.Ride{
		RiderID:    req.RiderID,
		PickupLat:  req.Pickup.Lat,
		PickupLng:  req.Pickup.Lng,
		DropoffLat: req.Dropoff.Lat,
		DropoffLng: req.Dropoff.Lng,
		FareCents:  fareCents,
	}
	if paymentIntentID != "" {
		ride.PaymentIntentID = &paymentIntentID
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		// The hold is now orphaned; release it before reporting failure.
		if _, refundErr := s.payments.RefundRide(ctx, ride, models.RefundReasonRideCanceled); refundErr != nil {
			log.Printf("ride: failed to release hold for unsaved ride: %s", *refundErr)
		}
		return nil, apperrors.InternalError("failed to create ride")
	}

	go s.dispatcher.Dispatch(context.Background(), ride.ID)

	return ride.ToResponse(), nil
}

func (s *rideService) GetRide(ctx context.Context, id string) (*models.RideResponse, error) {
	ride, err := s.rideRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.InternalError("failed to load ride")
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	return ride.ToResponse(), nil
}

// CancelRide lets the requesting rider abandon a ride that has not yet
// started. The refund is fail-open: the cancellation is final even if the
// hold release errors, in which case the error lands on the ride row and
// in reconciliation.
func (s *rideService) CancelRide(ctx context.Context, rideID string, req *models.CancelRideRequest) (*models.RideResponse, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, apperrors.InternalError("failed to load ride")
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	if ride.RiderID != req.RiderID {
		return nil, apperrors.Forbidden("only the requesting rider can cancel this ride")
	}
	if !ride.IsCancelable() {
		return nil, apperrors.RideNotCancelable(ride.Status)
	}

	refundID, refundErr := s.payments.RefundRide(ctx, ride, models.RefundReasonRideCanceled)

	if err := s.rideRepo.Cancel(ctx, rideID, req.RiderID, req.Reason, refundID, refundErr); err != nil {
		return nil, apperrors.InternalError("failed to cancel ride")
	}

	if ride.DriverID != nil {
		s.releaseDriver(ctx, *ride.DriverID)
		s.notifyDriver(ctx, *ride.DriverID, "Ride canceled",
			"The rider canceled this ride. You're back online for new requests.")
	}

	updated, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil || updated == nil {
		return nil, apperrors.InternalError("failed to reload ride")
	}
	return updated.ToResponse(), nil
}

// UpdateRideStatus advances an assigned ride along its lifecycle. Only
// the assigned driver may move it, and only along valid transitions.
func (s *rideService) UpdateRideStatus(ctx context.Context, rideID, driverID string, req *models.UpdateRideStatusRequest) (*models.RideResponse, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, apperrors.InternalError("failed to load ride")
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return nil, apperrors.Forbidden("this ride is not assigned to you")
	}
	if !ride.CanTransitionTo(req.Status) {
		return nil, apperrors.InvalidTransition(ride.Status, req.Status)
	}

	if err := s.rideRepo.UpdateStatus(ctx, rideID, req.Status); err != nil {
		return nil, apperrors.InternalError("failed to update ride status")
	}

	switch req.Status {
	case models.RideStatusDriverArrived:
		s.notifyRider(ctx, ride, "Your driver has arrived", "Meet your driver at the pickup point.")
	case models.RideStatusCompleted:
		s.releaseDriver(ctx, driverID)
		s.notifyRider(ctx, ride, "Trip complete", "Thanks for riding with us.")
	}

	updated, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil || updated == nil {
		return nil, apperrors.InternalError("failed to reload ride")
	}
	return updated.ToResponse(), nil
}

func (s *rideService) EstimateFare(ctx context.Context, pickup, dropoff models.Location) int64 {
	return s.pricing.QuoteFareCents(pickup.Lat, pickup.Lng, dropoff.Lat, dropoff.Lng)
}

// releaseDriver returns a driver to the available pool after their ride
// ends, in the database and in the geo index.
func (s *rideService) releaseDriver(ctx context.Context, driverID string) {
	if err := s.driverRepo.UpdateStatus(ctx, driverID, models.DriverStatusAvailable); err != nil {
		log.Printf("ride: failed to mark driver %s available: %v", driverID, err)
	}
	if err := s.driverRepo.SetActiveRide(ctx, driverID, nil); err != nil {
		log.Printf("ride: failed to clear active ride for driver %s: %v", driverID, err)
	}
	if err := s.index.SetPresence(ctx, driverID, true, models.DriverStatusAvailable); err != nil {
		log.Printf("ride: failed to update index presence for driver %s: %v", driverID, err)
	}
}

func (s *rideService) notifyRider(ctx context.Context, ride *models.Ride, title, body string) {
	rider, err := s.riderRepo.GetByID(ctx, ride.RiderID)
	if err != nil || rider == nil || rider.ExpoPushToken == nil {
		return
	}
	s.pusher.Send(ctx, *rider.ExpoPushToken, title, body,
		map[string]string{"ride_id": ride.ID, "type": "ride_update"})
}

func (s *rideService) notifyDriver(ctx context.Context, driverID, title, body string) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil || driver == nil || driver.ExpoPushToken == nil {
		return
	}
	s.pusher.Send(ctx, *driver.ExpoPushToken, title, body,
		map[string]string{"type": "ride_update"})
}
