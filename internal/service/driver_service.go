package service

import (
	"context"
	"log"

	"github.com/flowride/flow/internal/cache"
	apperrors "github.com/flowride/flow/internal/errors"
	"github.com/flowride/flow/internal/geo"
	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/repository"
)

type DriverService interface {
	CreateDriver(ctx context.Context, req *models.CreateDriverRequest) (*models.DriverResponse, error)
	GetDriver(ctx context.Context, id string) (*models.DriverResponse, error)
	GoOnline(ctx context.Context, id string, loc *models.Location) error
	GoOffline(ctx context.Context, id string) error
	UpdateLocation(ctx context.Context, id string, req *models.UpdateDriverLocationRequest) error
	SetPushToken(ctx context.Context, id, token string) error
}

type driverService struct {
	driverRepo repository.DriverRepository
	rideRepo   repository.RideRepository
	index      cache.DriverIndex
	feed       cache.LocationFeed
}

func NewDriverService(
	driverRepo repository.DriverRepository,
	rideRepo repository.RideRepository,
	index cache.DriverIndex,
	feed cache.LocationFeed,
) DriverService {
	return &driverService{
		driverRepo: driverRepo,
		rideRepo:   rideRepo,
		index:      index,
		feed:       feed,
	}
}

func (s *driverService) CreateDriver(ctx context.Context, req *models.CreateDriverRequest) (*models.DriverResponse, error) {
	driver := &models.Driver{
		Name:         req.Name,
		Phone:        req.Phone,
		Vehicle:      req.Vehicle,
		LicensePlate: req.LicensePlate,
		PaymentStyle: req.PaymentStyle,
	}
	if req.Email != "" {
		driver.Email = &req.Email
	}

	if err := s.driverRepo.Create(ctx, driver); err != nil {
		return nil, apperrors.InternalError("failed to create driver")
	}
	return driver.ToResponse(), nil
}

func (s *driverService) GetDriver(ctx context.Context, id string) (*models.DriverResponse, error) {
	driver, err := s.driverRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.InternalError("failed to load driver")
	}
	if driver == nil {
		return nil, apperrors.NotFound("driver")
	}
	return driver.ToResponse(), nil
}

// GoOnline puts the driver into the available pool. An initial position
// may come along so the driver is searchable immediately instead of after
// the first location report.
func (s *driverService) GoOnline(ctx context.Context, id string, loc *models.Location) error {
	driver, err := s.driverRepo.GetByID(ctx, id)
	if err != nil {
		return apperrors.InternalError("failed to load driver")
	}
	if driver == nil {
		return apperrors.NotFound("driver")
	}

	// A driver reconnecting mid-trip comes back as on_trip, not available,
	// so dispatch cannot offer them a second ride.
	status := models.DriverStatusAvailable
	active, err := s.rideRepo.GetActiveRideByDriverID(ctx, id)
	if err != nil {
		return apperrors.InternalError("failed to check active rides")
	}
	if active != nil {
		status = models.DriverStatusOnTrip
	}

	if err := s.driverRepo.SetOnline(ctx, id, true); err != nil {
		return apperrors.InternalError("failed to set driver online")
	}
	if active != nil {
		if err := s.driverRepo.UpdateStatus(ctx, id, status); err != nil {
			log.Printf("driver: failed to restore on-trip status for %s: %v", id, err)
		}
		if err := s.driverRepo.SetActiveRide(ctx, id, &active.ID); err != nil {
			log.Printf("driver: failed to restore active ride for %s: %v", id, err)
		}
	}
	if err := s.index.SetPresence(ctx, id, true, status); err != nil {
		log.Printf("driver: failed to update index presence for %s: %v", id, err)
	}

	if loc != nil && geo.ValidCoordinates(loc.Lat, loc.Lng) {
		if err := s.driverRepo.UpdateLocation(ctx, id, loc.Lat, loc.Lng); err != nil {
			log.Printf("driver: failed to store initial location for %s: %v", id, err)
		}
		if err := s.index.Upsert(ctx, id, loc.Lat, loc.Lng); err != nil {
			log.Printf("driver: failed to index initial location for %s: %v", id, err)
		}
	}
	return nil
}

func (s *driverService) GoOffline(ctx context.Context, id string) error {
	driver, err := s.driverRepo.GetByID(ctx, id)
	if err != nil {
		return apperrors.InternalError("failed to load driver")
	}
	if driver == nil {
		return apperrors.NotFound("driver")
	}

	if err := s.driverRepo.SetOnline(ctx, id, false); err != nil {
		return apperrors.InternalError("failed to set driver offline")
	}
	if err := s.index.SetPresence(ctx, id, false, models.DriverStatusOffline); err != nil {
		log.Printf("driver: failed to update index presence for %s: %v", id, err)
	}
	return nil
}

// UpdateLocation stores a position report. It also serves as the driver's
// heartbeat, refreshes the geo index, and mirrors the position onto the
// driver's active ride so the rider can watch the car move. The mirror is
// skipped when the coordinates have not changed since the last report.
func (s *driverService) UpdateLocation(ctx context.Context, id string, req *models.UpdateDriverLocationRequest) error {
	if !geo.ValidCoordinates(req.Lat, req.Lng) {
		return apperrors.BadRequest("invalid coordinates")
	}

	driver, err := s.driverRepo.GetByID(ctx, id)
	if err != nil {
		return apperrors.InternalError("failed to load driver")
	}
	if driver == nil {
		return apperrors.NotFound("driver")
	}

	moved := driver.CurrentLat == nil || driver.CurrentLng == nil ||
		*driver.CurrentLat != req.Lat || *driver.CurrentLng != req.Lng

	if err := s.driverRepo.UpdateLocation(ctx, id, req.Lat, req.Lng); err != nil {
		return apperrors.InternalError("failed to update location")
	}
	if err := s.index.Upsert(ctx, id, req.Lat, req.Lng); err != nil {
		log.Printf("driver: failed to index location for %s: %v", id, err)
	}

	if moved && driver.ActiveRideID != nil {
		if err := s.rideRepo.UpdateDriverLocation(ctx, *driver.ActiveRideID, req.Lat, req.Lng); err != nil {
			log.Printf("driver: failed to mirror location onto ride %s: %v", *driver.ActiveRideID, err)
		}
		if err := s.feed.Publish(ctx, cache.LocationUpdate{
			RideID:   *driver.ActiveRideID,
			DriverID: id,
			Lat:      req.Lat,
			Lng:      req.Lng,
		}); err != nil {
			log.Printf("driver: failed to publish location update: %v", err)
		}
	}
	return nil
}

func (s *driverService) SetPushToken(ctx context.Context, id, token string) error {
	driver, err := s.driverRepo.GetByID(ctx, id)
	if err != nil {
		return apperrors.InternalError("failed to load driver")
	}
	if driver == nil {
		return apperrors.NotFound("driver")
	}
	if err := s.driverRepo.SetPushToken(ctx, id, token); err != nil {
		return apperrors.InternalError("failed to store push token")
	}
	return nil
}
