package service

import (
	"context"
	"sync"
	"testing"

	"github.com/flowride/flow/internal/cache"
	"github.com/flowride/flow/internal/models"
)

type fakeFeed struct {
	mu      sync.Mutex
	updates []cache.LocationUpdate
}

func (f *fakeFeed) Publish(ctx context.Context, update cache.LocationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context) (<-chan cache.LocationUpdate, func()) {
	ch := make(chan cache.LocationUpdate)
	return ch, func() { close(ch) }
}

func (f *fakeFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func TestUpdateLocationMirrorsOntoActiveRide(t *testing.T) {
	rideID := "ride-1"
	driver := availableDriver("d1")
	driver.ActiveRideID = &rideID

	rides := newFakeRideRepo(pendingRide(rideID))
	drivers := newFakeDriverRepo(driver)
	feed := &fakeFeed{}
	svc := NewDriverService(drivers, rides, newFakeIndex(), feed)

	err := svc.UpdateLocation(context.Background(), "d1", &models.UpdateDriverLocationRequest{Lat: 30.61, Lng: -96.32})
	if err != nil {
		t.Fatalf("UpdateLocation() error = %v", err)
	}

	if len(rides.locWrites) != 1 {
		t.Fatalf("expected one ride location write, got %d", len(rides.locWrites))
	}
	if feed.count() != 1 {
		t.Errorf("expected one feed publish, got %d", feed.count())
	}

	ride := rides.get(rideID)
	if ride.DriverCurrentLat == nil || *ride.DriverCurrentLat != 30.61 {
		t.Errorf("ride mirror lat = %v, want 30.61", ride.DriverCurrentLat)
	}
}

func TestUpdateLocationSkipsMirrorWhenUnchanged(t *testing.T) {
	rideID := "ride-1"
	lat, lng := 30.61, -96.32
	driver := availableDriver("d1")
	driver.ActiveRideID = &rideID
	driver.CurrentLat = &lat
	driver.CurrentLng = &lng

	rides := newFakeRideRepo(pendingRide(rideID))
	drivers := newFakeDriverRepo(driver)
	feed := &fakeFeed{}
	svc := NewDriverService(drivers, rides, newFakeIndex(), feed)

	err := svc.UpdateLocation(context.Background(), "d1", &models.UpdateDriverLocationRequest{Lat: lat, Lng: lng})
	if err != nil {
		t.Fatalf("UpdateLocation() error = %v", err)
	}

	if len(rides.locWrites) != 0 {
		t.Errorf("unchanged position should not touch the ride, got %d writes", len(rides.locWrites))
	}
	if feed.count() != 0 {
		t.Errorf("unchanged position should not publish, got %d", feed.count())
	}
}

func TestUpdateLocationNoActiveRide(t *testing.T) {
	rides := newFakeRideRepo()
	drivers := newFakeDriverRepo(availableDriver("d1"))
	feed := &fakeFeed{}
	svc := NewDriverService(drivers, rides, newFakeIndex(), feed)

	err := svc.UpdateLocation(context.Background(), "d1", &models.UpdateDriverLocationRequest{Lat: 30.61, Lng: -96.32})
	if err != nil {
		t.Fatalf("UpdateLocation() error = %v", err)
	}

	if len(rides.locWrites) != 0 {
		t.Errorf("driver with no active ride should not write ride locations, got %d", len(rides.locWrites))
	}
}

func TestGoOnlineRestoresOnTripStatus(t *testing.T) {
	driverID := "d1"
	ride := pendingRide("ride-1")
	ride.Status = models.RideStatusInProgress
	ride.DriverID = &driverID

	rides := newFakeRideRepo(ride)
	drivers := newFakeDriverRepo(availableDriver(driverID))
	index := newFakeIndex()
	svc := NewDriverService(drivers, rides, index, &fakeFeed{})

	if err := svc.GoOnline(context.Background(), driverID, nil); err != nil {
		t.Fatalf("GoOnline() error = %v", err)
	}

	d, _ := drivers.GetByID(context.Background(), driverID)
	if d.Status != models.DriverStatusOnTrip {
		t.Errorf("driver status = %s, want on_trip while their ride is live", d.Status)
	}
	if d.ActiveRideID == nil || *d.ActiveRideID != "ride-1" {
		t.Errorf("active ride = %v, want ride-1 restored", d.ActiveRideID)
	}
	if index.presence[driverID] != models.DriverStatusOnTrip {
		t.Errorf("index presence = %s, want on_trip", index.presence[driverID])
	}
}

func TestGoOnlineWithoutActiveRideIsAvailable(t *testing.T) {
	drivers := newFakeDriverRepo(availableDriver("d1"))
	index := newFakeIndex()
	svc := NewDriverService(drivers, newFakeRideRepo(), index, &fakeFeed{})

	if err := svc.GoOnline(context.Background(), "d1", nil); err != nil {
		t.Fatalf("GoOnline() error = %v", err)
	}
	if index.presence["d1"] != models.DriverStatusAvailable {
		t.Errorf("index presence = %s, want available", index.presence["d1"])
	}
}

func TestUpdateLocationRejectsBadCoordinates(t *testing.T) {
	drivers := newFakeDriverRepo(availableDriver("d1"))
	svc := NewDriverService(drivers, newFakeRideRepo(), newFakeIndex(), &fakeFeed{})

	if err := svc.UpdateLocation(context.Background(), "d1", &models.UpdateDriverLocationRequest{Lat: 912, Lng: 0}); err == nil {
		t.Error("expected an error for out-of-range latitude")
	}
}
