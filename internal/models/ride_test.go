package models

import (
	"testing"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{RideStatusPending, RideStatusAccepted, true},
		{RideStatusPending, RideStatusNoDriversAvailable, true},
		{RideStatusPending, RideStatusCanceled, true},
		{RideStatusPending, RideStatusError, true},
		{RideStatusPending, RideStatusCompleted, false},
		{RideStatusAccepted, RideStatusDriverArrived, true},
		{RideStatusAccepted, RideStatusInProgress, false},
		{RideStatusDriverArrived, RideStatusInProgress, true},
		{RideStatusInProgress, RideStatusCompleted, true},
		{RideStatusInProgress, RideStatusCanceled, false},
		{RideStatusCompleted, RideStatusPending, false},
		{RideStatusCanceled, RideStatusAccepted, false},
		{RideStatusNoDriversAvailable, RideStatusAccepted, false},
		{RideStatusError, RideStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_to_"+tt.to, func(t *testing.T) {
			ride := &Ride{Status: tt.from}
			if got := ride.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsCancelable(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{RideStatusPending, true},
		{RideStatusAccepted, true},
		{RideStatusDriverArrived, true},
		{RideStatusInProgress, false},
		{RideStatusCompleted, false},
		{RideStatusCanceled, false},
	}

	for _, tt := range tests {
		ride := &Ride{Status: tt.status}
		if got := ride.IsCancelable(); got != tt.want {
			t.Errorf("IsCancelable() with status %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestToResponseIncludesDriverSnapshot(t *testing.T) {
	name := "Jane Driver"
	vehicle := "Toyota Camry"
	plate := "ABC-1234"
	rating := 4.9

	ride := &Ride{
		ID:                 "ride-1",
		Status:             RideStatusAccepted,
		DriverName:         &name,
		DriverRating:       &rating,
		DriverVehicle:      &vehicle,
		DriverLicensePlate: &plate,
	}

	resp := ride.ToResponse()
	if resp.Driver == nil {
		t.Fatal("expected driver snapshot in response")
	}
	if resp.Driver.Name != name || resp.Driver.Vehicle != vehicle || resp.Driver.LicensePlate != plate {
		t.Errorf("snapshot = %+v, want name/vehicle/plate copied", resp.Driver)
	}
}

func TestToResponseOmitsSnapshotBeforeAcceptance(t *testing.T) {
	ride := &Ride{ID: "ride-1", Status: RideStatusPending}
	if resp := ride.ToResponse(); resp.Driver != nil {
		t.Errorf("pending ride should have no driver snapshot, got %+v", resp.Driver)
	}
}
