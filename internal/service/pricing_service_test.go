package service

import (
	"testing"
)

func TestQuoteFareCents(t *testing.T) {
	ps := NewPricingService()

	// Campus to the north side of town, roughly 4 km straight-line.
	fare := ps.QuoteFareCents(30.6010, -96.3140, 30.6280, -96.3344)

	if fare < minimumFareCents {
		t.Errorf("fare %d below minimum %d", fare, minimumFareCents)
	}
	if fare > 3000 {
		t.Errorf("fare %d unreasonably high for a short trip", fare)
	}
}

func TestQuoteFareCentsMinimum(t *testing.T) {
	ps := NewPricingService()

	// Pickup and dropoff nearly identical: minimum fare applies.
	fare := ps.QuoteFareCents(30.6010, -96.3140, 30.6011, -96.3141)
	if fare != minimumFareCents {
		t.Errorf("fare = %d, want minimum %d", fare, minimumFareCents)
	}
}

func TestQuoteFareCentsGrowsWithDistance(t *testing.T) {
	ps := NewPricingService()

	short := ps.QuoteFareCents(30.6010, -96.3140, 30.6280, -96.3344)
	long := ps.QuoteFareCents(30.6010, -96.3140, 29.7604, -95.3698) // to Houston

	if long <= short {
		t.Errorf("longer trip should cost more: short=%d long=%d", short, long)
	}
}

func TestEstimateDurationMins(t *testing.T) {
	ps := NewPricingService()

	tests := []struct {
		distanceKm float64
		minMins    int
		maxMins    int
	}{
		{5, 10, 15},  // 5km at 25km/h = 12 mins
		{10, 20, 30}, // 10km at 25km/h = 24 mins
		{1, 5, 5},    // floor of 5 mins
	}

	for _, tt := range tests {
		duration := ps.EstimateDurationMins(tt.distanceKm)
		if duration < tt.minMins || duration > tt.maxMins {
			t.Errorf("EstimateDurationMins(%v) = %v, expected between %d-%d", tt.distanceKm, duration, tt.minMins, tt.maxMins)
		}
	}
}
