package service

import (
	"math"

	"github.com/flowride/flow/internal/geo"
)

// Pricing constants. All amounts are integer cents; fares are computed
// once at request time and held on the rider's card for the full amount.
const (
	baseFareCents    = 250 // flag drop
	perKmCents       = 120
	perMinCents      = 35
	minimumFareCents = 500

	// Straight-line to road-distance correction.
	roadFactor = 1.3

	// Assumed average city speed for duration estimates.
	avgSpeedKmh = 25.0
)

type PricingService interface {
	QuoteFareCents(pickupLat, pickupLng, dropoffLat, dropoffLng float64) int64
	EstimateDistanceKm(pickupLat, pickupLng, dropoffLat, dropoffLng float64) float64
	EstimateDurationMins(distanceKm float64) int
}

type pricingService struct{}

func NewPricingService() PricingService {
	return &pricingService{}
}

// QuoteFareCents computes the total fare for a trip: base plus distance
// plus time components, floored at the minimum fare.
func (s *pricingService) QuoteFareCents(pickupLat, pickupLng, dropoffLat, dropoffLng float64) int64 {
	distanceKm := s.EstimateDistanceKm(pickupLat, pickupLng, dropoffLat, dropoffLng)
	durationMins := s.EstimateDurationMins(distanceKm)

	total := int64(baseFareCents) +
		int64(math.Round(distanceKm*perKmCents)) +
		int64(durationMins*perMinCents)

	if total < minimumFareCents {
		total = minimumFareCents
	}
	return total
}

// EstimateDistanceKm is the great-circle distance scaled by a road factor.
func (s *pricingService) EstimateDistanceKm(pickupLat, pickupLng, dropoffLat, dropoffLng float64) float64 {
	return geo.Haversine(pickupLat, pickupLng, dropoffLat, dropoffLng) * roadFactor
}

func (s *pricingService) EstimateDurationMins(distanceKm float64) int {
	mins := int(math.Ceil(distanceKm / avgSpeedKmh * 60))
	if mins < 5 {
		mins = 5
	}
	return mins
}
