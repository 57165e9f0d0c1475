package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/repository"
)

// PayoutConfig holds the driver-billing tunables.
type PayoutConfig struct {
	CommissionRate     float64
	CommissionCapCents int64
	MonthlyFeeCents    int64
	YearlyFeeCents     int64
}

// PayoutService settles driver earnings. Weekly runs transfer the unpaid
// completed fares, net of commission for commission-plan drivers; daily
// runs collect flat subscription fees and reset the monthly commission
// accumulator on the first of the month.
type PayoutService interface {
	RunWeeklyPayouts(ctx context.Context) error
	RunDailySubscriptions(ctx context.Context, now time.Time) error
}

type payoutService struct {
	rideRepo   repository.RideRepository
	driverRepo repository.DriverRepository
	payments   PaymentService
	cfg        PayoutConfig
}

func NewPayoutService(
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	payments PaymentService,
	cfg PayoutConfig,
) PayoutService {
	return &payoutService{
		rideRepo:   rideRepo,
		driverRepo: driverRepo,
		payments:   payments,
		cfg:        cfg,
	}
}

// PlanCommission walks a driver's unpaid rides in order and splits each
// fare into commission and payout. Commission is the rate applied to the
// fare, clipped to whatever headroom remains under the monthly cap; once
// the cap is reached the driver keeps the full fare. Returns the totals
// to transfer and to add to the driver's paid-commission accumulator.
func PlanCommission(rides []models.Ride, alreadyPaidCents int64, rate float64, capCents int64) (payoutCents, commissionCents int64) {
	paid := alreadyPaidCents
	for _, ride := range rides {
		cut := int64(math.Round(float64(ride.FareCents) * rate))
		headroom := capCents - paid
		if headroom < 0 {
			headroom = 0
		}
		if cut > headroom {
			cut = headroom
		}
		payoutCents += ride.FareCents - cut
		commissionCents += cut
		paid += cut
	}
	return payoutCents, commissionCents
}

func (s *payoutService) RunWeeklyPayouts(ctx context.Context) error {
	driverIDs, err := s.rideRepo.ListDriversWithPendingPayout(ctx)
	if err != nil {
		return fmt.Errorf("listing drivers with pending payouts: %w", err)
	}

	for _, driverID := range driverIDs {
		if err := s.payoutDriver(ctx, driverID); err != nil {
			log.Printf("payout: driver %s skipped: %v", driverID, err)
		}
	}
	return nil
}

func (s *payoutService) payoutDriver(ctx context.Context, driverID string) error {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	if driver == nil {
		return fmt.Errorf("driver not found")
	}
	if driver.StripeAccountID == nil {
		// Rides stay pending until the driver finishes onboarding.
		return fmt.Errorf("no connected account")
	}

	rides, err := s.rideRepo.GetCompletedPendingPayout(ctx, driverID)
	if err != nil {
		return err
	}
	if len(rides) == 0 {
		return nil
	}

	var payout, commission int64
	if driver.PaymentStyle == models.PaymentStyleCommission {
		payout, commission = PlanCommission(rides, driver.CommissionPaidMonthCents, s.cfg.CommissionRate, s.cfg.CommissionCapCents)
	} else {
		// Subscription drivers keep the full fare.
		for _, ride := range rides {
			payout += ride.FareCents
		}
	}

	if payout > 0 {
		description := fmt.Sprintf("weekly payout, %d rides", len(rides))
		if _, err := s.payments.TransferPayout(ctx, driver, payout, description); err != nil {
			// Leave everything pending; next week's run retries.
			return err
		}
	}

	rideIDs := make([]string, len(rides))
	for i, ride := range rides {
		rideIDs[i] = ride.ID
	}
	if err := s.rideRepo.MarkPaidOut(ctx, rideIDs); err != nil {
		return err
	}
	if commission > 0 {
		if err := s.driverRepo.AddCommissionPaid(ctx, driverID, commission); err != nil {
			log.Printf("payout: failed to record commission for driver %s: %v", driverID, err)
		}
	}

	log.Printf("payout: driver %s paid %d cents across %d rides (commission %d)", driverID, payout, len(rides), commission)
	return nil
}

// RunDailySubscriptions charges monthly and yearly plan fees when due.
// On the first of the month it also zeroes every commission accumulator
// so the cap starts fresh.
func (s *payoutService) RunDailySubscriptions(ctx context.Context, now time.Time) error {
	if now.Day() == 1 {
		if err := s.driverRepo.ResetMonthlyCommission(ctx); err != nil {
			log.Printf("payout: failed to reset monthly commission accumulators: %v", err)
		}
	}

	drivers, err := s.driverRepo.ListSubscriptionDrivers(ctx)
	if err != nil {
		return fmt.Errorf("listing subscription drivers: %w", err)
	}

	for _, driver := range drivers {
		fee := s.cfg.MonthlyFeeCents
		description := "monthly subscription"
		// Calendar periods, not fixed day counts: a payment on Jan 5 falls
		// due on Feb 5 whatever the month length.
		dueBefore := now.AddDate(0, -1, 0)
		if driver.PaymentStyle == models.PaymentStyleYearly {
			fee = s.cfg.YearlyFeeCents
			description = "yearly subscription"
			dueBefore = now.AddDate(-1, 0, 0)
		}

		if driver.LastSubscriptionPaymentAt != nil && driver.LastSubscriptionPaymentAt.After(dueBefore) {
			continue
		}

		if err := s.payments.ChargeSubscription(ctx, &driver, fee, description); err != nil {
			// Recorded for reconciliation; retried on the next run.
			continue
		}
		if err := s.driverRepo.SetLastSubscriptionPayment(ctx, driver.ID, now); err != nil {
			log.Printf("payout: failed to record subscription payment for driver %s: %v", driver.ID, err)
		}
	}
	return nil
}
