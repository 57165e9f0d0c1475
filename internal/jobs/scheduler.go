package jobs

import (
	"context"
	"log"
	"time"

	"github.com/flowride/flow/internal/service"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Scheduler drives the periodic background work: the stale-driver sweep,
// weekly payouts and daily subscription billing. Each tick runs inside a
// New Relic background transaction when the agent is configured.
type Scheduler struct {
	reaper  *Reaper
	payouts service.PayoutService
	nrApp   *newrelic.Application

	reaperInterval       time.Duration
	payoutInterval       time.Duration
	subscriptionInterval time.Duration
}

func NewScheduler(
	reaper *Reaper,
	payouts service.PayoutService,
	nrApp *newrelic.Application,
	reaperInterval, payoutInterval, subscriptionInterval time.Duration,
) *Scheduler {
	return &Scheduler{
		reaper:               reaper,
		payouts:              payouts,
		nrApp:                nrApp,
		reaperInterval:       reaperInterval,
		payoutInterval:       payoutInterval,
		subscriptionInterval: subscriptionInterval,
	}
}

// Start launches the job loops. They stop when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, "stale_driver_sweep", s.reaperInterval, func(ctx context.Context) error {
		_, err := s.reaper.Run(ctx)
		return err
	})
	go s.loop(ctx, "weekly_payouts", s.payoutInterval, func(ctx context.Context) error {
		return s.payouts.RunWeeklyPayouts(ctx)
	})
	go s.loop(ctx, "daily_subscriptions", s.subscriptionInterval, func(ctx context.Context) error {
		return s.payouts.RunDailySubscriptions(ctx, time.Now())
	})
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, name, fn)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, name string, fn func(context.Context) error) {
	if s.nrApp != nil {
		txn := s.nrApp.StartTransaction("job/" + name)
		defer txn.End()
		ctx = newrelic.NewContext(ctx, txn)
	}

	if err := fn(ctx); err != nil {
		log.Printf("jobs: %s failed: %v", name, err)
	}
}
