package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flowride/flow/internal/cache"
	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/push"
)

// In-memory fakes for the dispatch collaborators.

type fakeRideRepo struct {
	mu        sync.Mutex
	rides     map[string]*models.Ride
	locWrites []string
}

func newFakeRideRepo(rides ...*models.Ride) *fakeRideRepo {
	f := &fakeRideRepo{rides: make(map[string]*models.Ride)}
	for _, r := range rides {
		clone := *r
		f.rides[r.ID] = &clone
	}
	return f
}

func (f *fakeRideRepo) get(id string) *models.Ride {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rides[id]
	if !ok {
		return nil
	}
	clone := *r
	return &clone
}

func (f *fakeRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride.Status = models.RideStatusPending
	clone := *ride
	f.rides[ride.ID] = &clone
	return nil
}

func (f *fakeRideRepo) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	return f.get(id), nil
}

func (f *fakeRideRepo) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rides[id]; ok {
		r.Status = status
	}
	return nil
}

func (f *fakeRideRepo) MarkAccepted(ctx context.Context, rideID, driverID string, snapshot models.DriverSnapshot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rides[rideID]
	if r.Status != models.RideStatusPending {
		return false, nil
	}
	r.Status = models.RideStatusAccepted
	r.DriverID = &driverID
	r.DriverName = &snapshot.Name
	now := time.Now()
	r.AcceptedAt = &now
	return true, nil
}

func (f *fakeRideRepo) MarkNoDrivers(ctx context.Context, rideID, refundReason string, refundID, refundErr *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rides[rideID]
	r.Status = models.RideStatusNoDriversAvailable
	r.RefundReason = &refundReason
	r.RefundID = refundID
	r.RefundError = refundErr
	return nil
}

func (f *fakeRideRepo) MarkError(ctx context.Context, rideID, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rides[rideID]; ok {
		r.Status = models.RideStatusError
	}
	return nil
}

func (f *fakeRideRepo) Cancel(ctx context.Context, id, canceledBy, reason string, refundID, refundErr *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rides[id]; ok {
		r.Status = models.RideStatusCanceled
		r.CanceledBy = &canceledBy
		r.CancelReason = &reason
		r.RefundID = refundID
		r.RefundError = refundErr
	}
	return nil
}

func (f *fakeRideRepo) UpdateDriverLocation(ctx context.Context, rideID string, lat, lng float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locWrites = append(f.locWrites, rideID)
	if r, ok := f.rides[rideID]; ok {
		r.DriverCurrentLat = &lat
		r.DriverCurrentLng = &lng
	}
	return nil
}

func (f *fakeRideRepo) GetActiveRideByRiderID(ctx context.Context, riderID string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rides {
		if r.RiderID == riderID && r.IsActive() {
			clone := *r
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeRideRepo) GetActiveRideByDriverID(ctx context.Context, driverID string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rides {
		if r.DriverID != nil && *r.DriverID == driverID && r.IsActive() {
			clone := *r
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeRideRepo) GetCompletedPendingPayout(ctx context.Context, driverID string) ([]models.Ride, error) {
	return nil, nil
}

func (f *fakeRideRepo) ListDriversWithPendingPayout(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeRideRepo) MarkPaidOut(ctx context.Context, rideIDs []string) error { return nil }

type fakeDriverRepo struct {
	mu      sync.Mutex
	drivers map[string]*models.Driver
	subs    []models.Driver
	subPaid map[string]time.Time
}

func newFakeDriverRepo(drivers ...*models.Driver) *fakeDriverRepo {
	f := &fakeDriverRepo{drivers: make(map[string]*models.Driver)}
	for _, d := range drivers {
		clone := *d
		f.drivers[d.ID] = &clone
	}
	return f
}

func (f *fakeDriverRepo) Create(ctx context.Context, driver *models.Driver) error { return nil }

func (f *fakeDriverRepo) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drivers[id]
	if !ok {
		return nil, nil
	}
	clone := *d
	return &clone, nil
}

func (f *fakeDriverRepo) SetOnline(ctx context.Context, id string, online bool) error { return nil }

func (f *fakeDriverRepo) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.drivers[id]; ok {
		d.Status = status
	}
	return nil
}

func (f *fakeDriverRepo) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	return nil
}

func (f *fakeDriverRepo) SetActiveRide(ctx context.Context, id string, rideID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.drivers[id]; ok {
		d.ActiveRideID = rideID
	}
	return nil
}

func (f *fakeDriverRepo) SetPushToken(ctx context.Context, id, token string) error { return nil }

func (f *fakeDriverRepo) MarkStaleOffline(ctx context.Context, olderThan time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakeDriverRepo) AddCommissionPaid(ctx context.Context, id string, amountCents int64) error {
	return nil
}

func (f *fakeDriverRepo) ResetMonthlyCommission(ctx context.Context) error { return nil }

func (f *fakeDriverRepo) ListSubscriptionDrivers(ctx context.Context) ([]models.Driver, error) {
	return f.subs, nil
}

func (f *fakeDriverRepo) SetLastSubscriptionPayment(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subPaid == nil {
		f.subPaid = make(map[string]time.Time)
	}
	f.subPaid[id] = at
	return nil
}

type fakeRiderRepo struct{}

func (f *fakeRiderRepo) Create(ctx context.Context, rider *models.Rider) error { return nil }
func (f *fakeRiderRepo) GetByID(ctx context.Context, id string) (*models.Rider, error) {
	return &models.Rider{ID: id, Name: "Test Rider"}, nil
}
func (f *fakeRiderRepo) SetPushToken(ctx context.Context, id, token string) error { return nil }

type fakeOfferRepo struct {
	mu     sync.Mutex
	offers map[string]*models.DriverOffer
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: make(map[string]*models.DriverOffer)}
}

func (f *fakeOfferRepo) Put(ctx context.Context, offer *models.DriverOffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer.OfferedAt = time.Now()
	clone := *offer
	clone.Response = nil
	clone.RespondedAt = nil
	f.offers[offer.RideID] = &clone
	return nil
}

func (f *fakeOfferRepo) GetByRideID(ctx context.Context, rideID string) (*models.DriverOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[rideID]
	if !ok {
		return nil, nil
	}
	clone := *o
	return &clone, nil
}

func (f *fakeOfferRepo) Respond(ctx context.Context, rideID, driverID, response string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[rideID]
	if !ok || o.DriverID != driverID || o.Response != nil {
		return false, nil
	}
	o.Response = &response
	now := time.Now()
	o.RespondedAt = &now
	return true, nil
}

func (f *fakeOfferRepo) Delete(ctx context.Context, rideID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.offers, rideID)
	return nil
}

type fakeIndex struct {
	mu         sync.Mutex
	candidates []cache.Candidate
	locks      map[string]bool
	presence   map[string]string
}

func newFakeIndex(candidates ...cache.Candidate) *fakeIndex {
	return &fakeIndex{
		candidates: candidates,
		locks:      make(map[string]bool),
		presence:   make(map[string]string),
	}
}

func (f *fakeIndex) Upsert(ctx context.Context, driverID string, lat, lng float64) error { return nil }

func (f *fakeIndex) SetPresence(ctx context.Context, driverID string, online bool, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence[driverID] = status
	return nil
}

func (f *fakeIndex) Remove(ctx context.Context, driverID string) error { return nil }

func (f *fakeIndex) Search(ctx context.Context, lat, lng, radiusKm float64) ([]cache.Candidate, error) {
	return f.candidates, nil
}

func (f *fakeIndex) AcquireOfferLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[driverID] {
		return false, nil
	}
	f.locks[driverID] = true
	return true, nil
}

func (f *fakeIndex) ReleaseOfferLock(ctx context.Context, driverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, driverID)
	return nil
}

type fakePayments struct {
	mu         sync.Mutex
	captured   []string
	refunds    []string // reasons
	subCharges []string // driver IDs
}

func (f *fakePayments) AuthorizeRide(ctx context.Context, rider *models.Rider, amountCents int64) (string, error) {
	return "pi_test", nil
}

func (f *fakePayments) CaptureRide(ctx context.Context, ride *models.Ride) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, ride.ID)
}

func (f *fakePayments) RefundRide(ctx context.Context, ride *models.Ride, reason string) (*string, *string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, reason)
	id := "re_test"
	return &id, nil
}

func (f *fakePayments) TransferPayout(ctx context.Context, driver *models.Driver, amountCents int64, description string) (string, error) {
	return "tr_test", nil
}

func (f *fakePayments) ChargeSubscription(ctx context.Context, driver *models.Driver, amountCents int64, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCharges = append(f.subCharges, driver.ID)
	return nil
}

func availableDriver(id string) *models.Driver {
	return &models.Driver{
		ID:     id,
		Name:   "Driver " + id,
		Online: true,
		Status: models.DriverStatusAvailable,
		Rating: 4.8,
	}
}

func pendingRide(id string) *models.Ride {
	pi := "pi_test"
	return &models.Ride{
		ID:              id,
		RiderID:         "rider-1",
		Status:          models.RideStatusPending,
		PickupLat:       30.6010,
		PickupLng:       -96.3140,
		DropoffLat:      30.6280,
		DropoffLng:      -96.3344,
		FareCents:       1500,
		PaymentIntentID: &pi,
	}
}

func newTestDispatch(rideRepo *fakeRideRepo, driverRepo *fakeDriverRepo, offerRepo *fakeOfferRepo, index *fakeIndex, payments *fakePayments, timeout time.Duration) DispatchService {
	return NewDispatchService(
		rideRepo, driverRepo, &fakeRiderRepo{}, offerRepo,
		index, NewOfferBoard(), payments, push.NopSender{},
		DispatchConfig{
			RadiusKM:     5,
			OfferTimeout: timeout,
			OfferLockTTL: time.Second,
		},
	)
}

// waitForOffer polls until the ride's offer slot names the given driver.
func waitForOffer(t *testing.T, offers *fakeOfferRepo, rideID, driverID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		o, _ := offers.GetByRideID(context.Background(), rideID)
		if o != nil && o.DriverID == driverID && o.Response == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no pending offer for driver %s appeared", driverID)
}

func TestRankCandidatesOrdersByDistance(t *testing.T) {
	ranked := RankCandidates([]cache.Candidate{
		{DriverID: "far", Distance: 4.2, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
		{DriverID: "near", Distance: 0.8, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
		{DriverID: "busy", Distance: 0.1, Status: models.DriverStatusOnTrip, Lat: 30.6, Lng: -96.3},
		{DriverID: "mid", Distance: 2.0, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
	})

	want := []string{"near", "mid", "far"}
	if len(ranked) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(ranked), len(want))
	}
	for i, id := range want {
		if ranked[i].DriverID != id {
			t.Errorf("position %d: got %s, want %s", i, ranked[i].DriverID, id)
		}
	}
}

func TestRankCandidatesTieBreaksOnID(t *testing.T) {
	ranked := RankCandidates([]cache.Candidate{
		{DriverID: "bbb", Distance: 1.0, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
		{DriverID: "aaa", Distance: 1.0, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
	})

	if ranked[0].DriverID != "aaa" || ranked[1].DriverID != "bbb" {
		t.Errorf("equal distances should order by driver ID, got %s then %s", ranked[0].DriverID, ranked[1].DriverID)
	}
}

func TestDispatchNoCandidates(t *testing.T) {
	rides := newFakeRideRepo(pendingRide("ride-1"))
	payments := &fakePayments{}
	svc := newTestDispatch(rides, newFakeDriverRepo(), newFakeOfferRepo(), newFakeIndex(), payments, 50*time.Millisecond)

	svc.Dispatch(context.Background(), "ride-1")

	ride := rides.get("ride-1")
	if ride.Status != models.RideStatusNoDriversAvailable {
		t.Fatalf("status = %s, want %s", ride.Status, models.RideStatusNoDriversAvailable)
	}
	if ride.RefundReason == nil || *ride.RefundReason != models.RefundReasonNoDriversAvailable {
		t.Errorf("refund reason = %v, want %s", ride.RefundReason, models.RefundReasonNoDriversAvailable)
	}
	if len(payments.refunds) != 1 {
		t.Errorf("expected exactly one refund, got %d", len(payments.refunds))
	}
}

func TestDispatchFirstDriverAccepts(t *testing.T) {
	rides := newFakeRideRepo(pendingRide("ride-1"))
	drivers := newFakeDriverRepo(availableDriver("d1"), availableDriver("d2"))
	offers := newFakeOfferRepo()
	index := newFakeIndex(
		cache.Candidate{DriverID: "d1", Distance: 0.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
		cache.Candidate{DriverID: "d2", Distance: 1.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
	)
	payments := &fakePayments{}
	svc := newTestDispatch(rides, drivers, offers, index, payments, 2*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Dispatch(context.Background(), "ride-1")
	}()

	waitForOffer(t, offers, "ride-1", "d1")
	recorded, err := svc.RespondOffer(context.Background(), "d1", &models.RespondOfferRequest{RideID: "ride-1", Accept: true})
	if err != nil || !recorded {
		t.Fatalf("RespondOffer() = %v, %v, want recorded", recorded, err)
	}
	<-done

	ride := rides.get("ride-1")
	if ride.Status != models.RideStatusAccepted {
		t.Fatalf("status = %s, want %s", ride.Status, models.RideStatusAccepted)
	}
	if ride.DriverID == nil || *ride.DriverID != "d1" {
		t.Errorf("driver = %v, want d1", ride.DriverID)
	}
	if ride.DriverName == nil || *ride.DriverName != "Driver d1" {
		t.Errorf("driver snapshot missing, got %v", ride.DriverName)
	}
	if len(payments.captured) != 1 {
		t.Errorf("expected one capture, got %d", len(payments.captured))
	}

	d1, _ := drivers.GetByID(context.Background(), "d1")
	if d1.Status != models.DriverStatusOnTrip {
		t.Errorf("driver status = %s, want %s", d1.Status, models.DriverStatusOnTrip)
	}
	if d1.ActiveRideID == nil || *d1.ActiveRideID != "ride-1" {
		t.Errorf("driver active ride = %v, want ride-1", d1.ActiveRideID)
	}
}

func TestDispatchTimeoutMovesToNextCandidate(t *testing.T) {
	rides := newFakeRideRepo(pendingRide("ride-1"))
	drivers := newFakeDriverRepo(availableDriver("d1"), availableDriver("d2"))
	offers := newFakeOfferRepo()
	index := newFakeIndex(
		cache.Candidate{DriverID: "d1", Distance: 0.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
		cache.Candidate{DriverID: "d2", Distance: 1.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
	)
	payments := &fakePayments{}
	svc := newTestDispatch(rides, drivers, offers, index, payments, 100*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Dispatch(context.Background(), "ride-1")
	}()

	// Ignore d1's offer entirely; the loop should time out and move on.
	waitForOffer(t, offers, "ride-1", "d2")
	recorded, err := svc.RespondOffer(context.Background(), "d2", &models.RespondOfferRequest{RideID: "ride-1", Accept: true})
	if err != nil || !recorded {
		t.Fatalf("RespondOffer() = %v, %v, want recorded", recorded, err)
	}
	<-done

	ride := rides.get("ride-1")
	if ride.Status != models.RideStatusAccepted {
		t.Fatalf("status = %s, want %s", ride.Status, models.RideStatusAccepted)
	}
	if ride.DriverID == nil || *ride.DriverID != "d2" {
		t.Errorf("driver = %v, want d2", ride.DriverID)
	}
}

func TestDispatchAllReject(t *testing.T) {
	rides := newFakeRideRepo(pendingRide("ride-1"))
	drivers := newFakeDriverRepo(availableDriver("d1"), availableDriver("d2"))
	offers := newFakeOfferRepo()
	index := newFakeIndex(
		cache.Candidate{DriverID: "d1", Distance: 0.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
		cache.Candidate{DriverID: "d2", Distance: 1.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
	)
	payments := &fakePayments{}
	svc := newTestDispatch(rides, drivers, offers, index, payments, 2*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Dispatch(context.Background(), "ride-1")
	}()

	waitForOffer(t, offers, "ride-1", "d1")
	svc.RespondOffer(context.Background(), "d1", &models.RespondOfferRequest{RideID: "ride-1", Accept: false})
	waitForOffer(t, offers, "ride-1", "d2")
	svc.RespondOffer(context.Background(), "d2", &models.RespondOfferRequest{RideID: "ride-1", Accept: false})
	<-done

	ride := rides.get("ride-1")
	if ride.Status != models.RideStatusNoDriversAvailable {
		t.Fatalf("status = %s, want %s", ride.Status, models.RideStatusNoDriversAvailable)
	}
	if ride.RefundReason == nil || *ride.RefundReason != models.RefundReasonNoDriversAccepted {
		t.Errorf("refund reason = %v, want %s", ride.RefundReason, models.RefundReasonNoDriversAccepted)
	}
	if len(payments.refunds) != 1 {
		t.Errorf("expected exactly one refund, got %d", len(payments.refunds))
	}
}

func TestLateResponseIsInert(t *testing.T) {
	rides := newFakeRideRepo(pendingRide("ride-1"))
	drivers := newFakeDriverRepo(availableDriver("d1"), availableDriver("d2"))
	offers := newFakeOfferRepo()
	index := newFakeIndex(
		cache.Candidate{DriverID: "d1", Distance: 0.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
		cache.Candidate{DriverID: "d2", Distance: 1.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
	)
	payments := &fakePayments{}
	svc := newTestDispatch(rides, drivers, offers, index, payments, 100*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Dispatch(context.Background(), "ride-1")
	}()

	// Let d1's window lapse, then d2 accepts.
	waitForOffer(t, offers, "ride-1", "d2")
	svc.RespondOffer(context.Background(), "d2", &models.RespondOfferRequest{RideID: "ride-1", Accept: true})
	<-done

	// d1 finally answers; the offer has moved on, so nothing records.
	recorded, err := svc.RespondOffer(context.Background(), "d1", &models.RespondOfferRequest{RideID: "ride-1", Accept: true})
	if err != nil {
		t.Fatalf("RespondOffer() error = %v", err)
	}
	if recorded {
		t.Error("late response should not be recorded")
	}

	ride := rides.get("ride-1")
	if ride.DriverID == nil || *ride.DriverID != "d2" {
		t.Errorf("driver = %v, want d2", ride.DriverID)
	}
}

func TestDispatchSkipsLockedDriver(t *testing.T) {
	rides := newFakeRideRepo(pendingRide("ride-1"))
	drivers := newFakeDriverRepo(availableDriver("d1"), availableDriver("d2"))
	offers := newFakeOfferRepo()
	index := newFakeIndex(
		cache.Candidate{DriverID: "d1", Distance: 0.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
		cache.Candidate{DriverID: "d2", Distance: 1.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
	)
	// d1 is mid-offer on some other ride.
	index.locks["d1"] = true

	payments := &fakePayments{}
	svc := newTestDispatch(rides, drivers, offers, index, payments, 2*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Dispatch(context.Background(), "ride-1")
	}()

	waitForOffer(t, offers, "ride-1", "d2")
	svc.RespondOffer(context.Background(), "d2", &models.RespondOfferRequest{RideID: "ride-1", Accept: true})
	<-done

	ride := rides.get("ride-1")
	if ride.DriverID == nil || *ride.DriverID != "d2" {
		t.Errorf("locked driver should be skipped, got %v", ride.DriverID)
	}
}

func TestCancelDuringOfferWindowDropsAcceptance(t *testing.T) {
	rides := newFakeRideRepo(pendingRide("ride-1"))
	drivers := newFakeDriverRepo(availableDriver("d1"))
	offers := newFakeOfferRepo()
	index := newFakeIndex(
		cache.Candidate{DriverID: "d1", Distance: 0.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
	)
	payments := &fakePayments{}
	svc := newTestDispatch(rides, drivers, offers, index, payments, 2*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Dispatch(context.Background(), "ride-1")
	}()

	// The rider cancels while d1 is looking at the offer, then d1 accepts.
	waitForOffer(t, offers, "ride-1", "d1")
	rides.Cancel(context.Background(), "ride-1", "rider-1", "changed plans", nil, nil)
	svc.RespondOffer(context.Background(), "d1", &models.RespondOfferRequest{RideID: "ride-1", Accept: true})
	<-done

	ride := rides.get("ride-1")
	if ride.Status != models.RideStatusCanceled {
		t.Fatalf("status = %s, want the cancellation to stand", ride.Status)
	}
	if ride.DriverID != nil {
		t.Errorf("canceled ride must not gain a driver, got %v", *ride.DriverID)
	}
	if len(payments.captured) != 0 {
		t.Errorf("canceled ride must not be captured, got %d captures", len(payments.captured))
	}

	d1, _ := drivers.GetByID(context.Background(), "d1")
	if d1.Status != models.DriverStatusAvailable {
		t.Errorf("driver status = %s, want still available", d1.Status)
	}
}

func TestDispatchStopsWhenRideCanceled(t *testing.T) {
	ride := pendingRide("ride-1")
	ride.Status = models.RideStatusCanceled
	rides := newFakeRideRepo(ride)
	drivers := newFakeDriverRepo(availableDriver("d1"))
	index := newFakeIndex(
		cache.Candidate{DriverID: "d1", Distance: 0.5, Status: models.DriverStatusAvailable, Lat: 30.6, Lng: -96.3},
	)
	payments := &fakePayments{}
	svc := newTestDispatch(rides, drivers, newFakeOfferRepo(), index, payments, 50*time.Millisecond)

	svc.Dispatch(context.Background(), "ride-1")

	got := rides.get("ride-1")
	if got.Status != models.RideStatusCanceled {
		t.Fatalf("canceled ride should be left alone, status = %s", got.Status)
	}
	if len(payments.refunds) != 0 {
		t.Errorf("canceled ride should not be refunded again, got %d refunds", len(payments.refunds))
	}
}
