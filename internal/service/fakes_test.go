package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reserva/internal/config"
	"reserva/internal/models"
	"reserva/internal/repository"
	"reserva/internal/reserr"
)

// In-memory fakes for the store interfaces. They mirror the repository
// semantics closely enough for the business rules under test: CAS updates,
// capacity checks against the occupying sum, unique dispute rows.

type fakeReservationStore struct {
	mu    sync.Mutex
	rows  map[string]*models.Reservation
	slots map[string]*models.Slot
	seq   int
}

func newFakeReservationStore(slots map[string]*models.Slot) *fakeReservationStore {
	return &fakeReservationStore{rows: make(map[string]*models.Reservation), slots: slots}
}

func (f *fakeReservationStore) nextID() string {
	f.seq++
	return fmt.Sprintf("res-%d", f.seq)
}

func (f *fakeReservationStore) GetByID(_ context.Context, id string) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeReservationStore) GetByBookingRef(_ context.Context, ref string) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.BookingRef == ref {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeReservationStore) ListByConsumer(_ context.Context, consumerID string) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reservation
	for _, r := range f.rows {
		if r.ConsumerID == consumerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReservationStore) HasActiveDuplicate(_ context.Context, consumerID, establishmentID string, slotID *string, startsAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ConsumerID != consumerID || models.IsTerminal(r.Status) {
			continue
		}
		if slotID != nil && r.SlotID != nil && *r.SlotID == *slotID {
			return true, nil
		}
		if r.EstablishmentID == establishmentID && r.StartsAt.Equal(startsAt) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservationStore) occupyingSumLocked(slotID string) int {
	sum := 0
	for _, r := range f.rows {
		if r.SlotID != nil && *r.SlotID == slotID && models.IsOccupying(r.Status) {
			sum += r.PartySize
		}
	}
	return sum
}

func (f *fakeReservationStore) CreateWithCapacity(_ context.Context, res *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res.SlotID != nil && models.IsOccupying(res.Status) {
		slot, ok := f.slots[*res.SlotID]
		if !ok {
			return reserr.New(reserr.CodeSlotNotFound, "slot not found")
		}
		remaining := slot.Capacity - f.occupyingSumLocked(*res.SlotID)
		if res.PartySize > remaining {
			return reserr.New(reserr.CodeSlotFull, "slot has insufficient capacity").
				WithMeta(map[string]any{"remaining": remaining, "party_size": res.PartySize})
		}
	}
	res.ID = f.nextID()
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	cp := *res
	f.rows[res.ID] = &cp
	return nil
}

func (f *fakeReservationStore) Transition(_ context.Context, id string, from, to models.ReservationStatus, patch *repository.ReservationPatch) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, reserr.New(reserr.CodeReservationNotFound, "reservation not found")
	}
	if r.Status != from {
		return nil, reserr.New(reserr.CodeConflict, "reservation changed concurrently")
	}
	r.Status = to
	if patch != nil {
		if patch.PaymentStatus != nil {
			r.PaymentStatus = *patch.PaymentStatus
		}
		if patch.PaymentType != nil {
			r.PaymentType = *patch.PaymentType
		}
		if patch.DepositCents != nil {
			r.DepositCents = *patch.DepositCents
		}
		if patch.CheckedInAt != nil {
			r.CheckedInAt = patch.CheckedInAt
		}
		if patch.Meta != nil {
			r.Meta = patch.Meta
		}
	}
	r.UpdatedAt = time.Now().UTC()
	cp := *r
	return &cp, nil
}

func (f *fakeReservationStore) OccupyingPartySum(_ context.Context, slotID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.occupyingSumLocked(slotID), nil
}

type fakeClientStatsStore struct {
	mu    sync.Mutex
	rows  map[string]*models.ClientStats
	fail  bool
	calls int
}

func newFakeClientStatsStore() *fakeClientStatsStore {
	return &fakeClientStatsStore{rows: make(map[string]*models.ClientStats)}
}

func (f *fakeClientStatsStore) Get(_ context.Context, consumerID string) (*models.ClientStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("store down")
	}
	if st, ok := f.rows[consumerID]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeClientStatsStore) Mutate(_ context.Context, consumerID string, fn func(*models.ClientStats)) (*models.ClientStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("store down")
	}
	f.calls++
	st, ok := f.rows[consumerID]
	if !ok {
		st = &models.ClientStats{ConsumerID: consumerID}
		f.rows[consumerID] = st
	}
	fn(st)
	st.UpdatedAt = time.Now().UTC()
	cp := *st
	return &cp, nil
}

func (f *fakeClientStatsStore) AutoLiftExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lifted int64
	for _, st := range f.rows {
		if st.IsSuspended && st.SuspendedUntil != nil && st.SuspendedUntil.Before(now) {
			st.IsSuspended = false
			st.SuspendedUntil = nil
			st.SuspensionReason = nil
			lifted++
		}
	}
	return lifted, nil
}

type fakeDisputeStore struct {
	mu   sync.Mutex
	rows map[string]*models.NoShowDispute
	seq  int
}

func newFakeDisputeStore() *fakeDisputeStore {
	return &fakeDisputeStore{rows: make(map[string]*models.NoShowDispute)}
}

func (f *fakeDisputeStore) GetByID(_ context.Context, id string) (*models.NoShowDispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.rows[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeDisputeStore) GetByReservationID(_ context.Context, reservationID string) (*models.NoShowDispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.rows {
		if d.ReservationID == reservationID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeDisputeStore) CreateIfAbsent(_ context.Context, d *models.NoShowDispute) (*models.NoShowDispute, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.ReservationID == d.ReservationID {
			cp := *existing
			return &cp, false, nil
		}
	}
	f.seq++
	d.ID = fmt.Sprintf("dsp-%d", f.seq)
	d.CreatedAt = time.Now().UTC()
	cp := *d
	f.rows[d.ID] = &cp
	out := cp
	return &out, true, nil
}

func (f *fakeDisputeStore) UpdateStatus(_ context.Context, id string, from, to models.DisputeStatus, patch *repository.DisputePatch) (*models.NoShowDispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return nil, reserr.New(reserr.CodeDisputeNotFound, "dispute not found")
	}
	if d.Status != from {
		return nil, reserr.New(reserr.CodeConflict, "dispute changed concurrently")
	}
	d.Status = to
	if patch != nil {
		if patch.ClientResponse != nil {
			d.ClientResponse = patch.ClientResponse
		}
		if patch.Evidence != nil {
			d.Evidence = patch.Evidence
		}
		if patch.Decision != nil {
			d.Decision = patch.Decision
		}
		if patch.ArbitratedBy != nil {
			d.ArbitratedBy = patch.ArbitratedBy
		}
		if patch.ResolvedAt != nil {
			d.ResolvedAt = patch.ResolvedAt
		}
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDisputeStore) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]models.NoShowDispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.NoShowDispute
	for _, d := range f.rows {
		if d.Status == models.DisputePendingClientResponse && d.ClientResponseDeadline.Before(now) {
			out = append(out, *d)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type fakeTrustStore struct {
	mu        sync.Mutex
	trust     map[string]*models.ProTrustScore
	sanctions []models.ProSanction
	seq       int
}

func newFakeTrustStore() *fakeTrustStore {
	return &fakeTrustStore{trust: make(map[string]*models.ProTrustScore)}
}

func (f *fakeTrustStore) Get(_ context.Context, establishmentID string) (*models.ProTrustScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.trust[establishmentID]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeTrustStore) ApplySanction(_ context.Context, establishmentID string, decide func(trust *models.ProTrustScore) *models.ProSanction) (*models.ProSanction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trust[establishmentID]
	if !ok {
		t = &models.ProTrustScore{EstablishmentID: establishmentID, CurrentSanction: models.SanctionNone}
		f.trust[establishmentID] = t
	}
	sanction := decide(t)
	f.seq++
	sanction.ID = fmt.Sprintf("sct-%d", f.seq)
	sanction.CreatedAt = time.Now().UTC()
	f.sanctions = append(f.sanctions, *sanction)
	cp := *sanction
	return &cp, nil
}

func (f *fakeTrustStore) ListSanctions(_ context.Context, establishmentID string) ([]models.ProSanction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ProSanction
	for _, s := range f.sanctions {
		if s.EstablishmentID == establishmentID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeWaitlistStore struct {
	mu             sync.Mutex
	rows           map[string]*models.WaitlistEntry
	seq            int
	failCreate     error
	failMarkStatus error
}

func newFakeWaitlistStore() *fakeWaitlistStore {
	return &fakeWaitlistStore{rows: make(map[string]*models.WaitlistEntry)}
}

func (f *fakeWaitlistStore) Create(_ context.Context, e *models.WaitlistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	maxPos := 0
	for _, existing := range f.rows {
		if existing.SlotID == e.SlotID && existing.Position > maxPos {
			maxPos = existing.Position
		}
	}
	f.seq++
	e.ID = fmt.Sprintf("wle-%d", f.seq)
	e.Position = maxPos + 1
	e.Status = models.WaitlistWaiting
	e.CreatedAt = time.Now().UTC()
	cp := *e
	f.rows[e.ID] = &cp
	return nil
}

func (f *fakeWaitlistStore) GetByID(_ context.Context, id string) (*models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.rows[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeWaitlistStore) NextActive(_ context.Context, slotID string) (*models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.WaitlistEntry
	for _, e := range f.rows {
		if e.SlotID != slotID {
			continue
		}
		switch e.Status {
		case models.WaitlistWaiting, models.WaitlistQueued, models.WaitlistOfferSent:
		default:
			continue
		}
		if best == nil || e.Position < best.Position {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeWaitlistStore) MarkOfferSent(_ context.Context, id string, sentAt, expiresAt time.Time) (*models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || (e.Status != models.WaitlistWaiting && e.Status != models.WaitlistQueued) {
		return nil, reserr.New(reserr.CodeConflict, "waitlist entry changed concurrently")
	}
	e.Status = models.WaitlistOfferSent
	e.OfferSentAt = &sentAt
	e.OfferExpiresAt = &expiresAt
	cp := *e
	return &cp, nil
}

func (f *fakeWaitlistStore) MarkStatus(_ context.Context, id string, from, to models.WaitlistStatus) (*models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMarkStatus != nil {
		return nil, f.failMarkStatus
	}
	e, ok := f.rows[id]
	if !ok || e.Status != from {
		return nil, reserr.New(reserr.CodeConflict, "waitlist entry changed concurrently")
	}
	e.Status = to
	if to != models.WaitlistOfferSent {
		e.OfferExpiresAt = nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeWaitlistStore) ListExpiredOffers(_ context.Context, now time.Time, limit int) ([]models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WaitlistEntry
	for _, e := range f.rows {
		if e.Status == models.WaitlistOfferSent && e.OfferExpiresAt != nil && e.OfferExpiresAt.Before(now) {
			out = append(out, *e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type fakeConsumerStore struct {
	consumers map[string]*models.Consumer
	members   map[string]bool // consumerID:establishmentID
}

func newFakeConsumerStore() *fakeConsumerStore {
	return &fakeConsumerStore{consumers: make(map[string]*models.Consumer), members: make(map[string]bool)}
}

func (f *fakeConsumerStore) GetByID(_ context.Context, id string) (*models.Consumer, error) {
	if c, ok := f.consumers[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeConsumerStore) IsEstablishmentMember(_ context.Context, consumerID, establishmentID string) (bool, error) {
	return f.members[consumerID+":"+establishmentID], nil
}

type fakeEstablishmentStore struct {
	rows map[string]*models.Establishment
}

func newFakeEstablishmentStore() *fakeEstablishmentStore {
	return &fakeEstablishmentStore{rows: make(map[string]*models.Establishment)}
}

func (f *fakeEstablishmentStore) GetByID(_ context.Context, id string) (*models.Establishment, error) {
	if e, ok := f.rows[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeEstablishmentStore) ProtectionWindowHours(_ context.Context, id string, fallback int) (int, error) {
	if e, ok := f.rows[id]; ok && e.ProtectionWindowHours != nil {
		return *e.ProtectionWindowHours, nil
	}
	return fallback, nil
}

type fakeSlotStore struct {
	rows map[string]*models.Slot
}

func (f *fakeSlotStore) GetByID(_ context.Context, id string) (*models.Slot, error) {
	if s, ok := f.rows[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *capturePublisher) Publish(subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *capturePublisher) published(subject string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

type captureEscrow struct {
	holds   []string
	settles []string
}

func (e *captureEscrow) EnsureEscrowHold(reservationID, _ string) error {
	e.holds = append(e.holds, reservationID)
	return nil
}

func (e *captureEscrow) Settle(reservationID, _, reason string, _ int) error {
	e.settles = append(e.settles, reservationID+":"+reason)
	return nil
}

// testEnv wires the services against fakes with the default policy knobs.
type testEnv struct {
	reservations *ReservationService
	scoring      *ScoringService
	disputes     *DisputeService
	sanctions    *SanctionService
	waitlist     *WaitlistService

	resStore      *fakeReservationStore
	statsStore    *fakeClientStatsStore
	disputeStore  *fakeDisputeStore
	trustStore    *fakeTrustStore
	waitlistStore *fakeWaitlistStore
	consumers     *fakeConsumerStore
	estabs        *fakeEstablishmentStore
	slots         *fakeSlotStore
	events        *capturePublisher
	escrow        *captureEscrow
}

func defaultTrustConfig() config.TrustConfig {
	return config.TrustConfig{
		ProtectionWindowHours:      24,
		DisputeResponseHours:       48,
		WaitlistOfferMinutes:       120,
		MaxPartySize:               15,
		ConsecutiveNoShowThreshold: 3,
		RehabilitationConsecutive:  5,
		RecurrenceNoShowCount:      5,
		FirstSuspensionDays:        7,
		RecurrenceSuspensionDays:   30,
	}
}

func newTestEnv() *testEnv {
	cfg := defaultTrustConfig()
	slotRows := make(map[string]*models.Slot)

	env := &testEnv{
		statsStore:    newFakeClientStatsStore(),
		disputeStore:  newFakeDisputeStore(),
		trustStore:    newFakeTrustStore(),
		waitlistStore: newFakeWaitlistStore(),
		consumers:     newFakeConsumerStore(),
		estabs:        newFakeEstablishmentStore(),
		slots:         &fakeSlotStore{rows: slotRows},
		events:        &capturePublisher{},
		escrow:        &captureEscrow{},
	}
	env.resStore = newFakeReservationStore(slotRows)

	env.scoring = NewScoringService(env.statsStore, nil, env.events, nil, cfg)
	env.sanctions = NewSanctionService(env.trustStore, env.events, nil)
	env.waitlist = NewWaitlistService(env.waitlistStore, env.resStore, env.slots, env.events, nil, cfg)
	env.reservations = NewReservationService(
		env.resStore, env.consumers, env.estabs, env.slots,
		env.scoring, env.waitlist, env.escrow, env.events, nil, cfg,
	)
	env.disputes = NewDisputeService(env.disputeStore, env.reservations, env.scoring, env.sanctions, env.events, nil, cfg)
	return env
}

func (e *testEnv) addConsumer(id string, verified bool) {
	e.consumers.consumers[id] = &models.Consumer{ID: id, Email: id + "@example.com", EmailVerified: verified, IsActive: true}
}

func (e *testEnv) addEstablishment(id string) {
	e.estabs.rows[id] = &models.Establishment{ID: id, Name: id, IsActive: true}
}

func (e *testEnv) addSlot(id, establishmentID string, capacity int, startsAt time.Time) {
	e.slots.rows[id] = &models.Slot{ID: id, EstablishmentID: establishmentID, Capacity: capacity, StartsAt: startsAt}
}
