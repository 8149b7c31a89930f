package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/hireboard/hireboard/app/models"
	"github.com/hireboard/hireboard/app/repository"
)

// fakeEntitlementRepo is an in-memory stand-in with the same idempotency
// and atomic-consume semantics as the SQL-backed repository.
type fakeEntitlementRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.Entitlement
	// payment refs already consumed by CreateFromPurchase
	paymentRefs map[string]bool
	purchases   []*models.Purchase

	failResetFor map[uint]bool
}

func newFakeEntitlementRepo() *fakeEntitlementRepo {
	return &fakeEntitlementRepo{
		nextID:       1,
		rows:         map[uint]*models.Entitlement{},
		paymentRefs:  map[string]bool{},
		failResetFor: map[uint]bool{},
	}
}

func (f *fakeEntitlementRepo) add(ent *models.Entitlement) *models.Entitlement {
	cp := *ent
	cp.ID = f.nextID
	f.nextID++
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	f.rows[cp.ID] = &cp
	return &cp
}

func (f *fakeEntitlementRepo) supersedeActive(customerID uint, keepRef string) {
	for _, row := range f.rows {
		if row.CustomerID != customerID || row.Status != models.EntitlementStatusActive {
			continue
		}
		if keepRef != "" && row.ExternalSubscriptionRef != nil && *row.ExternalSubscriptionRef == keepRef {
			continue
		}
		row.Status = models.EntitlementStatusCancelled
	}
}

func (f *fakeEntitlementRepo) CreateFromSubscription(ent *models.Entitlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ent.ExternalSubscriptionRef == nil || *ent.ExternalSubscriptionRef == "" {
		return gorm.ErrInvalidData
	}
	f.supersedeActive(ent.CustomerID, *ent.ExternalSubscriptionRef)
	for _, row := range f.rows {
		if row.ExternalSubscriptionRef != nil && *row.ExternalSubscriptionRef == *ent.ExternalSubscriptionRef {
			row.Status = ent.Status
			row.PeriodStart = ent.PeriodStart
			row.PeriodEnd = ent.PeriodEnd
			row.CancelAtPeriodEnd = ent.CancelAtPeriodEnd
			ent.ID = row.ID
			return nil
		}
	}
	created := f.add(ent)
	ent.ID = created.ID
	return nil
}

func (f *fakeEntitlementRepo) CreateFromPurchase(ent *models.Entitlement, purchase *models.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paymentRefs[purchase.ExternalPaymentRef] {
		return nil
	}
	f.paymentRefs[purchase.ExternalPaymentRef] = true
	f.purchases = append(f.purchases, purchase)
	f.supersedeActive(ent.CustomerID, "")
	created := f.add(ent)
	ent.ID = created.ID
	return nil
}

func (f *fakeEntitlementRepo) GetByID(id uint) (*models.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeEntitlementRepo) GetByExternalSubscriptionRef(ref string) (*models.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ExternalSubscriptionRef != nil && *row.ExternalSubscriptionRef == ref {
			cp := *row
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEntitlementRepo) GetActiveByCustomer(customerID uint) (*models.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *models.Entitlement
	for _, row := range f.rows {
		if row.CustomerID != customerID || row.Status != models.EntitlementStatusActive {
			continue
		}
		if newest == nil || row.ID > newest.ID {
			newest = row
		}
	}
	if newest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *newest
	return &cp, nil
}

func (f *fakeEntitlementRepo) UpdateFromSubscription(ref string, status string, periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ExternalSubscriptionRef != nil && *row.ExternalSubscriptionRef == ref {
			row.Status = status
			if periodStart != nil {
				row.PeriodStart = periodStart
			}
			if periodEnd != nil {
				row.PeriodEnd = periodEnd
			}
			row.CancelAtPeriodEnd = cancelAtPeriodEnd
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeEntitlementRepo) UpdateStatus(ref string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ExternalSubscriptionRef != nil && *row.ExternalSubscriptionRef == ref {
			row.Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeEntitlementRepo) ConsumeQuota(id uint) (bool, *models.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return false, nil, gorm.ErrRecordNotFound
	}
	if row.Status != models.EntitlementStatusActive {
		return false, nil, nil
	}
	if row.Quota != models.QuotaUnlimited && row.Used >= row.Quota {
		return false, nil, nil
	}
	row.Used++
	cp := *row
	return true, &cp, nil
}

func (f *fakeEntitlementRepo) ListDueForReset(planIDs []string) ([]models.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := map[string]bool{}
	for _, id := range planIDs {
		allowed[id] = true
	}
	var out []models.Entitlement
	for _, row := range f.rows {
		if row.Status == models.EntitlementStatusActive && allowed[row.PlanID] {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeEntitlementRepo) ResetUsage(id uint, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failResetFor[id] {
		return fmt.Errorf("simulated reset failure")
	}
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.Used = 0
	row.LastResetAt = &now
	return nil
}

func (f *fakeEntitlementRepo) ListByCustomer(customerID uint) ([]models.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Entitlement
	for _, row := range f.rows {
		if row.CustomerID == customerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeJobRepo struct {
	mu          sync.Mutex
	annotations map[uint]uint
	annotateErr error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{annotations: map[uint]uint{}}
}

func (f *fakeJobRepo) Create(job *models.Job) error              { return nil }
func (f *fakeJobRepo) GetByID(id uint) (*models.Job, error)      { return nil, gorm.ErrRecordNotFound }
func (f *fakeJobRepo) GetByUUID(u string) (*models.Job, error)   { return nil, gorm.ErrRecordNotFound }
func (f *fakeJobRepo) CountByCustomerID(c uint) (int64, error)   { return 0, nil }
func (f *fakeJobRepo) GetByCustomerID(c uint, o, l int) ([]models.Job, error) {
	return nil, nil
}

func (f *fakeJobRepo) AnnotateEntitlement(jobID, entitlementID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.annotateErr != nil {
		return f.annotateErr
	}
	f.annotations[jobID] = entitlementID
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	nextID uint
	seen   map[string]*models.BillingWebhookEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{nextID: 1, seen: map[string]*models.BillingWebhookEvent{}}
}

func (f *fakeEventRepo) CreateIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := event.Provider + ":" + event.ProviderEventID
	if existing, ok := f.seen[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	event.ID = f.nextID
	f.nextID++
	cp := *event
	f.seen[key] = &cp
	return true, event, nil
}

func (f *fakeEventRepo) MarkProcessed(id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, row := range f.seen {
		if row.ID == id {
			row.ProcessedAt = &now
			row.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeUserRepo struct {
	users map[uint]*models.User
}

func (f *fakeUserRepo) Create(u *models.User) error           { return nil }
func (f *fakeUserRepo) Update(u *models.User) error           { return nil }
func (f *fakeUserRepo) Count() (int64, error)                 { return int64(len(f.users)), nil }
func (f *fakeUserRepo) GetByEmail(e string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == e {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

// fakeFetcher scripts the processor's subscription read.
type fakeFetcher struct {
	state *SubscriptionState
	err   error
	calls int
}

func (f *fakeFetcher) FetchSubscription(ctx context.Context, ref string) (*SubscriptionState, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.state == nil {
		return nil, fmt.Errorf("no subscription scripted for %s", ref)
	}
	cp := *f.state
	cp.Ref = ref
	return &cp, nil
}

type memorySummaryCache struct {
	mu          sync.Mutex
	entries     map[uint]*QuotaSummary
	invalidated int
}

func newMemorySummaryCache() *memorySummaryCache {
	return &memorySummaryCache{entries: map[uint]*QuotaSummary{}}
}

func (m *memorySummaryCache) Get(customerID uint) (*QuotaSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, ok := m.entries[customerID]
	return sum, ok
}

func (m *memorySummaryCache) Set(customerID uint, sum *QuotaSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[customerID] = sum
}

func (m *memorySummaryCache) Invalidate(customerID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, customerID)
	m.invalidated++
}

type testEnv struct {
	svc     *Service
	ents    *fakeEntitlementRepo
	jobs    *fakeJobRepo
	events  *fakeEventRepo
	users   *fakeUserRepo
	fetcher *fakeFetcher
	cache   *memorySummaryCache
}

func newTestEnv() *testEnv {
	ents := newFakeEntitlementRepo()
	jobs := newFakeJobRepo()
	events := newFakeEventRepo()
	users := &fakeUserRepo{users: map[uint]*models.User{}}
	fetcher := &fakeFetcher{}
	cache := newMemorySummaryCache()

	repos := &repository.Repositories{
		User:         users,
		Entitlement:  ents,
		Job:          jobs,
		WebhookEvent: events,
	}
	svc := NewService(repos, fetcher, cache, testLogger())

	return &testEnv{
		svc:     svc,
		ents:    ents,
		jobs:    jobs,
		events:  events,
		users:   users,
		fetcher: fetcher,
		cache:   cache,
	}
}
