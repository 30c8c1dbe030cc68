package reconcile

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory fakes for the engine interfaces. Runs fan out per platform, so
// every mutable fake locks around its state.

type fakeLedger struct {
	mu        sync.Mutex
	sales     []models.TicketSale
	insertErr error
	updateErr error
	removeErr error
}

func (f *fakeLedger) FetchLocalSales(ctx context.Context, eventId string, platform string) ([]models.TicketSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TicketSale
	for _, s := range f.sales {
		if s.EventId == eventId && s.Platform == platform {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeLedger) FetchEventSales(ctx context.Context, eventId string) ([]models.TicketSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TicketSale
	for _, s := range f.sales {
		if s.EventId == eventId {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeLedger) InsertSale(ctx context.Context, sale *models.TicketSale, tags map[string]bool) (*models.TicketSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	sale.TagsJSON = models.EncodeSaleTags(tags)
	for _, s := range f.sales {
		if s.EventId == sale.EventId && s.Platform == sale.Platform &&
			sale.PlatformOrderId != "" && s.PlatformOrderId == sale.PlatformOrderId {
			return &s, nil
		}
	}
	f.sales = append(f.sales, *sale)
	return sale, nil
}

func (f *fakeLedger) UpdateSaleAmount(ctx context.Context, saleId string, newAmount decimal.Decimal, tags map[string]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.sales {
		if f.sales[i].ID == saleId {
			f.sales[i].TotalAmount = newAmount
			merged := models.DecodeSaleTags(f.sales[i].TagsJSON)
			for k, v := range tags {
				merged[k] = v
			}
			f.sales[i].TagsJSON = models.EncodeSaleTags(merged)
			return nil
		}
	}
	return utils.ErrNotFound
}

func (f *fakeLedger) RemoveSale(ctx context.Context, saleId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	for i := range f.sales {
		if f.sales[i].ID == saleId {
			f.sales = append(f.sales[:i], f.sales[i+1:]...)
			return nil
		}
	}
	return utils.ErrNotFound
}

func (f *fakeLedger) findSale(id string) (models.TicketSale, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sales {
		if s.ID == id {
			return s, true
		}
	}
	return models.TicketSale{}, false
}

type fakeReports struct {
	mu            sync.Mutex
	persisted     []models.ReconciliationReport
	recent        []models.ReconciliationReport
	discrepancies map[string]*models.Discrepancy
	persistErr    error
}

func (f *fakeReports) PersistReport(ctx context.Context, report *models.ReconciliationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted = append(f.persisted, *report)
	return nil
}

func (f *fakeReports) FetchRecentReports(ctx context.Context, eventId string, limit int) ([]models.ReconciliationReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ReconciliationReport
	for _, r := range f.recent {
		if r.EventId == eventId {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeReports) FetchUnresolvedDiscrepancies(ctx context.Context, eventId string) ([]models.Discrepancy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Discrepancy
	for _, d := range f.discrepancies {
		if d.EventId == eventId && d.ResolutionStatus == models.ResolutionStatusPending {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeReports) GetDiscrepancy(ctx context.Context, id string) (*models.Discrepancy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.discrepancies[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (f *fakeReports) UpdateDiscrepancyResolution(ctx context.Context, d *models.Discrepancy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.discrepancies[d.ID]
	if !ok {
		return utils.ErrNotFound
	}
	stored.ResolutionStatus = d.ResolutionStatus
	stored.ResolutionMethod = d.ResolutionMethod
	stored.ResolutionNotes = d.ResolutionNotes
	stored.ResolvedAt = d.ResolvedAt
	return nil
}

type auditEntry struct {
	actor     string
	action    string
	subjectId string
	eventId   string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
	err     error
}

func (f *fakeAudit) LogAction(ctx context.Context, actor string, action string, subjectId string, eventId string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{actor: actor, action: action, subjectId: subjectId, eventId: eventId})
	return f.err
}

func (f *fakeAudit) count(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.action == action {
			n++
		}
	}
	return n
}

type fakeHealth struct {
	mu       sync.Mutex
	statuses []string
	alerts   int
}

func (f *fakeHealth) UpdateEventHealthStatus(ctx context.Context, eventId string, health string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, health)
	return nil
}

func (f *fakeHealth) CreateAlertNotification(ctx context.Context, eventId string, report *models.ReconciliationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts++
	return nil
}

type fakeLinks struct {
	links []models.EventTicketPlatform
	err   error
}

func (f *fakeLinks) ResolvePlatformLinks(ctx context.Context, eventId string) ([]models.EventTicketPlatform, error) {
	return f.links, f.err
}

type fakeLock struct{}

func (fakeLock) Release(ctx context.Context) error { return nil }

type fakeLocker struct {
	mu   sync.Mutex
	busy map[string]bool
	keys []string
}

func (f *fakeLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (RunLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.busy[key] {
		return nil, utils.ErrRunInProgress
	}
	return fakeLock{}, nil
}

type fakeAdapter struct {
	platform string
	sales    []PlatformSale
	err      error
}

func (f *fakeAdapter) Platform() string { return f.platform }

func (f *fakeAdapter) FetchPlatformSales(ctx context.Context, externalEventId string) ([]PlatformSale, error) {
	return f.sales, f.err
}

func newTestEngine(ledger *fakeLedger, reports *fakeReports, audit *fakeAudit, health *fakeHealth, links *fakeLinks, locker *fakeLocker, adapters map[string]PlatformAdapter) *Engine {
	if reports.discrepancies == nil {
		reports.discrepancies = map[string]*models.Discrepancy{}
	}
	return &Engine{
		Config:   DefaultConfig(),
		Ledger:   ledger,
		Reports:  reports,
		Audit:    audit,
		Health:   health,
		Links:    links,
		Locker:   locker,
		Adapters: adapters,
	}
}

func saleAt(eventId, platform, orderId string, amount float64, email string, at time.Time) models.TicketSale {
	return models.TicketSale{
		ID:              uuid.NewString(),
		EventId:         eventId,
		Platform:        platform,
		PlatformOrderId: orderId,
		TotalAmount:     decimal.NewFromFloat(amount),
		CustomerEmail:   email,
		PurchaseDate:    at,
		TicketQuantity:  1,
	}
}

func platformSale(orderId string, amount float64, email string, at time.Time) PlatformSale {
	return PlatformSale{
		OrderId:       orderId,
		TotalAmount:   decimal.NewFromFloat(amount),
		CustomerEmail: email,
		PurchaseDate:  at,
		Quantity:      1,
	}
}
