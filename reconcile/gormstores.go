package reconcile

import (
	"context"
	"time"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/models"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
)

// Production wiring for the engine interfaces: gorm via the models package,
// locking via redislock. Unit tests substitute in-memory fakes.

type gormLedgerStore struct{}

func NewLedgerStore() LedgerStore { return gormLedgerStore{} }

func (gormLedgerStore) FetchLocalSales(ctx context.Context, eventId string, platform string) ([]models.TicketSale, error) {
	return models.FetchTicketSales(ctx, eventId, platform)
}

func (gormLedgerStore) FetchEventSales(ctx context.Context, eventId string) ([]models.TicketSale, error) {
	return models.FetchEventTicketSales(ctx, eventId)
}

func (gormLedgerStore) InsertSale(ctx context.Context, sale *models.TicketSale, tags map[string]bool) (*models.TicketSale, error) {
	sale.TagsJSON = models.EncodeSaleTags(tags)
	return models.UpsertTicketSale(ctx, sale)
}

func (gormLedgerStore) UpdateSaleAmount(ctx context.Context, saleId string, newAmount decimal.Decimal, tags map[string]bool) error {
	return models.UpdateTicketSaleAmount(ctx, saleId, newAmount, tags)
}

func (gormLedgerStore) RemoveSale(ctx context.Context, saleId string) error {
	return models.RemoveTicketSale(ctx, saleId)
}

type gormReportStore struct{}

func NewReportStore() ReportStore { return gormReportStore{} }

func (gormReportStore) PersistReport(ctx context.Context, report *models.ReconciliationReport) error {
	return models.PersistReconciliationReport(ctx, report)
}

func (gormReportStore) FetchRecentReports(ctx context.Context, eventId string, limit int) ([]models.ReconciliationReport, error) {
	return models.FetchRecentReports(ctx, eventId, limit)
}

func (gormReportStore) FetchUnresolvedDiscrepancies(ctx context.Context, eventId string) ([]models.Discrepancy, error) {
	return models.FetchUnresolvedDiscrepancies(ctx, eventId)
}

func (gormReportStore) GetDiscrepancy(ctx context.Context, id string) (*models.Discrepancy, error) {
	return models.GetDiscrepancyById(ctx, id)
}

func (gormReportStore) UpdateDiscrepancyResolution(ctx context.Context, d *models.Discrepancy) error {
	return models.UpdateDiscrepancyResolution(ctx, d)
}

type dbAuditLogger struct{}

func NewAuditLogger() AuditLogger { return dbAuditLogger{} }

func (dbAuditLogger) LogAction(ctx context.Context, actor string, action string, subjectId string, eventId string, payload interface{}) error {
	return models.CreateAuditLog(ctx, actor, action, subjectId, eventId, payload)
}

type dbHealthNotifier struct{}

func NewHealthNotifier() HealthNotifier { return dbHealthNotifier{} }

func (dbHealthNotifier) UpdateEventHealthStatus(ctx context.Context, eventId string, health string) error {
	return models.UpdateEventSyncHealth(ctx, eventId, health)
}

func (dbHealthNotifier) CreateAlertNotification(ctx context.Context, eventId string, report *models.ReconciliationReport) error {
	return models.CreateAlertNotification(ctx, eventId, report)
}

type gormLinkResolver struct{}

func NewLinkResolver() LinkResolver { return gormLinkResolver{} }

func (gormLinkResolver) ResolvePlatformLinks(ctx context.Context, eventId string) ([]models.EventTicketPlatform, error) {
	return models.GetEventPlatformLinks(ctx, eventId)
}

type redisRunLocker struct{}

// NewRunLocker returns the redislock-backed run serializer. The redis client is
// resolved per Obtain call because it connects after the HTTP server is up.
func NewRunLocker() RunLocker { return redisRunLocker{} }

func (redisRunLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (RunLock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, utils.ErrRunInProgress
	}
	lock, err := locker.Obtain(ctx, key, ttl, nil)
	if err != nil {
		return nil, err
	}
	return redisRunLock{lock: lock}, nil
}

type redisRunLock struct {
	lock *redislock.Lock
}

func (l redisRunLock) Release(ctx context.Context) error {
	return l.lock.Release(ctx)
}
