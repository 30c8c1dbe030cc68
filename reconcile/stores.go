package reconcile

import (
	"context"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
	"github.com/shopspring/decimal"
)

// The engine depends only on these interfaces; gorm, redis and pub/sub live
// behind them so unit tests run against in-memory fakes.

// PlatformAdapter fetches normalized order data for one external platform.
type PlatformAdapter interface {
	Platform() string
	FetchPlatformSales(ctx context.Context, externalEventId string) ([]PlatformSale, error)
}

// LedgerStore reads and writes internal sale records.
type LedgerStore interface {
	FetchLocalSales(ctx context.Context, eventId string, platform string) ([]models.TicketSale, error)
	FetchEventSales(ctx context.Context, eventId string) ([]models.TicketSale, error)
	InsertSale(ctx context.Context, sale *models.TicketSale, tags map[string]bool) (*models.TicketSale, error)
	UpdateSaleAmount(ctx context.Context, saleId string, newAmount decimal.Decimal, tags map[string]bool) error
	RemoveSale(ctx context.Context, saleId string) error
}

// ReportStore persists reconciliation history.
type ReportStore interface {
	PersistReport(ctx context.Context, report *models.ReconciliationReport) error
	FetchRecentReports(ctx context.Context, eventId string, limit int) ([]models.ReconciliationReport, error)
	FetchUnresolvedDiscrepancies(ctx context.Context, eventId string) ([]models.Discrepancy, error)
	GetDiscrepancy(ctx context.Context, id string) (*models.Discrepancy, error)
	UpdateDiscrepancyResolution(ctx context.Context, d *models.Discrepancy) error
}

// AuditLogger records every resolution attempt and manual adjustment.
type AuditLogger interface {
	LogAction(ctx context.Context, actor string, action string, subjectId string, eventId string, payload interface{}) error
}

// HealthNotifier publishes run outcomes to the rest of the platform.
type HealthNotifier interface {
	UpdateEventHealthStatus(ctx context.Context, eventId string, health string) error
	CreateAlertNotification(ctx context.Context, eventId string, report *models.ReconciliationReport) error
}

// LinkResolver returns the platform listings configured for an event.
type LinkResolver interface {
	ResolvePlatformLinks(ctx context.Context, eventId string) ([]models.EventTicketPlatform, error)
}

// RunLock is a held per-(event, platform) reconciliation lock.
type RunLock interface {
	Release(ctx context.Context) error
}

// RunLocker serializes runs for the same (event, platform) pair.
type RunLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (RunLock, error)
}
