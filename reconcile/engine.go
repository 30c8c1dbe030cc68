package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/models"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Engine ties detection, resolution and persistence together. All collaborators
// are interfaces so the engine itself stays database-agnostic.
type Engine struct {
	Config   Config
	Ledger   LedgerStore
	Reports  ReportStore
	Audit    AuditLogger
	Health   HealthNotifier
	Links    LinkResolver
	Locker   RunLocker
	Adapters map[string]PlatformAdapter
	Logger   *logrus.Logger
}

func NewEngine(cfg Config, ledger LedgerStore, reports ReportStore, audit AuditLogger, health HealthNotifier, links LinkResolver, locker RunLocker, adapters map[string]PlatformAdapter) *Engine {
	return &Engine{
		Config:   cfg.Normalize(),
		Ledger:   ledger,
		Reports:  reports,
		Audit:    audit,
		Health:   health,
		Links:    links,
		Locker:   locker,
		Adapters: adapters,
		Logger:   config.GetLogger(),
	}
}

func (e *Engine) log() *logrus.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return config.GetLogger()
}

// RunReconciliation reconciles every platform listing of the event, each
// platform independently. One platform failing does not stop the others; the
// completed reports are returned together with the first error encountered.
func (e *Engine) RunReconciliation(ctx context.Context, eventId string, override *TriggerRunRequest) ([]models.ReconciliationReport, error) {
	cfg := e.Config.Normalize()
	if override != nil && override.AutoImportMissingSales != nil {
		cfg.AutoImportMissingSales = *override.AutoImportMissingSales
	}

	links, err := e.Links.ResolvePlatformLinks(ctx, eventId)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("event %s has no ticket platform links: %w", eventId, utils.ErrNotFound)
	}

	var (
		mu      sync.Mutex
		reports []models.ReconciliationReport
	)

	// Deliberately not errgroup.WithContext: a broken platform API must not
	// cancel the sibling platform's run.
	var g errgroup.Group
	for _, link := range links {
		link := link
		g.Go(func() error {
			report, runErr := e.runPlatform(ctx, eventId, link, cfg)
			if report != nil {
				mu.Lock()
				reports = append(reports, *report)
				mu.Unlock()
			}
			return runErr
		})
	}
	err = g.Wait()
	return reports, err
}

func (e *Engine) runPlatform(ctx context.Context, eventId string, link models.EventTicketPlatform, cfg Config) (*models.ReconciliationReport, error) {
	adapter, ok := e.Adapters[link.Platform]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %s", link.Platform)
	}

	lockKey := fmt.Sprintf("reconcile:%s:%s", eventId, link.Platform)
	lock, err := e.Locker.Obtain(ctx, lockKey, cfg.RunLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", link.Platform, utils.ErrRunInProgress)
	}
	defer func() {
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			config.LogError(e.log(), "reconcile", "runPlatform", "release run lock", lockKey, rerr)
		}
	}()

	report := &models.ReconciliationReport{
		ID:        uuid.NewString(),
		EventId:   eventId,
		Platform:  link.Platform,
		Status:    models.ReportStatusRunning,
		StartTime: time.Now(),
	}

	// A failed fetch produces no report at all: detection never ran, so there
	// is nothing truthful to record.
	localSales, err := e.Ledger.FetchLocalSales(ctx, eventId, link.Platform)
	if err != nil {
		return nil, err
	}
	platformSales, err := adapter.FetchPlatformSales(ctx, link.ExternalEventId)
	if err != nil {
		return nil, fmt.Errorf("fetch %s sales: %w", link.Platform, err)
	}

	discrepancies := FindDiscrepancies(eventId, link.Platform, localSales, platformSales, cfg)
	duplicates := FindDuplicateSales(localSales, cfg.DuplicateTimeWindow)
	discrepancies = append(discrepancies, duplicateDiscrepancies(eventId, link.Platform, duplicates, report.StartTime)...)

	resolved := e.resolveDiscrepancies(ctx, eventId, link.Platform, discrepancies, cfg)

	// Totals reflect the state at fetch time, before any auto-resolution wrote
	// to the ledger.
	report.TotalLocalSales = len(localSales)
	report.TotalPlatformSales = len(platformSales)
	for _, sale := range localSales {
		report.TotalLocalRevenue = report.TotalLocalRevenue.Add(sale.TotalAmount)
	}
	for _, sale := range platformSales {
		report.TotalPlatformRevenue = report.TotalPlatformRevenue.Add(sale.TotalAmount)
	}
	report.DiscrepanciesFound = len(discrepancies)
	report.DiscrepanciesResolved = resolved
	report.SyncHealth = syncHealthFor(discrepancies)

	for i := range discrepancies {
		discrepancies[i].ReportId = report.ID
	}
	report.Details = discrepancies

	now := time.Now()
	report.Status = models.ReportStatusCompleted
	report.EndTime = &now
	if err := e.Reports.PersistReport(ctx, report); err != nil {
		return nil, err
	}

	if err := e.Health.UpdateEventHealthStatus(ctx, eventId, report.SyncHealth); err != nil {
		config.LogError(e.log(), "reconcile", "runPlatform", "update event sync health", eventId, err)
	}
	if report.SyncHealth == models.SyncHealthCritical {
		if err := e.Health.CreateAlertNotification(ctx, eventId, report); err != nil {
			config.LogError(e.log(), "reconcile", "runPlatform", "create alert notification", eventId, err)
		}
	}

	e.log().WithFields(logrus.Fields{
		"module":     "reconcile",
		"event_id":   eventId,
		"platform":   link.Platform,
		"report_id":  report.ID,
		"found":      report.DiscrepanciesFound,
		"resolved":   report.DiscrepanciesResolved,
		"syncHealth": report.SyncHealth,
	}).Info("reconciliation run completed")

	return report, nil
}

// syncHealthFor derives run health from what is left unresolved: clean runs are
// healthy, unresolved high severity is critical, anything else unresolved is a
// warning.
func syncHealthFor(discrepancies []models.Discrepancy) string {
	health := models.SyncHealthHealthy
	for _, d := range discrepancies {
		if d.ResolutionStatus != models.ResolutionStatusPending {
			continue
		}
		if d.Severity == models.SeverityHigh {
			return models.SyncHealthCritical
		}
		health = models.SyncHealthWarning
	}
	return health
}
