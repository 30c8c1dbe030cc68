package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ReportStatusRunning   = "running"
	ReportStatusCompleted = "completed"
	ReportStatusFailed    = "failed"
)

const (
	DiscrepancyTypeMissingSale    = "missing_sale"
	DiscrepancyTypeExtraSale      = "extra_sale"
	DiscrepancyTypeAmountMismatch = "amount_mismatch"
	DiscrepancyTypeDuplicateSale  = "duplicate_sale"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const (
	ResolutionStatusPending       = "pending"
	ResolutionStatusResolved      = "resolved"
	ResolutionStatusIgnored       = "ignored"
	ResolutionStatusFalsePositive = "false_positive"
)

const (
	ResolutionMethodAutoImport  = "auto_import"
	ResolutionMethodAutoCorrect = "auto_correct"
	ResolutionMethodManual      = "manual"
)

// ReconciliationReport records one reconciliation run for one (event, platform)
// pair. Reports are append-only history: once a run reaches completed or failed
// the row is never mutated again.
type ReconciliationReport struct {
	ID                   string          `gorm:"primaryKey;size:36" json:"id"`
	EventId              string          `gorm:"index;size:36;not null" json:"event_id"`
	Platform             string          `gorm:"index;size:50;not null" json:"platform"`
	Status               string          `gorm:"size:20;not null" json:"status"`
	StartTime            time.Time       `json:"start_time"`
	EndTime              *time.Time      `json:"end_time"`
	TotalLocalSales      int             `json:"total_local_sales"`
	TotalPlatformSales   int             `json:"total_platform_sales"`
	TotalLocalRevenue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_local_revenue"`
	TotalPlatformRevenue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_platform_revenue"`
	DiscrepanciesFound   int             `json:"discrepancies_found"`
	DiscrepanciesResolved int            `json:"discrepancies_resolved"`
	SyncHealth           string          `gorm:"size:20" json:"sync_health"`
	Details              []Discrepancy   `gorm:"foreignKey:ReportId;references:ID" json:"details"`
	CorrelationId        string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Discrepancy is one detected divergence between the ledger and a platform, or
// within the ledger (duplicates). Immutable once resolved except for the
// resolution columns.
type Discrepancy struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	ReportId         string     `gorm:"index;size:36" json:"report_id"`
	EventId          string     `gorm:"index;size:36;not null" json:"event_id"`
	Platform         string     `gorm:"size:50;not null" json:"platform"`
	Type             string     `gorm:"size:30;not null" json:"type"`
	Severity         string     `gorm:"size:10;not null" json:"severity"`
	LocalDataJSON    []byte     `gorm:"type:json" json:"local_data"`
	PlatformDataJSON []byte     `gorm:"type:json" json:"platform_data"`
	DifferenceJSON   []byte     `gorm:"type:json" json:"difference"`
	DetectedAt       time.Time  `json:"detected_at"`
	ResolutionStatus string     `gorm:"size:20;default:'pending';index" json:"resolution_status"`
	ResolutionMethod string     `gorm:"size:30" json:"resolution_method"`
	ResolutionNotes  string     `gorm:"type:text" json:"resolution_notes"`
	ResolvedAt       *time.Time `json:"resolved_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Difference describes the field-level gap behind an amount_mismatch.
type Difference struct {
	Field         string          `json:"field"`
	LocalValue    decimal.Decimal `json:"localValue"`
	PlatformValue decimal.Decimal `json:"platformValue"`
}

// PersistReconciliationReport appends a finished report and its discrepancies.
func PersistReconciliationReport(ctx context.Context, report *ReconciliationReport) error {
	db := config.GetDB()
	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if ok && report.CorrelationId == "" {
		report.CorrelationId = cid
	}
	return db.WithContext(ctx).Create(report).Error
}

// FetchRecentReports returns up to limit reports for an event, newest first,
// without their discrepancy details.
func FetchRecentReports(ctx context.Context, eventId string, limit int) ([]ReconciliationReport, error) {
	db := config.GetDB()
	var reports []ReconciliationReport
	err := db.WithContext(ctx).
		Where("event_id = ?", eventId).
		Order("start_time DESC").
		Limit(limit).
		Find(&reports).Error
	return reports, err
}

// FetchUnresolvedDiscrepancies returns every pending discrepancy for an event,
// oldest first.
func FetchUnresolvedDiscrepancies(ctx context.Context, eventId string) ([]Discrepancy, error) {
	db := config.GetDB()
	var discrepancies []Discrepancy
	err := db.WithContext(ctx).
		Where("event_id = ? AND resolution_status = ?", eventId, ResolutionStatusPending).
		Order("detected_at").
		Find(&discrepancies).Error
	return discrepancies, err
}

func GetDiscrepancyById(ctx context.Context, id string) (*Discrepancy, error) {
	db := config.GetDB()
	var d Discrepancy
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// UpdateDiscrepancyResolution writes only the resolution sub-record; the
// detection columns stay immutable.
func UpdateDiscrepancyResolution(ctx context.Context, d *Discrepancy) error {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&Discrepancy{}).
		Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"resolution_status": d.ResolutionStatus,
			"resolution_method": d.ResolutionMethod,
			"resolution_notes":  d.ResolutionNotes,
			"resolved_at":       d.ResolvedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
