package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/standupsync/tickets_backend/config"
	"github.com/google/uuid"
)

// AlertNotification is written when a reconciliation run ends critical, so the
// admin dashboard can surface it.
type AlertNotification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	EventId   string    `gorm:"index;size:36;not null" json:"event_id"`
	ReportId  string    `gorm:"size:36" json:"report_id"`
	Severity  string    `gorm:"size:20" json:"severity"`
	Message   string    `gorm:"type:text" json:"message"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CreateAlertNotification records a critical reconciliation alert for an event.
func CreateAlertNotification(ctx context.Context, eventId string, report *ReconciliationReport) error {
	db := config.GetDB()
	unresolved := report.DiscrepanciesFound - report.DiscrepanciesResolved
	alert := AlertNotification{
		ID:       uuid.NewString(),
		EventId:  eventId,
		ReportId: report.ID,
		Severity: report.SyncHealth,
		Message: fmt.Sprintf("Reconciliation for %s found %d discrepancies (%d unresolved)",
			report.Platform, report.DiscrepanciesFound, unresolved),
	}
	return db.WithContext(ctx).Create(&alert).Error
}
