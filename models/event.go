package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"gorm.io/gorm"
)

const (
	PlatformHumanitix  = "humanitix"
	PlatformEventbrite = "eventbrite"
)

const (
	SyncHealthHealthy  = "healthy"
	SyncHealthWarning  = "warning"
	SyncHealthCritical = "critical"
	SyncHealthUnknown  = "unknown"
)

// Event is the comedy event whose ticket sales are reconciled. Only the columns
// the reconciliation service touches live here; the admin backend owns the rest.
type Event struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Name             string     `gorm:"size:255;not null" json:"name"`
	VenueName        string     `gorm:"size:255" json:"venue_name"`
	EventDate        time.Time  `json:"event_date"`
	SyncHealth       string     `gorm:"size:20;default:'unknown'" json:"sync_health"`
	LastReconciledAt *time.Time `json:"last_reconciled_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// EventTicketPlatform links an event to its listing on one external ticketing
// platform. One row per (event, platform).
type EventTicketPlatform struct {
	ID              uint      `gorm:"primary_key" json:"id"`
	EventId         string    `gorm:"uniqueIndex:idx_event_platform,priority:1;size:36;not null" json:"event_id"`
	Platform        string    `gorm:"uniqueIndex:idx_event_platform,priority:2;size:50;not null" json:"platform"`
	ExternalEventId string    `gorm:"size:128;not null" json:"external_event_id"`
	AuthSecretRef   string    `gorm:"type:text" json:"auth_secret_ref"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetEventById(ctx context.Context, eventId string) (*Event, error) {
	db := config.GetDB()
	var event Event
	if err := db.WithContext(ctx).Where("id = ?", eventId).Take(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// GetEventPlatformLinks returns the platform listings configured for an event.
func GetEventPlatformLinks(ctx context.Context, eventId string) ([]EventTicketPlatform, error) {
	db := config.GetDB()
	var links []EventTicketPlatform
	err := db.WithContext(ctx).
		Where("event_id = ?", eventId).
		Order("platform").
		Find(&links).Error
	return links, err
}

// UpdateEventSyncHealth stores the latest reconciliation health on the event row
// and mirrors it into redis for the dashboard's cheap polling.
func UpdateEventSyncHealth(ctx context.Context, eventId string, health string) error {
	db := config.GetDB()
	now := time.Now()
	res := db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", eventId).
		Updates(map[string]interface{}{
			"sync_health":        health,
			"last_reconciled_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	_ = config.SetRedisValue("EventSyncHealth:"+eventId, health, 24*time.Hour)
	return nil
}
