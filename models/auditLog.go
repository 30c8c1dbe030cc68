package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/google/uuid"
)

// AuditLog is the reconciliation audit trail. Every resolution attempt and
// every manual adjustment writes a row here, whatever the outcome of the
// underlying ledger write.
type AuditLog struct {
	ID            int       `gorm:"primary_key" json:"id"`
	Actor         string    `gorm:"size:100;not null" json:"actor"`
	Action        string    `gorm:"size:64;not null" json:"action"`
	SubjectId     string    `gorm:"size:64;index" json:"subject_id"`
	EventId       string    `gorm:"size:36;index" json:"event_id"`
	PayloadJSON   []byte    `gorm:"type:json" json:"payload"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CreateAuditLog appends an audit entry. The actor defaults to "system" unless
// the request context carries an authenticated actor name.
func CreateAuditLog(ctx context.Context, actor string, action string, subjectId string, eventId string, payload interface{}) error {
	db := config.GetDB()

	if actor == "" {
		actor = "system"
		if name, ok := utils.GetActorNameFromContext(ctx); ok && name != "" {
			actor = name
		}
	}

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}

	var payloadJSON []byte
	if payload != nil {
		payloadJSON, _ = json.Marshal(payload)
	}

	entry := AuditLog{
		Actor:         actor,
		Action:        action,
		SubjectId:     subjectId,
		EventId:       eventId,
		PayloadJSON:   payloadJSON,
		CorrelationId: cid,
	}
	return db.WithContext(ctx).Create(&entry).Error
}
