package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TicketSale is the authoritative internal ledger record of a ticket sale.
// Rows are append-only: corrections update columns on the same row, and only an
// explicit manual remove_sale adjustment may delete one.
type TicketSale struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	EventId         string          `gorm:"index:idx_ticket_sales_event_platform,priority:1;size:36;not null" json:"event_id"`
	Platform        string          `gorm:"index:idx_ticket_sales_event_platform,priority:2;size:50;not null" json:"platform"`
	PlatformOrderId string          `gorm:"index;size:128" json:"platform_order_id"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CustomerName    string          `gorm:"size:255" json:"customer_name"`
	CustomerEmail   string          `gorm:"size:255;index" json:"customer_email"`
	PurchaseDate    time.Time       `json:"purchase_date"`
	TicketQuantity  int             `json:"ticket_quantity"`
	TicketType      string          `gorm:"size:100" json:"ticket_type"`
	TagsJSON        []byte          `gorm:"type:json" json:"tags"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Sale tags recorded on ledger writes so every row carries its provenance.
const (
	SaleTagReconciliationImport    = "reconciliation_import"
	SaleTagReconciliationCorrected = "reconciliation_corrected"
	SaleTagManualEntry             = "manual_entry"
	SaleTagManualCorrection        = "manual_correction"
)

func EncodeSaleTags(tags map[string]bool) []byte {
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	return b
}

func DecodeSaleTags(raw []byte) map[string]bool {
	if len(raw) == 0 {
		return map[string]bool{}
	}
	var tags map[string]bool
	if err := json.Unmarshal(raw, &tags); err != nil {
		return map[string]bool{}
	}
	return tags
}

// FetchTicketSales returns the ledger rows for one (event, platform) pair in
// insertion order. Detection depends on that order for 1:1 matching.
func FetchTicketSales(ctx context.Context, eventId string, platform string) ([]TicketSale, error) {
	db := config.GetDB()
	var sales []TicketSale
	err := db.WithContext(ctx).
		Where("event_id = ? AND platform = ?", eventId, platform).
		Order("created_at, id").
		Find(&sales).Error
	return sales, err
}

// FetchEventTicketSales returns every ledger row for an event across platforms.
func FetchEventTicketSales(ctx context.Context, eventId string) ([]TicketSale, error) {
	db := config.GetDB()
	var sales []TicketSale
	err := db.WithContext(ctx).
		Where("event_id = ?", eventId).
		Order("created_at, id").
		Find(&sales).Error
	return sales, err
}

// UpsertTicketSale inserts a sale keyed on (event, platform, platform order id).
// A concurrent or repeated import of the same platform order updates the existing
// row instead of inserting a second one, which keeps auto-import idempotent.
func UpsertTicketSale(ctx context.Context, sale *TicketSale) (*TicketSale, error) {
	db := config.GetDB()
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}

	if sale.PlatformOrderId != "" {
		var existing TicketSale
		err := db.WithContext(ctx).
			Where("event_id = ? AND platform = ? AND platform_order_id = ?",
				sale.EventId, sale.Platform, sale.PlatformOrderId).
			Take(&existing).Error
		if err == nil {
			updates := map[string]interface{}{
				"total_amount":    sale.TotalAmount,
				"customer_name":   sale.CustomerName,
				"customer_email":  sale.CustomerEmail,
				"purchase_date":   sale.PurchaseDate,
				"ticket_quantity": sale.TicketQuantity,
				"ticket_type":     sale.TicketType,
			}
			if len(sale.TagsJSON) > 0 {
				updates["tags_json"] = sale.TagsJSON
			}
			if uerr := db.WithContext(ctx).Model(&existing).Updates(updates).Error; uerr != nil {
				return nil, uerr
			}
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(sale).Error; err != nil {
		return nil, err
	}
	return sale, nil
}

// UpdateTicketSaleAmount overwrites the stored amount and merges the given tags.
func UpdateTicketSaleAmount(ctx context.Context, saleId string, newAmount decimal.Decimal, tags map[string]bool) error {
	db := config.GetDB()

	var sale TicketSale
	if err := db.WithContext(ctx).Where("id = ?", saleId).Take(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrNotFound
		}
		return err
	}

	merged := DecodeSaleTags(sale.TagsJSON)
	for k, v := range tags {
		merged[k] = v
	}

	return db.WithContext(ctx).Model(&sale).Updates(map[string]interface{}{
		"total_amount": newAmount,
		"tags_json":    EncodeSaleTags(merged),
	}).Error
}

// RemoveTicketSale deletes a ledger row. Only the manual remove_sale adjustment
// path calls this.
func RemoveTicketSale(ctx context.Context, saleId string) error {
	db := config.GetDB()
	res := db.WithContext(ctx).Where("id = ?", saleId).Delete(&TicketSale{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
