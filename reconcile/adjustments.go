package reconcile

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

const (
	AdjustmentTypeAddSale    = "add_sale"
	AdjustmentTypeRemoveSale = "remove_sale"
	AdjustmentTypeModifySale = "modify_sale"
)

// ManualResolutionRequest closes out a pending discrepancy by hand.
type ManualResolutionRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	Notes      string `json:"notes"`
}

// ManualAdjustmentRequest is an operator-initiated ledger correction. Reason is
// mandatory: every adjustment must be explainable after the fact.
type ManualAdjustmentRequest struct {
	Type   string `json:"type" binding:"required,oneof=add_sale remove_sale modify_sale"`
	Reason string `json:"reason" binding:"required"`

	// remove_sale and modify_sale target an existing ledger row.
	SaleId string `json:"sale_id"`

	// add_sale fields; modify_sale reuses TotalAmount.
	Platform        string          `json:"platform"`
	PlatformOrderId string          `json:"platform_order_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	PurchaseDate    time.Time       `json:"purchase_date"`
	TicketQuantity  int             `json:"ticket_quantity"`
	TicketType      string          `json:"ticket_type"`
}

// ManuallyResolveDiscrepancy applies an operator's verdict to a pending
// discrepancy. Already-closed discrepancies are rejected rather than rewritten.
func (e *Engine) ManuallyResolveDiscrepancy(ctx context.Context, discrepancyId string, req ManualResolutionRequest) (*models.Discrepancy, error) {
	switch req.Resolution {
	case models.ResolutionStatusResolved, models.ResolutionStatusIgnored, models.ResolutionStatusFalsePositive:
	default:
		return nil, fmt.Errorf("resolution %q is not one of resolved, ignored, false_positive: %w",
			req.Resolution, utils.ErrValidation)
	}

	d, err := e.Reports.GetDiscrepancy(ctx, discrepancyId)
	if err != nil {
		return nil, err
	}
	if d.ResolutionStatus != models.ResolutionStatusPending {
		return nil, fmt.Errorf("discrepancy %s is already %s: %w", d.ID, d.ResolutionStatus, utils.ErrValidation)
	}

	now := time.Now()
	d.ResolutionStatus = req.Resolution
	d.ResolutionMethod = models.ResolutionMethodManual
	d.ResolutionNotes = req.Notes
	d.ResolvedAt = &now
	if err := e.Reports.UpdateDiscrepancyResolution(ctx, d); err != nil {
		return nil, err
	}

	if auditErr := e.Audit.LogAction(ctx, "", actionManualResolve, d.ID, d.EventId, map[string]interface{}{
		"resolution": req.Resolution,
		"notes":      req.Notes,
		"type":       d.Type,
	}); auditErr != nil {
		e.log().WithField("discrepancy_id", d.ID).Warn("audit write failed: " + auditErr.Error())
	}
	return d, nil
}

// CreateManualAdjustment performs an operator ledger correction. The audit row
// is written before the ledger write so a failed write still leaves a trace of
// the attempt.
func (e *Engine) CreateManualAdjustment(ctx context.Context, eventId string, req ManualAdjustmentRequest) (*models.TicketSale, error) {
	if err := validateAdjustment(req); err != nil {
		return nil, err
	}

	if auditErr := e.Audit.LogAction(ctx, "", actionManualAdjustment, req.SaleId, eventId, req); auditErr != nil {
		e.log().WithField("event_id", eventId).Warn("audit write failed: " + auditErr.Error())
	}

	switch req.Type {
	case AdjustmentTypeAddSale:
		sale := &models.TicketSale{
			EventId:         eventId,
			Platform:        req.Platform,
			PlatformOrderId: req.PlatformOrderId,
			TotalAmount:     req.TotalAmount,
			CustomerName:    req.CustomerName,
			CustomerEmail:   req.CustomerEmail,
			PurchaseDate:    req.PurchaseDate,
			TicketQuantity:  req.TicketQuantity,
			TicketType:      req.TicketType,
		}
		return e.Ledger.InsertSale(ctx, sale, map[string]bool{models.SaleTagManualEntry: true})
	case AdjustmentTypeRemoveSale:
		return nil, e.Ledger.RemoveSale(ctx, req.SaleId)
	case AdjustmentTypeModifySale:
		if err := e.Ledger.UpdateSaleAmount(ctx, req.SaleId, req.TotalAmount,
			map[string]bool{models.SaleTagManualCorrection: true}); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown adjustment type %q: %w", req.Type, utils.ErrValidation)
}

func validateAdjustment(req ManualAdjustmentRequest) error {
	if req.Reason == "" {
		return fmt.Errorf("adjustment reason is required: %w", utils.ErrValidation)
	}
	switch req.Type {
	case AdjustmentTypeAddSale:
		if req.Platform == "" {
			return fmt.Errorf("add_sale requires a platform: %w", utils.ErrValidation)
		}
		if req.TotalAmount.IsNegative() {
			return fmt.Errorf("add_sale amount must not be negative: %w", utils.ErrValidation)
		}
		if req.TicketQuantity <= 0 {
			return fmt.Errorf("add_sale quantity must be positive: %w", utils.ErrValidation)
		}
		if req.CustomerEmail != "" {
			if err := validate.Var(req.CustomerEmail, "email"); err != nil {
				return fmt.Errorf("add_sale customer email is invalid: %w", utils.ErrValidation)
			}
		}
	case AdjustmentTypeRemoveSale:
		if req.SaleId == "" {
			return fmt.Errorf("remove_sale requires sale_id: %w", utils.ErrValidation)
		}
	case AdjustmentTypeModifySale:
		if req.SaleId == "" {
			return fmt.Errorf("modify_sale requires sale_id: %w", utils.ErrValidation)
		}
		if req.TotalAmount.IsNegative() {
			return fmt.Errorf("modify_sale amount must not be negative: %w", utils.ErrValidation)
		}
	default:
		return fmt.Errorf("unknown adjustment type %q: %w", req.Type, utils.ErrValidation)
	}
	return nil
}
