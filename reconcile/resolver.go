package reconcile

import (
	"context"
	"time"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/models"
)

const (
	actionAutoResolve      = "reconciliation.auto_resolve"
	actionManualResolve    = "reconciliation.manual_resolve"
	actionManualAdjustment = "reconciliation.manual_adjustment"
)

// resolveDiscrepancies walks the freshly detected batch and applies the two
// automatic strategies: import missing platform orders into the ledger, and
// correct low-severity amount drift. Everything else stays pending for a human.
// Mutates the slice in place and returns how many entries it resolved.
//
// A failed ledger write never aborts the batch: the entry stays pending, the
// failure is logged and audited, and the walk continues.
func (e *Engine) resolveDiscrepancies(ctx context.Context, eventId string, platform string, discrepancies []models.Discrepancy, cfg Config) int {
	resolved := 0
	for i := range discrepancies {
		d := &discrepancies[i]
		if d.ResolutionStatus != models.ResolutionStatusPending {
			continue
		}

		var (
			attempted bool
			method    string
			err       error
		)
		switch d.Type {
		case models.DiscrepancyTypeMissingSale:
			if !cfg.AutoImportMissingSales {
				continue
			}
			attempted = true
			method = models.ResolutionMethodAutoImport
			err = e.importMissingSale(ctx, eventId, platform, d)
		case models.DiscrepancyTypeAmountMismatch:
			if d.Severity != models.SeverityLow {
				continue
			}
			attempted = true
			method = models.ResolutionMethodAutoCorrect
			err = e.correctSaleAmount(ctx, d)
		default:
			continue
		}

		if attempted {
			outcome := "resolved"
			if err != nil {
				outcome = "failed"
			}
			auditErr := e.Audit.LogAction(ctx, "system", actionAutoResolve, d.ID, eventId, map[string]interface{}{
				"type":     d.Type,
				"platform": platform,
				"method":   method,
				"outcome":  outcome,
			})
			if auditErr != nil {
				config.LogError(e.log(), "reconcile", "resolveDiscrepancies", "write audit entry", d.ID, auditErr)
			}
		}

		if err != nil {
			config.LogError(e.log(), "reconcile", "resolveDiscrepancies", "auto-resolve "+d.Type, d.ID, err)
			continue
		}

		now := time.Now()
		d.ResolutionStatus = models.ResolutionStatusResolved
		d.ResolutionMethod = method
		d.ResolvedAt = &now
		resolved++
	}
	return resolved
}

func (e *Engine) importMissingSale(ctx context.Context, eventId string, platform string, d *models.Discrepancy) error {
	ps, ok := decodePlatformSale(d.PlatformDataJSON)
	if !ok {
		return errMalformedSnapshot(d.ID)
	}
	sale := &models.TicketSale{
		EventId:         eventId,
		Platform:        platform,
		PlatformOrderId: ps.OrderId,
		TotalAmount:     ps.TotalAmount,
		CustomerName:    ps.CustomerName,
		CustomerEmail:   ps.CustomerEmail,
		PurchaseDate:    ps.PurchaseDate,
		TicketQuantity:  ps.Quantity,
		TicketType:      ps.TicketType,
	}
	_, err := e.Ledger.InsertSale(ctx, sale, map[string]bool{models.SaleTagReconciliationImport: true})
	return err
}

func (e *Engine) correctSaleAmount(ctx context.Context, d *models.Discrepancy) error {
	local, ok := decodeLocalSale(d.LocalDataJSON)
	if !ok {
		return errMalformedSnapshot(d.ID)
	}
	diff, ok := decodeDifference(d.DifferenceJSON)
	if !ok {
		return errMalformedSnapshot(d.ID)
	}
	// Platform is the source of truth for amounts.
	return e.Ledger.UpdateSaleAmount(ctx, local.ID, diff.PlatformValue,
		map[string]bool{models.SaleTagReconciliationCorrected: true})
}

type malformedSnapshotError struct{ discrepancyId string }

func (e malformedSnapshotError) Error() string {
	return "discrepancy " + e.discrepancyId + " carries a malformed data snapshot"
}

func errMalformedSnapshot(id string) error {
	return malformedSnapshotError{discrepancyId: id}
}
