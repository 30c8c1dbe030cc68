package reconcile

import (
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
	"github.com/google/uuid"
)

// FindDiscrepancies compares the ledger rows for one (event, platform) pair
// against the platform's order snapshot and returns every divergence. It is
// pure: no side effects, and identical input yields a value-equal discrepancy
// set (fresh ids and timestamps aside).
//
// Matching is 1:1 on platformOrderId == orderId, exact string equality. When
// several ledger rows share the same order id only the first by insertion
// order is matched; the rest are local duplicates and belong to
// FindDuplicateSales.
func FindDiscrepancies(eventId string, platform string, localSales []models.TicketSale, platformSales []PlatformSale, cfg Config) []models.Discrepancy {
	cfg = cfg.Normalize()
	detectedAt := time.Now()

	localByOrder := make(map[string]*models.TicketSale, len(localSales))
	for i := range localSales {
		orderId := localSales[i].PlatformOrderId
		if orderId == "" {
			continue
		}
		if _, ok := localByOrder[orderId]; !ok {
			localByOrder[orderId] = &localSales[i]
		}
	}

	platformByOrder := make(map[string]*PlatformSale, len(platformSales))
	for i := range platformSales {
		if _, ok := platformByOrder[platformSales[i].OrderId]; !ok {
			platformByOrder[platformSales[i].OrderId] = &platformSales[i]
		}
	}

	var discrepancies []models.Discrepancy

	// Platform side: orders the ledger never recorded, and amount drift on
	// matched pairs.
	for i := range platformSales {
		ps := &platformSales[i]
		if platformByOrder[ps.OrderId] != ps {
			continue
		}

		local, matched := localByOrder[ps.OrderId]
		if !matched {
			severity := models.SeverityMedium
			if ps.TotalAmount.GreaterThanOrEqual(cfg.HighValueThreshold) {
				severity = models.SeverityHigh
			}
			d := newDiscrepancy(eventId, platform, models.DiscrepancyTypeMissingSale, severity, detectedAt)
			d.PlatformDataJSON = encodePlatformSale(*ps)
			discrepancies = append(discrepancies, d)
			continue
		}

		gap := local.TotalAmount.Sub(ps.TotalAmount).Abs()
		if gap.GreaterThan(cfg.AmountMismatchTolerance) {
			severity := models.SeverityHigh
			if gap.LessThanOrEqual(cfg.AutoCorrectTolerance) {
				severity = models.SeverityLow
			}
			d := newDiscrepancy(eventId, platform, models.DiscrepancyTypeAmountMismatch, severity, detectedAt)
			d.LocalDataJSON = encodeLocalSale(*local)
			d.PlatformDataJSON = encodePlatformSale(*ps)
			d.DifferenceJSON = encodeDifference(models.Difference{
				Field:         "total_amount",
				LocalValue:    local.TotalAmount,
				PlatformValue: ps.TotalAmount,
			})
			discrepancies = append(discrepancies, d)
		}
	}

	// Ledger side: rows with no platform counterpart. These are low severity:
	// usually a platform refund/cancellation or a manual entry not yet synced.
	for i := range localSales {
		ls := &localSales[i]
		if ls.PlatformOrderId != "" {
			if localByOrder[ls.PlatformOrderId] != ls {
				continue
			}
			if _, onPlatform := platformByOrder[ls.PlatformOrderId]; onPlatform {
				continue
			}
		}
		d := newDiscrepancy(eventId, platform, models.DiscrepancyTypeExtraSale, models.SeverityLow, detectedAt)
		d.LocalDataJSON = encodeLocalSale(*ls)
		discrepancies = append(discrepancies, d)
	}

	return discrepancies
}

func newDiscrepancy(eventId string, platform string, discType string, severity string, detectedAt time.Time) models.Discrepancy {
	return models.Discrepancy{
		ID:               uuid.NewString(),
		EventId:          eventId,
		Platform:         platform,
		Type:             discType,
		Severity:         severity,
		DetectedAt:       detectedAt,
		ResolutionStatus: models.ResolutionStatusPending,
	}
}
