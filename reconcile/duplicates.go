package reconcile

import (
	"sort"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
)

// FindDuplicateSales flags near-duplicate ledger rows: same customer email,
// equal amount, purchased within window of each other. Groups are transitive,
// and in every group each sale except the earliest is returned. This protects
// against double ledger-entry, independent of platform data.
func FindDuplicateSales(sales []models.TicketSale, window time.Duration) []models.TicketSale {
	if window <= 0 {
		window = DefaultConfig().DuplicateTimeWindow
	}

	type groupKey struct {
		email  string
		amount string
	}

	groups := make(map[groupKey][]models.TicketSale)
	var keyOrder []groupKey
	for _, sale := range sales {
		if sale.CustomerEmail == "" {
			continue
		}
		// StringFixed normalizes scale: a hand-entered 45 and a 45.0000 read
		// back from the decimal column must land in the same group.
		k := groupKey{email: sale.CustomerEmail, amount: sale.TotalAmount.StringFixed(4)}
		if _, ok := groups[k]; !ok {
			keyOrder = append(keyOrder, k)
		}
		groups[k] = append(groups[k], sale)
	}

	var duplicates []models.TicketSale
	for _, k := range keyOrder {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].PurchaseDate.Before(group[j].PurchaseDate)
		})
		// Sorted by time, consecutive gaps decide connectivity: a gap larger
		// than the window separates components, anything inside it chains on.
		for i := 1; i < len(group); i++ {
			if group[i].PurchaseDate.Sub(group[i-1].PurchaseDate) <= window {
				duplicates = append(duplicates, group[i])
			}
		}
	}
	return duplicates
}

// duplicateDiscrepancies wraps flagged ledger rows into discrepancies for the
// run report. Duplicates never auto-resolve, so they surface as medium for
// human review.
func duplicateDiscrepancies(eventId string, platform string, dups []models.TicketSale, detectedAt time.Time) []models.Discrepancy {
	out := make([]models.Discrepancy, 0, len(dups))
	for _, sale := range dups {
		d := newDiscrepancy(eventId, platform, models.DiscrepancyTypeDuplicateSale, models.SeverityMedium, detectedAt)
		d.LocalDataJSON = encodeLocalSale(sale)
		out = append(out, d)
	}
	return out
}
