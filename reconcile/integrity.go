package reconcile

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
)

const (
	IntegrityStatusPassed  = "passed"
	IntegrityStatusWarning = "warning"
	IntegrityStatusFailed  = "failed"
)

// IntegrityIssue is one rule violation on one ledger row.
type IntegrityIssue struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	SaleId   string `json:"sale_id"`
	Detail   string `json:"detail"`
}

// IntegrityResult is the outcome of a ledger self-check across all platforms of
// one event.
type IntegrityResult struct {
	EventId      string           `json:"event_id"`
	Status       string           `json:"status"`
	CheckedSales int              `json:"checked_sales"`
	Issues       []IntegrityIssue `json:"issues"`
	CheckedAt    time.Time        `json:"checked_at"`
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// CheckEventIntegrity validates the event's ledger rows against internal
// consistency rules, independent of any platform data. Any high-severity issue
// fails the check; lesser issues downgrade it to a warning.
func (e *Engine) CheckEventIntegrity(ctx context.Context, eventId string) (*IntegrityResult, error) {
	sales, err := e.Ledger.FetchEventSales(ctx, eventId)
	if err != nil {
		return nil, err
	}

	result := &IntegrityResult{
		EventId:      eventId,
		Status:       IntegrityStatusPassed,
		CheckedSales: len(sales),
		CheckedAt:    time.Now(),
	}

	seenOrders := map[string][]string{}
	for _, sale := range sales {
		if sale.TotalAmount.IsNegative() {
			result.Issues = append(result.Issues, IntegrityIssue{
				Rule:     "negative_amount",
				Severity: models.SeverityHigh,
				SaleId:   sale.ID,
				Detail:   fmt.Sprintf("total amount %s is negative", sale.TotalAmount),
			})
		}
		if sale.TicketQuantity <= 0 {
			result.Issues = append(result.Issues, IntegrityIssue{
				Rule:     "non_positive_quantity",
				Severity: models.SeverityHigh,
				SaleId:   sale.ID,
				Detail:   fmt.Sprintf("ticket quantity is %d", sale.TicketQuantity),
			})
		}
		if sale.CustomerName == "" && sale.CustomerEmail == "" {
			result.Issues = append(result.Issues, IntegrityIssue{
				Rule:     "missing_customer_info",
				Severity: models.SeverityMedium,
				SaleId:   sale.ID,
				Detail:   "sale has neither customer name nor email",
			})
		}
		if sale.CustomerEmail != "" && !emailPattern.MatchString(sale.CustomerEmail) {
			result.Issues = append(result.Issues, IntegrityIssue{
				Rule:     "invalid_email",
				Severity: models.SeverityMedium,
				SaleId:   sale.ID,
				Detail:   "customer email " + sale.CustomerEmail + " is not a valid address",
			})
		}
		if sale.PlatformOrderId != "" {
			key := sale.Platform + ":" + sale.PlatformOrderId
			seenOrders[key] = append(seenOrders[key], sale.ID)
		}
	}

	for key, ids := range seenOrders {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids[1:] {
			result.Issues = append(result.Issues, IntegrityIssue{
				Rule:     "duplicate_order_ids",
				Severity: models.SeverityMedium,
				SaleId:   id,
				Detail:   "order " + key + " appears on multiple ledger rows",
			})
		}
	}

	for _, issue := range result.Issues {
		if issue.Severity == models.SeverityHigh {
			result.Status = IntegrityStatusFailed
			break
		}
		result.Status = IntegrityStatusWarning
	}
	return result, nil
}
