package reconcile

import (
	"testing"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
	"github.com/shopspring/decimal"
)

func TestFindDuplicateSales_FlagsAllButEarliest(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	sales := []models.TicketSale{
		saleAt("ev1", "humanitix", "ord-1", 45, "dup@example.com", base),
		saleAt("ev1", "humanitix", "ord-2", 45, "dup@example.com", base.Add(2*time.Minute)),
		saleAt("ev1", "humanitix", "ord-3", 45, "dup@example.com", base.Add(4*time.Minute)),
	}
	got := FindDuplicateSales(sales, 5*time.Minute)
	if len(got) != 2 {
		t.Fatalf("expected 2 duplicates, got %d", len(got))
	}
	for _, d := range got {
		if d.PlatformOrderId == "ord-1" {
			t.Fatalf("earliest sale must not be flagged")
		}
	}
}

func TestFindDuplicateSales_TransitiveChaining(t *testing.T) {
	// 0m, 4m, 8m: first-to-last exceeds the window but consecutive gaps do
	// not, so all three form one group.
	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	sales := []models.TicketSale{
		saleAt("ev1", "humanitix", "a", 60, "chain@example.com", base),
		saleAt("ev1", "humanitix", "b", 60, "chain@example.com", base.Add(4*time.Minute)),
		saleAt("ev1", "humanitix", "c", 60, "chain@example.com", base.Add(8*time.Minute)),
	}
	got := FindDuplicateSales(sales, 5*time.Minute)
	if len(got) != 2 {
		t.Fatalf("expected 2 duplicates in the chained group, got %d", len(got))
	}
}

func TestFindDuplicateSales_GapSplitsGroups(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	sales := []models.TicketSale{
		saleAt("ev1", "humanitix", "a", 60, "gap@example.com", base),
		saleAt("ev1", "humanitix", "b", 60, "gap@example.com", base.Add(30*time.Minute)),
	}
	got := FindDuplicateSales(sales, 5*time.Minute)
	if len(got) != 0 {
		t.Fatalf("expected no duplicates across a 30m gap, got %d", len(got))
	}
}

func TestFindDuplicateSales_DifferentAmountOrEmailNotGrouped(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	sales := []models.TicketSale{
		saleAt("ev1", "humanitix", "a", 60, "one@example.com", base),
		saleAt("ev1", "humanitix", "b", 65, "one@example.com", base.Add(time.Minute)),
		saleAt("ev1", "humanitix", "c", 60, "two@example.com", base.Add(time.Minute)),
	}
	got := FindDuplicateSales(sales, 5*time.Minute)
	if len(got) != 0 {
		t.Fatalf("expected no duplicates, got %d", len(got))
	}
}

func TestFindDuplicateSales_EqualAmountsWithDifferentScaleGrouped(t *testing.T) {
	// A hand-entered 45 and the same amount read back from the decimal(20,4)
	// column as 45.0000 are the same money.
	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	first := saleAt("ev1", "humanitix", "a", 45, "scale@example.com", base)
	first.TotalAmount = decimal.NewFromInt(45)
	second := saleAt("ev1", "humanitix", "b", 45, "scale@example.com", base.Add(time.Minute))
	stored, err := decimal.NewFromString("45.0000")
	if err != nil {
		t.Fatalf("decimal setup: %v", err)
	}
	second.TotalAmount = stored

	got := FindDuplicateSales([]models.TicketSale{first, second}, 5*time.Minute)
	if len(got) != 1 {
		t.Fatalf("expected the scale-differing pair grouped, got %d duplicates", len(got))
	}
	if got[0].PlatformOrderId != "b" {
		t.Fatalf("the later sale must be flagged, got %s", got[0].PlatformOrderId)
	}
}

func TestFindDuplicateSales_SkipsRowsWithoutEmail(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	sales := []models.TicketSale{
		saleAt("ev1", "humanitix", "a", 60, "", base),
		saleAt("ev1", "humanitix", "b", 60, "", base.Add(time.Minute)),
	}
	got := FindDuplicateSales(sales, 5*time.Minute)
	if len(got) != 0 {
		t.Fatalf("rows without email cannot be matched, got %d duplicates", len(got))
	}
}

func TestDuplicateDiscrepancies_MediumSeverityPending(t *testing.T) {
	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	dups := []models.TicketSale{saleAt("ev1", "humanitix", "b", 45, "dup@example.com", base)}
	got := duplicateDiscrepancies("ev1", "humanitix", dups, base)
	if len(got) != 1 {
		t.Fatalf("expected 1 discrepancy, got %d", len(got))
	}
	d := got[0]
	if d.Type != models.DiscrepancyTypeDuplicateSale || d.Severity != models.SeverityMedium {
		t.Fatalf("expected medium duplicate_sale, got %s/%s", d.Type, d.Severity)
	}
	if d.ResolutionStatus != models.ResolutionStatusPending {
		t.Fatalf("duplicates must stay pending, got %s", d.ResolutionStatus)
	}
}
