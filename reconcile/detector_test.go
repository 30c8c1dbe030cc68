package reconcile

import (
	"testing"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
)

var detectorBase = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func TestFindDiscrepancies_MatchedSalesProduceNothing(t *testing.T) {
	locals := []models.TicketSale{
		saleAt("ev1", "humanitix", "ord-1", 50, "a@example.com", detectorBase),
		saleAt("ev1", "humanitix", "ord-2", 75, "b@example.com", detectorBase),
	}
	platform := []PlatformSale{
		platformSale("ord-1", 50, "a@example.com", detectorBase),
		platformSale("ord-2", 75, "b@example.com", detectorBase),
	}
	got := FindDiscrepancies("ev1", "humanitix", locals, platform, DefaultConfig())
	if len(got) != 0 {
		t.Fatalf("expected no discrepancies, got %d", len(got))
	}
}

func TestFindDiscrepancies_MissingSaleSeverity(t *testing.T) {
	cases := []struct {
		name     string
		amount   float64
		severity string
	}{
		{"below threshold", 120, models.SeverityMedium},
		{"at threshold", 500, models.SeverityHigh},
		{"above threshold", 900.50, models.SeverityHigh},
	}
	for _, tc := range cases {
		platform := []PlatformSale{platformSale("ord-x", tc.amount, "x@example.com", detectorBase)}
		got := FindDiscrepancies("ev1", "eventbrite", nil, platform, DefaultConfig())
		if len(got) != 1 {
			t.Fatalf("%s: expected 1 discrepancy, got %d", tc.name, len(got))
		}
		d := got[0]
		if d.Type != models.DiscrepancyTypeMissingSale {
			t.Fatalf("%s: expected missing_sale, got %s", tc.name, d.Type)
		}
		if d.Severity != tc.severity {
			t.Fatalf("%s: expected severity %s, got %s", tc.name, tc.severity, d.Severity)
		}
		if d.ResolutionStatus != models.ResolutionStatusPending {
			t.Fatalf("%s: expected pending, got %s", tc.name, d.ResolutionStatus)
		}
		ps, ok := decodePlatformSale(d.PlatformDataJSON)
		if !ok || ps.OrderId != "ord-x" {
			t.Fatalf("%s: platform snapshot not preserved", tc.name)
		}
	}
}

func TestFindDiscrepancies_AmountMismatch(t *testing.T) {
	cases := []struct {
		name        string
		local       float64
		platform    float64
		wantCount   int
		wantSev     string
	}{
		{"within tolerance", 50.00, 50.01, 0, ""},
		{"small drift auto-correctable", 50.00, 50.75, 1, models.SeverityLow},
		{"drift at auto-correct limit", 50.00, 51.00, 1, models.SeverityLow},
		{"large drift", 50.00, 60.00, 1, models.SeverityHigh},
		{"local above platform", 62.00, 50.00, 1, models.SeverityHigh},
	}
	for _, tc := range cases {
		locals := []models.TicketSale{saleAt("ev1", "humanitix", "ord-1", tc.local, "a@example.com", detectorBase)}
		platform := []PlatformSale{platformSale("ord-1", tc.platform, "a@example.com", detectorBase)}
		got := FindDiscrepancies("ev1", "humanitix", locals, platform, DefaultConfig())
		if len(got) != tc.wantCount {
			t.Fatalf("%s: expected %d discrepancies, got %d", tc.name, tc.wantCount, len(got))
		}
		if tc.wantCount == 0 {
			continue
		}
		d := got[0]
		if d.Type != models.DiscrepancyTypeAmountMismatch {
			t.Fatalf("%s: expected amount_mismatch, got %s", tc.name, d.Type)
		}
		if d.Severity != tc.wantSev {
			t.Fatalf("%s: expected severity %s, got %s", tc.name, tc.wantSev, d.Severity)
		}
		diff, ok := decodeDifference(d.DifferenceJSON)
		if !ok {
			t.Fatalf("%s: missing difference payload", tc.name)
		}
		if diff.Field != "total_amount" {
			t.Fatalf("%s: expected difference on total_amount, got %s", tc.name, diff.Field)
		}
		if !diff.PlatformValue.Equal(platform[0].TotalAmount) {
			t.Fatalf("%s: expected platform value %s, got %s", tc.name, platform[0].TotalAmount, diff.PlatformValue)
		}
	}
}

func TestFindDiscrepancies_ExtraSale(t *testing.T) {
	locals := []models.TicketSale{
		saleAt("ev1", "humanitix", "ord-gone", 40, "a@example.com", detectorBase),
	}
	got := FindDiscrepancies("ev1", "humanitix", locals, nil, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("expected 1 discrepancy, got %d", len(got))
	}
	if got[0].Type != models.DiscrepancyTypeExtraSale {
		t.Fatalf("expected extra_sale, got %s", got[0].Type)
	}
	if got[0].Severity != models.SeverityLow {
		t.Fatalf("expected low severity, got %s", got[0].Severity)
	}
}

func TestFindDiscrepancies_ManualEntriesWithoutOrderIdAreExtra(t *testing.T) {
	locals := []models.TicketSale{
		saleAt("ev1", "humanitix", "", 40, "door@example.com", detectorBase),
		saleAt("ev1", "humanitix", "", 40, "door2@example.com", detectorBase),
	}
	got := FindDiscrepancies("ev1", "humanitix", locals, nil, DefaultConfig())
	if len(got) != 2 {
		t.Fatalf("expected each unlinked row flagged, got %d", len(got))
	}
	for _, d := range got {
		if d.Type != models.DiscrepancyTypeExtraSale {
			t.Fatalf("expected extra_sale, got %s", d.Type)
		}
	}
}

func TestFindDiscrepancies_SharedOrderIdMatchesFirstRowOnly(t *testing.T) {
	first := saleAt("ev1", "humanitix", "ord-1", 50, "a@example.com", detectorBase)
	second := saleAt("ev1", "humanitix", "ord-1", 50, "a@example.com", detectorBase.Add(time.Minute))
	platform := []PlatformSale{platformSale("ord-1", 50, "a@example.com", detectorBase)}

	got := FindDiscrepancies("ev1", "humanitix", []models.TicketSale{first, second}, platform, DefaultConfig())
	// The second row is a ledger duplicate, not an extra sale; the duplicate
	// finder owns it.
	if len(got) != 0 {
		t.Fatalf("expected 0 discrepancies, got %d (%s)", len(got), got[0].Type)
	}
}

func TestFindDiscrepancies_MixedScenario(t *testing.T) {
	locals := []models.TicketSale{
		saleAt("ev1", "humanitix", "ord-1", 50, "a@example.com", detectorBase),
		saleAt("ev1", "humanitix", "ord-2", 30, "b@example.com", detectorBase),
		saleAt("ev1", "humanitix", "ord-old", 25, "c@example.com", detectorBase),
	}
	platform := []PlatformSale{
		platformSale("ord-1", 50, "a@example.com", detectorBase),
		platformSale("ord-2", 30.50, "b@example.com", detectorBase),
		platformSale("ord-new", 650, "d@example.com", detectorBase),
	}

	got := FindDiscrepancies("ev1", "humanitix", locals, platform, DefaultConfig())
	if len(got) != 3 {
		t.Fatalf("expected 3 discrepancies, got %d", len(got))
	}
	byType := map[string]models.Discrepancy{}
	for _, d := range got {
		byType[d.Type] = d
	}
	if d, ok := byType[models.DiscrepancyTypeMissingSale]; !ok || d.Severity != models.SeverityHigh {
		t.Fatalf("expected high missing_sale for the 650 order")
	}
	if d, ok := byType[models.DiscrepancyTypeAmountMismatch]; !ok || d.Severity != models.SeverityLow {
		t.Fatalf("expected low amount_mismatch for the 0.50 drift")
	}
	if _, ok := byType[models.DiscrepancyTypeExtraSale]; !ok {
		t.Fatalf("expected extra_sale for ord-old")
	}
}
