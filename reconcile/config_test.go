package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalize_FillsDefaults(t *testing.T) {
	c := Config{}.Normalize()
	def := DefaultConfig()
	if !c.AmountMismatchTolerance.Equal(def.AmountMismatchTolerance) {
		t.Fatalf("expected default tolerance, got %s", c.AmountMismatchTolerance)
	}
	if c.DuplicateTimeWindow != def.DuplicateTimeWindow {
		t.Fatalf("expected default window, got %s", c.DuplicateTimeWindow)
	}
	if c.StatsReportLimit != def.StatsReportLimit {
		t.Fatalf("expected default report limit, got %d", c.StatsReportLimit)
	}
}

func TestNormalize_ClampsAutoCorrectUpToTolerance(t *testing.T) {
	c := Config{
		AmountMismatchTolerance: decimal.NewFromInt(2),
		AutoCorrectTolerance:    decimal.NewFromFloat(0.5),
		HighValueThreshold:      decimal.NewFromInt(500),
		DuplicateTimeWindow:     time.Minute,
		RunLockTTL:              time.Minute,
		StatsReportLimit:        5,
	}.Normalize()
	if !c.AutoCorrectTolerance.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected auto-correct tolerance clamped to 2, got %s", c.AutoCorrectTolerance)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("RECONCILE_AMOUNT_TOLERANCE", "0.05")
	t.Setenv("RECONCILE_HIGH_VALUE_THRESHOLD", "1000")
	t.Setenv("RECONCILE_DUPLICATE_WINDOW", "10m")
	t.Setenv("RECONCILE_AUTO_IMPORT", "false")

	c := ConfigFromEnv()
	if !c.AmountMismatchTolerance.Equal(decimal.NewFromFloat(0.05)) {
		t.Fatalf("expected tolerance 0.05, got %s", c.AmountMismatchTolerance)
	}
	if !c.HighValueThreshold.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected threshold 1000, got %s", c.HighValueThreshold)
	}
	if c.DuplicateTimeWindow != 10*time.Minute {
		t.Fatalf("expected 10m window, got %s", c.DuplicateTimeWindow)
	}
	if c.AutoImportMissingSales {
		t.Fatalf("expected auto-import disabled")
	}
}

func TestConfigFromEnv_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("RECONCILE_AMOUNT_TOLERANCE", "not-a-number")
	t.Setenv("RECONCILE_DUPLICATE_WINDOW", "-3m")

	c := ConfigFromEnv()
	def := DefaultConfig()
	if !c.AmountMismatchTolerance.Equal(def.AmountMismatchTolerance) {
		t.Fatalf("invalid tolerance should fall back to default, got %s", c.AmountMismatchTolerance)
	}
	if c.DuplicateTimeWindow != def.DuplicateTimeWindow {
		t.Fatalf("negative window should fall back to default, got %s", c.DuplicateTimeWindow)
	}
}
