package reconcile

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config controls detection and auto-resolution. It is passed by value into
// every detection/resolution call so a single run sees one consistent policy.
type Config struct {
	// AmountMismatchTolerance is the largest local-vs-platform gap that is not
	// reported as a discrepancy at all (rounding noise).
	AmountMismatchTolerance decimal.Decimal

	// HighValueThreshold marks a missing platform order as high severity.
	HighValueThreshold decimal.Decimal

	// DuplicateTimeWindow is the interval within which two same-email,
	// same-amount ledger rows count as near-duplicates.
	DuplicateTimeWindow time.Duration

	// AutoImportMissingSales enables creating ledger rows for platform orders
	// the ledger has never seen.
	AutoImportMissingSales bool

	// AutoCorrectTolerance is the largest amount gap the resolver will heal
	// automatically. Must be at least AmountMismatchTolerance, otherwise no
	// reported mismatch could ever qualify; Normalize clamps it up.
	AutoCorrectTolerance decimal.Decimal

	// RunLockTTL bounds how long a (event, platform) run may hold its lock.
	RunLockTTL time.Duration

	// StatsReportLimit bounds how many recent reports feed the stats endpoint.
	StatsReportLimit int
}

func DefaultConfig() Config {
	return Config{
		AmountMismatchTolerance: decimal.NewFromFloat(0.01),
		HighValueThreshold:      decimal.NewFromInt(500),
		DuplicateTimeWindow:     5 * time.Minute,
		AutoImportMissingSales:  true,
		AutoCorrectTolerance:    decimal.NewFromInt(1),
		RunLockTTL:              5 * time.Minute,
		StatsReportLimit:        10,
	}
}

// Normalize fills zero values with defaults and clamps AutoCorrectTolerance to
// AmountMismatchTolerance: a gap too large to auto-correct must at least be
// reported, never silently healed.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.AmountMismatchTolerance.IsZero() {
		c.AmountMismatchTolerance = def.AmountMismatchTolerance
	}
	if c.HighValueThreshold.IsZero() {
		c.HighValueThreshold = def.HighValueThreshold
	}
	if c.DuplicateTimeWindow <= 0 {
		c.DuplicateTimeWindow = def.DuplicateTimeWindow
	}
	if c.AutoCorrectTolerance.IsZero() {
		c.AutoCorrectTolerance = def.AutoCorrectTolerance
	}
	if c.AutoCorrectTolerance.LessThan(c.AmountMismatchTolerance) {
		c.AutoCorrectTolerance = c.AmountMismatchTolerance
	}
	if c.RunLockTTL <= 0 {
		c.RunLockTTL = def.RunLockTTL
	}
	if c.StatsReportLimit <= 0 {
		c.StatsReportLimit = def.StatsReportLimit
	}
	return c
}

// ConfigFromEnv returns the default config with env overrides applied.
func ConfigFromEnv() Config {
	c := DefaultConfig()
	if v := decimalFromEnv("RECONCILE_AMOUNT_TOLERANCE"); v != nil {
		c.AmountMismatchTolerance = *v
	}
	if v := decimalFromEnv("RECONCILE_HIGH_VALUE_THRESHOLD"); v != nil {
		c.HighValueThreshold = *v
	}
	if v := strings.TrimSpace(os.Getenv("RECONCILE_DUPLICATE_WINDOW")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.DuplicateTimeWindow = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("RECONCILE_AUTO_IMPORT")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoImportMissingSales = b
		}
	}
	if v := decimalFromEnv("RECONCILE_AUTO_CORRECT_TOLERANCE"); v != nil {
		c.AutoCorrectTolerance = *v
	}
	if v := strings.TrimSpace(os.Getenv("RECONCILE_RUN_LOCK_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.RunLockTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("RECONCILE_STATS_REPORT_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.StatsReportLimit = n
		}
	}
	return c.Normalize()
}

func decimalFromEnv(key string) *decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil
	}
	return &d
}
