package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// revenueLineItem is the exact line-item name checked for non-positive
// values. Line items are never aliased, so only this spelling counts.
const revenueLineItem = "Revenue"

// Validator runs the data quality checks against the star schema.
// Checks report violation counts; they never fail the run.
type Validator struct {
	warehouse domain.Warehouse
	analytics domain.Analytics

	// now is swappable in tests.
	now func() time.Time
}

// NewValidator creates a quality validator over the two stores.
func NewValidator(warehouse domain.Warehouse, analytics domain.Analytics) *Validator {
	return &Validator{
		warehouse: warehouse,
		analytics: analytics,
		now:       time.Now,
	}
}

// Run executes all five checks and returns their violation counts.
// The report always carries exactly one entry per check.
func (v *Validator) Run(ctx context.Context) (domain.QualityReport, error) {
	report := make(domain.QualityReport, 5)

	today := v.now().Format("2006-01-02")
	futureDates, err := v.analytics.CountFutureDates(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", domain.CheckFutureDates, err)
	}
	report[domain.CheckFutureDates] = futureDates

	duplicates, err := v.analytics.CountDuplicateFactIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", domain.CheckDuplicateFactIDs, err)
	}
	report[domain.CheckDuplicateFactIDs] = duplicates

	revenue, err := v.revenueNonPositive(ctx)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", domain.CheckRevenueNonPositive, err)
	}
	report[domain.CheckRevenueNonPositive] = revenue

	missing, err := v.analytics.CountGroupsWithNullLineItem(ctx)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", domain.CheckMissingRequiredMetrics, err)
	}
	report[domain.CheckMissingRequiredMetrics] = missing

	orphans, err := v.analytics.CountOrphanedCompanyRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", domain.CheckOrphanedCompanyRefs, err)
	}
	report[domain.CheckOrphanedCompanyRefs] = orphans

	for check, count := range report {
		if count > 0 {
			slog.Warn("quality check found violations", "check", check, "count", count)
		}
	}
	return report, nil
}

// revenueNonPositive resolves the Revenue line-item id in the warehouse
// and counts star facts for it with value <= 0. No Revenue line item
// means zero violations.
func (v *Validator) revenueNonPositive(ctx context.Context) (int, error) {
	ids, err := v.warehouse.LineItemsByName(ctx, []string{revenueLineItem})
	if err != nil {
		return 0, err
	}
	id, ok := ids[revenueLineItem]
	if !ok {
		return 0, nil
	}
	return v.analytics.CountNonPositiveValues(ctx, []int64{id})
}
