package load

import (
	"context"
	"os"
	"testing"

	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/repository"
)

func newTestService(t *testing.T) (*Service, domain.Warehouse) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "heron-load-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	warehouse, err := repository.NewWarehouse(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create warehouse: %v", err)
	}
	t.Cleanup(func() { warehouse.Close() })

	return NewService(warehouse, cache.NewLRUCache(100)), warehouse
}

func sampleBatch() []domain.TidyRecord {
	endDate := "June 30, 2025"
	fy := 2025
	assets := -271381.0
	revenue := 5000.0

	return []domain.TidyRecord{
		{
			Ticker:        "catx",
			FilingDate:    "2025-08-13",
			StatementType: domain.StatementBalanceSheet,
			LineItem:      "Total Assets",
			PeriodType:    domain.PeriodPointInTime,
			EndDate:       &endDate,
			FiscalYear:    &fy,
			Value:         &assets,
		},
		{
			Ticker:        "CATX",
			FilingDate:    "2025-08-13",
			StatementType: domain.StatementIncomeStatement,
			LineItem:      "Revenue",
			PeriodType:    domain.PeriodThreeMonths,
			EndDate:       &endDate,
			FiscalYear:    &fy,
			Audited:       false,
			Value:         &revenue,
		},
		{
			// Null value survives as a NULL fact.
			Ticker:        "CATX",
			FilingDate:    "2025-08-13",
			StatementType: domain.StatementIncomeStatement,
			LineItem:      "Net Loss",
			PeriodType:    domain.PeriodThreeMonths,
			EndDate:       &endDate,
			FiscalYear:    &fy,
		},
	}
}

func TestLoadBatch(t *testing.T) {
	svc, warehouse := newTestService(t)
	ctx := context.Background()

	result, err := svc.LoadBatch(ctx, sampleBatch())
	if err != nil {
		t.Fatalf("LoadBatch failed: %v", err)
	}

	if result.Companies != 1 {
		t.Errorf("expected 1 company, got %d", result.Companies)
	}
	if result.StatementTypes != 2 {
		t.Errorf("expected 2 statement types, got %d", result.StatementTypes)
	}
	if result.LineItems != 3 {
		t.Errorf("expected 3 line items, got %d", result.LineItems)
	}
	if result.Filings != 1 {
		t.Errorf("expected 1 filing, got %d", result.Filings)
	}
	if result.FactsInserted != 3 {
		t.Errorf("expected 3 facts inserted, got %d", result.FactsInserted)
	}

	facts, err := warehouse.StarFacts(ctx)
	if err != nil {
		t.Fatalf("StarFacts failed: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(facts))
	}
	if facts[0].Value == nil || *facts[0].Value != -271381.0 {
		t.Errorf("expected first fact value -271381, got %v", facts[0].Value)
	}
	if facts[2].Value != nil {
		t.Errorf("expected null value preserved, got %v", *facts[2].Value)
	}
}

func TestLoadBatchFactsAreNotIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.LoadBatch(ctx, sampleBatch())
	if err != nil {
		t.Fatalf("first LoadBatch failed: %v", err)
	}
	second, err := svc.LoadBatch(ctx, sampleBatch())
	if err != nil {
		t.Fatalf("second LoadBatch failed: %v", err)
	}

	// Dimensions and filings are stable across reloads.
	if second.Companies != first.Companies {
		t.Errorf("companies grew on reload: %d -> %d", first.Companies, second.Companies)
	}
	if second.StatementTypes != first.StatementTypes {
		t.Errorf("statement types grew on reload: %d -> %d", first.StatementTypes, second.StatementTypes)
	}
	if second.LineItems != first.LineItems {
		t.Errorf("line items grew on reload: %d -> %d", first.LineItems, second.LineItems)
	}
	if second.Filings != first.Filings {
		t.Errorf("filings grew on reload: %d -> %d", first.Filings, second.Filings)
	}

	// Facts have no natural key and are appended again.
	if second.FactsInserted != first.FactsInserted {
		t.Errorf("expected same insert count, got %d then %d", first.FactsInserted, second.FactsInserted)
	}
}

func TestLoadBatchDropsUnresolvableRows(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	value := 1.0
	records := []domain.TidyRecord{
		{
			// Unparseable filing date: dropped.
			Ticker:        "CATX",
			FilingDate:    "not-a-date",
			StatementType: domain.StatementBalanceSheet,
			LineItem:      "Total Assets",
			PeriodType:    domain.PeriodPointInTime,
			Value:         &value,
		},
		{
			// Blank line item: dropped at fact staging.
			Ticker:        "CATX",
			FilingDate:    "2025-08-13",
			StatementType: domain.StatementBalanceSheet,
			LineItem:      "  ",
			PeriodType:    domain.PeriodPointInTime,
			Value:         &value,
		},
		{
			Ticker:        "CATX",
			FilingDate:    "2025-08-13",
			StatementType: domain.StatementBalanceSheet,
			LineItem:      "Total Assets",
			PeriodType:    domain.PeriodPointInTime,
			Value:         &value,
		},
	}

	result, err := svc.LoadBatch(ctx, records)
	if err != nil {
		t.Fatalf("LoadBatch failed: %v", err)
	}
	if result.FactsInserted != 1 {
		t.Errorf("expected 1 fact inserted, got %d", result.FactsInserted)
	}
	if result.Filings != 1 {
		t.Errorf("expected 1 filing, got %d", result.Filings)
	}
	// The whitespace-only line item must not leave a dimension row behind.
	if result.LineItems != 1 {
		t.Errorf("expected 1 line item, got %d", result.LineItems)
	}
}

func TestLoadBatchTrimsLineItems(t *testing.T) {
	svc, warehouse := newTestService(t)
	ctx := context.Background()

	value := 5000.0
	records := []domain.TidyRecord{{
		Ticker:        "CATX",
		FilingDate:    "2025-08-13",
		StatementType: domain.StatementIncomeStatement,
		LineItem:      "  Revenue  ",
		PeriodType:    domain.PeriodThreeMonths,
		Value:         &value,
	}}

	result, err := svc.LoadBatch(ctx, records)
	if err != nil {
		t.Fatalf("LoadBatch failed: %v", err)
	}
	if result.LineItems != 1 {
		t.Errorf("expected 1 line item, got %d", result.LineItems)
	}
	if result.FactsInserted != 1 {
		t.Errorf("expected padded line item to resolve, got %d facts", result.FactsInserted)
	}

	// The dimension row holds the trimmed name.
	items, err := warehouse.LineItemsByName(ctx, []string{"Revenue"})
	if err != nil {
		t.Fatalf("LineItemsByName failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected trimmed name Revenue in line_item, got %v", items)
	}
}

func TestLoadBatchFilingFallbackMatch(t *testing.T) {
	svc, warehouse := newTestService(t)
	ctx := context.Background()

	// Seed a filing with a fiscal year under the same date.
	fy := 2025
	value := 10.0
	seed := []domain.TidyRecord{{
		Ticker:        "CATX",
		FilingDate:    "2025-08-13",
		StatementType: domain.StatementBalanceSheet,
		LineItem:      "Total Assets",
		PeriodType:    domain.PeriodPointInTime,
		FiscalYear:    &fy,
		Value:         &value,
	}}
	if _, err := svc.LoadBatch(ctx, seed); err != nil {
		t.Fatalf("seed LoadBatch failed: %v", err)
	}

	// Same company and date but no fiscal year. The exact natural key
	// is new, so a second filing is created; but if we preload only
	// facts (not filings) the fallback path matches by company + date.
	// Exercise the fallback directly through stageFacts.
	companies, err := warehouse.CompaniesByTicker(ctx, []string{"CATX"})
	if err != nil {
		t.Fatalf("CompaniesByTicker failed: %v", err)
	}
	filings, err := warehouse.FilingsByCompany(ctx, []int64{companies["CATX"]})
	if err != nil {
		t.Fatalf("FilingsByCompany failed: %v", err)
	}
	stmts, _ := warehouse.StatementTypesByName(ctx, []string{domain.StatementBalanceSheet})
	items, _ := warehouse.LineItemsByName(ctx, []string{"Total Assets"})

	record := domain.TidyRecord{
		Ticker:        "CATX",
		FilingDate:    "2025-08-13",
		StatementType: domain.StatementBalanceSheet,
		LineItem:      "Total Assets",
		PeriodType:    domain.PeriodPointInTime,
		Value:         &value,
	}
	facts := svc.stageFacts([]domain.TidyRecord{record}, companies, stmts, items, filings)
	if len(facts) != 1 {
		t.Fatalf("expected fallback to resolve 1 fact, got %d", len(facts))
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"ISO", "2025-08-13", "2025-08-13", true},
		{"LongMonth", "June 30, 2025", "2025-06-30", true},
		{"ShortMonth", "Jun 30, 2025", "2025-06-30", true},
		{"Slashes", "06/30/2025", "2025-06-30", true},
		{"DayMonthYear", "30-Jun-2025", "2025-06-30", true},
		{"BareYear", "2024", "2024-01-01", true},
		{"Whitespace", "  2025-08-13  ", "2025-08-13", true},
		{"Garbage", "soon", "", false},
		{"Empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDate(tt.input)
			if ok != tt.ok {
				t.Fatalf("parseDate(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("parseDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
