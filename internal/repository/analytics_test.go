package repository

import (
	"context"
	"os"
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
)

func newTestAnalytics(t *testing.T) domain.Analytics {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "heron-olap-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	store, err := NewAnalytics(cfg)
	if err != nil {
		t.Fatalf("failed to create analytics store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.ResetSchema(context.Background()); err != nil {
		t.Fatalf("ResetSchema failed: %v", err)
	}
	return store
}

func ptrFloat(v float64) *float64 { return &v }
func ptrInt64(v int64) *int64     { return &v }

func seedStar(t *testing.T, store domain.Analytics) {
	t.Helper()
	ctx := context.Background()

	companies := []domain.CompanyDimRow{
		{CompanyKey: 1, CIK: "CATX", Ticker: "CATX", CompanyName: "CATX"},
	}
	if err := store.InsertCompanyDims(ctx, companies); err != nil {
		t.Fatalf("InsertCompanyDims failed: %v", err)
	}

	dates := []domain.DateDimRow{
		{DateKey: 20250813, Date: "2025-08-13", Year: 2025, Quarter: 3, Month: 8, Day: 13},
		{DateKey: 21000101, Date: "2100-01-01", Year: 2100, Quarter: 1, Month: 1, Day: 1},
	}
	if err := store.InsertDateDims(ctx, dates); err != nil {
		t.Fatalf("InsertDateDims failed: %v", err)
	}

	stmts := []domain.StatementTypeDimRow{
		{StatementTypeKey: 1, StatementType: domain.StatementBalanceSheet},
	}
	if err := store.InsertStatementTypeDims(ctx, stmts); err != nil {
		t.Fatalf("InsertStatementTypeDims failed: %v", err)
	}

	facts := []domain.FactFinancialRow{
		{FactID: 1, CompanyKey: 1, DateKey: 20250813, StatementTypeKey: 1, LineItemID: ptrInt64(7), Value: ptrFloat(100)},
		{FactID: 1, CompanyKey: 1, DateKey: 20250813, StatementTypeKey: 1, LineItemID: ptrInt64(7), Value: ptrFloat(-5)},
		{FactID: 2, CompanyKey: 9, DateKey: 20250813, StatementTypeKey: 1, LineItemID: nil, Value: nil},
	}
	if err := store.InsertFactFinancials(ctx, facts); err != nil {
		t.Fatalf("InsertFactFinancials failed: %v", err)
	}
}

func TestSQLiteAnalytics(t *testing.T) {
	store := newTestAnalytics(t)
	ctx := context.Background()
	seedStar(t, store)

	t.Run("FutureDates", func(t *testing.T) {
		n, err := store.CountFutureDates(ctx, "2026-08-29")
		if err != nil {
			t.Fatalf("CountFutureDates failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 future date, got %d", n)
		}
	})

	t.Run("DuplicateFactIDs", func(t *testing.T) {
		n, err := store.CountDuplicateFactIDs(ctx)
		if err != nil {
			t.Fatalf("CountDuplicateFactIDs failed: %v", err)
		}
		// fact_id 1 appears twice, fact_id 2 once.
		if n != 1 {
			t.Errorf("expected 1 duplicated fact id, got %d", n)
		}
	})

	t.Run("NonPositiveValues", func(t *testing.T) {
		n, err := store.CountNonPositiveValues(ctx, []int64{7})
		if err != nil {
			t.Fatalf("CountNonPositiveValues failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 non-positive value, got %d", n)
		}

		n, err = store.CountNonPositiveValues(ctx, nil)
		if err != nil {
			t.Fatalf("CountNonPositiveValues with no ids failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 for empty id list, got %d", n)
		}
	})

	t.Run("GroupsWithNullLineItem", func(t *testing.T) {
		n, err := store.CountGroupsWithNullLineItem(ctx)
		if err != nil {
			t.Fatalf("CountGroupsWithNullLineItem failed: %v", err)
		}
		// The (9, 20250813) group holds the NULL line-item fact.
		if n != 1 {
			t.Errorf("expected 1 group with null line item, got %d", n)
		}
	})

	t.Run("OrphanedCompanyRefs", func(t *testing.T) {
		n, err := store.CountOrphanedCompanyRefs(ctx)
		if err != nil {
			t.Fatalf("CountOrphanedCompanyRefs failed: %v", err)
		}
		// company_key 9 has no company_dim row.
		if n != 1 {
			t.Errorf("expected 1 orphaned fact, got %d", n)
		}
	})

	t.Run("ResetDropsEverything", func(t *testing.T) {
		if err := store.ResetSchema(ctx); err != nil {
			t.Fatalf("ResetSchema failed: %v", err)
		}
		n, err := store.CountDuplicateFactIDs(ctx)
		if err != nil {
			t.Fatalf("CountDuplicateFactIDs after reset failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected empty star schema after reset, got %d duplicates", n)
		}
	})
}
