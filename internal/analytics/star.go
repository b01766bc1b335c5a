// Package analytics rebuilds the star schema from the warehouse and
// runs the data quality checks over it.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// Builder derives the analytical star schema from warehouse state.
// A rebuild is a pure function of the warehouse: it drops every
// analytical table and repopulates from scratch.
type Builder struct {
	warehouse domain.Warehouse
	analytics domain.Analytics
}

// NewBuilder creates a star-schema builder over the two stores.
func NewBuilder(warehouse domain.Warehouse, analytics domain.Analytics) *Builder {
	return &Builder{warehouse: warehouse, analytics: analytics}
}

// Rebuild drops and repopulates the four analytical tables.
func (b *Builder) Rebuild(ctx context.Context) error {
	if err := b.analytics.ResetSchema(ctx); err != nil {
		return fmt.Errorf("reset star schema: %w", err)
	}

	if err := b.buildCompanyDim(ctx); err != nil {
		return fmt.Errorf("build company_dim: %w", err)
	}
	if err := b.buildDateDim(ctx); err != nil {
		return fmt.Errorf("build date_dim: %w", err)
	}
	if err := b.buildStatementTypeDim(ctx); err != nil {
		return fmt.Errorf("build statement_type_dim: %w", err)
	}
	if err := b.buildFacts(ctx); err != nil {
		return fmt.Errorf("build fact_financials: %w", err)
	}

	slog.Info("star schema rebuilt")
	return nil
}

// buildCompanyDim copies companies over. The warehouse stores no CIK or
// legal name, so the ticker stands in for both until a reference feed
// supplies them.
func (b *Builder) buildCompanyDim(ctx context.Context) error {
	companies, err := b.warehouse.Companies(ctx)
	if err != nil {
		return err
	}

	rows := make([]domain.CompanyDimRow, len(companies))
	for i, c := range companies {
		rows[i] = domain.CompanyDimRow{
			CompanyKey:  c.ID,
			CIK:         c.Ticker,
			Ticker:      c.Ticker,
			CompanyName: c.Ticker,
		}
	}
	return b.analytics.InsertCompanyDims(ctx, rows)
}

// buildDateDim derives one row per distinct filing date, keyed as
// YYYYMMDD.
func (b *Builder) buildDateDim(ctx context.Context) error {
	dates, err := b.warehouse.FilingDates(ctx)
	if err != nil {
		return err
	}

	var rows []domain.DateDimRow
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			slog.Warn("skipping unparseable filing date", "date", d)
			continue
		}
		rows = append(rows, domain.DateDimRow{
			DateKey: DateKey(t),
			Date:    d,
			Year:    t.Year(),
			Quarter: (int(t.Month())-1)/3 + 1,
			Month:   int(t.Month()),
			Day:     t.Day(),
		})
	}
	return b.analytics.InsertDateDims(ctx, rows)
}

func (b *Builder) buildStatementTypeDim(ctx context.Context) error {
	stmts, err := b.warehouse.StatementTypes(ctx)
	if err != nil {
		return err
	}

	rows := make([]domain.StatementTypeDimRow, len(stmts))
	for i, s := range stmts {
		rows[i] = domain.StatementTypeDimRow{
			StatementTypeKey: s.ID,
			StatementType:    s.Name,
		}
	}
	return b.analytics.InsertStatementTypeDims(ctx, rows)
}

// buildFacts copies the fact join into fact_financials. Fact ids are
// carried over from the warehouse so repeated rebuilds of the same
// warehouse state produce identical tables.
func (b *Builder) buildFacts(ctx context.Context) error {
	facts, err := b.warehouse.StarFacts(ctx)
	if err != nil {
		return err
	}

	rows := make([]domain.FactFinancialRow, 0, len(facts))
	for _, f := range facts {
		t, err := time.Parse("2006-01-02", f.FilingDate)
		if err != nil {
			slog.Warn("skipping fact with unparseable filing date",
				"fact_id", f.FactID, "date", f.FilingDate)
			continue
		}
		lineItemID := f.LineItemID
		rows = append(rows, domain.FactFinancialRow{
			FactID:           f.FactID,
			CompanyKey:       f.CompanyID,
			DateKey:          DateKey(t),
			StatementTypeKey: f.StatementTypeID,
			LineItemID:       &lineItemID,
			Value:            f.Value,
		})
	}
	return b.analytics.InsertFactFinancials(ctx, rows)
}

// DateKey encodes a date as the integer YYYYMMDD.
func DateKey(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}
