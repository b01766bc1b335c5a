package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opensource-finance/heron/internal/domain"
)

// SQLAnalytics implements domain.Analytics using database/sql.
// The star schema it manages is disposable and fully rebuilt from the
// warehouse on every run.
type SQLAnalytics struct {
	db     *sql.DB
	driver string
}

// NewAnalytics creates the analytical store based on configuration.
// No migration runs here: ResetSchema recreates the tables per run.
func NewAnalytics(cfg domain.RepositoryConfig) (domain.Analytics, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &SQLAnalytics{db: db, driver: cfg.Driver}, nil
}

// ResetSchema drops and recreates all four analytical tables.
func (a *SQLAnalytics) ResetSchema(ctx context.Context) error {
	for _, schema := range AnalyticsSchemas() {
		if _, err := a.db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to reset analytics schema: %w", err)
		}
	}
	return nil
}

// InsertCompanyDims bulk-inserts company dimension rows.
func (a *SQLAnalytics) InsertCompanyDims(ctx context.Context, rows []domain.CompanyDimRow) error {
	query := "INSERT INTO company_dim (company_key, cik, ticker, company_name) VALUES (?, ?, ?, ?)"
	return a.bulkInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.CompanyKey, r.CIK, r.Ticker, r.CompanyName}
	})
}

// InsertDateDims bulk-inserts date dimension rows.
func (a *SQLAnalytics) InsertDateDims(ctx context.Context, rows []domain.DateDimRow) error {
	query := "INSERT INTO date_dim (date_key, date, year, quarter, month, day) VALUES (?, ?, ?, ?, ?, ?)"
	return a.bulkInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.DateKey, r.Date, r.Year, r.Quarter, r.Month, r.Day}
	})
}

// InsertStatementTypeDims bulk-inserts statement type dimension rows.
func (a *SQLAnalytics) InsertStatementTypeDims(ctx context.Context, rows []domain.StatementTypeDimRow) error {
	query := "INSERT INTO statement_type_dim (statement_type_key, statement_type) VALUES (?, ?)"
	return a.bulkInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.StatementTypeKey, r.StatementType}
	})
}

// InsertFactFinancials bulk-inserts analytical fact rows.
func (a *SQLAnalytics) InsertFactFinancials(ctx context.Context, rows []domain.FactFinancialRow) error {
	query := `
		INSERT INTO fact_financials (
			fact_id, company_key, date_key, statement_type_key, line_item_id, value
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	return a.bulkInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.FactID, r.CompanyKey, r.DateKey, r.StatementTypeKey, nullInt64(r.LineItemID), nullFloat(r.Value)}
	})
}

func (a *SQLAnalytics) bulkInsert(ctx context.Context, query string, n int, args func(int) []any) error {
	if n == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, rebind(a.driver, query))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// CountFutureDates counts date_dim rows dated after today (ISO string
// comparison; dates are stored as YYYY-MM-DD).
func (a *SQLAnalytics) CountFutureDates(ctx context.Context, today string) (int, error) {
	query := "SELECT COUNT(*) FROM date_dim WHERE date > ?"
	return a.countQuery(ctx, query, today)
}

// CountDuplicateFactIDs counts fact_id groups occurring more than once.
func (a *SQLAnalytics) CountDuplicateFactIDs(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*) FROM (
			SELECT fact_id
			FROM fact_financials
			GROUP BY fact_id
			HAVING COUNT(*) > 1
		) d
	`
	return a.countQuery(ctx, query)
}

// CountNonPositiveValues counts facts for the given line items whose
// value is <= 0.
func (a *SQLAnalytics) CountNonPositiveValues(ctx context.Context, lineItemIDs []int64) (int, error) {
	if len(lineItemIDs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM fact_financials WHERE line_item_id IN (%s) AND value <= 0",
		placeholders(len(lineItemIDs)))

	args := make([]any, len(lineItemIDs))
	for i, id := range lineItemIDs {
		args[i] = id
	}
	return a.countQuery(ctx, query, args...)
}

// CountGroupsWithNullLineItem counts (company_key, date_key) groups
// containing a fact with a NULL line-item reference.
func (a *SQLAnalytics) CountGroupsWithNullLineItem(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*) FROM (
			SELECT company_key, date_key
			FROM fact_financials
			GROUP BY company_key, date_key
			HAVING SUM(CASE WHEN line_item_id IS NULL THEN 1 ELSE 0 END) > 0
		) g
	`
	return a.countQuery(ctx, query)
}

// CountOrphanedCompanyRefs counts facts whose company key has no
// matching company_dim row.
func (a *SQLAnalytics) CountOrphanedCompanyRefs(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM fact_financials ff
		LEFT JOIN company_dim cd ON ff.company_key = cd.company_key
		WHERE cd.company_key IS NULL
	`
	return a.countQuery(ctx, query)
}

func (a *SQLAnalytics) countQuery(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, rebind(a.driver, query), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Ping checks database connectivity.
func (a *SQLAnalytics) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database connection.
func (a *SQLAnalytics) Close() error {
	return a.db.Close()
}
