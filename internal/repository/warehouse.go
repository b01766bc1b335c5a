package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opensource-finance/heron/internal/domain"
)

// SQLWarehouse implements domain.Warehouse using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLWarehouse struct {
	db     *sql.DB
	driver string
}

// NewWarehouse creates the normalized store based on configuration.
func NewWarehouse(cfg domain.RepositoryConfig) (domain.Warehouse, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}

	w := &SQLWarehouse{db: db, driver: cfg.Driver}
	if err := w.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return w, nil
}

func (w *SQLWarehouse) migrate() error {
	for _, schema := range WarehouseSchemas(w.driver) {
		if _, err := w.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// CompaniesByTicker returns ticker -> company_id for the given tickers.
func (w *SQLWarehouse) CompaniesByTicker(ctx context.Context, tickers []string) (map[string]int64, error) {
	return w.idsByName(ctx, "company", "ticker", "company_id", tickers)
}

// InsertCompanies inserts companies for tickers not yet present.
func (w *SQLWarehouse) InsertCompanies(ctx context.Context, tickers []string) error {
	return w.insertNames(ctx, "INSERT INTO company (ticker) VALUES (?)", tickers)
}

// StatementTypesByName returns name -> statement_type_id.
func (w *SQLWarehouse) StatementTypesByName(ctx context.Context, names []string) (map[string]int64, error) {
	return w.idsByName(ctx, "statement_type", "name", "statement_type_id", names)
}

// InsertStatementTypes inserts new statement type names.
func (w *SQLWarehouse) InsertStatementTypes(ctx context.Context, names []string) error {
	return w.insertNames(ctx, "INSERT INTO statement_type (name) VALUES (?)", names)
}

// LineItemsByName returns name -> line_item_id. Names are never merged
// or aliased; identity is the exact string.
func (w *SQLWarehouse) LineItemsByName(ctx context.Context, names []string) (map[string]int64, error) {
	return w.idsByName(ctx, "line_item", "name", "line_item_id", names)
}

// InsertLineItems inserts new line item names.
func (w *SQLWarehouse) InsertLineItems(ctx context.Context, names []string) error {
	return w.insertNames(ctx, "INSERT INTO line_item (name) VALUES (?)", names)
}

func (w *SQLWarehouse) idsByName(ctx context.Context, table, nameCol, idCol string, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	if len(names) == 0 {
		return out, nil
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)",
		nameCol, idCol, table, nameCol, placeholders(len(names)))

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}

	rows, err := w.db.QueryContext(ctx, rebind(w.driver, query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

func (w *SQLWarehouse) insertNames(ctx context.Context, query string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, rebind(w.driver, query))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, n := range names {
		if _, err := stmt.ExecContext(ctx, n); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// FilingsByCompany returns the natural-key map for all filings of the
// given companies. NULL fiscal years map to 0, NULL audited flags to
// false, matching how the loader encodes absent values.
func (w *SQLWarehouse) FilingsByCompany(ctx context.Context, companyIDs []int64) (map[domain.FilingKey]int64, error) {
	out := make(map[domain.FilingKey]int64)
	if len(companyIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(
		"SELECT filing_id, company_id, filing_date, fiscal_year, is_audited FROM filing WHERE company_id IN (%s)",
		placeholders(len(companyIDs)))

	args := make([]any, len(companyIDs))
	for i, id := range companyIDs {
		args[i] = id
	}

	rows, err := w.db.QueryContext(ctx, rebind(w.driver, query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			filingID, companyID int64
			filingDate          string
			fiscalYear          sql.NullInt64
			isAudited           sql.NullInt64
		)
		if err := rows.Scan(&filingID, &companyID, &filingDate, &fiscalYear, &isAudited); err != nil {
			return nil, err
		}
		key := domain.FilingKey{
			CompanyID:  companyID,
			FilingDate: filingDate,
			FiscalYear: int(fiscalYear.Int64),
			Audited:    isAudited.Int64 == 1,
		}
		out[key] = filingID
	}
	return out, rows.Err()
}

// InsertFilings inserts filings for natural keys not yet present.
func (w *SQLWarehouse) InsertFilings(ctx context.Context, filings []domain.FilingKey) error {
	if len(filings) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := "INSERT INTO filing (company_id, filing_date, fiscal_year, is_audited) VALUES (?, ?, ?, ?)"
	stmt, err := tx.PrepareContext(ctx, rebind(w.driver, query))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, f := range filings {
		var fiscalYear any
		if f.FiscalYear != 0 {
			fiscalYear = f.FiscalYear
		}
		audited := 0
		if f.Audited {
			audited = 1
		}
		if _, err := stmt.ExecContext(ctx, f.CompanyID, f.FilingDate, fiscalYear, audited); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// InsertFacts writes one batch of fact rows in a single transaction.
// Any failure rolls back the whole batch and is returned to the caller.
func (w *SQLWarehouse) InsertFacts(ctx context.Context, facts []domain.FactRow) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO financial_fact (
			filing_id, statement_type_id, line_item_id, period_type, end_date, value
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.PrepareContext(ctx, rebind(w.driver, query))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, f := range facts {
		if _, err := stmt.ExecContext(ctx,
			f.FilingID, f.StatementTypeID, f.LineItemID,
			f.PeriodType, nullString(f.EndDate), nullFloat(f.Value),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Counts returns total dimension and filing row counts.
func (w *SQLWarehouse) Counts(ctx context.Context) (companies, statementTypes, lineItems, filings int, err error) {
	counts := []struct {
		table string
		dest  *int
	}{
		{"company", &companies},
		{"statement_type", &statementTypes},
		{"line_item", &lineItems},
		{"filing", &filings},
	}
	for _, c := range counts {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)
		if err = w.db.QueryRowContext(ctx, query).Scan(c.dest); err != nil {
			return 0, 0, 0, 0, err
		}
	}
	return companies, statementTypes, lineItems, filings, nil
}

// Companies returns all company rows.
func (w *SQLWarehouse) Companies(ctx context.Context) ([]domain.CompanyRow, error) {
	rows, err := w.db.QueryContext(ctx, "SELECT company_id, ticker FROM company ORDER BY company_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CompanyRow
	for rows.Next() {
		var c domain.CompanyRow
		if err := rows.Scan(&c.ID, &c.Ticker); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StatementTypes returns all statement type rows.
func (w *SQLWarehouse) StatementTypes(ctx context.Context) ([]domain.StatementTypeRow, error) {
	rows, err := w.db.QueryContext(ctx, "SELECT statement_type_id, name FROM statement_type ORDER BY statement_type_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StatementTypeRow
	for rows.Next() {
		var s domain.StatementTypeRow
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FilingDates returns the distinct filing dates across all filings.
func (w *SQLWarehouse) FilingDates(ctx context.Context) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, "SELECT DISTINCT filing_date FROM filing ORDER BY filing_date")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// StarFacts returns the financial_fact ⋈ filing ⋈ company join consumed
// by the star-schema builder.
func (w *SQLWarehouse) StarFacts(ctx context.Context) ([]domain.StarFactRow, error) {
	query := `
		SELECT ff.fact_id, c.company_id, fl.filing_date,
		       ff.statement_type_id, ff.line_item_id, ff.value
		FROM financial_fact ff
		JOIN filing fl ON ff.filing_id = fl.filing_id
		JOIN company c ON fl.company_id = c.company_id
		ORDER BY ff.fact_id
	`
	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StarFactRow
	for rows.Next() {
		var (
			f     domain.StarFactRow
			value sql.NullFloat64
		)
		if err := rows.Scan(&f.FactID, &f.CompanyID, &f.FilingDate, &f.StatementTypeID, &f.LineItemID, &value); err != nil {
			return nil, err
		}
		if value.Valid {
			v := value.Float64
			f.Value = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Ping checks database connectivity.
func (w *SQLWarehouse) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Close closes the database connection.
func (w *SQLWarehouse) Close() error {
	return w.db.Close()
}
