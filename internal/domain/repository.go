package domain

import (
	"context"
	"time"
)

// FilingKey is the natural key of a filing: company + filing date +
// fiscal year + audited flag. FiscalYear is 0 when the period label
// carried no year; it is stored as NULL in that case.
type FilingKey struct {
	CompanyID  int64
	FilingDate string // ISO YYYY-MM-DD
	FiscalYear int
	Audited    bool
}

// FactRow is a financial fact staged for insertion.
type FactRow struct {
	FilingID        int64
	StatementTypeID int64
	LineItemID      int64
	PeriodType      string
	EndDate         *string // ISO YYYY-MM-DD, nil when unparseable
	Value           *float64
}

// CompanyRow is a company dimension row read back for the star rebuild.
type CompanyRow struct {
	ID     int64
	Ticker string
}

// StatementTypeRow is a statement-type row read back for the star rebuild.
type StatementTypeRow struct {
	ID   int64
	Name string
}

// StarFactRow is the joined financial_fact ⋈ filing ⋈ company projection
// consumed by the star-schema builder.
type StarFactRow struct {
	FactID          int64
	CompanyID       int64
	FilingDate      string // ISO YYYY-MM-DD
	StatementTypeID int64
	LineItemID      int64
	Value           *float64
}

// Warehouse is the normalized system-of-record store. The pipeline only
// ever appends or upserts; nothing is deleted through this interface.
type Warehouse interface {
	// Dimension lookups and inserts. The loader queries, inserts the
	// missing names, then re-queries to observe generated ids.
	CompaniesByTicker(ctx context.Context, tickers []string) (map[string]int64, error)
	InsertCompanies(ctx context.Context, tickers []string) error
	StatementTypesByName(ctx context.Context, names []string) (map[string]int64, error)
	InsertStatementTypes(ctx context.Context, names []string) error
	LineItemsByName(ctx context.Context, names []string) (map[string]int64, error)
	InsertLineItems(ctx context.Context, names []string) error

	// Filing natural-key resolution.
	FilingsByCompany(ctx context.Context, companyIDs []int64) (map[FilingKey]int64, error)
	InsertFilings(ctx context.Context, filings []FilingKey) error

	// InsertFacts writes one batch of fact rows in a single transaction.
	// A failure rolls back the whole batch.
	InsertFacts(ctx context.Context, facts []FactRow) error

	// Totals for load reporting.
	Counts(ctx context.Context) (companies, statementTypes, lineItems, filings int, err error)

	// Reads for the star-schema rebuild and quality checks.
	Companies(ctx context.Context) ([]CompanyRow, error)
	StatementTypes(ctx context.Context) ([]StatementTypeRow, error)
	FilingDates(ctx context.Context) ([]string, error)
	StarFacts(ctx context.Context) ([]StarFactRow, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CompanyDimRow is a row of the analytical company dimension.
type CompanyDimRow struct {
	CompanyKey  int64
	CIK         string
	Ticker      string
	CompanyName string
}

// DateDimRow is a row of the analytical date dimension. DateKey is the
// integer YYYYMMDD encoding of Date.
type DateDimRow struct {
	DateKey int64
	Date    string // ISO YYYY-MM-DD
	Year    int
	Quarter int
	Month   int
	Day     int
}

// StatementTypeDimRow is a row of the analytical statement-type dimension.
type StatementTypeDimRow struct {
	StatementTypeKey int64
	StatementType    string
}

// FactFinancialRow is a row of the analytical fact table. FactID is
// carried over verbatim from the warehouse so the rebuild is a pure
// function of warehouse state.
type FactFinancialRow struct {
	FactID           int64
	CompanyKey       int64
	DateKey          int64
	StatementTypeKey int64
	LineItemID       *int64 // nullable in the analytical schema
	Value            *float64
}

// Analytics is the derived star-schema store. It has no independent
// lifecycle: every run drops and recreates it from the warehouse.
type Analytics interface {
	// ResetSchema drops and recreates all four analytical tables.
	ResetSchema(ctx context.Context) error

	InsertCompanyDims(ctx context.Context, rows []CompanyDimRow) error
	InsertDateDims(ctx context.Context, rows []DateDimRow) error
	InsertStatementTypeDims(ctx context.Context, rows []StatementTypeDimRow) error
	InsertFactFinancials(ctx context.Context, rows []FactFinancialRow) error

	// Quality-check reads. Each is read-only and independent.
	CountFutureDates(ctx context.Context, today string) (int, error)
	CountDuplicateFactIDs(ctx context.Context) (int, error)
	CountNonPositiveValues(ctx context.Context, lineItemIDs []int64) (int, error)
	CountGroupsWithNullLineItem(ctx context.Context) (int, error)
	CountOrphanedCompanyRefs(ctx context.Context) (int, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for store initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
