package repository

// Schema definitions for the Heron stores.
// Compatible with both SQLite and PostgreSQL; the only dialect
// difference is the auto-increment surrogate key column.

import "strings"

// pkColumn is the placeholder replaced with the dialect's
// auto-increment primary key type.
const pkColumn = "%PK%"

func surrogateKey(driver string) string {
	if driver == "postgres" {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

const schemaCompany = `
CREATE TABLE IF NOT EXISTS company (
    company_id %PK%,
    ticker TEXT NOT NULL UNIQUE
);
`

const schemaFiling = `
CREATE TABLE IF NOT EXISTS filing (
    filing_id %PK%,
    company_id BIGINT NOT NULL REFERENCES company(company_id),
    filing_date TEXT NOT NULL,
    fiscal_year INTEGER,
    is_audited INTEGER,
    UNIQUE (company_id, filing_date, fiscal_year, is_audited)
);

CREATE INDEX IF NOT EXISTS idx_filing_company ON filing(company_id);
`

const schemaStatementType = `
CREATE TABLE IF NOT EXISTS statement_type (
    statement_type_id %PK%,
    name TEXT NOT NULL UNIQUE
);
`

const schemaLineItem = `
CREATE TABLE IF NOT EXISTS line_item (
    line_item_id %PK%,
    name TEXT NOT NULL UNIQUE
);
`

const schemaFinancialFact = `
CREATE TABLE IF NOT EXISTS financial_fact (
    fact_id %PK%,
    filing_id BIGINT NOT NULL REFERENCES filing(filing_id),
    statement_type_id BIGINT NOT NULL REFERENCES statement_type(statement_type_id),
    line_item_id BIGINT NOT NULL REFERENCES line_item(line_item_id),
    period_type TEXT,
    end_date TEXT,
    value REAL
);

CREATE INDEX IF NOT EXISTS idx_fact_filing ON financial_fact(filing_id);
CREATE INDEX IF NOT EXISTS idx_fact_line_item ON financial_fact(line_item_id);
`

// WarehouseSchemas returns the normalized-store schema statements in
// dependency order for the given driver.
func WarehouseSchemas(driver string) []string {
	raw := []string{
		schemaCompany,
		schemaFiling,
		schemaStatementType,
		schemaLineItem,
		schemaFinancialFact,
	}
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = strings.ReplaceAll(s, pkColumn, surrogateKey(driver))
	}
	return out
}

// Analytical star schema. These tables are disposable: every run drops
// and recreates them from the warehouse. Surrogate keys are carried over
// from the warehouse, so no column auto-increments. fact_id is
// deliberately unconstrained; the duplicate_fact_ids quality check
// watches it.
const analyticsDropAll = `
DROP TABLE IF EXISTS fact_financials;
DROP TABLE IF EXISTS company_dim;
DROP TABLE IF EXISTS date_dim;
DROP TABLE IF EXISTS statement_type_dim;
`

const schemaCompanyDim = `
CREATE TABLE company_dim (
    company_key     BIGINT PRIMARY KEY,
    cik             TEXT,
    ticker          TEXT,
    company_name    TEXT
);
`

const schemaDateDim = `
CREATE TABLE date_dim (
    date_key        BIGINT PRIMARY KEY,
    date            TEXT,
    year            INTEGER,
    quarter         INTEGER,
    month           INTEGER,
    day             INTEGER
);
`

const schemaStatementTypeDim = `
CREATE TABLE statement_type_dim (
    statement_type_key BIGINT PRIMARY KEY,
    statement_type     TEXT
);
`

const schemaFactFinancials = `
CREATE TABLE fact_financials (
    fact_id             BIGINT,
    company_key         BIGINT,
    date_key            BIGINT,
    statement_type_key  BIGINT,
    line_item_id        BIGINT,
    value               REAL
);
`

// AnalyticsSchemas returns drop + create statements for the star schema.
func AnalyticsSchemas() []string {
	return []string{
		analyticsDropAll,
		schemaCompanyDim,
		schemaDateDim,
		schemaStatementTypeDim,
		schemaFactFinancials,
	}
}
