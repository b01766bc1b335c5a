// Package domain defines the core interfaces and types for Heron.
package domain

// Statement type labels produced by the classifier.
const (
	StatementBalanceSheet    = "Balance Sheet"
	StatementIncomeStatement = "Income Statement"
)

// Period type labels produced by the period parser.
const (
	PeriodThreeMonths = "Three Months"
	PeriodSixMonths   = "Six Months"
	PeriodYearEnded   = "Year Ended"
	PeriodPointInTime = "Point-in-Time"
)

// Period is the structured form of a free-text period label such as
// "Three Months Ended June 30, 2025 (unaudited)".
type Period struct {
	// Type is one of the Period* constants.
	Type string `json:"type"`

	// EndDate is the matched date text ("June 30, 2025") or the bare
	// fiscal year ("2025"). Nil when the label carries neither.
	EndDate *string `json:"endDate,omitempty"`

	// Audited is true unless the label contains "unaudited".
	Audited bool `json:"audited"`

	// FiscalYear is the four-digit year found in the label, if any.
	FiscalYear *int `json:"fiscalYear,omitempty"`
}

// TidyRecord is one observation in tidy (long) form: a single
// (line item, period) cell of a classified financial statement, enriched
// with filing metadata and the parsed period.
type TidyRecord struct {
	Ticker        string   `json:"ticker"`
	FilingDate    string   `json:"filingDate"` // ISO YYYY-MM-DD
	StatementType string   `json:"statementType"`
	LineItem      string   `json:"lineItem"`
	PeriodType    string   `json:"periodType"`
	EndDate       *string  `json:"endDate,omitempty"` // raw period-label date text
	FiscalYear    *int     `json:"fiscalYear,omitempty"`
	Audited       bool     `json:"audited"`
	Value         *float64 `json:"value,omitempty"`
}

// LoadResult reports warehouse state after loading one tidy batch.
// The dimension counts are totals known after the run, not deltas;
// FactsInserted is the number of fact rows written by this call.
type LoadResult struct {
	Companies      int `json:"companies"`
	StatementTypes int `json:"statementTypes"`
	LineItems      int `json:"lineItems"`
	Filings        int `json:"filings"`
	FactsInserted  int `json:"factsInserted"`
}

// Add accumulates another batch's result.
func (r *LoadResult) Add(other LoadResult) {
	if other.Companies > r.Companies {
		r.Companies = other.Companies
	}
	if other.StatementTypes > r.StatementTypes {
		r.StatementTypes = other.StatementTypes
	}
	if other.LineItems > r.LineItems {
		r.LineItems = other.LineItems
	}
	if other.Filings > r.Filings {
		r.Filings = other.Filings
	}
	r.FactsInserted += other.FactsInserted
}

// QualityReport maps check name to violation count. Zero means clean.
type QualityReport map[string]int

// Quality check names. Every report carries exactly these five keys.
const (
	CheckFutureDates            = "future_dates"
	CheckDuplicateFactIDs       = "duplicate_fact_ids"
	CheckRevenueNonPositive     = "revenue_non_positive"
	CheckMissingRequiredMetrics = "missing_required_metrics"
	CheckOrphanedCompanyRefs    = "orphaned_company_refs"
)

// RunSummary describes one completed pipeline run.
type RunSummary struct {
	RunID             string        `json:"runId"`
	Documents         int           `json:"documents"`
	DocumentsSkipped  int           `json:"documentsSkipped"`
	StatementsLoaded  int           `json:"statementsLoaded"`
	Load              LoadResult    `json:"load"`
	Report            QualityReport `json:"report"`
	DurationMs        int64         `json:"durationMs"`
	CompletedAt       string        `json:"completedAt"`
	AnalyticsRebuilt  bool          `json:"analyticsRebuilt"`
	QualityViolations int           `json:"qualityViolations"`
}
