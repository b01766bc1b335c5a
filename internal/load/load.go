// Package load implements the idempotent warehouse upsert loader.
//
// Dimension rows (company, statement type, line item) and filings are
// upserted by natural key: query, insert the missing, re-query to
// observe generated ids. Fact rows are append-only and deliberately
// NOT idempotent — they carry no natural key, so reloading the same
// batch inserts them again.
package load

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// factBatchSize bounds the size of each fact insert transaction.
const factBatchSize = 1000

// cacheTTL for dimension-id entries. The rows are immutable once
// created, so the TTL only bounds memory, not staleness.
const cacheTTL = time.Hour

// Service loads tidy record batches into the warehouse. The cache
// fronts dimension-id lookups across batches.
type Service struct {
	repo  domain.Warehouse
	cache domain.Cache
}

// NewService creates a loader service.
func NewService(repo domain.Warehouse, cache domain.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// LoadBatch reconciles one tidy record batch against the warehouse and
// inserts its facts. Rows that cannot be resolved to a company, filing,
// statement type, or line item are dropped; a store write failure rolls
// back the affected fact batch and is returned to the caller.
func (s *Service) LoadBatch(ctx context.Context, records []domain.TidyRecord) (domain.LoadResult, error) {
	var result domain.LoadResult

	// 1) Upsert companies (tickers, uppercased).
	tickers := distinct(records, func(r domain.TidyRecord) string {
		return strings.ToUpper(strings.TrimSpace(r.Ticker))
	})
	companyIDs, err := s.resolveNames(ctx, "company", tickers,
		s.repo.CompaniesByTicker, s.repo.InsertCompanies)
	if err != nil {
		return result, err
	}

	// 2) Upsert statement types.
	stmtNames := distinct(records, func(r domain.TidyRecord) string { return r.StatementType })
	stmtIDs, err := s.resolveNames(ctx, "stmt", stmtNames,
		s.repo.StatementTypesByName, s.repo.InsertStatementTypes)
	if err != nil {
		return result, err
	}

	// 3) Upsert line items.
	itemNames := distinct(records, func(r domain.TidyRecord) string {
		return strings.TrimSpace(r.LineItem)
	})
	itemIDs, err := s.resolveNames(ctx, "item", itemNames,
		s.repo.LineItemsByName, s.repo.InsertLineItems)
	if err != nil {
		return result, err
	}

	// 4) Upsert filings by natural key. Rows without a resolvable
	// company or a parseable filing date are dropped here.
	filingIDs, err := s.resolveFilings(ctx, records, companyIDs)
	if err != nil {
		return result, err
	}

	// 5) Stage facts, preserving null values.
	facts := s.stageFacts(records, companyIDs, stmtIDs, itemIDs, filingIDs)

	// 6) Insert facts in bounded transactions.
	for i := 0; i < len(facts); i += factBatchSize {
		end := i + factBatchSize
		if end > len(facts) {
			end = len(facts)
		}
		if err := s.repo.InsertFacts(ctx, facts[i:end]); err != nil {
			return result, err
		}
	}

	companies, stmts, items, filings, err := s.repo.Counts(ctx)
	if err != nil {
		return result, err
	}
	result = domain.LoadResult{
		Companies:      companies,
		StatementTypes: stmts,
		LineItems:      items,
		Filings:        filings,
		FactsInserted:  len(facts),
	}

	slog.Info("warehouse batch loaded",
		"companies", result.Companies,
		"statement_types", result.StatementTypes,
		"line_items", result.LineItems,
		"filings", result.Filings,
		"facts", result.FactsInserted,
	)
	return result, nil
}

// resolveNames upserts a name dimension: cache lookup, query, insert
// missing, re-query. Returns the complete name -> id mapping.
func (s *Service) resolveNames(
	ctx context.Context,
	cachePrefix string,
	names []string,
	query func(context.Context, []string) (map[string]int64, error),
	insert func(context.Context, []string) error,
) (map[string]int64, error) {
	out := make(map[string]int64, len(names))

	uncached := names[:0:0]
	for _, n := range names {
		if id, ok := s.cachedID(ctx, cachePrefix, n); ok {
			out[n] = id
		} else {
			uncached = append(uncached, n)
		}
	}
	if len(uncached) == 0 {
		return out, nil
	}

	existing, err := query(ctx, uncached)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, n := range uncached {
		if _, ok := existing[n]; !ok {
			missing = append(missing, n)
		}
	}

	if len(missing) > 0 {
		if err := insert(ctx, missing); err != nil {
			return nil, err
		}
		// Re-query to observe generated ids before facts reference them.
		existing, err = query(ctx, uncached)
		if err != nil {
			return nil, err
		}
	}

	for n, id := range existing {
		out[n] = id
		s.cacheID(ctx, cachePrefix, n, id)
	}
	return out, nil
}

// resolveFilings upserts filings by their 4-part natural key and
// returns the complete key -> id mapping for the batch's companies.
func (s *Service) resolveFilings(ctx context.Context, records []domain.TidyRecord, companyIDs map[string]int64) (map[domain.FilingKey]int64, error) {
	keys := make(map[domain.FilingKey]struct{})
	involved := make(map[int64]struct{})

	for _, r := range records {
		key, ok := filingKeyFor(r, companyIDs)
		if !ok {
			slog.Warn("dropping record without resolvable filing",
				"ticker", r.Ticker, "filing_date", r.FilingDate)
			continue
		}
		keys[key] = struct{}{}
		involved[key.CompanyID] = struct{}{}
	}
	if len(keys) == 0 {
		return map[domain.FilingKey]int64{}, nil
	}

	ids := make([]int64, 0, len(involved))
	for id := range involved {
		ids = append(ids, id)
	}

	existing, err := s.repo.FilingsByCompany(ctx, ids)
	if err != nil {
		return nil, err
	}

	var missing []domain.FilingKey
	for key := range keys {
		if _, ok := existing[key]; !ok {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		if err := s.repo.InsertFilings(ctx, missing); err != nil {
			return nil, err
		}
		existing, err = s.repo.FilingsByCompany(ctx, ids)
		if err != nil {
			return nil, err
		}
	}
	return existing, nil
}

// stageFacts resolves every record against the id maps. Unresolvable
// rows are dropped silently; they only show up as a smaller inserted
// count.
func (s *Service) stageFacts(
	records []domain.TidyRecord,
	companyIDs, stmtIDs, itemIDs map[string]int64,
	filingIDs map[domain.FilingKey]int64,
) []domain.FactRow {
	var facts []domain.FactRow

	for _, r := range records {
		key, ok := filingKeyFor(r, companyIDs)
		if !ok {
			continue
		}

		filingID, ok := filingIDs[key]
		if !ok {
			// Fall back to company + filing date alone; an arbitrary
			// match wins when several filings share the date.
			for k, id := range filingIDs {
				if k.CompanyID == key.CompanyID && k.FilingDate == key.FilingDate {
					filingID, ok = id, true
					break
				}
			}
			if !ok {
				continue
			}
		}

		if r.StatementType == "" || strings.TrimSpace(r.LineItem) == "" {
			continue
		}
		stmtID, ok := stmtIDs[r.StatementType]
		if !ok {
			continue
		}
		itemID, ok := itemIDs[strings.TrimSpace(r.LineItem)]
		if !ok {
			continue
		}

		var endDate *string
		if r.EndDate != nil {
			if iso, ok := parseDate(*r.EndDate); ok {
				endDate = &iso
			}
		}

		facts = append(facts, domain.FactRow{
			FilingID:        filingID,
			StatementTypeID: stmtID,
			LineItemID:      itemID,
			PeriodType:      r.PeriodType,
			EndDate:         endDate,
			Value:           r.Value, // null preserved
		})
	}
	return facts
}

func filingKeyFor(r domain.TidyRecord, companyIDs map[string]int64) (domain.FilingKey, bool) {
	companyID, ok := companyIDs[strings.ToUpper(strings.TrimSpace(r.Ticker))]
	if !ok {
		return domain.FilingKey{}, false
	}
	iso, ok := parseDate(r.FilingDate)
	if !ok {
		return domain.FilingKey{}, false
	}

	key := domain.FilingKey{
		CompanyID:  companyID,
		FilingDate: iso,
		Audited:    r.Audited,
	}
	if r.FiscalYear != nil {
		key.FiscalYear = *r.FiscalYear
	}
	return key, true
}

// dateFormats are tried in order when parsing filing and end dates.
var dateFormats = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"2-Jan-2006",
	"2006",
}

// parseDate normalizes a date string to ISO YYYY-MM-DD. A bare year
// maps to January 1 of that year.
func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func (s *Service) cachedID(ctx context.Context, prefix, name string) (int64, bool) {
	if s.cache == nil || name == "" {
		return 0, false
	}
	data, err := s.cache.Get(ctx, prefix+":"+name)
	if err != nil || data == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (s *Service) cacheID(ctx context.Context, prefix, name string, id int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, prefix+":"+name, []byte(strconv.FormatInt(id, 10)), cacheTTL)
}

// distinct collects the unique non-empty values of f over records,
// preserving first-seen order.
func distinct(records []domain.TidyRecord, f func(domain.TidyRecord) string) []string {
	seen := make(map[string]struct{}, len(records))
	var out []string
	for _, r := range records {
		v := f(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
