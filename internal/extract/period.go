package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
)

var (
	monthDatePattern = regexp.MustCompile(`(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s*\d{4}`)
	yearPattern      = regexp.MustCompile(`\d{4}`)
)

// ParsePeriod turns a free-text period label into its structured form.
// It is total: any input yields a Period, never an error. Absent dates
// and years come back nil.
//
// Audited is true unless the label contains "unaudited" (any case); the
// warehouse stores this value directly as is_audited.
func ParsePeriod(label string) domain.Period {
	p := domain.Period{
		Audited: !strings.Contains(strings.ToLower(label), "unaudited"),
	}

	// First matching type wins; checks are case-sensitive substrings.
	switch {
	case strings.Contains(label, "Three Months"):
		p.Type = domain.PeriodThreeMonths
	case strings.Contains(label, "Six Months"):
		p.Type = domain.PeriodSixMonths
	case strings.Contains(label, "Year Ended"):
		p.Type = domain.PeriodYearEnded
	default:
		p.Type = domain.PeriodPointInTime
	}

	if m := monthDatePattern.FindString(label); m != "" {
		p.EndDate = &m
		if y := yearPattern.FindString(m); y != "" {
			year, _ := strconv.Atoi(y)
			p.FiscalYear = &year
		}
		return p
	}

	if y := yearPattern.FindString(label); y != "" {
		year, _ := strconv.Atoi(y)
		p.FiscalYear = &year
		p.EndDate = &y
	}

	return p
}
