// Package extract turns filing document paths and free-text period
// labels into structured metadata.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

// ErrPatternMismatch is returned when a filename does not follow the
// TICKER_YYYYMMDD_<suffix> convention. The document is skipped entirely.
var ErrPatternMismatch = errors.New("filename does not match expected pattern")

// filenamePattern matches TICKER_YYYYMMDD_ at the start of the base name.
// The ticker is uppercase letters only; lowercase is a mismatch.
var filenamePattern = regexp.MustCompile(`^([A-Z]+)_(\d{8})_`)

// Metadata identifies the filing a document belongs to.
type Metadata struct {
	Ticker     string
	FilingDate string // ISO YYYY-MM-DD
}

// ExtractMetadata derives the ticker and filing date from a document
// path, e.g. "reports/CATX_20250813_QR.html" -> ("CATX", "2025-08-13").
func ExtractMetadata(path string) (Metadata, error) {
	filename := filepath.Base(path)

	m := filenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return Metadata{}, fmt.Errorf("%w: %s", ErrPatternMismatch, filename)
	}

	ticker, digits := m[1], m[2]
	filingDate := digits[:4] + "-" + digits[4:6] + "-" + digits[6:]

	return Metadata{Ticker: ticker, FilingDate: filingDate}, nil
}
