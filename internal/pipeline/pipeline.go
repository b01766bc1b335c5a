// Package pipeline orchestrates one end-to-end ingestion run: read the
// input list, extract and classify statement tables from each filing
// document, load the tidy records into the warehouse, rebuild the star
// schema, and run the quality checks.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/heron/internal/analytics"
	"github.com/opensource-finance/heron/internal/classify"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/extract"
	"github.com/opensource-finance/heron/internal/htmltable"
	"github.com/opensource-finance/heron/internal/load"
	"github.com/opensource-finance/heron/internal/normalize"
)

var tracer = otel.Tracer("heron-pipeline")

// Runner executes ingestion runs over a fixed set of components.
type Runner struct {
	inputList  string
	classifier *classify.Classifier
	loader     *load.Service
	builder    *analytics.Builder
	validator  *analytics.Validator
	bus        domain.EventBus
}

// NewRunner wires a pipeline runner.
func NewRunner(
	inputList string,
	classifier *classify.Classifier,
	loader *load.Service,
	builder *analytics.Builder,
	validator *analytics.Validator,
	bus domain.EventBus,
) *Runner {
	return &Runner{
		inputList:  inputList,
		classifier: classifier,
		loader:     loader,
		builder:    builder,
		validator:  validator,
		bus:        bus,
	}
}

// documentEvent is the payload published per processed document.
type documentEvent struct {
	RunID      string `json:"runId"`
	Path       string `json:"path"`
	Statements int    `json:"statements"`
	Records    int    `json:"records"`
}

// Run executes one full ingestion run and returns its summary.
// Individual document failures are logged and skipped; store failures
// abort the run.
func (r *Runner) Run(ctx context.Context) (*domain.RunSummary, error) {
	runID := uuid.New().String()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.id", runID)),
	)
	defer span.End()

	slog.Info("pipeline run started", "run_id", runID, "input_list", r.inputList)

	paths, err := extract.ReadInputList(r.inputList)
	if err != nil {
		return nil, fmt.Errorf("read input list: %w", err)
	}

	summary := &domain.RunSummary{RunID: runID, Report: domain.QualityReport{}}

	for _, path := range paths {
		records, statements, err := r.processDocument(ctx, runID, path)
		if err != nil {
			slog.Warn("skipping document", "run_id", runID, "path", path, "error", err)
			summary.DocumentsSkipped++
			continue
		}
		summary.Documents++
		summary.StatementsLoaded += statements

		if len(records) == 0 {
			continue
		}

		result, err := r.loader.LoadBatch(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		summary.Load.Add(result)
		r.publish(ctx, domain.TopicBatchLoaded, result)
	}

	if err := r.builder.Rebuild(ctx); err != nil {
		return nil, fmt.Errorf("rebuild analytics: %w", err)
	}
	summary.AnalyticsRebuilt = true

	report, err := r.validator.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("quality checks: %w", err)
	}
	summary.Report = report
	for _, count := range report {
		summary.QualityViolations += count
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	summary.CompletedAt = time.Now().UTC().Format(time.RFC3339)

	r.publish(ctx, domain.TopicRunCompleted, summary)
	slog.Info("pipeline run completed",
		"run_id", runID,
		"documents", summary.Documents,
		"skipped", summary.DocumentsSkipped,
		"facts", summary.Load.FactsInserted,
		"violations", summary.QualityViolations,
		"duration_ms", summary.DurationMs,
	)
	return summary, nil
}

// processDocument turns one filing document into tidy records. It
// returns the records and the number of classified statement tables.
func (r *Runner) processDocument(ctx context.Context, runID, path string) ([]domain.TidyRecord, int, error) {
	ctx, span := tracer.Start(ctx, "pipeline.document",
		trace.WithAttributes(attribute.String("document.path", path)),
	)
	defer span.End()

	if fileType := extract.DetectFileType(path); fileType != "html" {
		return nil, 0, fmt.Errorf("unsupported file type %q", fileType)
	}

	meta, err := extract.ExtractMetadata(path)
	if err != nil {
		return nil, 0, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	grids, err := htmltable.Extract(string(content))
	if err != nil {
		return nil, 0, err
	}

	var records []domain.TidyRecord
	statements := 0
	for _, grid := range grids {
		statementType, ok := r.classifier.Classify(grid)
		if !ok {
			continue
		}
		statements++
		records = append(records, normalize.Records(grid, meta, statementType)...)
	}

	slog.Debug("document processed",
		"run_id", runID,
		"path", path,
		"ticker", meta.Ticker,
		"tables", len(grids),
		"statements", statements,
		"records", len(records),
	)
	r.publish(ctx, domain.TopicDocumentProcessed, documentEvent{
		RunID:      runID,
		Path:       path,
		Statements: statements,
		Records:    len(records),
	})
	return records, statements, nil
}

// publish emits a JSON event; event delivery never fails a run.
func (r *Runner) publish(ctx context.Context, topic string, payload any) {
	if r.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := r.bus.Publish(ctx, topic, data); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
