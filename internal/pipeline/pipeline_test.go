package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/analytics"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/classify"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/load"
	"github.com/opensource-finance/heron/internal/repository"
)

const filingHTML = `<!DOCTYPE html>
<html><body>
<h1>Condensed Balance Sheets</h1>
<table>
  <tr><td></td><td>June 30, 2025</td><td>December 31, 2024</td></tr>
  <tr><td></td><td></td><td></td></tr>
  <tr><td>ASSETS</td><td></td><td></td></tr>
  <tr><td>Total Assets</td><td>(271,381)</td><td>1,000</td></tr>
  <tr><td>Total Liabilities</td><td>50</td><td>60</td></tr>
</table>
<p>Unclassified table below is discarded.</p>
<table>
  <tr><td>a</td><td>b</td></tr>
  <tr><td>c</td><td>d</td></tr>
  <tr><td>e</td><td>f</td></tr>
  <tr><td>g</td><td>h</td></tr>
</table>
</body></html>`

func newTestRunner(t *testing.T) (*Runner, domain.Warehouse, domain.EventBus) {
	t.Helper()
	dir := t.TempDir()

	docPath := filepath.Join(dir, "CATX_20250813_QR.html")
	if err := os.WriteFile(docPath, []byte(filingHTML), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	// A PDF entry exercises the skip path.
	pdfPath := filepath.Join(dir, "CATX_20250813_QR.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	inputList := filepath.Join(dir, "input_file.txt")
	content := "# filings\n" + docPath + "\n" + pdfPath + "\n"
	if err := os.WriteFile(inputList, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write input list: %v", err)
	}

	warehouse, err := repository.NewWarehouse(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(dir, "heron.db"),
	})
	if err != nil {
		t.Fatalf("failed to create warehouse: %v", err)
	}
	t.Cleanup(func() { warehouse.Close() })

	olap, err := repository.NewAnalytics(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(dir, "heron_olap.db"),
	})
	if err != nil {
		t.Fatalf("failed to create analytics store: %v", err)
	}
	t.Cleanup(func() { olap.Close() })

	classifier, err := classify.NewDefaultClassifier()
	if err != nil {
		t.Fatalf("failed to create classifier: %v", err)
	}

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	runner := NewRunner(
		inputList,
		classifier,
		load.NewService(warehouse, cache.NewLRUCache(100)),
		analytics.NewBuilder(warehouse, olap),
		analytics.NewValidator(warehouse, olap),
		eventBus,
	)
	return runner, warehouse, eventBus
}

func TestRunEndToEnd(t *testing.T) {
	runner, warehouse, eventBus := newTestRunner(t)
	ctx := context.Background()

	completed := make(chan *domain.Message, 1)
	sub, err := eventBus.Subscribe(ctx, domain.TopicRunCompleted, func(ctx context.Context, msg *domain.Message) error {
		completed <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.RunID == "" {
		t.Error("expected run id")
	}
	if summary.Documents != 1 {
		t.Errorf("expected 1 document, got %d", summary.Documents)
	}
	if summary.DocumentsSkipped != 1 {
		t.Errorf("expected 1 skipped document, got %d", summary.DocumentsSkipped)
	}
	if summary.StatementsLoaded != 1 {
		t.Errorf("expected 1 classified statement, got %d", summary.StatementsLoaded)
	}
	if !summary.AnalyticsRebuilt {
		t.Error("expected analytics rebuilt")
	}

	// Two line items across two period columns.
	if summary.Load.FactsInserted != 4 {
		t.Errorf("expected 4 facts, got %d", summary.Load.FactsInserted)
	}
	if summary.Load.Companies != 1 {
		t.Errorf("expected 1 company, got %d", summary.Load.Companies)
	}
	// One filing per period column: the unaudited June 30 one and the
	// audited December 31 one.
	if summary.Load.Filings != 2 {
		t.Errorf("expected 2 filings, got %d", summary.Load.Filings)
	}

	if len(summary.Report) != 5 {
		t.Errorf("expected 5 quality checks, got %d: %v", len(summary.Report), summary.Report)
	}
	if summary.QualityViolations != 0 {
		t.Errorf("expected clean report, got %v", summary.Report)
	}

	facts, err := warehouse.StarFacts(ctx)
	if err != nil {
		t.Fatalf("StarFacts failed: %v", err)
	}
	if len(facts) != 4 {
		t.Fatalf("expected 4 facts in warehouse, got %d", len(facts))
	}
	if facts[0].Value == nil || *facts[0].Value != -271381.0 {
		t.Errorf("expected parenthesized value -271381, got %v", facts[0].Value)
	}
	if facts[0].FilingDate != "2025-08-13" {
		t.Errorf("expected filing date from filename, got %s", facts[0].FilingDate)
	}

	select {
	case msg := <-completed:
		if msg.Topic != domain.TopicRunCompleted {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("run completed event not received")
	}
}

func TestRunIsIdempotentForDimensions(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	ctx := context.Background()

	first, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if second.Load.Companies != first.Load.Companies ||
		second.Load.Filings != first.Load.Filings ||
		second.Load.LineItems != first.Load.LineItems {
		t.Errorf("dimensions grew across runs: %+v then %+v", first.Load, second.Load)
	}

	// Facts are appended again, which the duplicate check cannot see
	// because the star schema carries distinct warehouse fact ids.
	if second.Load.FactsInserted != first.Load.FactsInserted {
		t.Errorf("expected equal insert counts, got %d then %d",
			first.Load.FactsInserted, second.Load.FactsInserted)
	}
	if second.Report[domain.CheckDuplicateFactIDs] != 0 {
		t.Errorf("expected no duplicate fact ids, got %d",
			second.Report[domain.CheckDuplicateFactIDs])
	}
}

func TestRunMissingInputList(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	runner.inputList = "/nonexistent/input_file.txt"

	if _, err := runner.Run(context.Background()); err == nil {
		t.Error("expected error for missing input list")
	}
}
