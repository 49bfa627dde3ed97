package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Miglio04/OREKA-BACKEND/internal/cache"
	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
	"github.com/Miglio04/OREKA-BACKEND/internal/ingest"
	"github.com/Miglio04/OREKA-BACKEND/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New(), cache.NoopSummaryCache{}, nil, time.Minute, nil)
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", value, err)
	}
	return d
}

func mustUpload(t *testing.T, svc *Service, name, content string) *domain.ProcessedFile {
	t.Helper()
	file, err := svc.ProcessUpload(context.Background(), name, []byte(content))
	if err != nil {
		t.Fatalf("upload %s failed: %v", name, err)
	}
	return file
}

const posCSV = "timestamp,item_type,item_name,quantity,price_per_item,total_price,payment_method,area,receipt_id\n" +
	"2024-01-01 12:00:00,FOOD,Steak,1,100.00,100.00,CARD,Restaurant,R-1\n" +
	"2024-01-01 13:00:00,BEV,Wine,1,50.00,50.00,CASH,Bar,R-2\n"

func TestProcessUploadCSVStoresRecords(t *testing.T) {
	svc := newTestService()

	file := mustUpload(t, svc, "pos.csv", posCSV)
	if file.RecordKind != ingest.KindPOSLines {
		t.Fatalf("expected pos_lines kind, got %s", file.RecordKind)
	}
	if file.RecordCount != 2 {
		t.Fatalf("expected 2 records, got %d", file.RecordCount)
	}
	if file.SkippedCount != 0 {
		t.Fatalf("expected no skipped rows, got %d", file.SkippedCount)
	}

	lines, err := svc.repo.ListPOSLines(context.Background())
	if err != nil {
		t.Fatalf("list pos lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 stored lines, got %d", len(lines))
	}
}

func TestProcessUploadCountsSkippedRows(t *testing.T) {
	svc := newTestService()

	body := posCSV + "not-a-date,FOOD,Steak,1,10.00,10.00,CARD,Restaurant,R-3\n"
	file := mustUpload(t, svc, "pos.csv", body)
	if file.RecordCount != 2 {
		t.Fatalf("expected 2 valid records, got %d", file.RecordCount)
	}
	if file.SkippedCount != 1 {
		t.Fatalf("expected 1 skipped row, got %d", file.SkippedCount)
	}
}

func TestProcessUploadRejectsUnsupportedExtension(t *testing.T) {
	svc := newTestService()

	_, err := svc.ProcessUpload(context.Background(), "report.xlsx", []byte("x"))
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
	_, err = svc.ProcessUpload(context.Background(), "", []byte("x"))
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType for empty name, got %v", err)
	}
}

type countingCache struct {
	mu          sync.Mutex
	stored      *domain.DashboardSummary
	sets        int
	invalidates int
}

func (c *countingCache) Get(_ context.Context, _ string) (*domain.DashboardSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored == nil {
		return nil, false, nil
	}
	return c.stored, true, nil
}

func (c *countingCache) Set(_ context.Context, _ string, summary *domain.DashboardSummary, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = summary
	c.sets++
	return nil
}

func (c *countingCache) Invalidate(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = nil
	c.invalidates++
	return nil
}

func TestProcessUploadInvalidatesSummaryCache(t *testing.T) {
	cc := &countingCache{}
	svc := New(memory.New(), cc, nil, time.Minute, nil)

	if _, err := svc.DashboardSummary(context.Background()); err != nil {
		t.Fatalf("dashboard summary: %v", err)
	}
	if cc.sets != 1 {
		t.Fatalf("expected summary to be cached once, got %d sets", cc.sets)
	}

	mustUpload(t, svc, "pos.csv", posCSV)
	if cc.invalidates != 1 {
		t.Fatalf("expected 1 cache invalidation after upload, got %d", cc.invalidates)
	}

	summary, err := svc.DashboardSummary(context.Background())
	if err != nil {
		t.Fatalf("dashboard summary after upload: %v", err)
	}
	if !summary.RevenueTotal.Equal(dec(t, "150.00")) {
		t.Fatalf("expected recomputed revenue 150.00, got %s", summary.RevenueTotal)
	}
}

func TestDashboardSummaryServesCachedCopy(t *testing.T) {
	cc := &countingCache{}
	svc := New(memory.New(), cc, nil, time.Minute, nil)

	first, err := svc.DashboardSummary(context.Background())
	if err != nil {
		t.Fatalf("first summary: %v", err)
	}
	second, err := svc.DashboardSummary(context.Background())
	if err != nil {
		t.Fatalf("second summary: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached summary pointer to be reused")
	}
	if cc.sets != 1 {
		t.Fatalf("expected a single cache write, got %d", cc.sets)
	}
}

func TestDashboardSummaryStatistics(t *testing.T) {
	svc := newTestService()
	mustUpload(t, svc, "pos.csv", posCSV)

	summary, err := svc.DashboardSummary(context.Background())
	if err != nil {
		t.Fatalf("dashboard summary: %v", err)
	}
	if summary.TotalFiles != 1 {
		t.Fatalf("expected 1 file, got %d", summary.TotalFiles)
	}
	if summary.FileTypes.CSV != 1 || summary.FileTypes.PDF != 0 {
		t.Fatalf("unexpected file type breakdown %+v", summary.FileTypes)
	}
	if summary.Statistics.TotalCSVRecords != 2 {
		t.Fatalf("expected 2 csv records counted, got %d", summary.Statistics.TotalCSVRecords)
	}
	if summary.ReceiptCount != 2 {
		t.Fatalf("expected 2 receipts, got %d", summary.ReceiptCount)
	}
	if !summary.AverageReceipt.Equal(dec(t, "75.00")) {
		t.Fatalf("expected average receipt 75.00, got %s", summary.AverageReceipt)
	}
}

func TestAreaFinancialsEndToEnd(t *testing.T) {
	svc := newTestService()

	mustUpload(t, svc, "pos.csv", posCSV)
	mustUpload(t, svc, "purchases.csv",
		"date,amount,category,area\n"+
			"2024-01-02,30.00,FOOD,Restaurant\n"+
			"2024-01-03,30.00,OTHER,\n")
	mustUpload(t, svc, "labor.csv",
		"date,amount\n2024-01-05,20.00\n")
	mustUpload(t, svc, "fixed.csv",
		"date,amount,cost_type\n2024-01-05,10.00,rent\n")
	mustUpload(t, svc, "inventory.csv",
		"date,stock_value\n2024-01-06,90.00\n")
	mustUpload(t, svc, "capital.csv",
		"date,capital_value\n2024-01-06,1200.00\n")

	fin, err := svc.AreaFinancials(context.Background())
	if err != nil {
		t.Fatalf("area financials: %v", err)
	}

	if !fin.RevenueByArea[domain.AreaRestaurant].Equal(dec(t, "100.00")) {
		t.Fatalf("restaurant revenue = %s", fin.RevenueByArea[domain.AreaRestaurant])
	}
	// The 30.00 undirected pool splits 2:1 on revenue share, so the
	// restaurant carries 30 directed + 20 allocated.
	if !fin.COGSByArea[domain.AreaRestaurant].Equal(dec(t, "50.00")) {
		t.Fatalf("restaurant cogs = %s", fin.COGSByArea[domain.AreaRestaurant])
	}
	if !fin.COGSByArea[domain.AreaBar].Equal(dec(t, "10.00")) {
		t.Fatalf("bar cogs = %s", fin.COGSByArea[domain.AreaBar])
	}
	if !fin.UnallocatedCOGS.IsZero() {
		t.Fatalf("expected fully allocated pool, got %s", fin.UnallocatedCOGS)
	}
	if !fin.GrossMarginByArea[domain.AreaRestaurant].Equal(dec(t, "50.00")) {
		t.Fatalf("restaurant gross margin = %s", fin.GrossMarginByArea[domain.AreaRestaurant])
	}
	if !fin.GrossMarginTotal.Equal(dec(t, "90.00")) {
		t.Fatalf("gross total = %s", fin.GrossMarginTotal)
	}
	if !fin.OperatingMargin.Equal(dec(t, "60.00")) {
		t.Fatalf("operating margin = %s", fin.OperatingMargin)
	}
	if !fin.ROIMonthly.Valid || !fin.ROIMonthly.Decimal.Equal(dec(t, "0.05")) {
		t.Fatalf("roi = %+v", fin.ROIMonthly)
	}
	if !fin.InventoryTurnover.Valid || !fin.InventoryTurnover.Decimal.Equal(dec(t, "0.6667")) {
		t.Fatalf("turnover = %+v", fin.InventoryTurnover)
	}
	if !fin.InventoryCoverageDays.Valid || !fin.InventoryCoverageDays.Decimal.Equal(dec(t, "45")) {
		t.Fatalf("coverage = %+v", fin.InventoryCoverageDays)
	}
}

func TestAreaFinancialsEmptyStore(t *testing.T) {
	svc := newTestService()

	fin, err := svc.AreaFinancials(context.Background())
	if err != nil {
		t.Fatalf("area financials on empty store: %v", err)
	}
	if fin.ROIMonthly.Valid || fin.InventoryTurnover.Valid || fin.InventoryCoverageDays.Valid {
		t.Fatalf("expected absent ratios on empty store, got %+v", fin)
	}
	if !fin.OperatingMargin.IsZero() {
		t.Fatalf("expected zero operating margin, got %s", fin.OperatingMargin)
	}
}

type stubExtractor struct {
	info *domain.InvoiceExtraction
	err  error
}

func (s *stubExtractor) ExtractInvoice(_ context.Context, _ string) (*domain.InvoiceExtraction, error) {
	return s.info, s.err
}

func TestExtractInvoicePrefersService(t *testing.T) {
	want := &domain.InvoiceExtraction{
		InvoiceNumber: "INV-42",
		Source:        domain.ExtractionSourceMistral,
	}
	svc := New(memory.New(), cache.NoopSummaryCache{}, &stubExtractor{info: want}, time.Minute, nil)

	got := svc.extractInvoice(context.Background(), "irrelevant")
	if got != want {
		t.Fatalf("expected service extraction result, got %+v", got)
	}
}

func TestExtractInvoiceFallsBackToPatterns(t *testing.T) {
	svc := New(memory.New(), cache.NoopSummaryCache{}, &stubExtractor{err: errors.New("boom")}, time.Minute, nil)

	got := svc.extractInvoice(context.Background(), "Invoice: INV-7\nTotal: 120.00")
	if got == nil {
		t.Fatalf("expected pattern fallback to produce a result")
	}
	if got.Source != domain.ExtractionSourcePattern {
		t.Fatalf("expected pattern source, got %s", got.Source)
	}
	if got.InvoiceNumber != "INV-7" {
		t.Fatalf("expected invoice number INV-7, got %q", got.InvoiceNumber)
	}
}

func TestInvoiceDateParsing(t *testing.T) {
	ts := invoiceDate("2024-03-15")
	if ts.Year() != 2024 || ts.Month() != time.March || ts.Day() != 15 {
		t.Fatalf("unexpected parsed date %v", ts)
	}
	ts = invoiceDate("15/03/2024")
	if ts.Day() != 15 || ts.Month() != time.March {
		t.Fatalf("unexpected parsed date %v", ts)
	}
}
