package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Miglio04/OREKA-BACKEND/internal/cache"
	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
	"github.com/Miglio04/OREKA-BACKEND/internal/extract"
	"github.com/Miglio04/OREKA-BACKEND/internal/ingest"
	"github.com/Miglio04/OREKA-BACKEND/internal/kpi"
	"github.com/Miglio04/OREKA-BACKEND/internal/store"
)

var ErrUnsupportedFileType = errors.New("unsupported file type: only csv and pdf are accepted")

const summaryCacheKey = "dashboard:summary"

// coverageWindowDays is the consumption window for inventory coverage:
// average daily consumption is the period COGS spread over a 30-day month.
const coverageWindowDays = 30

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service processes uploaded files into stored records and serves the
// aggregated KPI views over them.
type Service struct {
	repo       store.Repository
	cache      cache.SummaryCache
	extractor  extract.Client
	summaryTTL time.Duration
	logger     *zap.Logger
}

func New(repo store.Repository, summaryCache cache.SummaryCache, extractor extract.Client, summaryTTL time.Duration, logger *zap.Logger) *Service {
	if summaryTTL <= 0 {
		summaryTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		cache:      summaryCache,
		extractor:  extractor,
		summaryTTL: summaryTTL,
		logger:     logger,
	}
}

// ProcessUpload dispatches an uploaded file by extension, stores the records
// it yields and returns the processed-file envelope.
func (s *Service) ProcessUpload(ctx context.Context, fileName string, content []byte) (*domain.ProcessedFile, error) {
	if fileName == "" {
		return nil, fmt.Errorf("%w: no filename provided", ErrUnsupportedFileType)
	}

	var (
		file *domain.ProcessedFile
		err  error
	)
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), ".")) {
	case "csv":
		file, err = s.processCSV(ctx, fileName, content)
	case "pdf":
		file, err = s.processPDF(ctx, fileName, content)
	default:
		return nil, ErrUnsupportedFileType
	}
	if err != nil {
		return nil, err
	}

	if cacheErr := s.cache.Invalidate(ctx, summaryCacheKey); cacheErr != nil {
		s.logger.Warn("failed to invalidate summary cache", zap.Error(cacheErr))
	}
	s.logger.Info("file processed",
		zap.String("file_id", file.ID),
		zap.String("file_name", file.FileName),
		zap.String("file_type", file.FileType),
		zap.Int("records", file.RecordCount),
		zap.Int("skipped", file.SkippedCount))
	return file, nil
}

func (s *Service) processCSV(ctx context.Context, fileName string, content []byte) (*domain.ProcessedFile, error) {
	batch, err := ingest.ParseCSV(content)
	if err != nil {
		return nil, err
	}
	if batch.Skipped > 0 {
		s.logger.Warn("skipped invalid csv rows",
			zap.String("file_name", fileName),
			zap.String("kind", batch.Kind),
			zap.Int("skipped", batch.Skipped))
	}

	file, err := s.repo.SaveProcessedFile(ctx, domain.ProcessedFile{
		ID:           uuid.NewString(),
		FileName:     fileName,
		FileType:     domain.FileTypeCSV,
		RecordKind:   batch.Kind,
		ProcessedAt:  time.Now().UTC(),
		RecordCount:  batch.RecordCount(),
		SkippedCount: batch.Skipped,
		Columns:      batch.Columns,
	})
	if err != nil {
		return nil, err
	}

	if err := s.storeBatch(ctx, file.ID, batch); err != nil {
		return nil, err
	}
	return file, nil
}

func (s *Service) storeBatch(ctx context.Context, fileID string, batch *ingest.RecordBatch) error {
	switch batch.Kind {
	case ingest.KindPOSLines:
		return s.repo.AppendPOSLines(ctx, fileID, batch.POSLines)
	case ingest.KindSalesInvoices:
		return s.repo.AppendSalesInvoices(ctx, fileID, batch.SalesInvoices)
	case ingest.KindPurchaseInvoices:
		return s.repo.AppendPurchaseInvoices(ctx, fileID, batch.PurchaseInvoices)
	case ingest.KindLaborCosts:
		return s.repo.AppendLaborCosts(ctx, fileID, batch.LaborCosts)
	case ingest.KindFixedCosts:
		return s.repo.AppendFixedCosts(ctx, fileID, batch.FixedCosts)
	case ingest.KindInventorySnapshots:
		return s.repo.AppendInventorySnapshots(ctx, fileID, batch.InventorySnapshots)
	case ingest.KindCapitalSnapshots:
		return s.repo.AppendCapitalSnapshots(ctx, fileID, batch.CapitalSnapshots)
	case ingest.KindPriceList:
		return s.repo.UpsertPriceList(ctx, batch.PriceList)
	case ingest.KindReorderLevels:
		return s.repo.UpsertReorderLevels(ctx, batch.ReorderLevels)
	}
	return fmt.Errorf("unhandled record kind %q", batch.Kind)
}

func (s *Service) processPDF(ctx context.Context, fileName string, content []byte) (*domain.ProcessedFile, error) {
	text, pageCount, err := ingest.ExtractPDFText(content)
	if err != nil {
		return nil, err
	}

	info := s.extractInvoice(ctx, text)

	file, err := s.repo.SaveProcessedFile(ctx, domain.ProcessedFile{
		ID:          uuid.NewString(),
		FileName:    fileName,
		FileType:    domain.FileTypePDF,
		ProcessedAt: time.Now().UTC(),
		PageCount:   pageCount,
		InvoiceInfo: info,
	})
	if err != nil {
		return nil, err
	}

	// An extracted amount becomes an undirected purchase invoice; COGS
	// allocation attributes it to areas later.
	if info != nil && info.AmountDue.Valid {
		invoice, err := domain.NewPurchaseInvoice(invoiceDate(info.Date), info.AmountDue.Decimal, domain.ItemTypeOther, nil)
		if err != nil {
			s.logger.Warn("extracted invoice amount rejected by validation", zap.Error(err))
		} else {
			if err := s.repo.AppendPurchaseInvoices(ctx, file.ID, []domain.PurchaseInvoice{invoice}); err != nil {
				return nil, err
			}
			file.RecordCount = 1
		}
	}
	return file, nil
}

// extractInvoice tries the language-model service first and falls back to
// pattern scraping when the service is unavailable or not configured.
func (s *Service) extractInvoice(ctx context.Context, text string) *domain.InvoiceExtraction {
	if s.extractor != nil {
		info, err := s.extractor.ExtractInvoice(ctx, text)
		if err == nil {
			return info
		}
		s.logger.Warn("invoice extraction service failed, falling back to patterns", zap.Error(err))
	}
	return ingest.PatternExtract(text)
}

var invoiceDateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "02.01.2006"}

func invoiceDate(value string) time.Time {
	for _, layout := range invoiceDateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

func (s *Service) ListFiles(ctx context.Context, limit int) ([]domain.ProcessedFile, error) {
	return s.repo.ListProcessedFiles(ctx, limit)
}

// DashboardSummary serves the cached summary when fresh and recomputes it
// from the full record set otherwise.
func (s *Service) DashboardSummary(ctx context.Context) (*domain.DashboardSummary, error) {
	if cached, ok, err := s.cache.Get(ctx, summaryCacheKey); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.logger.Warn("summary cache read failed", zap.Error(err))
	}
	return s.RefreshDashboard(ctx)
}

// RefreshDashboard recomputes the dashboard summary and re-caches it. The
// scheduler calls this periodically to keep the cache warm.
func (s *Service) RefreshDashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	files, err := s.repo.ListProcessedFiles(ctx, 0)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListPOSLines(ctx)
	if err != nil {
		return nil, err
	}
	priceList, err := s.repo.GetPriceList(ctx)
	if err != nil {
		return nil, err
	}

	result := kpi.POSOnly(lines, priceList)

	summary := &domain.DashboardSummary{
		TotalFiles:       len(files),
		RecentFiles:      files,
		RevenueTotal:     result.RevenueTotal,
		RevenueByArea:    result.RevenueByArea,
		RevenueByPayment: result.RevenueByPayment,
		ReceiptCount:     result.ReceiptCount,
		AverageReceipt:   result.AverageReceipt,
		DiscountRate:     result.DiscountRate,
		GeneratedAt:      time.Now().UTC(),
	}
	if len(summary.RecentFiles) > 10 {
		summary.RecentFiles = summary.RecentFiles[:10]
	}
	for _, file := range files {
		switch file.FileType {
		case domain.FileTypeCSV:
			summary.FileTypes.CSV++
			summary.Statistics.TotalCSVRecords += file.RecordCount
		case domain.FileTypePDF:
			summary.FileTypes.PDF++
			summary.Statistics.TotalInvoices++
		}
	}

	if err := s.cache.Set(ctx, summaryCacheKey, summary, s.summaryTTL); err != nil {
		s.logger.Warn("summary cache write failed", zap.Error(err))
	}
	return summary, nil
}

// AreaFinancials runs the full margin chain: blended revenue, COGS with the
// undirected pool allocated on the revenue-share basis, gross and operating
// margin, and the capital/inventory ratios.
func (s *Service) AreaFinancials(ctx context.Context) (*domain.AreaFinancials, error) {
	lines, err := s.repo.ListPOSLines(ctx)
	if err != nil {
		return nil, err
	}
	salesInvoices, err := s.repo.ListSalesInvoices(ctx)
	if err != nil {
		return nil, err
	}
	purchases, err := s.repo.ListPurchaseInvoices(ctx)
	if err != nil {
		return nil, err
	}
	laborCosts, err := s.repo.ListLaborCosts(ctx)
	if err != nil {
		return nil, err
	}
	fixedCosts, err := s.repo.ListFixedCosts(ctx)
	if err != nil {
		return nil, err
	}
	inventory, err := s.repo.ListInventorySnapshots(ctx)
	if err != nil {
		return nil, err
	}
	capital, err := s.repo.ListCapitalSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	priceList, err := s.repo.GetPriceList(ctx)
	if err != nil {
		return nil, err
	}

	posResult := kpi.POSOnly(lines, priceList)
	revenue := kpi.AddSalesInvoices(posResult.RevenueByArea, salesInvoices)

	// Undirected purchases are allocated on revenue share. When no area has
	// positive revenue yet, the pool stays unallocated rather than failing.
	basis := make(map[domain.Area]decimal.Decimal, len(revenue))
	for area, amount := range revenue {
		if amount.IsPositive() {
			basis[area] = amount
		}
	}
	if len(basis) == 0 {
		basis = nil
	}

	cogs, err := kpi.ComputeCOGS(purchases, basis)
	if err != nil {
		return nil, err
	}

	grossByArea := kpi.GrossMarginByArea(revenue, cogs.ByArea)

	grossTotal := decimal.Zero
	for _, margin := range grossByArea {
		grossTotal = grossTotal.Add(margin)
	}

	labor := decimal.Zero
	for _, cost := range laborCosts {
		labor = labor.Add(cost.Amount)
	}
	fixed := decimal.Zero
	for _, cost := range fixedCosts {
		fixed = fixed.Add(cost.Amount)
	}
	operating := kpi.OperatingMarginTotal(grossTotal, labor, fixed, decimal.Zero)

	cogsTotal := cogs.Unallocated
	for _, amount := range cogs.ByArea {
		cogsTotal = cogsTotal.Add(amount)
	}

	financials := &domain.AreaFinancials{
		RevenueByArea:     roundMap(revenue),
		COGSByArea:        roundMap(cogs.ByArea),
		UnallocatedCOGS:   cogs.Unallocated.Round(2),
		GrossMarginByArea: grossByArea,
		GrossMarginTotal:  grossTotal.Round(2),
		LaborTotal:        labor.Round(2),
		FixedTotal:        fixed.Round(2),
		OperatingMargin:   operating,
	}

	if latest, ok := latestCapital(capital); ok {
		financials.ROIMonthly = kpi.ROIMonthly(operating, latest.CapitalValue)
	}
	if len(inventory) > 0 {
		avgStock := averageStock(inventory)
		financials.InventoryTurnover = kpi.InventoryTurnover(cogsTotal, avgStock)

		latest := latestInventory(inventory)
		avgDaily := cogsTotal.Div(decimal.NewFromInt(coverageWindowDays))
		financials.InventoryCoverageDays = kpi.InventoryCoverageDays(latest.StockValue, avgDaily)
	}
	return financials, nil
}

func roundMap(values map[domain.Area]decimal.Decimal) map[domain.Area]decimal.Decimal {
	out := make(map[domain.Area]decimal.Decimal, len(values))
	for area, v := range values {
		out[area] = v.Round(2)
	}
	return out
}

func latestCapital(snapshots []domain.CapitalSnapshot) (domain.CapitalSnapshot, bool) {
	if len(snapshots) == 0 {
		return domain.CapitalSnapshot{}, false
	}
	latest := snapshots[0]
	for _, snap := range snapshots[1:] {
		if snap.Date.After(latest.Date) {
			latest = snap
		}
	}
	return latest, true
}

func latestInventory(snapshots []domain.InventorySnapshot) domain.InventorySnapshot {
	latest := snapshots[0]
	for _, snap := range snapshots[1:] {
		if snap.Date.After(latest.Date) {
			latest = snap
		}
	}
	return latest
}

func averageStock(snapshots []domain.InventorySnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, snap := range snapshots {
		total = total.Add(snap.StockValue)
	}
	return total.Div(decimal.NewFromInt(int64(len(snapshots))))
}
