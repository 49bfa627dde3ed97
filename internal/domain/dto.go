package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FileTypeCSV = "csv"
	FileTypePDF = "pdf"
)

const (
	ExtractionSourceMistral = "mistral"
	ExtractionSourcePattern = "pattern"
)

// ProcessedFile is the stored envelope for one uploaded and processed file.
type ProcessedFile struct {
	ID           string             `json:"id"`
	FileName     string             `json:"file_name"`
	FileType     string             `json:"file_type"`
	RecordKind   string             `json:"record_kind,omitempty"`
	ProcessedAt  time.Time          `json:"processed_at"`
	RecordCount  int                `json:"record_count"`
	SkippedCount int                `json:"skipped_count"`
	Columns      []string           `json:"columns,omitempty"`
	PageCount    int                `json:"page_count,omitempty"`
	InvoiceInfo  *InvoiceExtraction `json:"invoice_info,omitempty"`
}

type InvoiceExtractionItem struct {
	Name      string          `json:"item"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// InvoiceExtraction holds invoice fields pulled out of a PDF, either by the
// language-model service or by the pattern fallback.
type InvoiceExtraction struct {
	InvoiceNumber string                  `json:"invoice_number,omitempty"`
	Date          string                  `json:"date,omitempty"`
	Company       string                  `json:"company,omitempty"`
	Items         []InvoiceExtractionItem `json:"items,omitempty"`
	Subtotal      decimal.NullDecimal     `json:"subtotal,omitempty"`
	TaxPercent    decimal.NullDecimal     `json:"tax_percent,omitempty"`
	AmountDue     decimal.NullDecimal     `json:"amount_due,omitempty"`
	Source        string                  `json:"source"`
}

type UploadResponse struct {
	Message string        `json:"message"`
	File    ProcessedFile `json:"file"`
}

type FileListResponse struct {
	Files []ProcessedFile `json:"files"`
	Count int             `json:"count"`
}

type FileTypeBreakdown struct {
	CSV int `json:"csv"`
	PDF int `json:"pdf"`
}

type DashboardStatistics struct {
	TotalCSVRecords int `json:"total_csv_records"`
	TotalInvoices   int `json:"total_invoices"`
}

// DashboardSummary is the combined file-level and KPI view served by the
// dashboard endpoint and kept warm in the cache.
type DashboardSummary struct {
	TotalFiles       int                             `json:"total_files"`
	FileTypes        FileTypeBreakdown               `json:"file_types"`
	RecentFiles      []ProcessedFile                 `json:"recent_files"`
	Statistics       DashboardStatistics             `json:"statistics"`
	RevenueTotal     decimal.Decimal                 `json:"revenue_total"`
	RevenueByArea    map[Area]decimal.Decimal        `json:"revenue_by_area"`
	RevenueByPayment map[PaymentMethod]decimal.Decimal `json:"revenue_by_payment"`
	ReceiptCount     int                             `json:"receipt_count"`
	AverageReceipt   decimal.Decimal                 `json:"average_receipt"`
	DiscountRate     decimal.NullDecimal             `json:"discount_rate"`
	GeneratedAt      time.Time                       `json:"generated_at"`
}

// AreaFinancials is the full margin chain per area: blended revenue, COGS
// with undirected allocation, margins and the capital/inventory ratios.
type AreaFinancials struct {
	RevenueByArea         map[Area]decimal.Decimal `json:"revenue_by_area"`
	COGSByArea            map[Area]decimal.Decimal `json:"cogs_by_area"`
	UnallocatedCOGS       decimal.Decimal          `json:"unallocated_cogs"`
	GrossMarginByArea     map[Area]decimal.Decimal `json:"gross_margin_by_area"`
	GrossMarginTotal      decimal.Decimal          `json:"gross_margin_total"`
	LaborTotal            decimal.Decimal          `json:"labor_total"`
	FixedTotal            decimal.Decimal          `json:"fixed_total"`
	OperatingMargin       decimal.Decimal          `json:"operating_margin"`
	ROIMonthly            decimal.NullDecimal      `json:"roi_monthly"`
	InventoryTurnover     decimal.NullDecimal      `json:"inventory_turnover"`
	InventoryCoverageDays decimal.NullDecimal      `json:"inventory_coverage_days"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
