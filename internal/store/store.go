package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidFile = errors.New("invalid processed file")
)

// Repository persists processed-file envelopes and the validated records
// extracted from them. Aggregation always reads the full record sets back;
// the KPI engine holds no state of its own.
type Repository interface {
	SaveProcessedFile(ctx context.Context, file domain.ProcessedFile) (*domain.ProcessedFile, error)
	GetProcessedFile(ctx context.Context, id string) (*domain.ProcessedFile, error)
	ListProcessedFiles(ctx context.Context, limit int) ([]domain.ProcessedFile, error)

	AppendPOSLines(ctx context.Context, fileID string, lines []domain.POSLine) error
	ListPOSLines(ctx context.Context) ([]domain.POSLine, error)
	AppendSalesInvoices(ctx context.Context, fileID string, invoices []domain.SalesInvoice) error
	ListSalesInvoices(ctx context.Context) ([]domain.SalesInvoice, error)
	AppendPurchaseInvoices(ctx context.Context, fileID string, invoices []domain.PurchaseInvoice) error
	ListPurchaseInvoices(ctx context.Context) ([]domain.PurchaseInvoice, error)
	AppendLaborCosts(ctx context.Context, fileID string, costs []domain.LaborCost) error
	ListLaborCosts(ctx context.Context) ([]domain.LaborCost, error)
	AppendFixedCosts(ctx context.Context, fileID string, costs []domain.FixedCost) error
	ListFixedCosts(ctx context.Context) ([]domain.FixedCost, error)
	AppendInventorySnapshots(ctx context.Context, fileID string, snapshots []domain.InventorySnapshot) error
	ListInventorySnapshots(ctx context.Context) ([]domain.InventorySnapshot, error)
	AppendCapitalSnapshots(ctx context.Context, fileID string, snapshots []domain.CapitalSnapshot) error
	ListCapitalSnapshots(ctx context.Context) ([]domain.CapitalSnapshot, error)

	UpsertPriceList(ctx context.Context, items []domain.PriceListItem) error
	GetPriceList(ctx context.Context) (map[string]decimal.Decimal, error)
	UpsertReorderLevels(ctx context.Context, levels []domain.ReorderLevel) error
	GetReorderLevels(ctx context.Context) (map[string]int, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
