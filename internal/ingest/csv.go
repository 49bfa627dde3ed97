// Package ingest turns uploaded file bytes into validated domain records.
// Parsing is fail-open per record: a malformed row is counted and skipped,
// the rest of the batch proceeds.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
)

var ErrUnknownCSVLayout = errors.New("csv columns do not match any known record layout")

// Record kinds detected from CSV headers.
const (
	KindPOSLines           = "pos_lines"
	KindSalesInvoices      = "sales_invoices"
	KindPurchaseInvoices   = "purchase_invoices"
	KindLaborCosts         = "labor_costs"
	KindFixedCosts         = "fixed_costs"
	KindInventorySnapshots = "inventory_snapshots"
	KindCapitalSnapshots   = "capital_snapshots"
	KindPriceList          = "price_list"
	KindReorderLevels      = "reorder_levels"
)

// RecordBatch is the outcome of parsing one CSV upload. Only the slice for
// the detected kind is populated.
type RecordBatch struct {
	Kind    string
	Columns []string
	Skipped int

	POSLines           []domain.POSLine
	SalesInvoices      []domain.SalesInvoice
	PurchaseInvoices   []domain.PurchaseInvoice
	LaborCosts         []domain.LaborCost
	FixedCosts         []domain.FixedCost
	InventorySnapshots []domain.InventorySnapshot
	CapitalSnapshots   []domain.CapitalSnapshot
	PriceList          []domain.PriceListItem
	ReorderLevels      []domain.ReorderLevel
}

// RecordCount is the number of rows that survived validation.
func (b *RecordBatch) RecordCount() int {
	return len(b.POSLines) + len(b.SalesInvoices) + len(b.PurchaseInvoices) +
		len(b.LaborCosts) + len(b.FixedCosts) + len(b.InventorySnapshots) +
		len(b.CapitalSnapshots) + len(b.PriceList) + len(b.ReorderLevels)
}

// decodeRows reads CSV content, falling back from UTF-8 to Latin-1 the way
// the cashier exports arrive in practice.
func decodeRows(data []byte) ([][]string, error) {
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// ParseCSV detects which record kind a CSV holds from its header row and
// parses every data row through the domain constructors.
func ParseCSV(data []byte) (*RecordBatch, error) {
	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnknownCSVLayout)
	}

	header := make([]string, len(rows[0]))
	index := make(map[string]int, len(rows[0]))
	for i, col := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(col))
		header[i] = name
		index[name] = i
	}

	kind, err := detectKind(index)
	if err != nil {
		return nil, err
	}

	batch := &RecordBatch{Kind: kind, Columns: header}
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		if err := batch.parseRow(index, row); err != nil {
			batch.Skipped++
		}
	}
	return batch, nil
}

func detectKind(index map[string]int) (string, error) {
	has := func(cols ...string) bool {
		for _, col := range cols {
			if _, ok := index[col]; !ok {
				return false
			}
		}
		return true
	}

	switch {
	case has("receipt_id", "item_name", "quantity", "total_price"):
		return KindPOSLines, nil
	case has("item_name", "theoretical_price"):
		return KindPriceList, nil
	case has("item_name", "reorder_level"):
		return KindReorderLevels, nil
	case has("date", "stock_value"):
		return KindInventorySnapshots, nil
	case has("date", "capital_value"):
		return KindCapitalSnapshots, nil
	case has("date", "amount", "cost_type"):
		return KindFixedCosts, nil
	case has("date", "amount", "category"):
		return KindPurchaseInvoices, nil
	case has("date", "amount", "area"):
		return KindSalesInvoices, nil
	case has("date", "amount"):
		return KindLaborCosts, nil
	}
	return "", ErrUnknownCSVLayout
}

func (b *RecordBatch) parseRow(index map[string]int, row []string) error {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	switch b.Kind {
	case KindPOSLines:
		timestamp, err := parseTime(field("timestamp"))
		if err != nil {
			return err
		}
		quantity, err := strconv.Atoi(field("quantity"))
		if err != nil {
			return fmt.Errorf("%w: quantity %q", domain.ErrInvalidRecord, field("quantity"))
		}
		pricePerItem, err := parseAmount(field("price_per_item"))
		if err != nil {
			return err
		}
		totalPrice, err := parseAmount(field("total_price"))
		if err != nil {
			return err
		}
		line, err := domain.NewPOSLine(timestamp, domain.ItemType(field("item_type")), field("item_name"), quantity, pricePerItem, totalPrice, domain.PaymentMethod(field("payment_method")), domain.Area(field("area")), field("receipt_id"))
		if err != nil {
			return err
		}
		b.POSLines = append(b.POSLines, line)

	case KindSalesInvoices:
		date, err := parseTime(field("date"))
		if err != nil {
			return err
		}
		amount, err := parseAmount(field("amount"))
		if err != nil {
			return err
		}
		inv, err := domain.NewSalesInvoice(date, amount, domain.Area(field("area")))
		if err != nil {
			return err
		}
		b.SalesInvoices = append(b.SalesInvoices, inv)

	case KindPurchaseInvoices:
		date, err := parseTime(field("date"))
		if err != nil {
			return err
		}
		amount, err := parseAmount(field("amount"))
		if err != nil {
			return err
		}
		var area *domain.Area
		if raw := field("area"); raw != "" {
			parsed, err := domain.ParseArea(raw)
			if err != nil {
				return err
			}
			area = &parsed
		}
		inv, err := domain.NewPurchaseInvoice(date, amount, domain.ItemType(field("category")), area)
		if err != nil {
			return err
		}
		b.PurchaseInvoices = append(b.PurchaseInvoices, inv)

	case KindLaborCosts:
		date, err := parseTime(field("date"))
		if err != nil {
			return err
		}
		amount, err := parseAmount(field("amount"))
		if err != nil {
			return err
		}
		var area *domain.Area
		if raw := field("area"); raw != "" {
			parsed, err := domain.ParseArea(raw)
			if err != nil {
				return err
			}
			area = &parsed
		}
		cost, err := domain.NewLaborCost(date, amount, area)
		if err != nil {
			return err
		}
		b.LaborCosts = append(b.LaborCosts, cost)

	case KindFixedCosts:
		date, err := parseTime(field("date"))
		if err != nil {
			return err
		}
		amount, err := parseAmount(field("amount"))
		if err != nil {
			return err
		}
		cost, err := domain.NewFixedCost(date, amount, domain.CostType(field("cost_type")))
		if err != nil {
			return err
		}
		b.FixedCosts = append(b.FixedCosts, cost)

	case KindInventorySnapshots:
		date, err := parseTime(field("date"))
		if err != nil {
			return err
		}
		value, err := parseAmount(field("stock_value"))
		if err != nil {
			return err
		}
		snap, err := domain.NewInventorySnapshot(date, value)
		if err != nil {
			return err
		}
		b.InventorySnapshots = append(b.InventorySnapshots, snap)

	case KindCapitalSnapshots:
		date, err := parseTime(field("date"))
		if err != nil {
			return err
		}
		value, err := parseAmount(field("capital_value"))
		if err != nil {
			return err
		}
		snap, err := domain.NewCapitalSnapshot(date, value)
		if err != nil {
			return err
		}
		b.CapitalSnapshots = append(b.CapitalSnapshots, snap)

	case KindPriceList:
		price, err := parseAmount(field("theoretical_price"))
		if err != nil {
			return err
		}
		item, err := domain.NewPriceListItem(field("item_name"), price)
		if err != nil {
			return err
		}
		b.PriceList = append(b.PriceList, item)

	case KindReorderLevels:
		level, err := strconv.Atoi(field("reorder_level"))
		if err != nil {
			return fmt.Errorf("%w: reorder level %q", domain.ErrInvalidRecord, field("reorder_level"))
		}
		item, err := domain.NewReorderLevel(field("item_name"), level)
		if err != nil {
			return err
		}
		b.ReorderLevels = append(b.ReorderLevels, item)
	}
	return nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", domain.ErrInvalidRecord, value)
}

// parseAmount converts a textual amount to an exact decimal, tolerating
// currency symbols and thousands separators from cashier exports.
func parseAmount(value string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("€", "", "$", "", "£", "", " ", "", ",", "").Replace(value)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: unparseable amount %q", domain.ErrInvalidRecord, value)
	}
	return d, nil
}
