package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidRecord is wrapped by every record constructor when a field is
// out of range or not a known enumeration value. Upstream ingestion skips
// the offending record and keeps the rest of the batch.
var ErrInvalidRecord = errors.New("invalid record")

type ItemType string

const (
	ItemTypeFood  ItemType = "FOOD"
	ItemTypeBev   ItemType = "BEV"
	ItemTypeOther ItemType = "OTHER"
)

func ParseItemType(value string) (ItemType, error) {
	switch ItemType(value) {
	case ItemTypeFood, ItemTypeBev, ItemTypeOther:
		return ItemType(value), nil
	}
	return "", fmt.Errorf("%w: unknown item type %q", ErrInvalidRecord, value)
}

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "CARD"
	PaymentCash PaymentMethod = "CASH"
)

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	switch PaymentMethod(value) {
	case PaymentCard, PaymentCash:
		return PaymentMethod(value), nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrInvalidRecord, value)
}

// Area is the business unit used as the primary KPI grouping key.
type Area string

const (
	AreaRestaurant Area = "Restaurant"
	AreaBar        Area = "Bar"
	AreaEvents     Area = "Events"
	AreaCatering   Area = "Catering"
	AreaOther      Area = "Other"
)

func ParseArea(value string) (Area, error) {
	switch Area(value) {
	case AreaRestaurant, AreaBar, AreaEvents, AreaCatering, AreaOther:
		return Area(value), nil
	}
	return "", fmt.Errorf("%w: unknown area %q", ErrInvalidRecord, value)
}

type CostType string

const (
	CostTypeRent      CostType = "rent"
	CostTypeLeasing   CostType = "leasing"
	CostTypeUtilities CostType = "utilities"
	CostTypeOther     CostType = "other"
)

func ParseCostType(value string) (CostType, error) {
	switch CostType(value) {
	case CostTypeRent, CostTypeLeasing, CostTypeUtilities, CostTypeOther:
		return CostType(value), nil
	}
	return "", fmt.Errorf("%w: unknown cost type %q", ErrInvalidRecord, value)
}

// DecimalFromFloat converts a binary float into an exact decimal through its
// shortest string form, so float artifacts like 0.30000000000000004 never
// reach the engine.
func DecimalFromFloat(value float64) (decimal.Decimal, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Decimal{}, fmt.Errorf("%w: non-finite amount", ErrInvalidRecord)
	}
	return decimal.NewFromString(strconv.FormatFloat(value, 'f', -1, 64))
}

// POSLine is one sold item on one receipt.
type POSLine struct {
	Timestamp     time.Time       `json:"timestamp"`
	ItemType      ItemType        `json:"item_type"`
	ItemName      string          `json:"item_name"`
	Quantity      int             `json:"quantity"`
	PricePerItem  decimal.Decimal `json:"price_per_item"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Area          Area            `json:"area"`
	ReceiptID     string          `json:"receipt_id"`
}

func NewPOSLine(timestamp time.Time, itemType ItemType, itemName string, quantity int, pricePerItem, totalPrice decimal.Decimal, payment PaymentMethod, area Area, receiptID string) (POSLine, error) {
	if _, err := ParseItemType(string(itemType)); err != nil {
		return POSLine{}, err
	}
	if _, err := ParsePaymentMethod(string(payment)); err != nil {
		return POSLine{}, err
	}
	if _, err := ParseArea(string(area)); err != nil {
		return POSLine{}, err
	}
	if itemName == "" {
		return POSLine{}, fmt.Errorf("%w: item name is required", ErrInvalidRecord)
	}
	if receiptID == "" {
		return POSLine{}, fmt.Errorf("%w: receipt id is required", ErrInvalidRecord)
	}
	// quantity >= 1 keeps the per-unit price computable.
	if quantity < 1 {
		return POSLine{}, fmt.Errorf("%w: quantity must be >= 1", ErrInvalidRecord)
	}
	if pricePerItem.IsNegative() {
		return POSLine{}, fmt.Errorf("%w: price per item must be >= 0", ErrInvalidRecord)
	}
	if totalPrice.IsNegative() {
		return POSLine{}, fmt.Errorf("%w: total price must be >= 0", ErrInvalidRecord)
	}
	return POSLine{
		Timestamp:     timestamp,
		ItemType:      itemType,
		ItemName:      itemName,
		Quantity:      quantity,
		PricePerItem:  pricePerItem,
		TotalPrice:    totalPrice,
		PaymentMethod: payment,
		Area:          area,
		ReceiptID:     receiptID,
	}, nil
}

// SalesInvoice is non-POS revenue attributed directly to an area.
type SalesInvoice struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Area   Area            `json:"area"`
}

func NewSalesInvoice(date time.Time, amount decimal.Decimal, area Area) (SalesInvoice, error) {
	if _, err := ParseArea(string(area)); err != nil {
		return SalesInvoice{}, err
	}
	if amount.IsNegative() {
		return SalesInvoice{}, fmt.Errorf("%w: amount must be >= 0", ErrInvalidRecord)
	}
	return SalesInvoice{Date: date, Amount: amount, Area: area}, nil
}

// PurchaseInvoice is a cost document. A nil Area means the cost is
// undirected and still needs allocation across areas.
type PurchaseInvoice struct {
	Date     time.Time       `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
	Category ItemType        `json:"category"`
	Area     *Area           `json:"area,omitempty"`
}

func NewPurchaseInvoice(date time.Time, amount decimal.Decimal, category ItemType, area *Area) (PurchaseInvoice, error) {
	if _, err := ParseItemType(string(category)); err != nil {
		return PurchaseInvoice{}, err
	}
	if area != nil {
		if _, err := ParseArea(string(*area)); err != nil {
			return PurchaseInvoice{}, err
		}
	}
	if amount.IsNegative() {
		return PurchaseInvoice{}, fmt.Errorf("%w: amount must be >= 0", ErrInvalidRecord)
	}
	return PurchaseInvoice{Date: date, Amount: amount, Category: category, Area: area}, nil
}

type LaborCost struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Area   *Area           `json:"area,omitempty"`
}

func NewLaborCost(date time.Time, amount decimal.Decimal, area *Area) (LaborCost, error) {
	if area != nil {
		if _, err := ParseArea(string(*area)); err != nil {
			return LaborCost{}, err
		}
	}
	if amount.IsNegative() {
		return LaborCost{}, fmt.Errorf("%w: amount must be >= 0", ErrInvalidRecord)
	}
	return LaborCost{Date: date, Amount: amount, Area: area}, nil
}

type FixedCost struct {
	Date     time.Time       `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
	CostType CostType        `json:"cost_type"`
}

func NewFixedCost(date time.Time, amount decimal.Decimal, costType CostType) (FixedCost, error) {
	if _, err := ParseCostType(string(costType)); err != nil {
		return FixedCost{}, err
	}
	if amount.IsNegative() {
		return FixedCost{}, fmt.Errorf("%w: amount must be >= 0", ErrInvalidRecord)
	}
	return FixedCost{Date: date, Amount: amount, CostType: costType}, nil
}

type InventorySnapshot struct {
	Date       time.Time       `json:"date"`
	StockValue decimal.Decimal `json:"stock_value"`
}

func NewInventorySnapshot(date time.Time, stockValue decimal.Decimal) (InventorySnapshot, error) {
	if stockValue.IsNegative() {
		return InventorySnapshot{}, fmt.Errorf("%w: stock value must be >= 0", ErrInvalidRecord)
	}
	return InventorySnapshot{Date: date, StockValue: stockValue}, nil
}

type CapitalSnapshot struct {
	Date         time.Time       `json:"date"`
	CapitalValue decimal.Decimal `json:"capital_value"`
}

func NewCapitalSnapshot(date time.Time, capitalValue decimal.Decimal) (CapitalSnapshot, error) {
	if capitalValue.IsNegative() {
		return CapitalSnapshot{}, fmt.Errorf("%w: capital value must be >= 0", ErrInvalidRecord)
	}
	return CapitalSnapshot{Date: date, CapitalValue: capitalValue}, nil
}

// PriceListItem maps an item name to its theoretical full price, used to
// detect discounting against actual POS selling prices.
type PriceListItem struct {
	ItemName         string          `json:"item_name"`
	TheoreticalPrice decimal.Decimal `json:"theoretical_price"`
}

func NewPriceListItem(itemName string, theoreticalPrice decimal.Decimal) (PriceListItem, error) {
	if itemName == "" {
		return PriceListItem{}, fmt.Errorf("%w: item name is required", ErrInvalidRecord)
	}
	if theoreticalPrice.IsNegative() {
		return PriceListItem{}, fmt.Errorf("%w: theoretical price must be >= 0", ErrInvalidRecord)
	}
	return PriceListItem{ItemName: itemName, TheoreticalPrice: theoreticalPrice}, nil
}

type ReorderLevel struct {
	ItemName     string `json:"item_name"`
	ReorderLevel int    `json:"reorder_level"`
}

func NewReorderLevel(itemName string, level int) (ReorderLevel, error) {
	if itemName == "" {
		return ReorderLevel{}, fmt.Errorf("%w: item name is required", ErrInvalidRecord)
	}
	if level < 0 {
		return ReorderLevel{}, fmt.Errorf("%w: reorder level must be >= 0", ErrInvalidRecord)
	}
	return ReorderLevel{ItemName: itemName, ReorderLevel: level}, nil
}
