package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", value, err)
	}
	return d
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseItemType("FOOD"); err != nil {
		t.Fatalf("expected FOOD to parse: %v", err)
	}
	if _, err := ParseItemType("food"); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected lowercase item type to be rejected, got %v", err)
	}
	if _, err := ParsePaymentMethod("CARD"); err != nil {
		t.Fatalf("expected CARD to parse: %v", err)
	}
	if _, err := ParsePaymentMethod("VOUCHER"); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected unknown payment method to be rejected, got %v", err)
	}
	if _, err := ParseArea("Catering"); err != nil {
		t.Fatalf("expected Catering to parse: %v", err)
	}
	if _, err := ParseArea("Kitchen"); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected unknown area to be rejected, got %v", err)
	}
	if _, err := ParseCostType("leasing"); err != nil {
		t.Fatalf("expected leasing to parse: %v", err)
	}
	if _, err := ParseCostType("Rent"); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected capitalized cost type to be rejected, got %v", err)
	}
}

func TestNewPOSLineValidation(t *testing.T) {
	now := time.Now()
	valid := func() (POSLine, error) {
		return NewPOSLine(now, ItemTypeFood, "Burger", 2, dec(t, "5.00"), dec(t, "10.00"), PaymentCard, AreaRestaurant, "R-1")
	}
	if _, err := valid(); err != nil {
		t.Fatalf("expected valid line, got %v", err)
	}

	cases := []struct {
		name string
		fn   func() (POSLine, error)
	}{
		{"zero quantity", func() (POSLine, error) {
			return NewPOSLine(now, ItemTypeFood, "Burger", 0, dec(t, "5.00"), dec(t, "10.00"), PaymentCard, AreaRestaurant, "R-1")
		}},
		{"negative total", func() (POSLine, error) {
			return NewPOSLine(now, ItemTypeFood, "Burger", 1, dec(t, "5.00"), dec(t, "-1.00"), PaymentCard, AreaRestaurant, "R-1")
		}},
		{"empty item name", func() (POSLine, error) {
			return NewPOSLine(now, ItemTypeFood, "", 1, dec(t, "5.00"), dec(t, "5.00"), PaymentCard, AreaRestaurant, "R-1")
		}},
		{"empty receipt", func() (POSLine, error) {
			return NewPOSLine(now, ItemTypeFood, "Burger", 1, dec(t, "5.00"), dec(t, "5.00"), PaymentCard, AreaRestaurant, "")
		}},
		{"bad area", func() (POSLine, error) {
			return NewPOSLine(now, ItemTypeFood, "Burger", 1, dec(t, "5.00"), dec(t, "5.00"), PaymentCard, Area("Garage"), "R-1")
		}},
	}
	for _, tc := range cases {
		if _, err := tc.fn(); !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("%s: expected ErrInvalidRecord, got %v", tc.name, err)
		}
	}
}

func TestNewPurchaseInvoiceOptionalArea(t *testing.T) {
	now := time.Now()
	if _, err := NewPurchaseInvoice(now, dec(t, "30.00"), ItemTypeOther, nil); err != nil {
		t.Fatalf("expected undirected purchase to validate, got %v", err)
	}

	area := AreaBar
	inv, err := NewPurchaseInvoice(now, dec(t, "30.00"), ItemTypeBev, &area)
	if err != nil {
		t.Fatalf("expected directed purchase to validate, got %v", err)
	}
	if inv.Area == nil || *inv.Area != AreaBar {
		t.Fatalf("expected area Bar, got %v", inv.Area)
	}

	bad := Area("Garage")
	if _, err := NewPurchaseInvoice(now, dec(t, "30.00"), ItemTypeBev, &bad); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected bad area to be rejected, got %v", err)
	}
	if _, err := NewPurchaseInvoice(now, dec(t, "-1.00"), ItemTypeBev, nil); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected negative amount to be rejected, got %v", err)
	}
}

func TestSnapshotValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewInventorySnapshot(now, dec(t, "-0.01")); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected negative stock value to be rejected, got %v", err)
	}
	if _, err := NewCapitalSnapshot(now, dec(t, "0")); err != nil {
		t.Fatalf("expected zero capital to validate, got %v", err)
	}
}

func TestDecimalFromFloat(t *testing.T) {
	d, err := DecimalFromFloat(0.1 + 0.2)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	// The shortest round-trip form of 0.1+0.2 is the artifact itself; what
	// matters is that the conversion is exact and deterministic.
	if d.String() != "0.30000000000000004" {
		t.Fatalf("unexpected conversion %s", d)
	}

	d, err = DecimalFromFloat(19.99)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !d.Equal(dec(t, "19.99")) {
		t.Fatalf("expected 19.99, got %s", d)
	}

	if _, err := DecimalFromFloat(math.NaN()); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected NaN to be rejected, got %v", err)
	}
	if _, err := DecimalFromFloat(math.Inf(1)); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected Inf to be rejected, got %v", err)
	}
}
