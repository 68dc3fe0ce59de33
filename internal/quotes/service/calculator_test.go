package service

import (
	"testing"

	"smiledesign_backend/internal/quotes/transport"
)

func TestCalculateQuote_FixedDiscount(t *testing.T) {
	req := transport.QuoteCalculationRequest{
		DiscountType:  "fixed",
		DiscountValue: 10000,
		Items: []transport.QuoteItemRequest{
			{Description: "Zirconia crown", Quantity: "6 x", UnitPriceCents: 25000},
			{Description: "Teeth whitening", Quantity: "1", UnitPriceCents: 15000},
		},
	}

	result := CalculateQuote(req)

	if result.SubtotalCents != 165000 {
		t.Fatalf("expected subtotal 165000, got %d", result.SubtotalCents)
	}
	if result.DiscountAmountCents != 10000 {
		t.Fatalf("expected discount 10000, got %d", result.DiscountAmountCents)
	}
	if result.TotalCents != 155000 {
		t.Fatalf("expected total 155000, got %d", result.TotalCents)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(result.Lines))
	}
	if result.Lines[0].LineTotalCents != 150000 {
		t.Fatalf("expected first line 150000, got %d", result.Lines[0].LineTotalCents)
	}
}

func TestCalculateQuote_PercentageDiscount(t *testing.T) {
	req := transport.QuoteCalculationRequest{
		DiscountType:  "percentage",
		DiscountValue: 10,
		Items: []transport.QuoteItemRequest{
			{Description: "All-on-4 implants", Quantity: "1 arch", UnitPriceCents: 450000},
		},
	}

	result := CalculateQuote(req)

	if result.SubtotalCents != 450000 {
		t.Fatalf("expected subtotal 450000, got %d", result.SubtotalCents)
	}
	if result.DiscountAmountCents != 45000 {
		t.Fatalf("expected discount 45000, got %d", result.DiscountAmountCents)
	}
	if result.TotalCents != 405000 {
		t.Fatalf("expected total 405000, got %d", result.TotalCents)
	}
}

func TestCalculateQuote_DiscountCappedAtSubtotal(t *testing.T) {
	req := transport.QuoteCalculationRequest{
		DiscountType:  "fixed",
		DiscountValue: 99999999,
		Items: []transport.QuoteItemRequest{
			{Description: "Consultation", Quantity: "1", UnitPriceCents: 5000},
		},
	}

	result := CalculateQuote(req)

	if result.DiscountAmountCents != 5000 {
		t.Fatalf("expected discount capped at 5000, got %d", result.DiscountAmountCents)
	}
	if result.TotalCents != 0 {
		t.Fatalf("expected total 0, got %d", result.TotalCents)
	}
}

func TestParseQuantityNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"6 x", 6},
		{"4 implants", 4},
		{"1,5 sessions", 1.5},
		{"upper arch", 1},
		{"", 1},
		{"0", 1},
	}
	for _, tc := range cases {
		if got := parseQuantityNumber(tc.in); got != tc.want {
			t.Fatalf("parseQuantityNumber(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
