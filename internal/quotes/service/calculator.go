package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"smiledesign_backend/internal/quotes/transport"
)

var quantityRegex = regexp.MustCompile(`^([\d.,]+)`)

// parseQuantityNumber extracts the numeric value from a free-form quantity
// string. Examples: "6 x" -> 6.0, "4 implants" -> 4.0, "1 arch" -> 1.0.
func parseQuantityNumber(quantity string) float64 {
	matches := quantityRegex.FindStringSubmatch(strings.TrimSpace(quantity))
	if len(matches) < 2 {
		return 1.0
	}
	cleaned := strings.ReplaceAll(matches[1], ",", ".")
	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || val <= 0 {
		return 1.0
	}
	return val
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}

// computeDiscount returns the discount amount in float-cents, capped at
// the subtotal so a quote can never go negative.
func computeDiscount(subtotalFloat float64, discountType string, discountValue int64) float64 {
	var amount float64
	switch {
	case discountType == "percentage" && discountValue > 0:
		amount = subtotalFloat * (float64(discountValue) / 100.0)
	case discountType == "fixed" && discountValue > 0:
		amount = float64(discountValue)
	}
	if amount > subtotalFloat {
		return subtotalFloat
	}
	return amount
}

// CalculateQuote computes the totals for a set of treatment line items.
// Package prices are all-inclusive, so there is no tax component: the
// total is simply the item subtotal minus the discount.
func CalculateQuote(req transport.QuoteCalculationRequest) transport.QuoteCalculationResponse {
	discountType := req.DiscountType
	if discountType == "" {
		discountType = "percentage"
	}

	var subtotalFloat float64
	lines := make([]transport.CalculatedLineItem, 0, len(req.Items))

	for _, item := range req.Items {
		qty := parseQuantityNumber(item.Quantity)
		lineTotal := qty * float64(item.UnitPriceCents)

		lines = append(lines, transport.CalculatedLineItem{
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: roundCents(lineTotal),
		})
		subtotalFloat += lineTotal
	}

	subtotalCents := roundCents(subtotalFloat)
	discountAmountCents := roundCents(computeDiscount(subtotalFloat, discountType, req.DiscountValue))

	return transport.QuoteCalculationResponse{
		Lines:               lines,
		SubtotalCents:       subtotalCents,
		DiscountAmountCents: discountAmountCents,
		TotalCents:          subtotalCents - discountAmountCents,
	}
}
