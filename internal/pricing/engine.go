// Package pricing computes checkout totals. The engine is a pure function of
// its inputs: the same cart, area tariff and adjustments always produce the
// same breakdown, so callers may recompute freely after every cart change.
package pricing

import (
	"github.com/noah-isme/backend-segar/internal/config"
	"github.com/noah-isme/backend-segar/internal/session"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// Inputs carries everything a price computation depends on.
type Inputs struct {
	Items    []session.CartItem
	Area     config.ShippingArea
	Discount Money
	Tip      Money
	TipMax   Money
	TaxBPS   int
}

// Breakdown is the itemised result of one computation.
type Breakdown struct {
	Subtotal          Money `json:"subtotal"`
	TotalMRP          Money `json:"totalMrp"`
	TotalSavings      Money `json:"totalSavings"`
	DiscountAmount    Money `json:"discountAmount"`
	ShippingFee       Money `json:"shippingFee"`
	StandardFee       Money `json:"standardFee"`
	DistanceSurcharge Money `json:"distanceSurcharge"`
	Tax               Money `json:"tax"`
	TipAmount         Money `json:"tipAmount"`
	TotalAmount       Money `json:"totalAmount"`
}

// Compute prices a cart. Offer prices drive the subtotal while list prices
// drive the displayed MRP and savings; customization charges are payable so
// they count into the subtotal, but they are not part of the goods' list
// value. The discount is capped at the subtotal so a generous promo can never
// push the goods value negative, and the free-shipping tier is decided on the
// pre-discount subtotal.
func Compute(in Inputs) Breakdown {
	var subtotal, mrp, offerSum Money
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			continue
		}
		qty := Money(it.Quantity)
		offer := it.OfferPrice
		if offer <= 0 {
			offer = it.UnitPrice
		}
		line := qty * offer
		if it.Customization != nil && it.Customization.Charge > 0 {
			line += qty * it.Customization.Charge
		}
		subtotal += line
		offerSum += qty * offer
		mrp += qty * it.UnitPrice
	}
	savings := mrp - offerSum
	if savings < 0 {
		savings = 0
	}

	discount := in.Discount
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	var shipping, standard, surcharge Money
	if subtotal > 0 && subtotal < in.Area.FreeShippingThreshold {
		standard = in.Area.StandardFee
		surcharge = in.Area.DistanceSurcharge
		shipping = standard + surcharge
	}

	taxable := subtotal - discount
	tax := (taxable * Money(in.TaxBPS)) / 10000

	tip := in.Tip
	if tip < 0 {
		tip = 0
	}
	if in.TipMax > 0 && tip > in.TipMax {
		tip = in.TipMax
	}

	return Breakdown{
		Subtotal:          subtotal,
		TotalMRP:          mrp,
		TotalSavings:      savings,
		DiscountAmount:    discount,
		ShippingFee:       shipping,
		StandardFee:       standard,
		DistanceSurcharge: surcharge,
		Tax:               tax,
		TipAmount:         tip,
		TotalAmount:       taxable + shipping + tax + tip,
	}
}
