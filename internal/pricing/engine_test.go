package pricing

import (
	"testing"

	"github.com/noah-isme/backend-segar/internal/config"
	"github.com/noah-isme/backend-segar/internal/session"
)

var standardArea = config.ShippingArea{
	FreeShippingThreshold: 99900,
	StandardFee:           2900,
	DistanceSurcharge:     0,
}

func TestComputeCartBelowFreeShippingThreshold(t *testing.T) {
	got := Compute(Inputs{
		Items: []session.CartItem{
			{Quantity: 2, UnitPrice: 15000, OfferPrice: 15000},
			{Quantity: 1, UnitPrice: 20000, OfferPrice: 20000},
		},
		Area: standardArea,
	})
	if got.Subtotal != 50000 {
		t.Fatalf("subtotal: want 50000, got %d", got.Subtotal)
	}
	if got.ShippingFee != 2900 {
		t.Fatalf("shipping: want 2900, got %d", got.ShippingFee)
	}
	if got.TotalAmount != 52900 {
		t.Fatalf("total: want 52900, got %d", got.TotalAmount)
	}
}

func TestComputeFreeShippingAtThreshold(t *testing.T) {
	got := Compute(Inputs{
		Items: []session.CartItem{{Quantity: 1, UnitPrice: 99900, OfferPrice: 99900}},
		Area:  standardArea,
	})
	if got.ShippingFee != 0 {
		t.Fatalf("shipping at threshold must be free, got %d", got.ShippingFee)
	}
	if got.TotalAmount != 99900 {
		t.Fatalf("total: want 99900, got %d", got.TotalAmount)
	}
}

func TestComputeDistanceSurcharge(t *testing.T) {
	area := config.ShippingArea{FreeShippingThreshold: 99900, StandardFee: 2900, DistanceSurcharge: 1500}
	got := Compute(Inputs{
		Items: []session.CartItem{{Quantity: 1, UnitPrice: 10000, OfferPrice: 10000}},
		Area:  area,
	})
	if got.StandardFee != 2900 || got.DistanceSurcharge != 1500 || got.ShippingFee != 4400 {
		t.Fatalf("unexpected shipping split %d/%d/%d", got.StandardFee, got.DistanceSurcharge, got.ShippingFee)
	}
}

func TestComputeSavingsFromOfferPrices(t *testing.T) {
	got := Compute(Inputs{
		Items: []session.CartItem{{Quantity: 2, UnitPrice: 12000, OfferPrice: 10000}},
		Area:  standardArea,
	})
	if got.Subtotal != 20000 || got.TotalMRP != 24000 || got.TotalSavings != 4000 {
		t.Fatalf("unexpected savings math %+v", got)
	}
}

func TestComputeDiscountCappedAtSubtotal(t *testing.T) {
	got := Compute(Inputs{
		Items:    []session.CartItem{{Quantity: 1, UnitPrice: 5000, OfferPrice: 5000}},
		Area:     standardArea,
		Discount: 8000,
	})
	if got.DiscountAmount != 5000 {
		t.Fatalf("discount must cap at the subtotal, got %d", got.DiscountAmount)
	}
	if got.TotalAmount != got.ShippingFee {
		t.Fatalf("fully discounted goods leave only shipping, got %d", got.TotalAmount)
	}
}

func TestComputePercentDiscountScenario(t *testing.T) {
	got := Compute(Inputs{
		Items:    []session.CartItem{{Quantity: 1, UnitPrice: 50000, OfferPrice: 50000}},
		Area:     standardArea,
		Discount: 5000,
	})
	if got.DiscountAmount != 5000 {
		t.Fatalf("discount: want 5000, got %d", got.DiscountAmount)
	}
	if got.TotalAmount != 50000-5000+2900 {
		t.Fatalf("total: want %d, got %d", 50000-5000+2900, got.TotalAmount)
	}
}

func TestComputeTipClampedAndNeverNegative(t *testing.T) {
	got := Compute(Inputs{
		Items:  []session.CartItem{{Quantity: 1, UnitPrice: 10000, OfferPrice: 10000}},
		Area:   standardArea,
		Tip:    -500,
		TipMax: 20000,
	})
	if got.TipAmount != 0 {
		t.Fatalf("negative tip must clamp to zero, got %d", got.TipAmount)
	}

	got = Compute(Inputs{
		Items:  []session.CartItem{{Quantity: 1, UnitPrice: 10000, OfferPrice: 10000}},
		Area:   standardArea,
		Tip:    50000,
		TipMax: 20000,
	})
	if got.TipAmount != 20000 {
		t.Fatalf("tip must clamp to the configured cap, got %d", got.TipAmount)
	}
}

func TestComputeTaxOnDiscountedSubtotal(t *testing.T) {
	got := Compute(Inputs{
		Items:    []session.CartItem{{Quantity: 1, UnitPrice: 110000, OfferPrice: 110000}},
		Area:     standardArea,
		Discount: 10000,
		TaxBPS:   1100,
	})
	if got.Tax != 11000 {
		t.Fatalf("tax must apply to the post-discount subtotal, got %d", got.Tax)
	}
	if got.TotalAmount != 100000+11000 {
		t.Fatalf("total: want 111000, got %d", got.TotalAmount)
	}
}

func TestComputeCustomizationCharge(t *testing.T) {
	got := Compute(Inputs{
		Items: []session.CartItem{{
			Quantity:      2,
			UnitPrice:     10000,
			OfferPrice:    10000,
			Customization: &session.Customization{Note: "sliced", Charge: 1000},
		}},
		Area: standardArea,
	})
	if got.Subtotal != 22000 {
		t.Fatalf("customization charge must count per unit, got %d", got.Subtotal)
	}
	if got.TotalMRP != 20000 {
		t.Fatalf("customization charge must stay out of the goods MRP, got %d", got.TotalMRP)
	}
	if got.TotalSavings != 0 {
		t.Fatalf("a paid charge is not a saving, got %d", got.TotalSavings)
	}
}

func TestComputeCustomizationChargeWithOfferPrice(t *testing.T) {
	got := Compute(Inputs{
		Items: []session.CartItem{{
			Quantity:      1,
			UnitPrice:     12000,
			OfferPrice:    10000,
			Customization: &session.Customization{Note: "gift wrap", Charge: 500},
		}},
		Area: standardArea,
	})
	if got.Subtotal != 10500 || got.TotalMRP != 12000 {
		t.Fatalf("unexpected totals %+v", got)
	}
	if got.TotalSavings != 2000 {
		t.Fatalf("savings must compare list and offer prices only, got %d", got.TotalSavings)
	}
}

func TestComputeEmptyCart(t *testing.T) {
	got := Compute(Inputs{Area: standardArea})
	if got.TotalAmount != 0 || got.ShippingFee != 0 {
		t.Fatalf("an empty cart must price to zero, got %+v", got)
	}
}
