package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

// AmountTolerance is the maximum accepted deviation between the amount
// a client submits and the amount the server computes. Anything larger
// is treated as price tampering and rejected.
const AmountTolerance = 0.01

// packagePrices is the fixed price table, in PLN.
var packagePrices = map[models.PackageType]float64{
	models.PackageBasic:    99.00,
	models.PackageStandard: 199.00,
	models.PackagePremium:  399.00,
	models.PackageExpress:  299.00,
}

// PackagePrice returns the list price for a package type.
func PackagePrice(pkg models.PackageType) (float64, error) {
	price, ok := packagePrices[pkg]
	if !ok {
		return 0, fmt.Errorf("unknown package type %q", pkg)
	}
	return price, nil
}

// ValidatePromo checks whether the promo code may be applied to the
// given package at the given time.
func ValidatePromo(promo *models.PromoCode, pkg models.PackageType, now time.Time) error {
	if !promo.IsActive {
		return fmt.Errorf("promo code %s is no longer active", promo.Code)
	}
	if now.Before(promo.ValidFrom) || now.After(promo.ValidTo) {
		return fmt.Errorf("promo code %s is outside its validity window", promo.Code)
	}
	if promo.MaxUses > 0 && promo.CurrentUses >= promo.MaxUses {
		return fmt.Errorf("promo code %s has reached its usage limit", promo.Code)
	}
	if promo.PackageType != "" && promo.PackageType != pkg {
		return fmt.Errorf("promo code %s does not apply to the %s package", promo.Code, pkg)
	}
	return nil
}

// ApplyPromo reduces price by the promo's percentage or flat discount.
// The result never drops below zero and is rounded to grosze.
func ApplyPromo(price float64, promo *models.PromoCode) float64 {
	out := price
	switch {
	case promo.DiscountPercent > 0:
		out = price * (1 - promo.DiscountPercent/100)
	case promo.DiscountAmount > 0:
		out = price - promo.DiscountAmount
	}
	if out < 0 {
		out = 0
	}
	return math.Round(out*100) / 100
}

// ComputeAmount returns the server-side expected amount for a package
// with an optional promo code applied. promo may be nil.
func ComputeAmount(pkg models.PackageType, promo *models.PromoCode, now time.Time) (float64, error) {
	price, err := PackagePrice(pkg)
	if err != nil {
		return 0, err
	}
	if promo == nil {
		return price, nil
	}
	if err := ValidatePromo(promo, pkg, now); err != nil {
		return 0, err
	}
	return ApplyPromo(price, promo), nil
}

// AmountMatches reports whether a client-supplied amount is within
// tolerance of the server-computed one.
func AmountMatches(requested, computed float64) bool {
	return math.Abs(requested-computed) <= AmountTolerance
}
