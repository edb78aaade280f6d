package domain

// MaxItemQuantity is the largest number of identical items a single sale item
// may carry.
const MaxItemQuantity = 20

// DiscountForQuantity maps an item quantity to the discount percentage the
// pricing rules allow:
//
//	1-3 items: no discount
//	4-9 items: 10%
//	10-20 items: 20%
//
// Quantities outside 1..20 are rejected before any discount applies.
func DiscountForQuantity(quantity int) (float64, error) {
	switch {
	case quantity <= 0:
		return 0, ruleViolation("quantity must be greater than zero")
	case quantity > MaxItemQuantity:
		return 0, ruleViolation("cannot sell more than %d identical items", MaxItemQuantity)
	case quantity >= 10:
		return 20, nil
	case quantity >= 4:
		return 10, nil
	default:
		return 0, nil
	}
}

// validateDiscount checks that a discount value is consistent with the tier
// for the given quantity. Used when reconstructing items from storage, where
// the stored discount must still match the stored quantity.
func validateDiscount(quantity int, discount float64) error {
	if discount < 0 || discount > 100 {
		return ruleViolation("discount must be between 0 and 100")
	}
	allowed, err := DiscountForQuantity(quantity)
	if err != nil {
		return err
	}
	if discount > allowed {
		return ruleViolation("discount %.0f%% exceeds the %.0f%% allowed for quantity %d", discount, allowed, quantity)
	}
	return nil
}
