package catalog

import "fmt"

// ReactivationPolicy decides whether restocking an inactive product makes it
// active again.
type ReactivationPolicy string

const (
	// ReactivateAuto reactivates only products the ledger deactivated itself
	ReactivateAuto ReactivationPolicy = "auto"
	// ReactivateNever leaves status untouched
	ReactivateNever ReactivationPolicy = "never"
	// ReactivateAlways reactivates regardless of who deactivated the product
	ReactivateAlways ReactivationPolicy = "always"
)

// DefaultReactivationPolicy is used when none is configured
const DefaultReactivationPolicy = ReactivateAuto

// ParseReactivationPolicy parses a configured policy name
func ParseReactivationPolicy(s string) (ReactivationPolicy, error) {
	switch p := ReactivationPolicy(s); p {
	case "":
		return DefaultReactivationPolicy, nil
	case ReactivateAuto, ReactivateNever, ReactivateAlways:
		return p, nil
	default:
		return "", fmt.Errorf("unknown reactivation policy %q", s)
	}
}

// ShouldReactivate evaluates the policy against a product that just gained stock
func (p ReactivationPolicy) ShouldReactivate(product *Product) bool {
	if product.Status == ProductStatusActive || product.Quantity == 0 {
		return false
	}
	switch p {
	case ReactivateAlways:
		return true
	case ReactivateNever:
		return false
	default:
		return product.AutoDeactivated
	}
}
