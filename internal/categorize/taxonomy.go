package categorize

import (
	"fmt"
	"sort"
	"strings"
)

// CategoryOther is the generic bucket used for low-confidence results.
const CategoryOther = "Other"

// taxonomy is the fixed category/subcategory vocabulary submitted to
// the classification capability and accepted back from it.
var taxonomy = map[string][]string{
	"Income":         {"Salary", "Freelance", "Investment Income", "Refunds", "Other Income"},
	"Housing":        {"Rent", "Mortgage", "Utilities", "Home Maintenance", "Home Insurance"},
	"Transportation": {"Gas", "Public Transit", "Car Payment", "Car Insurance", "Parking", "Rideshare"},
	"Food":           {"Groceries", "Restaurants", "Coffee Shops", "Delivery"},
	"Shopping":       {"Clothing", "Electronics", "Home Goods", "Online Shopping"},
	"Entertainment":  {"Streaming Services", "Movies", "Games", "Events", "Subscriptions"},
	"Healthcare":     {"Medical", "Dental", "Pharmacy", "Health Insurance"},
	"Financial":      {"Transfers", "Credit Card Payment", "Fees", "Taxes", "Investments"},
	"Personal":       {"Education", "Personal Care", "Gifts", "Charity"},
	"Travel":         {"Flights", "Hotels", "Vacation"},
	CategoryOther:    {},
}

// Categories returns the category names in stable order.
func Categories() []string {
	names := make([]string, 0, len(taxonomy))
	for name := range taxonomy {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subcategories returns the subcategories of a category.
func Subcategories(category string) []string {
	return taxonomy[category]
}

// IsValidCategory reports whether the category is part of the taxonomy.
func IsValidCategory(category string) bool {
	_, ok := taxonomy[category]
	return ok
}

// NormalizeCategory maps a classifier-returned category onto the
// taxonomy, falling back to Other for anything unrecognized.
func NormalizeCategory(category string) string {
	trimmed := strings.TrimSpace(category)
	if IsValidCategory(trimmed) {
		return trimmed
	}

	for name := range taxonomy {
		if strings.EqualFold(name, trimmed) {
			return name
		}
	}
	return CategoryOther
}

// TaxonomyPrompt renders the taxonomy as a prompt fragment listing
// every category with its subcategories.
func TaxonomyPrompt() string {
	var b strings.Builder
	for _, category := range Categories() {
		subs := taxonomy[category]
		if len(subs) == 0 {
			fmt.Fprintf(&b, "- %s\n", category)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", category, strings.Join(subs, ", "))
	}
	return b.String()
}
