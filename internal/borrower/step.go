package borrower

// Step is a page of the borrower wizard.
type Step string

const (
	StepWelcome      Step = "welcome"
	StepCustomerInfo Step = "customer-info"
	StepConsent      Step = "consent"
	StepConnect      Step = "connect"
	StepComplete     Step = "complete"
)

// StepAfterWelcome skips customer-info when no required field is missing.
func StepAfterWelcome(missing []string) Step {
	if len(missing) == 0 {
		return StepConsent
	}
	return StepCustomerInfo
}

// ConsentCategories must all be acknowledged before bank connection.
var ConsentCategories = []string{"account_details", "balances", "transactions", "identity"}

// coversAllCategories reports whether every consent category was acknowledged.
func coversAllCategories(given []string) bool {
	seen := make(map[string]bool, len(given))
	for _, g := range given {
		seen[g] = true
	}
	for _, c := range ConsentCategories {
		if !seen[c] {
			return false
		}
	}
	return true
}
