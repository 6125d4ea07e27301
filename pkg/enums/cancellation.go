package enums

import "fmt"

// CancellationPolicy decides whether a customer cancellation needs seller approval.
type CancellationPolicy string

const (
	// CancellationPolicyAutoWithinWindow approves requests made inside the
	// cancellation window while no seller has started work.
	CancellationPolicyAutoWithinWindow CancellationPolicy = "auto_within_window"
	// CancellationPolicyAlwaysSeller routes every request to the seller.
	CancellationPolicyAlwaysSeller CancellationPolicy = "always_seller"
)

// ParseCancellationPolicy converts raw config input into a CancellationPolicy.
func ParseCancellationPolicy(value string) (CancellationPolicy, error) {
	switch CancellationPolicy(value) {
	case CancellationPolicyAutoWithinWindow, CancellationPolicyAlwaysSeller:
		return CancellationPolicy(value), nil
	}
	return "", fmt.Errorf("invalid cancellation policy %q", value)
}

// CancellationOutcome reports what a cancellation request resulted in.
type CancellationOutcome string

const (
	CancellationAutoApproved           CancellationOutcome = "auto_approved"
	CancellationAwaitingSellerApproval CancellationOutcome = "awaiting_seller_approval"
)

func (o CancellationOutcome) String() string {
	return string(o)
}
