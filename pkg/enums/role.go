package enums

import (
	"fmt"
	"sort"
)

// Role is the actor role asserted by the identity provider.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

var validRoles = []Role{RoleCustomer, RoleSeller, RoleAdmin}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// Action names an order operation a role may be offered.
type Action string

const (
	ActionCancel              Action = "cancel"
	ActionRefund              Action = "refund"
	ActionApproveRefund       Action = "approveRefund"
	ActionRejectRefund        Action = "rejectRefund"
	ActionApproveCancellation Action = "approveCancellation"
	ActionRejectCancellation  Action = "rejectCancellation"
	ActionConfirmDelivery     Action = "confirmDelivery"
	ActionBuyAgain            Action = "buyAgain"
)

func (a Action) String() string {
	return string(a)
}

// SortActions orders actions lexically so responses are stable.
func SortActions(actions []Action) {
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
}

// ResolutionAction is the seller/admin verdict on a pending request.
type ResolutionAction string

const (
	ResolutionApprove ResolutionAction = "approve"
	ResolutionReject  ResolutionAction = "reject"
)

// IsValid reports whether the value is approve or reject.
func (r ResolutionAction) IsValid() bool {
	return r == ResolutionApprove || r == ResolutionReject
}

// ParseResolutionAction converts raw input into a ResolutionAction.
func ParseResolutionAction(value string) (ResolutionAction, error) {
	action := ResolutionAction(value)
	if !action.IsValid() {
		return "", fmt.Errorf("invalid resolution action %q", value)
	}
	return action, nil
}
