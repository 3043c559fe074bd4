// Package lifecycle is the single source of truth for donation status
// transitions: which statuses exist, which action moves a donation between
// them, and which role and ownership an actor needs to trigger each one.
// Every surface (handlers, services, admin override) consults this table
// instead of re-deriving the rules.
package lifecycle

import (
	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
)

// Action identifies a lifecycle transition request.
type Action string

const (
	ActionClaim    Action = "claim"
	ActionPickup   Action = "pickup"
	ActionDeliver  Action = "deliver"
	ActionComplete Action = "complete"
)

// Ownership states which recorded party on the donation must match the actor.
type Ownership int

const (
	// OwnershipNone means any actor with the required role may act.
	OwnershipNone Ownership = iota
	// OwnershipDonor requires the actor to be the donation's owning donor.
	OwnershipDonor
	// OwnershipReceiver requires the actor to be the claiming receiver.
	OwnershipReceiver
)

// Rule describes one row of the transition table.
type Rule struct {
	From      models.DonationStatus
	To        models.DonationStatus
	Role      models.UserRole
	Ownership Ownership
}

// Each transition is single-step forward and gated by exactly one role.
// There is no backward transition and no unclaim/cancel.
var rules = map[Action]Rule{
	ActionClaim:    {From: models.StatusAvailable, To: models.StatusClaimed, Role: models.RoleReceiver, Ownership: OwnershipNone},
	ActionPickup:   {From: models.StatusClaimed, To: models.StatusPickedUp, Role: models.RoleDonor, Ownership: OwnershipDonor},
	ActionDeliver:  {From: models.StatusPickedUp, To: models.StatusDelivered, Role: models.RoleDonor, Ownership: OwnershipDonor},
	ActionComplete: {From: models.StatusDelivered, To: models.StatusCompleted, Role: models.RoleReceiver, Ownership: OwnershipReceiver},
}

// order indexes statuses along the fixed forward progression.
var order = map[models.DonationStatus]int{
	models.StatusAvailable: 0,
	models.StatusClaimed:   1,
	models.StatusPickedUp:  2,
	models.StatusDelivered: 3,
	models.StatusCompleted: 4,
}

// RuleFor returns the transition rule for an action.
func RuleFor(action Action) (Rule, bool) {
	rule, ok := rules[action]
	return rule, ok
}

// Next returns the status one step forward, if any.
func Next(status models.DonationStatus) (models.DonationStatus, bool) {
	idx, ok := order[status]
	if !ok || idx >= len(order)-1 {
		return "", false
	}
	for s, i := range order {
		if i == idx+1 {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition exists from the status.
func IsTerminal(status models.DonationStatus) bool {
	return status == models.StatusCompleted
}

// CanTransition reports whether from→to is a valid single forward step.
func CanTransition(from, to models.DonationStatus) bool {
	fromIdx, okFrom := order[from]
	toIdx, okTo := order[to]
	return okFrom && okTo && toIdx == fromIdx+1
}

// AdminOverrideAllowed reports whether the admin escape hatch may force the
// given target status. Only delivered and completed are supported; the
// override exists for support and dispute resolution, not general editing.
func AdminOverrideAllowed(target models.DonationStatus) bool {
	return target == models.StatusDelivered || target == models.StatusCompleted
}

// Authorize validates a transition request against the table. Check order
// matters: the state precondition is checked first so that acting on a
// donation in the wrong stage yields an invalid-transition error regardless
// of who asks, then role, then ownership.
func Authorize(action Action, claims *models.JWTClaims, donation *models.Donation) (Rule, error) {
	if claims == nil {
		return Rule{}, appErrors.ErrUnauthorized
	}
	rule, ok := rules[action]
	if !ok {
		return Rule{}, appErrors.Clone(appErrors.ErrValidation, "unknown donation action")
	}
	if donation.Status != rule.From {
		return Rule{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			"donation is "+string(donation.Status)+", "+string(action)+" requires "+string(rule.From))
	}
	if claims.Role != rule.Role {
		return Rule{}, appErrors.Clone(appErrors.ErrForbidden, "only a "+string(rule.Role)+" may "+string(action)+" a donation")
	}
	switch rule.Ownership {
	case OwnershipDonor:
		if donation.DonorID != claims.UserID {
			return Rule{}, appErrors.Clone(appErrors.ErrForbidden, "donation belongs to another donor")
		}
	case OwnershipReceiver:
		if donation.ReceiverID == nil || *donation.ReceiverID != claims.UserID {
			return Rule{}, appErrors.Clone(appErrors.ErrForbidden, "donation was claimed by another receiver")
		}
	}
	return rule, nil
}
