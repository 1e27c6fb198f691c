package policy

import (
	"github.com/kendall-kelly/manuorder-api/apperror"
	"github.com/kendall-kelly/manuorder-api/models"
)

// Action names an operation guarded by the policy
type Action string

const (
	ActionCreateOrder      Action = "order:create"
	ActionListOrders       Action = "order:list"
	ActionReadOrder        Action = "order:read"
	ActionUpdateStatus     Action = "order:update_status"
	ActionCreateQuotation  Action = "quotation:create"
	ActionRespondQuotation Action = "quotation:respond"
	ActionUploadFile       Action = "file:upload"
	ActionReadFile         Action = "file:read"
	ActionViewReports      Action = "report:view"
)

// Actor is the resolved caller of an operation
type Actor struct {
	UserID string
	Role   models.Role
	Name   string
}

// IsAdmin reports whether the actor has staff privileges
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == models.RoleAdmin
}

// Resource identifies the row an action touches. A nil resource means the
// role-level check only.
type Resource struct {
	OwnerID string
}

// OwnedBy builds the resource for a row owned by customerID
func OwnedBy(customerID string) *Resource {
	return &Resource{OwnerID: customerID}
}

type rule struct {
	admin     bool
	customer  bool
	ownerOnly bool // customers must own the resource
}

var rules = map[Action]rule{
	ActionCreateOrder:      {customer: true},
	ActionListOrders:       {admin: true, customer: true, ownerOnly: true},
	ActionReadOrder:        {admin: true, customer: true, ownerOnly: true},
	ActionUpdateStatus:     {admin: true},
	ActionCreateQuotation:  {admin: true},
	ActionRespondQuotation: {admin: true, customer: true, ownerOnly: true},
	ActionUploadFile:       {admin: true, customer: true},
	ActionReadFile:         {admin: true, customer: true},
	ActionViewReports:      {admin: true},
}

// Authorize decides whether actor may perform action on res. Missing or
// malformed identity is always Unauthorized, everything else Forbidden.
func Authorize(actor *Actor, action Action, res *Resource) error {
	if actor == nil || actor.UserID == "" || !actor.Role.IsValid() {
		return apperror.Unauthorized("UNAUTHORIZED", "Authentication required")
	}

	r, ok := rules[action]
	if !ok {
		return apperror.Forbidden("FORBIDDEN", "Operation not permitted")
	}

	switch actor.Role {
	case models.RoleAdmin:
		if !r.admin {
			return apperror.Forbidden("FORBIDDEN", "Administrators cannot perform this operation")
		}
		return nil
	case models.RoleCustomer:
		if !r.customer {
			return apperror.Forbidden("FORBIDDEN", "Customers cannot perform this operation")
		}
		if r.ownerOnly && res != nil && res.OwnerID != actor.UserID {
			return apperror.Forbidden("NOT_OWNER", "You do not have access to this order")
		}
		return nil
	}
	return apperror.Forbidden("FORBIDDEN", "Operation not permitted")
}

// CustomerScope returns the customer id reads must be limited to, or "" for
// unscoped (admin) reads.
func CustomerScope(actor *Actor) string {
	if actor.IsAdmin() {
		return ""
	}
	return actor.UserID
}
