// Package policy decides whether an actor may perform an action on a resource.
// It performs no I/O.
package policy

import (
	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update" // location ingest, status changes
	ActionManage Action = "manage" // directory mutation
)

// Actor is the authenticated caller. The concrete type carries exactly the
// scoping ids its role allows; a nil Actor is an anonymous caller.
type Actor interface {
	ID() uint
	isActor()
}

// Admin may do anything.
type Admin struct{ UserID uint }

// OperatorStaff acts on the fleet of one operator.
type OperatorStaff struct {
	UserID     uint
	OperatorID uint
}

// BusScoped acts on a single assigned bus (drivers, and users bound to a bus).
type BusScoped struct {
	UserID     uint
	BusID      uint
	OperatorID *uint
}

// Consumer is an authenticated user with no scope; treated like the public.
type Consumer struct{ UserID uint }

func (a Admin) ID() uint         { return a.UserID }
func (a OperatorStaff) ID() uint { return a.UserID }
func (a BusScoped) ID() uint     { return a.UserID }
func (a Consumer) ID() uint      { return a.UserID }

func (Admin) isActor()         {}
func (OperatorStaff) isActor() {}
func (BusScoped) isActor()     {}
func (Consumer) isActor()      {}

// FromUser builds the actor for a live user record. Field combinations the
// role does not allow collapse to the narrowest actor.
func FromUser(u *models.User) Actor {
	if u == nil {
		return nil
	}
	switch u.Role {
	case models.RoleAdmin:
		return Admin{UserID: u.ID}
	case models.RoleOperator:
		if u.OperatorID != nil {
			return OperatorStaff{UserID: u.ID, OperatorID: *u.OperatorID}
		}
	case models.RoleDriver:
		if u.AssignedBusID != nil {
			return BusScoped{UserID: u.ID, BusID: *u.AssignedBusID, OperatorID: u.OperatorID}
		}
	case models.RoleUser:
		if u.AssignedBusID != nil {
			return BusScoped{UserID: u.ID, BusID: *u.AssignedBusID}
		}
	}
	return Consumer{UserID: u.ID}
}

// Resource is the target of an action. BusID is zero for resources that are
// not a single bus; Public marks resources anyone may read.
type Resource struct {
	BusID      uint
	OperatorID *uint
	Public     bool
}

// BusResource describes a bus and its owner.
func BusResource(b *models.Bus) Resource {
	return Resource{BusID: b.ID, OperatorID: b.OperatorID}
}

// PublicResource describes public listings (routes, bus directory, nearby).
func PublicResource() Resource {
	return Resource{Public: true}
}

// Authorize returns nil when actor may perform action on res, otherwise an
// access-denied error. Out-of-scope resources are always denied, never hidden.
func Authorize(actor Actor, action Action, res Resource) error {
	if _, ok := actor.(Admin); ok {
		return nil
	}
	if action == ActionManage {
		return apperrors.AccessDenied("admin access required")
	}
	if action == ActionRead && res.Public {
		return nil
	}

	switch a := actor.(type) {
	case BusScoped:
		if res.BusID != 0 && res.BusID == a.BusID {
			return nil
		}
		return apperrors.AccessDenied("access denied to this bus")
	case OperatorStaff:
		if res.OperatorID != nil && *res.OperatorID == a.OperatorID {
			return nil
		}
		return apperrors.AccessDenied("access denied to resources of another operator")
	case nil:
		return apperrors.Authentication("authentication required")
	}
	return apperrors.AccessDenied("")
}

// Scope restricts listings. A nil field means no restriction on that dimension;
// Denied means the actor may list nothing scoped.
type Scope struct {
	OperatorID *uint
	BusID      *uint
	Denied     bool
}

// ScopeFor returns the listing filter for actor over non-public data.
func ScopeFor(actor Actor) Scope {
	switch a := actor.(type) {
	case Admin:
		return Scope{}
	case OperatorStaff:
		id := a.OperatorID
		return Scope{OperatorID: &id}
	case BusScoped:
		id := a.BusID
		return Scope{BusID: &id}
	}
	return Scope{Denied: true}
}
