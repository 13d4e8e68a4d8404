package auth

import "fleetbook/internal/db"

// Authorizer answers ownership questions for the booking engine.
type Authorizer interface {
	CanManageShop(actor Actor, shopID string) bool
	CanCancel(actor Actor, res *db.Reservation) bool
	CanOverride(actor Actor, res *db.Reservation) bool
}

// OwnershipAuthorizer grants shops control over their own fleet and admins over all of it.
type OwnershipAuthorizer struct{}

func (OwnershipAuthorizer) CanManageShop(actor Actor, shopID string) bool {
	switch actor.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleShop:
		return actor.ShopID != "" && actor.ShopID == shopID
	}
	return false
}

// CanCancel allows the requester, the owning shop and admins.
func (a OwnershipAuthorizer) CanCancel(actor Actor, res *db.Reservation) bool {
	if a.CanManageShop(actor, res.ShopID) {
		return true
	}
	return !actor.IsGuest() && res.RequesterID != nil && *res.RequesterID == actor.ID
}

func (a OwnershipAuthorizer) CanOverride(actor Actor, res *db.Reservation) bool {
	if actor.Role == RoleSystem {
		return false
	}
	return a.CanManageShop(actor, res.ShopID)
}
