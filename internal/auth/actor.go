package auth

import "context"

// Roles.
const (
	RoleCustomer = "customer"
	RoleShop     = "shop"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

// Actor is the authenticated caller of an operation. A zero Actor is an anonymous guest.
type Actor struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	ShopID string `json:"shop_id,omitempty"`
}

// SystemActor is used by scheduled jobs.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

func (a Actor) IsGuest() bool { return a.ID == "" }
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the caller stored by the middleware, or a guest.
func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}
