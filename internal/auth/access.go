package auth

// Actor is the identity/permission context supplied by the HTTP layer
// before any engine operation runs.
type Actor struct {
	UserID       int64
	Role         UserRole
	RestaurantID *int64 // owned (owner) or assigned (staff) restaurant
}

// Access is the capability set an actor holds over one tenant's data.
// Every engine operation consults this instead of re-branching on roles.
type Access struct {
	CanRead    bool
	CanWrite   bool // edit items, cancel
	CanAdvance bool // move order status forward
	FullRange  bool // unrestricted history time range
}

// ResolveAccess computes the actor's capabilities for targetTenant.
// Admins act on any tenant; owners and staff only on their own restaurant,
// with staff further limited to reading and advancing.
func ResolveAccess(actor Actor, targetTenant int64) Access {
	switch actor.Role {
	case RoleAdmin:
		return Access{CanRead: true, CanWrite: true, CanAdvance: true, FullRange: true}
	case RoleOwner:
		if actor.RestaurantID != nil && *actor.RestaurantID == targetTenant {
			return Access{CanRead: true, CanWrite: true, CanAdvance: true, FullRange: true}
		}
	case RoleCashier, RoleKitchen:
		if actor.RestaurantID != nil && *actor.RestaurantID == targetTenant {
			return Access{CanRead: true, CanAdvance: true}
		}
	case RoleWaiter:
		if actor.RestaurantID != nil && *actor.RestaurantID == targetTenant {
			return Access{CanRead: true, CanWrite: true, CanAdvance: true}
		}
	}
	return Access{}
}
