package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"imenu-order-services/internal/auth"
	"imenu-order-services/internal/middleware"
)

// mustOptionalAuth returns the auth context when present. Public endpoints
// that also serve logged-in staff use this to attribute the action without
// requiring a token.
func mustOptionalAuth(r *http.Request) (*middleware.AuthContext, bool) {
	return middleware.GetAuthContext(r.Context())
}

// resolveRestaurantID picks the tenant a request targets: staff and owners
// are pinned to their own restaurant, admins pass ?restaurantId=.
func (h *Handler) resolveRestaurantID(r *http.Request, ac *middleware.AuthContext) (int64, error) {
	if ac.Role != auth.RoleAdmin && ac.RestaurantID != nil {
		return *ac.RestaurantID, nil
	}
	raw := strings.TrimSpace(r.URL.Query().Get("restaurantId"))
	if raw == "" {
		if ac.RestaurantID != nil {
			return *ac.RestaurantID, nil
		}
		return 0, errMissingParam
	}
	var id int64
	if _, err := fmt.Sscan(raw, &id); err != nil || id <= 0 {
		return 0, errMissingParam
	}
	return id, nil
}

// restaurantTimezone loads the tenant's operating timezone, falling back
// to the service default when unset or unreadable.
func (h *Handler) restaurantTimezone(r *http.Request, restaurantID int64) string {
	var tz string
	err := h.DB.QueryRow(r.Context(),
		`select coalesce(timezone, '') from restaurants where id = $1`,
		restaurantID,
	).Scan(&tz)
	if err != nil || strings.TrimSpace(tz) == "" {
		return h.Config.DefaultTimezone
	}
	return tz
}
