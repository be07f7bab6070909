package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"imenu-order-services/internal/auth"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	UserID       int64
	Role         auth.UserRole
	Email        string
	RestaurantID *int64
}

// Actor converts the request identity into the form the engines consume.
func (ac *AuthContext) Actor() auth.Actor {
	return auth.Actor{UserID: ac.UserID, Role: ac.Role, RestaurantID: ac.RestaurantID}
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// Auth verifies the bearer token and re-checks the user row on every
// request: a deactivated account or an expired restaurant subscription
// locks the token out even before it expires.
func Auth(db *pgxpool.Pool, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Authorization token required", err.Error())
				return
			}

			var (
				active       bool
				role         string
				email        string
				restaurantID pgtype.Int8
				expiresAt    pgtype.Timestamptz
			)
			query := `
				select u.active, u.role, u.email, u.restaurant_id, r.subscription_expires_at
				from users u
				left join restaurants r on r.id = u.restaurant_id
				where u.id = $1
			`
			err = db.QueryRow(r.Context(), query, claims.UserID).Scan(&active, &role, &email, &restaurantID, &expiresAt)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Account not found", err.Error())
				return
			}
			if !active {
				writeAuthError(w, http.StatusForbidden, "Account is disabled")
				return
			}
			if auth.UserRole(role) != claims.Role {
				// role changed since the token was signed
				writeAuthError(w, http.StatusUnauthorized, "Token no longer valid")
				return
			}
			if claims.Role != auth.RoleAdmin && expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
				writeAuthError(w, http.StatusForbidden, "Restaurant subscription has expired")
				return
			}

			authCtx := &AuthContext{
				UserID: claims.UserID,
				Role:   claims.Role,
				Email:  email,
			}
			if restaurantID.Valid {
				id := restaurantID.Int64
				authCtx.RestaurantID = &id
			}

			ctx := WithAuthContext(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects authenticated users whose role is not listed.
func RequireRoles(roles ...auth.UserRole) func(http.Handler) http.Handler {
	allowed := make(map[auth.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := GetAuthContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}
			if _, ok := allowed[ac.Role]; !ok {
				writeAuthError(w, http.StatusForbidden, "You do not have permission to access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
