package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleOwner   UserRole = "owner"
	RoleCashier UserRole = "cashier"
	RoleKitchen UserRole = "kitchen"
	RoleWaiter  UserRole = "waiter"
	RoleUser    UserRole = "user"
)

// TimeBoxed reports whether the role's sessions are gated by the shift window.
func (r UserRole) TimeBoxed() bool {
	return r == RoleCashier || r == RoleKitchen || r == RoleWaiter
}

func (r UserRole) Staff() bool {
	return r.TimeBoxed()
}

type Claims struct {
	UserID       int64    `json:"userId"`
	Role         UserRole `json:"role"`
	Email        string   `json:"email"`
	RestaurantID *int64   `json:"restaurantId,omitempty"`
	jwt.RegisteredClaims
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func SignAccessToken(claims Claims, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	return claims, nil
}
