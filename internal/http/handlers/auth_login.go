package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/auth"
	"imenu-order-services/internal/utils"
	"imenu-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

type loginUser struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	RestaurantID *int64 `json:"restaurantId,omitempty"`
}

// Login authenticates by email and password. Staff roles are additionally
// gated by their shift window: outside it the login is refused with the
// wait until the next shift start.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	var (
		userID       int64
		name         string
		passwordHash string
		role         string
		active       bool
		restaurantID pgtype.Int8
		shiftStart   pgtype.Text
		shiftEnd     pgtype.Text
		restDays     []int32
		timezone     pgtype.Text
		subExpiresAt pgtype.Timestamptz
	)
	query := `
		select u.id, u.name, u.password_hash, u.role, u.active, u.restaurant_id,
		       u.shift_start, u.shift_end, coalesce(u.rest_days, '{}'),
		       r.timezone, r.subscription_expires_at
		from users u
		left join restaurants r on r.id = u.restaurant_id
		where lower(u.email) = lower($1)
	`
	err := h.DB.QueryRow(r.Context(), query, strings.TrimSpace(req.Email)).Scan(
		&userID, &name, &passwordHash, &role, &active, &restaurantID,
		&shiftStart, &shiftEnd, &restDays, &timezone, &subExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
		return
	}
	if err != nil {
		h.Logger.Error("login lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
		return
	}
	if !active {
		response.Error(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled")
		return
	}

	userRole := auth.UserRole(role)
	if userRole != auth.RoleAdmin && subExpiresAt.Valid && subExpiresAt.Time.Before(time.Now()) {
		response.Error(w, http.StatusForbidden, "SUBSCRIPTION_EXPIRED", "Restaurant subscription has expired")
		return
	}

	if userRole.TimeBoxed() {
		tz := h.Config.DefaultTimezone
		if timezone.Valid && strings.TrimSpace(timezone.String) != "" {
			tz = timezone.String
		}
		loc := utils.LocationOrUTC(tz)
		window := auth.ShiftWindow{
			Start:    shiftStart.String,
			End:      shiftEnd.String,
			RestDays: auth.ParseRestDays(int32sToInts(restDays)),
		}
		now := time.Now()
		if !auth.WithinShift(now, loc, window) {
			shiftErr := &apperr.ShiftClosedError{}
			if next, ok := auth.NextShiftStart(now, loc, window); ok {
				shiftErr.Wait = next.Sub(now)
			}
			h.writeEngineError(w, shiftErr)
			return
		}
	}

	claims := auth.Claims{UserID: userID, Role: userRole, Email: req.Email}
	if restaurantID.Valid {
		id := restaurantID.Int64
		claims.RestaurantID = &id
	}
	token, err := auth.SignAccessToken(claims, h.Config.JWTSecret, time.Duration(h.Config.JWTExpirySeconds)*time.Second)
	if err != nil {
		h.Logger.Error("token signing failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	response.Success(w, loginResponse{
		Token: token,
		User: loginUser{
			ID:           userID,
			Name:         name,
			Email:        req.Email,
			Role:         role,
			RestaurantID: claims.RestaurantID,
		},
	})
}

func int32sToInts(values []int32) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}
