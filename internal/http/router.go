package httpapi

import (
	"net/http"

	"imenu-order-services/internal/auth"
	"imenu-order-services/internal/config"
	"imenu-order-services/internal/http/handlers"
	"imenu-order-services/internal/middleware"
	"imenu-order-services/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, logger *zap.Logger, cfg config.Config, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/orders", h.OrderPlace)
		r.Post("/reservations", h.ReservationRequest)
		r.Get("/reservations/{restaurantId}/availability", h.ReservationAvailability)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(h.DB, cfg.JWTSecret))

		r.Post("/orders", h.OrderPlace)
		r.Get("/orders/active", h.OrdersActive)
		r.Get("/orders/history", h.OrdersHistory)
		r.Post("/orders/{orderId}/cancel", h.OrderCancel)
		r.Put("/orders/{orderId}/items", h.OrderEditItems)
		r.Put("/orders/{orderId}/status", h.OrderAdvanceStatus)

		r.Get("/stock", h.StockItemsList)
		r.Post("/stock", h.StockItemCreate)
		r.Delete("/stock/{itemId}", h.StockItemDelete)
		r.Post("/stock/{itemId}/adjust", h.StockAdjust)
		r.Get("/stock/logs", h.StockLogsList)

		r.Get("/reservations", h.ReservationsList)
		r.Put("/reservations/{reservationId}/approve", h.ReservationApprove)
		r.Put("/reservations/{reservationId}/reject", h.ReservationReject)
		r.Put("/reservations/{reservationId}/complete", h.ReservationComplete)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(auth.RoleAdmin, auth.RoleOwner))

			r.Get("/employees", h.EmployeesList)
			r.Post("/employees", h.EmployeeCreate)
			r.Get("/employees/{employeeId}", h.EmployeeGet)
			r.Put("/employees/{employeeId}", h.EmployeeUpdate)
			r.Delete("/employees/{employeeId}", h.EmployeeDeactivate)

			r.Post("/attendance/check-in", h.AttendanceCheckIn)
			r.Post("/attendance/check-out", h.AttendanceCheckOut)
			r.Post("/attendance/absent", h.AttendanceMarkAbsent)
			r.Get("/attendance", h.AttendanceList)

			r.Post("/payroll/generate", h.PayrollGenerate)
			r.Post("/payroll/approve", h.PayrollApprove)
			r.Get("/payroll", h.PayrollList)
			r.Get("/payroll/payslip/{employeeId}", h.PayrollPayslipPDF)

			r.Get("/expenses", h.ExpensesList)
			r.Post("/expenses", h.ExpenseCreate)
			r.Delete("/expenses/{expenseId}", h.ExpenseDelete)
		})
	})

	r.Route("/api/cron", func(r chi.Router) {
		r.Use(middleware.CronAuth(cfg.CronSecret))
		r.Post("/reservations/reset", h.CronResetReservations)
		r.Post("/subscriptions/sweep", h.CronSubscriptionSweep)
	})

	if wsServer != nil {
		r.Get("/ws/restaurant", wsServer.RestaurantWS)
	}

	return r
}
