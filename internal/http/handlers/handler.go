package handlers

import (
	"imenu-order-services/internal/config"
	"imenu-order-services/internal/orders"
	"imenu-order-services/internal/payroll"
	"imenu-order-services/internal/queue"
	"imenu-order-services/internal/reservations"
	"imenu-order-services/internal/stock"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Queue  *queue.Client

	Orders       *orders.Engine
	Stock        *stock.Ledger
	Payroll      *payroll.Engine
	Reservations *reservations.Engine

	Validate *validator.Validate
}
