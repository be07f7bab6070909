package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imenu-order-services/internal/config"
	"imenu-order-services/internal/db"
	"imenu-order-services/internal/events"
	httpapi "imenu-order-services/internal/http"
	"imenu-order-services/internal/http/handlers"
	"imenu-order-services/internal/logger"
	"imenu-order-services/internal/orders"
	"imenu-order-services/internal/payroll"
	"imenu-order-services/internal/queue"
	"imenu-order-services/internal/reservations"
	"imenu-order-services/internal/stock"
	"imenu-order-services/internal/ws"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	var queueClient *queue.Client
	if cfg.RabbitMQURL != "" {
		log.Info("rabbitmq enabled", zap.String("eventsQueue", queue.NotificationsQueue))
		qc, err := queue.New(cfg.RabbitMQURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; continuing without worker", zap.Error(err))
			qc = nil
		}
		if qc != nil {
			if err := queue.EnsureEventsTopology(ctx, qc); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq topology failed", zap.Error(err))
				}
				log.Warn("rabbitmq topology failed; continuing without worker", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}

		queueClient = qc
		if qc != nil {
			defer qc.Close()
		}

		if queueClient != nil {
			if cfg.RabbitMQWorkerMode == "daemon" {
				log.Info("notification worker enabled", zap.String("mode", "daemon"))
				go func() {
					err := queueClient.ConsumeWithRetry(queue.NotificationsQueue, func(ctx context.Context, body []byte) error {
						return queue.StoreNotification(ctx, pool, body)
					}, 5, 5*time.Second)
					if err != nil {
						log.Error("consumer stopped", zap.Error(err))
					}
				}()
			} else {
				log.Info("notification worker disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
			}
		}
	} else {
		log.Info("notification worker disabled (RABBITMQ_URL is empty)")
	}

	wsServer := ws.New(log, cfg)
	publisher := events.Fanout{wsServer, &queue.Publisher{Client: queueClient}}

	stockLedger := stock.NewLedger(stock.NewPGStore(pool), log, publisher)
	ordersEngine := orders.NewEngine(orders.NewPGStore(pool), stockLedger, log, publisher)
	payrollEngine := payroll.NewEngine(payroll.NewPGStore(pool), log, publisher)
	reservationsEngine := reservations.NewEngine(reservations.NewPGStore(pool), log, publisher)

	h := &handlers.Handler{
		DB:           pool,
		Logger:       log,
		Config:       cfg,
		Queue:        queueClient,
		Orders:       ordersEngine,
		Stock:        stockLedger,
		Payroll:      payrollEngine,
		Reservations: reservationsEngine,
		Validate:     validator.New(),
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(h, log, cfg, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("restaurant api ready", zap.String("base", "/api"))
		log.Info("restaurant ws ready", zap.String("base", "/ws"))
		log.Info("service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
