package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"imenu-order-services/internal/events"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "imenu.events"

	NotificationsQueue  = "imenu.notifications.store"
	NotificationsDLQ    = "imenu.notifications.dlq"
	NotificationsRK     = "restaurant.#"
	NotificationsDeadRK = "dead"
	notificationsDLX    = "imenu.notifications.dead"
)

// EnsureEventsTopology declares the event exchange plus the durable
// notifications queue that persists a copy of every tenant event.
func EnsureEventsTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}

	if err := qc.EnsureExchangeKind(EventsExchange, "topic"); err != nil {
		return err
	}
	if err := qc.EnsureExchangeKind(notificationsDLX, "direct"); err != nil {
		return err
	}

	if _, err := qc.EnsureQueue(NotificationsDLQ); err != nil {
		return err
	}
	if err := qc.BindQueue(NotificationsDLQ, notificationsDLX, NotificationsDeadRK); err != nil {
		return err
	}

	_, err := qc.EnsureQueueWithArgs(NotificationsQueue, amqp.Table{
		"x-dead-letter-exchange":    notificationsDLX,
		"x-dead-letter-routing-key": NotificationsDeadRK,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(NotificationsQueue, EventsExchange, NotificationsRK)
}

// Publisher mirrors tenant events onto the AMQP exchange so out-of-process
// consumers (notification workers, analytics) see the same stream the
// websocket clients do. Implements events.Publisher; publish failures are
// swallowed, the broker is not on the request path.
type Publisher struct {
	Client *Client
}

func (p *Publisher) Publish(ctx context.Context, restaurantID int64, event string, payload any) {
	if p == nil || p.Client == nil {
		return
	}
	envelope := events.NewEnvelope(restaurantID, event, payload)
	routingKey := fmt.Sprintf("restaurant.%d.%s", restaurantID, event)
	_ = p.Client.PublishJSON(ctx, EventsExchange, routingKey, envelope)
}

// StoreNotification drains one event envelope into the notifications
// table. Order-facing and reservation-facing events become rows the
// dashboard can list; everything else is acked and dropped.
func StoreNotification(ctx context.Context, db *pgxpool.Pool, body []byte) error {
	if db == nil {
		return nil
	}

	var envelope events.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	if strings.TrimSpace(envelope.Event) == "" || envelope.RestaurantID == 0 {
		// unknown envelope, drop it
		return nil
	}

	title := notificationTitle(envelope.Event)
	if title == "" {
		return nil
	}

	payload, err := json.Marshal(envelope.Payload)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx,
		`insert into notifications (event_id, restaurant_id, event, title, payload, created_at)
		 values ($1, $2, $3, $4, $5, $6)
		 on conflict (event_id) do nothing`,
		envelope.ID, envelope.RestaurantID, envelope.Event, title, payload, envelope.EmittedAt,
	)
	if err != nil {
		return err
	}
	return nil
}

func notificationTitle(event string) string {
	switch event {
	case events.NewOrder:
		return "New order placed"
	case events.ItemsAdded:
		return "Items added to an open order"
	case events.StatusChanged:
		return "Order status changed"
	case events.OrderCanceled:
		return "Order canceled"
	case events.LowStock:
		return "Stock item below alert level"
	case events.NewReservation:
		return "New reservation request"
	case events.ReservationUpdated:
		return "Reservation updated"
	case events.PayrollGenerated:
		return "Payroll generated"
	default:
		return ""
	}
}
