package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const retryHeader = "x-retry-count"

type HandlerFunc func(ctx context.Context, body []byte) error

// ConsumeWithRetry processes a queue until the channel closes. A failed
// message is republished with an incremented retry counter after
// retryDelay; once maxRetries is exhausted it is nacked without requeue so
// the queue's dead-letter exchange takes it.
func (c *Client) ConsumeWithRetry(queue string, handler HandlerFunc, maxRetries int, retryDelay time.Duration) error {
	deliveries, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for delivery := range deliveries {
		ctx := context.Background()
		if err := handler(ctx, delivery.Body); err == nil {
			_ = delivery.Ack(false)
			continue
		}

		attempts := retryCount(delivery.Headers)
		if attempts >= maxRetries {
			_ = delivery.Nack(false, false)
			continue
		}

		headers := delivery.Headers
		if headers == nil {
			headers = amqp.Table{}
		}
		headers[retryHeader] = attempts + 1

		time.Sleep(retryDelay)
		_ = c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
			ContentType: delivery.ContentType,
			Body:        delivery.Body,
			Headers:     headers,
			Timestamp:   time.Now(),
		})
		_ = delivery.Ack(false)
	}

	return errors.New("consumer closed")
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
