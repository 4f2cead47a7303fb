package mq

import (
	"context"
	"encoding/json"
	"log"

	"tessera/models"
	"tessera/rdx"
)

const ticketEventsChannel = "ticket-events"

// Emit publishes a lifecycle event to the Redis stream consumed by the
// notifications worker. Failures are logged, never surfaced: the
// notification feed is derived data and must not fail a claim or a
// redemption that already committed.
func Emit(ctx context.Context, eventName string, content models.Index) {
	content.Method = eventName

	data, err := json.Marshal(content)
	if err != nil {
		log.Printf("[Emit] Failed to marshal event content: %v", err)
		return
	}

	if err := rdx.Conn.Publish(ctx, ticketEventsChannel, data).Err(); err != nil {
		log.Printf("[Emit] Failed to publish %s to Redis: %v", eventName, err)
	}
}

// StartNotificationWorker drains the lifecycle stream. Delivery to
// users is out of scope; the worker is the hand-off point.
func StartNotificationWorker(ctx context.Context) {
	sub := rdx.Conn.Subscribe(ctx, ticketEventsChannel)
	ch := sub.Channel()

	log.Println("[NotificationWorker] Listening for ticket events...")

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.Index
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("[NotificationWorker] Failed to parse event: %v", err)
				continue
			}
			log.Printf("[NotificationWorker] %s %s/%s", event.Method, event.EntityType, event.EntityId)
		case <-ctx.Done():
			_ = sub.Close()
			return
		}
	}
}
