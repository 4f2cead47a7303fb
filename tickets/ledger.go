package tickets

import (
	"context"
	"errors"
	"fmt"

	"tessera/db"
	"tessera/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// reserveSlot consumes one capacity slot for the event with a single
// conditional update: tickets_issued is incremented only while it is
// strictly below capacity, so two concurrent claims can never both
// pass the check when one slot remains. MatchedCount == 0 means the
// event is sold out (the caller has already established the event
// exists and is claimable).
func reserveSlot(ctx context.Context, eventID string) error {
	filter := bson.M{
		"eventid": eventID,
		"$expr":   bson.M{"$lt": bson.A{"$tickets_issued", "$capacity"}},
	}
	update := bson.M{"$inc": bson.M{"tickets_issued": 1}}

	res, err := db.EventsCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrSoldOut
	}
	return nil
}

// releaseSlot returns a capacity slot, either to roll back a
// reservation whose ticket insert lost the duplicate-claim race, or
// because a ticket left the occupies-capacity set (cancelled or
// expired). The floor guard keeps a stray double release from driving
// the counter negative.
func releaseSlot(ctx context.Context, eventID string, n int) error {
	filter := bson.M{
		"eventid": eventID,
		"$expr":   bson.M{"$gte": bson.A{"$tickets_issued", n}},
	}
	update := bson.M{"$inc": bson.M{"tickets_issued": -n}}

	if _, err := db.EventsCollection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// CapacityStatus reports issued vs. remaining slots for an event.
// Issued counts tickets in active or used status; the event document's
// counter is kept in lockstep with those transitions by reserveSlot
// and releaseSlot.
func CapacityStatus(ctx context.Context, eventID string) (*models.CapacityStatus, error) {
	var event models.Event
	err := db.EventsCollection.FindOne(ctx, bson.M{"eventid": eventID}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("capacity status: %w", err)
	}

	remaining := event.Capacity - event.TicketsIssued
	if remaining < 0 {
		remaining = 0
	}

	return &models.CapacityStatus{
		EventID:   event.EventID,
		Capacity:  event.Capacity,
		Issued:    event.TicketsIssued,
		Remaining: remaining,
	}, nil
}
