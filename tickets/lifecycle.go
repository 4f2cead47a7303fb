package tickets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tessera/db"
	"tessera/models"
	"tessera/mq"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Claim issues a ticket for holderID on the event, consuming one
// capacity slot. Preconditions run in order: the event must be
// claimable, the holder must not already occupy a slot, and the
// reservation must succeed. The reservation and the insert form one
// atomic unit: the partial unique index on (eventid, holderid) catches
// the duplicate-claim race the pre-check cannot, and a losing insert
// rolls the reservation back.
func Claim(ctx context.Context, eventID, holderID string) (*models.Ticket, error) {
	var event models.Event
	err := db.EventsCollection.FindOne(ctx, bson.M{"eventid": eventID}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("claim: load event: %w", err)
	}

	if !event.Claimable(time.Now().UTC()) {
		return nil, ErrEventNotClaimable
	}

	// Fast-path duplicate check; the index below is the real guard.
	occupied, err := holderOccupies(ctx, eventID, holderID)
	if err != nil {
		return nil, err
	}
	if occupied {
		return nil, ErrAlreadyClaimed
	}

	if err := reserveSlot(ctx, eventID); err != nil {
		// The holder's own concurrent claim may have taken the last
		// slot between the check above and the reservation. A holder
		// who now owns a ticket is a duplicate, not a sold-out loser.
		if errors.Is(err, ErrSoldOut) {
			occupied, cErr := holderOccupies(ctx, eventID, holderID)
			if cErr == nil && occupied {
				return nil, ErrAlreadyClaimed
			}
		}
		return nil, err
	}

	issuedAt := time.Now().UTC().Truncate(time.Second)
	ticket := &models.Ticket{
		TicketID: uuid.New().String(),
		EventID:  eventID,
		HolderID: holderID,
		Status:   models.TicketActive,
		Price:    event.TicketPrice,
		Currency: event.Currency,
		IssuedAt: issuedAt,
	}
	ticket.QRPayload = EncodeCredential(ticket.TicketID, ticket.EventID, ticket.HolderID, issuedAt)

	_, err = db.TicketsCollection.InsertOne(ctx, ticket)
	if err != nil {
		if rbErr := releaseSlot(ctx, eventID, 1); rbErr != nil {
			log.Printf("claim: slot rollback failed for event %s: %v", eventID, rbErr)
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("claim: insert ticket: %w", err)
	}

	go mq.Emit(context.Background(), "ticket-claimed", models.Index{
		EntityType: "ticket", EntityId: ticket.TicketID,
		ItemType: "event", ItemId: eventID,
	})
	broadcastCapacity(ctx, eventID)

	return ticket, nil
}

// Redeem marks the ticket behind the credential as used. The scope
// check runs first; the transition itself is one conditional update
// keyed on the stored payload string, the event id, and active status,
// so of two concurrent scans exactly one wins and the loser sees
// ErrNotActive.
func Redeem(ctx context.Context, payload string, principal *Principal) (*models.Ticket, error) {
	cred, err := DecodeCredential(payload)
	if err != nil {
		return nil, err
	}

	var stored models.Ticket
	err = db.TicketsCollection.FindOne(ctx, bson.M{"qr_payload": payload}).Decode(&stored)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("redeem: lookup ticket: %w", err)
	}

	var event models.Event
	err = db.EventsCollection.FindOne(ctx, bson.M{"eventid": stored.EventID}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("redeem: load event: %w", err)
	}

	if err := authorizeScan(principal, &event); err != nil {
		return nil, err
	}

	if eventOver(&event, time.Now().UTC()) {
		return nil, ErrEventPassed
	}

	now := time.Now().UTC()
	filter := bson.M{
		"qr_payload": payload,
		"eventid":    cred.EventID,
		"status":     models.TicketActive,
	}
	update := bson.M{"$set": bson.M{
		"status":  models.TicketUsed,
		"used_at": now,
		"used_by": principal.UserID,
	}}

	var updated models.Ticket
	err = db.TicketsCollection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// The ticket exists but was not active at write time:
			// already scanned, cancelled, or expired.
			return nil, ErrNotActive
		}
		return nil, fmt.Errorf("redeem: transition: %w", err)
	}

	go mq.Emit(context.Background(), "ticket-redeemed", models.Index{
		EntityType: "ticket", EntityId: updated.TicketID,
		ItemType: "event", ItemId: updated.EventID,
	})

	return &updated, nil
}

// Cancel is the administrative transition active -> cancelled. The
// authorization policy (who may cancel) lives with the caller; the
// engine only guarantees the transition happens at most once and frees
// the capacity slot exactly when it does.
func Cancel(ctx context.Context, ticketID, actingUserID string) (*models.Ticket, error) {
	filter := bson.M{"ticketid": ticketID, "status": models.TicketActive}
	update := bson.M{"$set": bson.M{"status": models.TicketCancelled}}

	var updated models.Ticket
	err := db.TicketsCollection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			count, cErr := db.TicketsCollection.CountDocuments(ctx, bson.M{"ticketid": ticketID})
			if cErr == nil && count == 0 {
				return nil, ErrTicketNotFound
			}
			return nil, ErrNotActive
		}
		return nil, fmt.Errorf("cancel: transition: %w", err)
	}

	if err := releaseSlot(ctx, updated.EventID, 1); err != nil {
		log.Printf("cancel: slot release failed for event %s: %v", updated.EventID, err)
	}
	log.Printf("ticket %s cancelled by %s", updated.TicketID, actingUserID)

	go mq.Emit(context.Background(), "ticket-cancelled", models.Index{
		EntityType: "ticket", EntityId: updated.TicketID,
		ItemType: "event", ItemId: updated.EventID,
	})
	broadcastCapacity(ctx, updated.EventID)

	return &updated, nil
}

// ExpireLapsedTickets moves active tickets of events whose window has
// closed to expired and returns their slots. Run periodically from
// main; each pass is idempotent.
func ExpireLapsedTickets(ctx context.Context) error {
	// Events without an explicit end close at their start time,
	// matching eventOver.
	now := time.Now().UTC()
	cur, err := db.EventsCollection.Find(ctx, bson.M{
		"$or": bson.A{
			bson.M{"end_date_time": bson.M{"$lt": now, "$gt": time.Time{}}},
			bson.M{
				"end_date_time": bson.M{"$lte": time.Time{}},
				"date":          bson.M{"$lt": now},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("expire sweep: list events: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var event models.Event
		if err := cur.Decode(&event); err != nil {
			return fmt.Errorf("expire sweep: decode event: %w", err)
		}

		res, err := db.TicketsCollection.UpdateMany(ctx,
			bson.M{"eventid": event.EventID, "status": models.TicketActive},
			bson.M{"$set": bson.M{"status": models.TicketExpired}},
		)
		if err != nil {
			return fmt.Errorf("expire sweep: event %s: %w", event.EventID, err)
		}
		if res.ModifiedCount > 0 {
			if err := releaseSlot(ctx, event.EventID, int(res.ModifiedCount)); err != nil {
				log.Printf("expire sweep: slot release failed for event %s: %v", event.EventID, err)
			}
			log.Printf("expire sweep: expired %d tickets for event %s", res.ModifiedCount, event.EventID)
		}
	}
	return cur.Err()
}

// holderOccupies reports whether the holder already has a ticket in a
// capacity-occupying status for the event.
func holderOccupies(ctx context.Context, eventID, holderID string) (bool, error) {
	count, err := db.TicketsCollection.CountDocuments(ctx, bson.M{
		"eventid":  eventID,
		"holderid": holderID,
		"status":   bson.M{"$in": bson.A{models.TicketActive, models.TicketUsed}},
	})
	if err != nil {
		return false, fmt.Errorf("claim: duplicate check: %w", err)
	}
	return count > 0, nil
}

// eventOver reports whether the event's scheduled window has elapsed.
// Events without an explicit end time close at their start time.
func eventOver(e *models.Event, now time.Time) bool {
	cutoff := e.EndDateTime
	if cutoff.IsZero() {
		cutoff = e.Date
	}
	return now.After(cutoff)
}
