package tickets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tessera/db"
	"tessera/models"
	"tessera/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// These tests exercise the engine's atomicity guarantees against a
// live MongoDB. Set TESSERA_TEST_MONGO=1 (and MONGODB_URI if not
// localhost) to run them.

func requireMongo(t *testing.T) {
	t.Helper()
	if os.Getenv("TESSERA_TEST_MONGO") == "" {
		t.Skip("set TESSERA_TEST_MONGO=1 to run MongoDB integration tests")
	}
}

func resetCollections(t *testing.T, ctx context.Context) {
	t.Helper()
	require.NoError(t, db.TicketsCollection.Drop(ctx))
	require.NoError(t, db.EventsCollection.Drop(ctx))
	require.NoError(t, db.EnsureIndexes(ctx))
}

func insertTestEvent(t *testing.T, ctx context.Context, capacity int) *models.Event {
	t.Helper()
	now := time.Now().UTC()
	event := &models.Event{
		EventID:     utils.GenerateID(14),
		Title:       "Orientation Night",
		Venue:       "Main Hall",
		Date:        now.Add(24 * time.Hour),
		EndDateTime: now.Add(28 * time.Hour),
		OrgID:       "org-a",
		CreatorID:   "organizer-1",
		Capacity:    capacity,
		TicketPrice: 5,
		Currency:    "USD",
		Status:      models.EventPublished,
		Approved:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := db.EventsCollection.InsertOne(ctx, event)
	require.NoError(t, err)
	return event
}

func countOccupying(t *testing.T, ctx context.Context, eventID string) int64 {
	t.Helper()
	count, err := db.TicketsCollection.CountDocuments(ctx, bson.M{
		"eventid": eventID,
		"status":  bson.M{"$in": bson.A{models.TicketActive, models.TicketUsed}},
	})
	require.NoError(t, err)
	return count
}

func TestConcurrentClaimsNeverOversell(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	const capacity = 5
	const claimants = 20
	event := insertTestEvent(t, ctx, capacity)

	var wg sync.WaitGroup
	var succeeded, soldOut, other int64

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := Claim(ctx, event.EventID, fmt.Sprintf("holder-%d", i))
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, ErrSoldOut):
				atomic.AddInt64(&soldOut, 1)
			default:
				atomic.AddInt64(&other, 1)
				t.Errorf("unexpected claim error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, capacity, succeeded)
	assert.EqualValues(t, claimants-capacity, soldOut)
	assert.EqualValues(t, 0, other)
	assert.EqualValues(t, capacity, countOccupying(t, ctx, event.EventID))

	status, err := CapacityStatus(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, capacity, status.Issued)
	assert.Equal(t, 0, status.Remaining)
}

func TestConcurrentDuplicateClaims(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	event := insertTestEvent(t, ctx, 50)

	const attempts = 10
	var wg sync.WaitGroup
	var succeeded, duplicate int64

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Claim(ctx, event.EventID, "holder-1")
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, ErrAlreadyClaimed):
				atomic.AddInt64(&duplicate, 1)
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded)
	assert.EqualValues(t, attempts-1, duplicate)
	assert.EqualValues(t, 1, countOccupying(t, ctx, event.EventID))

	// A later retry is still rejected.
	_, err := Claim(ctx, event.EventID, "holder-1")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	// The losing reservations were rolled back.
	status, err := CapacityStatus(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Issued)
}

func TestSameHolderRaceForLastSlot(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	event := insertTestEvent(t, ctx, 1)

	// One holder races itself for the last slot. The loser must be
	// told it already holds a ticket, never that the event sold out.
	const attempts = 8
	var wg sync.WaitGroup
	var succeeded, duplicate int64

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Claim(ctx, event.EventID, "holder-1")
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, ErrAlreadyClaimed):
				atomic.AddInt64(&duplicate, 1)
			default:
				t.Errorf("same-holder claim failed with %v, want ErrAlreadyClaimed", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded)
	assert.EqualValues(t, attempts-1, duplicate)
	assert.EqualValues(t, 1, countOccupying(t, ctx, event.EventID))

	// The slot is genuinely taken: another holder sees sold out.
	_, err := Claim(ctx, event.EventID, "holder-2")
	assert.ErrorIs(t, err, ErrSoldOut)
}

func TestRedeemAfterEventEnds(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	event := insertTestEvent(t, ctx, 10)
	ticket, err := Claim(ctx, event.EventID, "holder-1")
	require.NoError(t, err)

	// Move the event's window into the past after issuance.
	now := time.Now().UTC()
	_, err = db.EventsCollection.UpdateOne(ctx,
		bson.M{"eventid": event.EventID},
		bson.M{"$set": bson.M{
			"date":          now.Add(-4 * time.Hour),
			"end_date_time": now.Add(-time.Hour),
		}})
	require.NoError(t, err)

	scanner := &Principal{UserID: "organizer-1", Role: []string{"organizer"}, OrgID: "org-a"}
	_, err = Redeem(ctx, ticket.QRPayload, scanner)
	assert.ErrorIs(t, err, ErrEventPassed)

	// The rejected scan must not have touched the ticket.
	var stored models.Ticket
	require.NoError(t, db.TicketsCollection.FindOne(ctx, bson.M{
		"ticketid": ticket.TicketID,
	}).Decode(&stored))
	assert.Equal(t, models.TicketActive, stored.Status)
	assert.Nil(t, stored.UsedAt)
}

func TestExpireSweepsEventsWithoutEndTime(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	// A past event that never set an explicit end time.
	now := time.Now().UTC()
	event := &models.Event{
		EventID:       utils.GenerateID(14),
		Title:         "Open Mic",
		Venue:         "Quad",
		Date:          now.Add(-2 * time.Hour),
		OrgID:         "org-a",
		CreatorID:     "organizer-1",
		Capacity:      5,
		TicketsIssued: 1,
		Status:        models.EventPublished,
		Approved:      true,
	}
	_, err := db.EventsCollection.InsertOne(ctx, event)
	require.NoError(t, err)

	issuedAt := now.Add(-3 * time.Hour).Truncate(time.Second)
	ticket := &models.Ticket{
		TicketID: "tick-endless",
		EventID:  event.EventID,
		HolderID: "holder-1",
		Status:   models.TicketActive,
		IssuedAt: issuedAt,
	}
	ticket.QRPayload = EncodeCredential(ticket.TicketID, ticket.EventID, ticket.HolderID, issuedAt)
	_, err = db.TicketsCollection.InsertOne(ctx, ticket)
	require.NoError(t, err)

	require.NoError(t, ExpireLapsedTickets(ctx))

	var stored models.Ticket
	require.NoError(t, db.TicketsCollection.FindOne(ctx, bson.M{
		"ticketid": ticket.TicketID,
	}).Decode(&stored))
	assert.Equal(t, models.TicketExpired, stored.Status)

	status, err := CapacityStatus(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Issued)
	assert.Equal(t, 5, status.Remaining)
}

func TestConcurrentRedeemExactlyOnce(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	event := insertTestEvent(t, ctx, 10)
	ticket, err := Claim(ctx, event.EventID, "holder-1")
	require.NoError(t, err)

	scanner := &Principal{UserID: "organizer-1", Role: []string{"organizer"}, OrgID: "org-a"}

	const scans = 2
	var wg sync.WaitGroup
	var succeeded, notActive int64

	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Redeem(ctx, ticket.QRPayload, scanner)
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, ErrNotActive):
				atomic.AddInt64(&notActive, 1)
			default:
				t.Errorf("unexpected redeem error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded)
	assert.EqualValues(t, 1, notActive)

	var stored models.Ticket
	require.NoError(t, db.TicketsCollection.FindOne(ctx, bson.M{
		"ticketid": ticket.TicketID,
	}).Decode(&stored))
	assert.Equal(t, models.TicketUsed, stored.Status)
	assert.NotNil(t, stored.UsedAt)
	assert.Equal(t, "organizer-1", stored.UsedBy)
}

func TestRedeemWrongOrganization(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	event := insertTestEvent(t, ctx, 10)
	ticket, err := Claim(ctx, event.EventID, "holder-1")
	require.NoError(t, err)

	outsider := &Principal{UserID: "organizer-9", Role: []string{"organizer"}, OrgID: "org-b"}
	_, err = Redeem(ctx, ticket.QRPayload, outsider)
	assert.ErrorIs(t, err, ErrWrongScope)

	// The failed scan must not have consumed the ticket.
	insider := &Principal{UserID: "organizer-1", Role: []string{"organizer"}, OrgID: "org-a"}
	_, err = Redeem(ctx, ticket.QRPayload, insider)
	assert.NoError(t, err)
}

func TestCancelFreesCapacitySlot(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	event := insertTestEvent(t, ctx, 1)

	first, err := Claim(ctx, event.EventID, "holder-1")
	require.NoError(t, err)

	_, err = Claim(ctx, event.EventID, "holder-2")
	assert.ErrorIs(t, err, ErrSoldOut)

	_, err = Cancel(ctx, first.TicketID, "admin-1")
	require.NoError(t, err)

	status, err := CapacityStatus(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Issued)
	assert.Equal(t, 1, status.Remaining)

	// The freed slot is claimable again.
	_, err = Claim(ctx, event.EventID, "holder-2")
	assert.NoError(t, err)
}

func TestCapacityOneScenario(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	event := insertTestEvent(t, ctx, 1)

	ticket, err := Claim(ctx, event.EventID, "holder-1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketActive, ticket.Status)

	status, err := CapacityStatus(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Issued)
	assert.Equal(t, 0, status.Remaining)

	_, err = Claim(ctx, event.EventID, "holder-2")
	assert.ErrorIs(t, err, ErrSoldOut)

	scanner := &Principal{UserID: "organizer-1", Role: []string{"organizer"}, OrgID: "org-a"}
	redeemed, err := Redeem(ctx, ticket.QRPayload, scanner)
	require.NoError(t, err)
	assert.Equal(t, models.TicketUsed, redeemed.Status)

	_, err = Redeem(ctx, ticket.QRPayload, scanner)
	assert.ErrorIs(t, err, ErrNotActive)

	// A used ticket still occupies its slot.
	status, err = CapacityStatus(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Remaining)
}

func TestRedeemUnknownCredential(t *testing.T) {
	requireMongo(t)
	ctx := context.Background()
	resetCollections(t, ctx)

	insertTestEvent(t, ctx, 10)

	// Well-formed but never issued.
	payload := EncodeCredential("ghost-ticket", "ghost-event", "ghost-holder", time.Now())
	scanner := &Principal{UserID: "organizer-1", Role: []string{"organizer"}, OrgID: "org-a"}

	_, err := Redeem(ctx, payload, scanner)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}
