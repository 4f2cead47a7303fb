package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	UserCollection    *mongo.Collection
	EventsCollection  *mongo.Collection
	TicketsCollection *mongo.Collection
	Client            *mongo.Client
)

// Initialize MongoDB connection
func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	var err error
	Client, err = mongo.Connect(context.TODO(), options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	UserCollection = Client.Database("tesseradb").Collection("users")
	EventsCollection = Client.Database("tesseradb").Collection("events")
	TicketsCollection = Client.Database("tesseradb").Collection("tickets")
}

// EnsureIndexes creates the indexes the ticketing engine depends on.
// The partial unique index on (eventid, holderid) is the storage-level
// duplicate-claim guard: it only covers tickets in active or used
// status, so cancelled and expired tickets do not block a re-claim.
func EnsureIndexes(ctx context.Context) error {
	_, err := UserCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_userid_unique"),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_username_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	_, err = EventsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "eventid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("events_eventid_unique"),
		},
		{
			Keys:    bson.D{{Key: "date", Value: 1}},
			Options: options.Index().SetName("events_date"),
		},
	})
	if err != nil {
		return fmt.Errorf("events indexes: %w", err)
	}

	_, err = TicketsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ticketid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("tickets_ticketid_unique"),
		},
		{
			Keys:    bson.D{{Key: "qr_payload", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("tickets_qr_payload_unique"),
		},
		{
			Keys: bson.D{{Key: "eventid", Value: 1}, {Key: "holderid", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("tickets_event_holder_live_unique").
				SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": bson.A{"active", "used"}},
				}),
		},
		{
			Keys:    bson.D{{Key: "holderid", Value: 1}},
			Options: options.Index().SetName("tickets_holder"),
		},
	})
	if err != nil {
		return fmt.Errorf("tickets indexes: %w", err)
	}
	return nil
}
