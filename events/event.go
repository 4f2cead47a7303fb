package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tessera/db"
	"tessera/globals"
	"tessera/models"
	"tessera/mq"
	"tessera/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// POST /api/events/event
func CreateEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var event models.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}

	requestingUserID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	roles, _ := r.Context().Value(globals.RoleKey).([]string)
	if !utils.Contains(roles, "organizer") {
		utils.RespondWithError(w, http.StatusForbidden, "Organizer role required")
		return
	}

	orgID, _ := r.Context().Value(globals.OrgIDKey).(string)
	if orgID == "" {
		utils.RespondWithError(w, http.StatusForbidden, "No organization membership")
		return
	}

	if event.Title == "" || event.Venue == "" {
		http.Error(w, "Title and venue are required", http.StatusBadRequest)
		return
	}
	if event.Capacity < 1 {
		http.Error(w, "Capacity must be at least 1", http.StatusBadRequest)
		return
	}
	if event.TicketPrice < 0 {
		http.Error(w, "Ticket price cannot be negative", http.StatusBadRequest)
		return
	}
	if !event.Date.After(time.Now()) {
		http.Error(w, "Event date must be in the future", http.StatusBadRequest)
		return
	}

	event.EventID = utils.GenerateID(14)
	event.CreatorID = requestingUserID
	event.OrgID = orgID
	event.Status = models.EventDraft
	event.Approved = false
	event.TicketsIssued = 0
	event.Date = event.Date.UTC()
	event.EndDateTime = event.EndDateTime.UTC()
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	if event.Tags == nil {
		event.Tags = []string{}
	}

	if _, err := db.EventsCollection.InsertOne(r.Context(), event); err != nil {
		http.Error(w, "Failed to create event: "+err.Error(), http.StatusInternalServerError)
		return
	}

	go mq.Emit(context.Background(), "event-created", models.Index{
		EntityType: "event", EntityId: event.EventID,
	})

	utils.RespondWithJSON(w, http.StatusCreated, event)
}

// GET /api/events/event/:eventid
func GetEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID := ps.ByName("eventid")

	var event models.Event
	err := db.EventsCollection.FindOne(r.Context(), bson.M{"eventid": eventID}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			http.Error(w, "Event not found", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, event)
}

// GET /api/events
func GetEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter := bson.M{"status": models.EventPublished, "approved": true}
	listEvents(w, r, filter)
}

// GET /api/events/mine — the organizer's own events, any status.
func GetMyEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestingUserID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}
	listEvents(w, r, bson.M{"creatorid": requestingUserID})
}

func listEvents(w http.ResponseWriter, r *http.Request, filter bson.M) {
	cursor, err := db.EventsCollection.Find(r.Context(), filter)
	if err != nil {
		http.Error(w, "Failed to fetch events", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(r.Context())

	var eventList []models.Event
	for cursor.Next(r.Context()) {
		var e models.Event
		if err := cursor.Decode(&e); err != nil {
			http.Error(w, "Failed to decode event", http.StatusInternalServerError)
			return
		}
		eventList = append(eventList, e)
	}
	if err := cursor.Err(); err != nil {
		http.Error(w, "Cursor error", http.StatusInternalServerError)
		return
	}

	if len(eventList) == 0 {
		eventList = []models.Event{}
	}
	utils.RespondWithJSON(w, http.StatusOK, eventList)
}
