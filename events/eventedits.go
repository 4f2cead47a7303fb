package events

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tessera/db"
	"tessera/globals"
	"tessera/models"
	"tessera/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// PUT /api/events/event/:eventid
// Only the creator may edit, and capacity may never drop below the
// number of already-issued tickets.
func EditEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID := ps.ByName("eventid")

	requestingUserID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	var patch models.Event
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid input data", http.StatusBadRequest)
		return
	}

	var existing models.Event
	err := db.EventsCollection.FindOne(r.Context(), bson.M{"eventid": eventID}).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			http.Error(w, "Event not found", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	if existing.CreatorID != requestingUserID {
		utils.RespondWithError(w, http.StatusForbidden, "Only the event creator can edit this event")
		return
	}

	updateFields := bson.M{}
	if patch.Title != "" && patch.Title != existing.Title {
		updateFields["title"] = patch.Title
	}
	if patch.Description != "" && patch.Description != existing.Description {
		updateFields["description"] = patch.Description
	}
	if patch.Venue != "" && patch.Venue != existing.Venue {
		updateFields["venue"] = patch.Venue
	}
	if patch.Capacity > 0 && patch.Capacity != existing.Capacity {
		if patch.Capacity < existing.TicketsIssued {
			http.Error(w, "Capacity cannot drop below issued tickets", http.StatusBadRequest)
			return
		}
		updateFields["capacity"] = patch.Capacity
	}
	if patch.TicketPrice >= 0 && patch.TicketPrice != existing.TicketPrice {
		// Price edits apply to future claims only; issued tickets keep
		// their snapshot.
		updateFields["ticket_price"] = patch.TicketPrice
	}
	if !patch.Date.IsZero() && !patch.Date.Equal(existing.Date) {
		updateFields["date"] = patch.Date.UTC()
	}
	if !patch.EndDateTime.IsZero() && !patch.EndDateTime.Equal(existing.EndDateTime) {
		updateFields["end_date_time"] = patch.EndDateTime.UTC()
	}

	if len(updateFields) == 0 {
		utils.RespondWithJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "No changes detected for event",
		})
		return
	}

	updateFields["updated_at"] = time.Now().UTC()

	_, err = db.EventsCollection.UpdateOne(r.Context(),
		bson.M{"eventid": eventID}, bson.M{"$set": updateFields})
	if err != nil {
		http.Error(w, "Failed to update event: "+err.Error(), http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Event updated successfully",
		"data":    updateFields,
	})
}

// POST /api/events/event/:eventid/publish — creator moves a draft out
// for moderation and claiming.
func PublishEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	transitionEventStatus(w, r, ps.ByName("eventid"), models.EventDraft, models.EventPublished, true)
}

// POST /api/events/event/:eventid/cancel
func CancelEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	transitionEventStatus(w, r, ps.ByName("eventid"), models.EventPublished, models.EventCancelled, true)
}

// POST /api/events/event/:eventid/approve — moderation, admin only.
func ApproveEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roles, _ := r.Context().Value(globals.RoleKey).([]string)
	if !utils.Contains(roles, "admin") {
		utils.RespondWithError(w, http.StatusForbidden, "Admin role required")
		return
	}

	res, err := db.EventsCollection.UpdateOne(r.Context(),
		bson.M{"eventid": ps.ByName("eventid")},
		bson.M{"$set": bson.M{"approved": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		http.Error(w, "Failed to approve event", http.StatusInternalServerError)
		return
	}
	if res.MatchedCount == 0 {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Event approved",
	})
}

func transitionEventStatus(w http.ResponseWriter, r *http.Request, eventID, from, to string, creatorOnly bool) {
	requestingUserID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	filter := bson.M{"eventid": eventID, "status": from}
	if creatorOnly {
		filter["creatorid"] = requestingUserID
	}

	res, err := db.EventsCollection.UpdateOne(r.Context(), filter,
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}})
	if err != nil {
		http.Error(w, "Failed to update event status", http.StatusInternalServerError)
		return
	}
	if res.MatchedCount == 0 {
		http.Error(w, "Event not found or not in a valid state", http.StatusConflict)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Event status updated",
		"status":  to,
	})
}
