package tickets

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"tessera/db"
	"tessera/globals"
	"tessera/models"
	"tessera/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
)

// principalFromContext rebuilds the scanning principal from the values
// the auth middleware stored on the request context.
func principalFromContext(ctx context.Context) (*Principal, bool) {
	userID, ok := ctx.Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		return nil, false
	}
	role, _ := ctx.Value(globals.RoleKey).([]string)
	orgID, _ := ctx.Value(globals.OrgIDKey).(string)
	return &Principal{UserID: userID, Role: role, OrgID: orgID}, true
}

// writeEngineError maps the engine's error taxonomy onto HTTP
// responses. Business-rule rejections each keep their own message so
// the frontend can tell "Sold Out" from "You already claimed a
// ticket"; anything unrecognized is a transient storage failure.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSoldOut):
		utils.RespondWithError(w, http.StatusConflict, "Sold out")
	case errors.Is(err, ErrAlreadyClaimed):
		utils.RespondWithError(w, http.StatusConflict, "You already claimed a ticket for this event")
	case errors.Is(err, ErrEventNotClaimable):
		utils.RespondWithError(w, http.StatusBadRequest, "Event is not open for ticket claims")
	case errors.Is(err, ErrEventPassed):
		utils.RespondWithError(w, http.StatusBadRequest, "Event has already ended")
	case errors.Is(err, ErrNotActive):
		utils.RespondWithError(w, http.StatusConflict, "Ticket is not active")
	case errors.Is(err, ErrWrongScope):
		utils.RespondWithError(w, http.StatusForbidden, "Not authorized for this event's tickets")
	case errors.Is(err, ErrMalformedCredential):
		utils.RespondWithError(w, http.StatusBadRequest, "Malformed ticket credential")
	case errors.Is(err, ErrTicketNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Ticket not found")
	case errors.Is(err, ErrEventNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Event not found")
	default:
		log.Printf("ticketing engine error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Temporary failure, please retry")
	}
}

// POST /api/ticket/event/:eventid/claim
func ClaimTicket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID := ps.ByName("eventid")

	holderID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || holderID == "" {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	ticket, err := Claim(r.Context(), eventID, holderID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"ticket":     ticket,
		"credential": ticket.QRPayload,
	})
}

// POST /api/ticket/scan
func ScanTicket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Credential == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	principal, ok := principalFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	ticket, err := Redeem(r.Context(), req.Credential, principal)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Ticket redeemed",
		"ticket":  ticket,
	})
}

// POST /api/ticket/cancel/:ticketid
func CancelTicket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ticketID := ps.ByName("ticketid")

	principal, ok := principalFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}
	// Cancellation policy: admins only.
	if !principal.hasRole("admin") {
		utils.RespondWithError(w, http.StatusForbidden, "Admin role required")
		return
	}

	ticket, err := Cancel(r.Context(), ticketID, principal.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Ticket cancelled",
		"ticket":  ticket,
	})
}

// GET /api/ticket/event/:eventid/capacity
func GetCapacityStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	status, err := CapacityStatus(r.Context(), ps.ByName("eventid"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, status)
}

// GET /api/ticket/mine
func GetMyTickets(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	holderID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || holderID == "" {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	cursor, err := db.TicketsCollection.Find(r.Context(), bson.M{"holderid": holderID})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch tickets")
		return
	}
	defer cursor.Close(r.Context())

	var ticketList []models.Ticket
	for cursor.Next(r.Context()) {
		var t models.Ticket
		if err := cursor.Decode(&t); err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode ticket")
			return
		}
		ticketList = append(ticketList, t)
	}
	if err := cursor.Err(); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Cursor error")
		return
	}

	if len(ticketList) == 0 {
		ticketList = []models.Ticket{}
	}
	utils.RespondWithJSON(w, http.StatusOK, ticketList)
}

// GET /api/ticket/verify/:eventid?credential=...
// Read-only credential check for scanners that want to preview a
// ticket before committing the redemption.
func VerifyTicket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID := ps.ByName("eventid")
	payload := r.URL.Query().Get("credential")

	if payload == "" {
		http.Error(w, "Credential is required for verification", http.StatusBadRequest)
		return
	}

	if _, err := DecodeCredential(payload); err != nil {
		writeEngineError(w, err)
		return
	}

	var ticket models.Ticket
	err := db.TicketsCollection.FindOne(r.Context(), bson.M{
		"eventid":    eventID,
		"qr_payload": payload,
	}).Decode(&ticket)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Ticket not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"isValid": ticket.Status == models.TicketActive,
		"status":  ticket.Status,
	})
}
