package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ticket statuses. Active is the only initial state; the other three
// are terminal.
const (
	TicketActive    = "active"
	TicketUsed      = "used"
	TicketCancelled = "cancelled"
	TicketExpired   = "expired"
)

type Ticket struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TicketID  string             `json:"ticketid" bson:"ticketid"`
	EventID   string             `json:"eventid" bson:"eventid"`
	HolderID  string             `json:"holderid" bson:"holderid"`
	Status    string             `json:"status" bson:"status"`
	Price     float64            `json:"price" bson:"price"` // snapshot of the event price at issuance
	Currency  string             `json:"currency" bson:"currency"`
	QRPayload string             `json:"qr_payload" bson:"qr_payload"`
	IssuedAt  time.Time          `json:"issued_at" bson:"issued_at"`
	UsedAt    *time.Time         `json:"used_at,omitempty" bson:"used_at,omitempty"`
	UsedBy    string             `json:"used_by,omitempty" bson:"used_by,omitempty"`
}

// Occupies reports whether the ticket holds one of the event's
// capacity slots.
func (t *Ticket) Occupies() bool {
	return t.Status == TicketActive || t.Status == TicketUsed
}

type CapacityStatus struct {
	EventID   string `json:"eventid"`
	Capacity  int    `json:"capacity"`
	Issued    int    `json:"issued"`
	Remaining int    `json:"remaining"`
}
