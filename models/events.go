package models

import (
	"time"
)

// Event statuses
const (
	EventDraft     = "draft"
	EventPublished = "published"
	EventCancelled = "cancelled"
	EventCompleted = "completed"
)

type Event struct {
	EventID       string    `json:"eventid" bson:"eventid"`
	Title         string    `json:"title" bson:"title"`
	Description   string    `json:"description" bson:"description"`
	Venue         string    `json:"venue" bson:"venue"`
	Date          time.Time `json:"date" bson:"date"`
	EndDateTime   time.Time `json:"end_date_time" bson:"end_date_time"`
	OrgID         string    `json:"orgid" bson:"orgid"`
	CreatorID     string    `json:"creatorid" bson:"creatorid"`
	Capacity      int       `json:"capacity" bson:"capacity"`
	TicketsIssued int       `json:"tickets_issued" bson:"tickets_issued"`
	TicketPrice   float64   `json:"ticket_price" bson:"ticket_price"`
	Currency      string    `json:"currency" bson:"currency"`
	Status        string    `json:"status" bson:"status"`
	Approved      bool      `json:"approved" bson:"approved"`
	Category      string    `json:"category" bson:"category"`
	Tags          []string  `json:"tags" bson:"tags"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// Claimable reports whether tickets can currently be issued for the
// event: published, moderator-approved, and not yet started.
func (e *Event) Claimable(now time.Time) bool {
	return e.Status == EventPublished && e.Approved && e.Date.After(now)
}
