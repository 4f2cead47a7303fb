package tickets

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"tessera/db"
	"tessera/middleware"
	"tessera/models"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.mongodb.org/mongo-driver/bson"
)

// GET /api/ticket/print/:ticketid
// Renders the holder's ticket as a PDF with the stored QR credential.
// The payload is never regenerated here: the bytes in the QR image are
// exactly the bytes the redemption lookup will match against.
func PrintTicket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ticketID := ps.ByName("ticketid")

	tokenString := r.Header.Get("Authorization")
	claims, err := middleware.ValidateJWT(tokenString)
	if err != nil {
		log.Printf("JWT validation error: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var ticket models.Ticket
	err = db.TicketsCollection.FindOne(context.TODO(), bson.M{
		"ticketid": ticketID,
		"holderid": claims.UserID,
	}).Decode(&ticket)
	if err != nil {
		http.Error(w, "Ticket not found", http.StatusNotFound)
		return
	}

	var event models.Event
	err = db.EventsCollection.FindOne(context.TODO(), bson.M{"eventid": ticket.EventID}).Decode(&event)
	if err != nil {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}

	qrPNG, err := qrcode.Encode(ticket.QRPayload, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Event Ticket")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Event: %s", event.Title))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Venue: %s", event.Venue))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Date: %s", event.Date.Format("02 Jan 2006 15:04")))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Name: %s", claims.Username))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Ticket ID: %s", ticket.TicketID))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Issued: %s", ticket.IssuedAt.Format(time.RFC822)))
	pdf.Ln(12)

	imageOpts := gofpdf.ImageOptions{
		ImageType: "PNG",
	}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 40, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		http.Error(w, "Failed to generate PDF", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=ticket-"+ticket.TicketID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
