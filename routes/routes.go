package routes

import (
	"tessera/auth"
	"tessera/events"
	"tessera/middleware"
	"tessera/ratelim"
	"tessera/tickets"
	"tessera/utils"

	"github.com/julienschmidt/httprouter"
)

func AddAuthRoutes(router *httprouter.Router) {
	router.POST("/api/auth/register", ratelim.RateLimit(auth.Register))
	router.POST("/api/auth/login", ratelim.RateLimit(auth.Login))
	router.POST("/api/auth/logout", ratelim.RateLimit(auth.LogoutUser))
	router.POST("/api/auth/token/refresh", ratelim.RateLimit(auth.RefreshToken))
	router.GET("/api/csrf", ratelim.RateLimit(utils.CSRF))
}

func AddEventsRoutes(router *httprouter.Router) {
	router.POST("/api/events/event", ratelim.RateLimit(middleware.Authenticate(events.CreateEvent)))
	router.GET("/api/events", ratelim.RateLimit(events.GetEvents))
	router.GET("/api/events/mine", ratelim.RateLimit(middleware.Authenticate(events.GetMyEvents)))
	router.GET("/api/events/event/:eventid", ratelim.RateLimit(events.GetEvent))
	router.PUT("/api/events/event/:eventid", ratelim.RateLimit(middleware.Authenticate(events.EditEvent)))
	router.POST("/api/events/event/:eventid/publish", ratelim.RateLimit(middleware.Authenticate(events.PublishEvent)))
	router.POST("/api/events/event/:eventid/cancel", ratelim.RateLimit(middleware.Authenticate(events.CancelEvent)))
	router.POST("/api/events/event/:eventid/approve", ratelim.RateLimit(middleware.Authenticate(events.ApproveEvent)))
	router.GET("/api/events/event/:eventid/updates", ratelim.RateLimit(tickets.EventUpdates))
}

func AddTicketRoutes(router *httprouter.Router) {
	router.POST("/api/ticket/event/:eventid/claim", ratelim.RateLimit(middleware.Authenticate(tickets.ClaimTicket)))
	router.POST("/api/ticket/scan", ratelim.RateLimit(middleware.Authenticate(tickets.ScanTicket)))
	router.POST("/api/ticket/cancel/:ticketid", ratelim.RateLimit(middleware.Authenticate(tickets.CancelTicket)))
	router.GET("/api/ticket/event/:eventid/capacity", ratelim.RateLimit(tickets.GetCapacityStatus))
	router.GET("/api/ticket/mine", ratelim.RateLimit(middleware.Authenticate(tickets.GetMyTickets)))
	router.GET("/api/ticket/verify/:eventid", ratelim.RateLimit(middleware.Authenticate(tickets.VerifyTicket)))
	router.GET("/api/ticket/print/:ticketid", ratelim.RateLimit(tickets.PrintTicket))
}
