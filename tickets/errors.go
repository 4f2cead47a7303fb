package tickets

import "errors"

// Business-rule rejections. These are user-facing and never retried by
// the engine; handlers map each to a precise response. Anything else
// coming out of the engine is a transient storage failure wrapped with
// %w and should be treated as retryable by the caller.
var (
	ErrSoldOut             = errors.New("event capacity reached")
	ErrAlreadyClaimed      = errors.New("holder already has a ticket for this event")
	ErrEventNotClaimable   = errors.New("event is not open for claims")
	ErrEventNotFound       = errors.New("event not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrNotActive           = errors.New("ticket is not active")
	ErrEventPassed         = errors.New("event has already ended")
	ErrWrongScope          = errors.New("ticket belongs to another organization's event")
	ErrMalformedCredential = errors.New("malformed ticket credential")
)
