package tickets

import (
	"tessera/models"
)

// Principal is the verified identity performing a redemption, taken
// from the authentication middleware's claims. The engine trusts it;
// no credential verification happens here.
type Principal struct {
	UserID string
	Role   []string
	OrgID  string
}

func (p *Principal) hasRole(role string) bool {
	for _, r := range p.Role {
		if r == role {
			return true
		}
	}
	return false
}

// authorizeScan confirms the principal may redeem tickets for the
// event: a scanning role, and an organization matching the event's.
// Ticket ids are globally unique and not partitioned by organization,
// so this check is what keeps one organization's staff from redeeming
// another's tickets.
func authorizeScan(p *Principal, event *models.Event) error {
	if p == nil {
		return ErrWrongScope
	}
	if !p.hasRole("organizer") && !p.hasRole("admin") {
		return ErrWrongScope
	}
	if p.OrgID == "" || p.OrgID != event.OrgID {
		return ErrWrongScope
	}
	return nil
}
