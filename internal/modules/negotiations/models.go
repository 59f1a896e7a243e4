// Package negotiations persists negotiation records and orchestrates the
// decision engine for the HTTP host: load state, accumulate the offer, run
// the policy, persist the decision and the new state.
package negotiations

import (
	"time"

	"github.com/aristath/negotiator/internal/domain"
)

// Status is the lifecycle state of a stored negotiation.
type Status string

// Negotiation lifecycle states. Terminal decisions move a negotiation out of
// NEGOTIATING permanently.
const (
	StatusNegotiating Status = "NEGOTIATING"
	StatusAccepted    Status = "ACCEPTED"
	StatusWalkedAway  Status = "WALKED_AWAY"
	StatusEscalated   Status = "ESCALATED"
)

// statusForAction maps a terminal action to the resulting status. Non-terminal
// actions keep the negotiation in NEGOTIATING.
func statusForAction(action domain.Action) Status {
	switch action {
	case domain.ActionAccept:
		return StatusAccepted
	case domain.ActionWalkAway:
		return StatusWalkedAway
	case domain.ActionEscalate:
		return StatusEscalated
	default:
		return StatusNegotiating
	}
}

// Negotiation is one stored negotiation: its resolved configuration, the
// engine state snapshot, the latest accumulated vendor offer and the raw
// offer-event history.
type Negotiation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Vendor    string    `json:"vendor"`
	Status    Status    `json:"status"`
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Config *domain.ResolvedConfig   `json:"config"`
	State  *domain.NegotiationState `json:"state"`
	Offer  *domain.AccumulatedOffer `json:"offer,omitempty"`
	Events []domain.OfferEvent      `json:"events,omitempty"`
}

// DecisionEntry is one row of the append-only decision log.
type DecisionEntry struct {
	NegotiationID string               `json:"negotiation_id"`
	Round         int                  `json:"round"`
	Action        domain.Action        `json:"action"`
	Utility       float64              `json:"utility"`
	Strategy      string               `json:"strategy"`
	Reasons       []string             `json:"reasons"`
	CounterOffer  *domain.CounterOffer `json:"counter_offer,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}
