package domain

import "time"

// Action is the engine's per-round verdict.
type Action string

// Actions. COUNTER and ASK_CLARIFY loop back to negotiating; ACCEPT,
// WALK_AWAY and ESCALATE are terminal.
const (
	ActionAccept     Action = "ACCEPT"
	ActionCounter    Action = "COUNTER"
	ActionWalkAway   Action = "WALK_AWAY"
	ActionEscalate   Action = "ESCALATE"
	ActionAskClarify Action = "ASK_CLARIFY"
)

// IsTerminal reports whether the action ends the negotiation.
func (a Action) IsTerminal() bool {
	return a == ActionAccept || a == ActionWalkAway || a == ActionEscalate
}

// CounterOffer is the concrete counter-terms proposal attached to a COUNTER
// decision.
type CounterOffer struct {
	Price          float64    `json:"price"`
	TermsDays      int        `json:"terms_days"`
	TermsLabel     string     `json:"terms_label"`
	DeliveryDate   *time.Time `json:"delivery_date,omitempty"`
	WarrantyMonths *int       `json:"warranty_months,omitempty"`
	Notes          []string   `json:"notes,omitempty"`
}

// ParameterUtility is one row of the per-parameter utility breakdown.
type ParameterUtility struct {
	Parameter string  `json:"parameter"`
	Utility   float64 `json:"utility"`
	Weight    float64 `json:"weight"`
	Weighted  float64 `json:"weighted"`
}

// Decision is the engine's single per-round output. Decisions are pure
// outputs - they never mutate state; the caller folds the decision back into
// NegotiationState for the next round.
type Decision struct {
	Action       Action             `json:"action"`
	Utility      float64            `json:"utility"`
	CounterOffer *CounterOffer      `json:"counter_offer,omitempty"`
	Reasons      []string           `json:"reasons"`
	Breakdown    []ParameterUtility `json:"breakdown,omitempty"`
	Config       *ResolvedConfig    `json:"config,omitempty"`
	Strategy     string             `json:"strategy,omitempty"`
}

// MesoOption is one of 2-3 sibling offers with a deliberate trade-off.
type MesoOption struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	Offer        Offer    `json:"offer"`
	Emphasis     []string `json:"emphasis"`
	TradeoffNote string   `json:"tradeoff_note"`
	Utility      float64  `json:"utility"`
}

// MesoResult is a generated multi-offer menu plus quality metrics. When
// generation fails the result carries Success=false and a reason so the
// caller can fall back to a plain counter-offer.
type MesoResult struct {
	Options      []MesoOption `json:"options"`
	MeanUtility  float64      `json:"mean_utility"`
	MaxDeviation float64      `json:"max_deviation"`
	Success      bool         `json:"success"`
	Reason       string       `json:"reason,omitempty"`
}
