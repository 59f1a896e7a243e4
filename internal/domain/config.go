package domain

import "time"

// Priority controls how aggressively a negotiation is run.
type Priority string

// Priority levels. HIGH fights for every basis point, LOW closes quickly.
const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// FieldOrigin records where a resolved configuration value came from.
// Retained per field for explainability.
type FieldOrigin string

// Field origins for resolved configuration values.
const (
	OriginUser       FieldOrigin = "user"
	OriginLegacy     FieldOrigin = "legacy"
	OriginDefault    FieldOrigin = "default"
	OriginCalculated FieldOrigin = "calculated"
)

// ResolvedConfig is the single source of truth for one negotiation round.
// Built once per round by merging user values over legacy values over
// product defaults; immutable for the duration of one decision call.
type ResolvedConfig struct {
	// Price parameters
	TargetPrice        float64 `json:"target_price"`
	MaxAcceptablePrice float64 `json:"max_acceptable_price"`
	AnchorPrice        float64 `json:"anchor_price"`
	PriceRange         float64 `json:"price_range"`     // max - target
	ConcessionStep     float64 `json:"concession_step"` // price range / max rounds

	// Terms parameters
	PaymentTermsMinDays int     `json:"payment_terms_min_days"`
	PaymentTermsMaxDays int     `json:"payment_terms_max_days"`
	AdvancePaymentLimit float64 `json:"advance_payment_limit"` // percent

	// Delivery and quality parameters
	DeliveryTargetDate    *time.Time `json:"delivery_target_date,omitempty"`
	DeliveryPreferredDate *time.Time `json:"delivery_preferred_date,omitempty"`
	WarrantyTargetMonths  int        `json:"warranty_target_months"`
	LatePenaltyTarget     float64    `json:"late_penalty_target"` // percent
	QualityStandards      []string   `json:"quality_standards,omitempty"`

	Priority Priority `json:"priority"`

	// Weights per parameter on a 0-100 scale. Non-negative; need not sum to
	// 100 - the aggregator normalizes.
	Weights map[string]float64 `json:"weights"`

	// Decision thresholds, each in (0,1), ordered accept > escalate > walkaway.
	AcceptThreshold   float64 `json:"accept_threshold"`
	EscalateThreshold float64 `json:"escalate_threshold"`
	WalkawayThreshold float64 `json:"walkaway_threshold"`

	// Round limits. MaxRounds is the soft budget; HardRoundLimit is the
	// fatal safety net that always forces escalation.
	MaxRounds      int `json:"max_rounds"`
	HardRoundLimit int `json:"hard_round_limit"`

	// Origins maps field name to where its value came from.
	Origins map[string]FieldOrigin `json:"origins,omitempty"`
}

// DynamicHardMax returns the effective hard round ceiling after strategy
// extensions. The configured HardRoundLimit is never exceeded.
func (c *ResolvedConfig) DynamicHardMax(extensions int) int {
	max := c.MaxRounds + extensions
	if max > c.HardRoundLimit {
		return c.HardRoundLimit
	}
	return max
}

// BaseAggressiveness returns the starting aggressiveness coefficient for the
// configured priority. Low aggressiveness means offering close to target;
// high means conceding more of the range to close faster.
func (c *ResolvedConfig) BaseAggressiveness() float64 {
	switch c.Priority {
	case PriorityHigh:
		return 0.15
	case PriorityLow:
		return 0.55
	default:
		return 0.40
	}
}

// VendorProfile is an optional advisory enrichment input derived from prior
// completed deals with the same counterparty. Consumed read-only by the
// dynamic MESO generator; never required for correctness.
type VendorProfile struct {
	PriceWeight    float64 `json:"price_weight"`
	TermsWeight    float64 `json:"terms_weight"`
	DeliveryWeight float64 `json:"delivery_weight"`
	WarrantyWeight float64 `json:"warranty_weight"`
}
