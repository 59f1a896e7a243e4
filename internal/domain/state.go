package domain

import "time"

// VendorEmphasis classifies what the counterparty appears to care about most.
type VendorEmphasis string

// Vendor emphasis classifications.
const (
	EmphasisPriceFocused VendorEmphasis = "price_focused"
	EmphasisTermsFocused VendorEmphasis = "terms_focused"
	EmphasisBalanced     VendorEmphasis = "balanced"
	EmphasisUnknown      VendorEmphasis = "unknown"
)

// Concession captures one round-over-round movement by the counterparty
// toward the buyer's position.
type Concession struct {
	Round          int       `json:"round"`
	Previous       float64   `json:"previous"`
	New            float64   `json:"new"`
	PercentOfRange float64   `json:"percent_of_range"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Amount returns the absolute size of the concession.
func (c Concession) Amount() float64 {
	d := c.Previous - c.New
	if d < 0 {
		return -d
	}
	return d
}

// CounterRecord captures one buyer counter-offer.
type CounterRecord struct {
	Round     int       `json:"round"`
	Price     float64   `json:"price"`
	TermsDays int       `json:"terms_days"`
	MadeAt    time.Time `json:"made_at"`
}

// RoundUtility records the total utility achieved by the vendor's offer in
// one round.
type RoundUtility struct {
	Round   int     `json:"round"`
	Utility float64 `json:"utility"`
}

// MesoSelection records which MESO option the counterparty picked.
type MesoSelection struct {
	Round    int       `json:"round"`
	OptionID string    `json:"option_id"`
	Emphasis string    `json:"emphasis"`
	PickedAt time.Time `json:"picked_at"`
}

// NegotiationState is the durable, round-spanning memory of one negotiation.
// Histories are append-only and owned by the caller: the engine returns a
// new state value each round and never aliases or retains the old one.
type NegotiationState struct {
	PriceConcessions []Concession    `json:"price_concessions"`
	TermsConcessions []Concession    `json:"terms_concessions"`
	CountersMade     []CounterRecord `json:"counters_made"`

	// DetectedKeywords is a deduplicated, insertion-ordered keyword set
	// accumulated across all vendor messages.
	DetectedKeywords []string `json:"detected_keywords"`

	VendorEmphasis     VendorEmphasis `json:"vendor_emphasis"`
	EmphasisConfidence float64        `json:"emphasis_confidence"`

	UtilityHistory      []RoundUtility `json:"utility_history"`
	NoImprovementStreak int            `json:"no_improvement_streak"`

	// BalancedSelectionStreak counts consecutive "balanced" MESO picks.
	// 1-2 consecutive picks open preference exploration; 3 close it.
	BalancedSelectionStreak int             `json:"balanced_selection_streak"`
	MesoSelections          []MesoSelection `json:"meso_selections"`

	// LastMesoPrices remembers the previous round's option prices so the
	// dynamic generator never repeats itself. Keyed by option emphasis.
	LastMesoPrices map[string]float64 `json:"last_meso_prices,omitempty"`

	// RoundExtensions accumulates soft-limit extensions granted by the
	// adaptive strategy while the vendor is converging.
	RoundExtensions int `json:"round_extensions"`
}

// NewNegotiationState creates the empty state used at negotiation start.
func NewNegotiationState() *NegotiationState {
	return &NegotiationState{
		PriceConcessions: []Concession{},
		TermsConcessions: []Concession{},
		CountersMade:     []CounterRecord{},
		DetectedKeywords: []string{},
		VendorEmphasis:   EmphasisUnknown,
		UtilityHistory:   []RoundUtility{},
		MesoSelections:   []MesoSelection{},
	}
}

// Clone returns a deep copy. The engine mutates only clones, which gives the
// caller simple snapshot/rollback semantics.
func (s *NegotiationState) Clone() *NegotiationState {
	out := &NegotiationState{
		PriceConcessions:        append([]Concession{}, s.PriceConcessions...),
		TermsConcessions:        append([]Concession{}, s.TermsConcessions...),
		CountersMade:            append([]CounterRecord{}, s.CountersMade...),
		DetectedKeywords:        append([]string{}, s.DetectedKeywords...),
		VendorEmphasis:          s.VendorEmphasis,
		EmphasisConfidence:      s.EmphasisConfidence,
		UtilityHistory:          append([]RoundUtility{}, s.UtilityHistory...),
		NoImprovementStreak:     s.NoImprovementStreak,
		BalancedSelectionStreak: s.BalancedSelectionStreak,
		MesoSelections:          append([]MesoSelection{}, s.MesoSelections...),
		RoundExtensions:         s.RoundExtensions,
	}
	if s.LastMesoPrices != nil {
		out.LastMesoPrices = make(map[string]float64, len(s.LastMesoPrices))
		for k, v := range s.LastMesoPrices {
			out.LastMesoPrices[k] = v
		}
	}
	return out
}

// AddKeywords appends keywords that are not already present, preserving
// insertion order.
func (s *NegotiationState) AddKeywords(keywords []string) {
	seen := make(map[string]bool, len(s.DetectedKeywords))
	for _, k := range s.DetectedKeywords {
		seen[k] = true
	}
	for _, k := range keywords {
		if !seen[k] {
			s.DetectedKeywords = append(s.DetectedKeywords, k)
			seen[k] = true
		}
	}
}

// RecordUtility appends a round utility and updates the no-improvement
// streak. An improvement larger than 1% of the previous value resets the
// streak; anything else increments it.
func (s *NegotiationState) RecordUtility(round int, utility float64) {
	if len(s.UtilityHistory) > 0 {
		prev := s.UtilityHistory[len(s.UtilityHistory)-1].Utility
		if utility > prev*1.01 {
			s.NoImprovementStreak = 0
		} else {
			s.NoImprovementStreak++
		}
	}
	s.UtilityHistory = append(s.UtilityHistory, RoundUtility{Round: round, Utility: utility})
}

// TotalPriceConcessionPercent sums the percent-of-range captured across all
// recorded price concessions.
func (s *NegotiationState) TotalPriceConcessionPercent() float64 {
	total := 0.0
	for _, c := range s.PriceConcessions {
		total += c.PercentOfRange
	}
	return total
}

// TotalTermsConcessionPercent sums the percent-of-range captured across all
// recorded terms concessions.
func (s *NegotiationState) TotalTermsConcessionPercent() float64 {
	total := 0.0
	for _, c := range s.TermsConcessions {
		total += c.PercentOfRange
	}
	return total
}

// IsRigid reports whether the counterparty has made zero recorded
// concessions over a window of at least minRounds rounds.
func (s *NegotiationState) IsRigid(round, minRounds int) bool {
	if round < minRounds {
		return false
	}
	return len(s.PriceConcessions) == 0 && len(s.TermsConcessions) == 0
}

// IsStalled reports whether there has been no material utility improvement
// for at least the given number of consecutive rounds.
func (s *NegotiationState) IsStalled(rounds int) bool {
	return s.NoImprovementStreak >= rounds
}

// InPreferenceExploration reports whether the negotiation is currently in
// preference-discovery mode: the counterparty has picked the balanced MESO
// option 1-2 times in a row. A third consecutive pick closes exploration.
func (s *NegotiationState) InPreferenceExploration() bool {
	return s.BalancedSelectionStreak >= 1 && s.BalancedSelectionStreak < 3
}
