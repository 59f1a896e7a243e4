package domain

import "time"

// OfferEvent is one counterparty message/offer as seen by the behavioral
// analyzer: the round it arrived in, the price it carried (if any), the raw
// text for keyword scanning, and the receive timestamp for cadence analysis.
type OfferEvent struct {
	Round      int       `json:"round"`
	Price      *float64  `json:"price,omitempty"`
	TermsDays  *int      `json:"terms_days,omitempty"`
	Text       string    `json:"text,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Sentiment is the keyword-derived tone of the counterparty's messages.
type Sentiment string

// Sentiment classifications. Urgent takes priority when at least two
// urgency keywords match.
const (
	SentimentPositive  Sentiment = "positive"
	SentimentNeutral   Sentiment = "neutral"
	SentimentResistant Sentiment = "resistant"
	SentimentUrgent    Sentiment = "urgent"
)

// ResponseTrend describes how counterparty reply latency is evolving.
type ResponseTrend string

// Response-time trends.
const (
	TrendFaster ResponseTrend = "faster"
	TrendSlower ResponseTrend = "slower"
	TrendStable ResponseTrend = "stable"
)

// BehavioralSignals are the momentum signals derived from the message/offer
// history. They feed the adaptive strategy selector and decision gating.
type BehavioralSignals struct {
	// ConcessionVelocity is (firstOffer - latestOffer) / roundsElapsed.
	ConcessionVelocity float64 `json:"concession_velocity"`

	// Accelerating is true when the most recent concession is >10% larger
	// than the running average of prior concessions.
	Accelerating bool `json:"accelerating"`

	// GapTrend holds the last up-to-3 fractional price gaps between vendor
	// offer and buyer target, oldest first.
	GapTrend []float64 `json:"gap_trend,omitempty"`

	// ConvergenceRate is the average fractional gap reduction round-over-
	// round. Positive means converging.
	ConvergenceRate float64 `json:"convergence_rate"`

	Stalling  bool `json:"stalling"`
	Diverging bool `json:"diverging"`

	ResponseTimeTrend ResponseTrend `json:"response_time_trend"`
	Sentiment         Sentiment     `json:"sentiment"`

	// Momentum is the composite signal in [-1,1].
	Momentum float64 `json:"momentum"`
}

// StrategyResult is the adaptive strategy selector's output: a named posture
// and an adjusted aggressiveness coefficient in [0.05, 0.95].
type StrategyResult struct {
	Name           string  `json:"name"`
	Aggressiveness float64 `json:"aggressiveness"`
	EscalateEarly  bool    `json:"escalate_early"`
	ExtendRounds   bool    `json:"extend_rounds"`
	Rationale      string  `json:"rationale"`
}

// Strategy posture names.
const (
	StrategyFinalPush    = "Final Push"
	StrategyAccelerating = "Accelerating"
	StrategyHoldingFirm  = "Holding Firm"
	StrategyMatchingPace = "Matching Pace"
)

// PreferenceResult is the preference detector's classification of the
// counterparty's emphasis with a confidence score.
type PreferenceResult struct {
	Emphasis   VendorEmphasis `json:"emphasis"`
	Confidence float64        `json:"confidence"`
	Score      float64        `json:"score"`
	Rationale  string         `json:"rationale"`
}

// StalledParameter identifies a parameter whose offered value has repeated
// for N rounds while others varied - a sign the counterparty may have hit a
// hard limit worth confirming explicitly.
type StalledParameter struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Rounds    int     `json:"rounds"`
}
