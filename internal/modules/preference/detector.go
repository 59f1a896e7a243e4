// Package preference infers the counterparty's emphasis (price-focused,
// terms-focused, balanced) from keyword patterns and concession asymmetry,
// and tracks MESO selections for preference exploration.
package preference

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/negotiator/internal/domain"
)

const (
	keywordWeight    = 0.3
	asymmetryWeight  = 2.0
	balancedBand     = 5.0  // |score| below this is "balanced"
	strongSignalBand = 15.0 // |score| above this earns top confidence

	// Balanced MESO pick emphasis tag.
	balancedEmphasis = "balanced"
)

// Vocabulary for emphasis detection. Matching is lowercase substring
// matching per message.
var (
	priceKeywords = []string{
		"price", "cost", "budget", "discount", "cheaper", "expensive",
		"rate", "margin", "pricing",
	}
	termsKeywords = []string{
		"payment terms", "net 15", "net 30", "net 45", "net 60", "net 90",
		"payment schedule", "cash flow", "invoice", "credit", "installment",
		"upfront", "advance payment",
	}
)

// Detector classifies vendor emphasis.
type Detector struct {
	log zerolog.Logger
}

// New creates a preference detector.
func New(log zerolog.Logger) *Detector {
	return &Detector{
		log: log.With().Str("component", "preference").Logger(),
	}
}

// Detect combines a keyword-count difference (price vocabulary minus terms
// vocabulary, weighted x0.3) with a concession-asymmetry score
// ((termsConcession% - priceConcession%) x 2.0). A vendor who talks about
// price and protects it while conceding terms is price-focused; positive
// scores mean price-focused, negative mean terms-focused, and |score| < 5 is
// balanced.
//
// Confidence escalates with evidence: 0.5 with no data, 0.6 with keywords
// only, 0.7 with a single concession, 0.8 with multiple concessions, 0.9
// when multiple concessions produce a strong (|score| > 15) signal.
func (d *Detector) Detect(state *domain.NegotiationState, messages []string) domain.PreferenceResult {
	priceHits, termsHits := countKeywords(messages)
	keywordScore := float64(priceHits-termsHits) * keywordWeight

	asymmetry := 0.0
	concessions := 0
	if state != nil {
		asymmetry = (state.TotalTermsConcessionPercent() - state.TotalPriceConcessionPercent()) * asymmetryWeight
		concessions = len(state.PriceConcessions) + len(state.TermsConcessions)
	}

	score := keywordScore + asymmetry

	emphasis := domain.EmphasisBalanced
	switch {
	case score > balancedBand:
		emphasis = domain.EmphasisPriceFocused
	case score < -balancedBand:
		emphasis = domain.EmphasisTermsFocused
	}

	hasKeywords := priceHits+termsHits > 0
	confidence := confidenceFor(hasKeywords, concessions, score)
	if !hasKeywords && concessions == 0 {
		emphasis = domain.EmphasisUnknown
	}

	result := domain.PreferenceResult{
		Emphasis:   emphasis,
		Confidence: confidence,
		Score:      score,
		Rationale: fmt.Sprintf(
			"keyword score %.1f (price %d vs terms %d), concession asymmetry %.1f",
			keywordScore, priceHits, termsHits, asymmetry),
	}

	d.log.Debug().
		Str("emphasis", string(result.Emphasis)).
		Float64("confidence", result.Confidence).
		Float64("score", result.Score).
		Msg("Detected vendor preference")

	return result
}

func confidenceFor(hasKeywords bool, concessions int, score float64) float64 {
	switch {
	case concessions >= 2:
		if score > strongSignalBand || score < -strongSignalBand {
			return 0.9
		}
		return 0.8
	case concessions == 1:
		return 0.7
	case hasKeywords:
		return 0.6
	default:
		return 0.5
	}
}

func countKeywords(messages []string) (priceHits, termsHits int) {
	for _, msg := range messages {
		lower := strings.ToLower(msg)
		for _, k := range priceKeywords {
			if strings.Contains(lower, k) {
				priceHits++
			}
		}
		for _, k := range termsKeywords {
			if strings.Contains(lower, k) {
				termsHits++
			}
		}
	}
	return priceHits, termsHits
}

// RecordMesoSelection folds a MESO pick into the state: a balanced pick
// extends the balanced streak, any other pick resets it. One or two
// consecutive balanced picks open preference exploration; a third closes it
// (the streak keeps counting so InPreferenceExploration turns false).
func (d *Detector) RecordMesoSelection(state *domain.NegotiationState, selection domain.MesoSelection) {
	state.MesoSelections = append(state.MesoSelections, selection)

	if strings.EqualFold(selection.Emphasis, balancedEmphasis) {
		state.BalancedSelectionStreak++
	} else {
		state.BalancedSelectionStreak = 0
	}

	d.log.Debug().
		Str("option", selection.OptionID).
		Str("emphasis", selection.Emphasis).
		Int("balanced_streak", state.BalancedSelectionStreak).
		Bool("exploring", state.InPreferenceExploration()).
		Msg("Recorded MESO selection")
}
