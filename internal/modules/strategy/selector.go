// Package strategy maps behavioral signals to one of four named negotiation
// postures and an adjusted aggressiveness coefficient.
package strategy

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/negotiator/internal/domain"
)

// Aggressiveness bounds. The coefficient is the fraction of the price range
// above target the buyer concedes in a counter-offer.
const (
	MinAggressiveness = 0.05
	MaxAggressiveness = 0.95

	// Posture-specific adjustments.
	finalPushBoost    = 0.20
	acceleratingBoost = 0.08
	holdingFirmFactor = 0.70
	steadyFirmFactor  = 0.75
	steadyConvergence = 0.10

	// Early-escalation gates as fractions of the round budget.
	divergingEscalateFraction = 0.50
	stallingEscalateFraction  = 0.60
)

// Selector picks the negotiation posture for the current round.
type Selector struct {
	log zerolog.Logger
}

// New creates a strategy selector.
func New(log zerolog.Logger) *Selector {
	return &Selector{
		log: log.With().Str("component", "strategy").Logger(),
	}
}

// Select applies the priority-ordered rule set:
//
//  1. Diverging -> Final Push: concede more now, flag early escalation
//     once half the round budget is spent.
//  2. Stalling -> Accelerating: a smaller boost to restart movement.
//  3. Converging with accelerating concessions -> Holding Firm: the vendor
//     is coming to us, concede less and extend the round budget.
//  4. Converging at a steady pace above 10% -> Holding Firm (milder).
//  5. Otherwise -> Matching Pace.
//
// The returned aggressiveness is always clamped to [0.05, 0.95].
func (s *Selector) Select(
	signals domain.BehavioralSignals,
	cfg *domain.ResolvedConfig,
	round int,
) domain.StrategyResult {
	base := cfg.BaseAggressiveness()
	roundAdj := RoundAdjustment(round)

	var result domain.StrategyResult

	switch {
	case signals.Diverging:
		result = domain.StrategyResult{
			Name:           domain.StrategyFinalPush,
			Aggressiveness: base + roundAdj + finalPushBoost,
			EscalateEarly:  float64(round) >= float64(cfg.MaxRounds)*divergingEscalateFraction,
			Rationale:      "counterparty is diverging; push toward a close",
		}

	case signals.Stalling:
		result = domain.StrategyResult{
			Name:           domain.StrategyAccelerating,
			Aggressiveness: base + roundAdj + acceleratingBoost,
			EscalateEarly:  float64(round) >= float64(cfg.MaxRounds)*stallingEscalateFraction,
			Rationale:      "concessions have stalled; accelerate to restart movement",
		}

	case signals.ConvergenceRate > 0 && signals.Accelerating:
		result = domain.StrategyResult{
			Name:           domain.StrategyHoldingFirm,
			Aggressiveness: (base + roundAdj) * holdingFirmFactor,
			ExtendRounds:   true,
			Rationale:      "counterparty is converging with accelerating concessions; hold firm",
		}

	case signals.ConvergenceRate > steadyConvergence:
		result = domain.StrategyResult{
			Name:           domain.StrategyHoldingFirm,
			Aggressiveness: (base + roundAdj) * steadyFirmFactor,
			Rationale: fmt.Sprintf(
				"steady convergence at %.0f%% per round; hold firm",
				signals.ConvergenceRate*100),
		}

	default:
		result = domain.StrategyResult{
			Name:           domain.StrategyMatchingPace,
			Aggressiveness: base + roundAdj,
			Rationale:      "no strong signal; match the counterparty's pace",
		}
	}

	result.Aggressiveness = clampAggressiveness(result.Aggressiveness)

	s.log.Debug().
		Str("strategy", result.Name).
		Float64("aggressiveness", result.Aggressiveness).
		Bool("escalate_early", result.EscalateEarly).
		Bool("extend_rounds", result.ExtendRounds).
		Int("round", round).
		Msg("Selected strategy")

	return result
}

// RoundAdjustment is the round-driven aggressiveness creep: min(0.10,
// round x 0.02). Later rounds concede slightly more to keep momentum.
func RoundAdjustment(round int) float64 {
	return math.Min(0.10, float64(round)*0.02)
}

func clampAggressiveness(a float64) float64 {
	return math.Max(MinAggressiveness, math.Min(MaxAggressiveness, a))
}
