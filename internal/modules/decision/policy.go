// Package decision is the per-round policy: it orchestrates behavioral
// analysis, strategy selection, preference detection and counter-offer
// generation, then runs the ordered decision gates to produce one Decision.
package decision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/negotiator/internal/domain"
	"github.com/aristath/negotiator/internal/modules/accumulator"
	"github.com/aristath/negotiator/internal/modules/behavior"
	"github.com/aristath/negotiator/internal/modules/counteroffer"
	"github.com/aristath/negotiator/internal/modules/preference"
	"github.com/aristath/negotiator/internal/modules/strategy"
	"github.com/aristath/negotiator/internal/modules/utility"
)

const (
	// MinRoundsFloor is the flat round floor before walkaway or escalate may
	// fire on low utility. Price-over-max walkaway uses the same floor.
	MinRoundsFloor = 10

	// StallRounds is the no-improvement streak that counts as a stall.
	StallRounds = 3
)

// Input is everything one decision round consumes. State is the prior
// round's state (nil on round 1); PreviousOffer is the prior accumulated
// vendor offer, used to record concessions. Signals and Strategy may be
// pre-computed by the caller; when nil they are derived from Events.
type Input struct {
	Round          int
	Offer          *domain.AccumulatedOffer
	PreviousOffer  *domain.AccumulatedOffer
	State          *domain.NegotiationState
	Config         *domain.ResolvedConfig
	Events         []domain.OfferEvent
	Messages       []string
	Signals        *domain.BehavioralSignals
	Strategy       *domain.StrategyResult
}

// Engine wires the decision pipeline together.
type Engine struct {
	behavior   *behavior.Analyzer
	strategy   *strategy.Selector
	counter    *counteroffer.Generator
	preference *preference.Detector
	log        zerolog.Logger
}

// New creates a decision engine.
func New(log zerolog.Logger) *Engine {
	return &Engine{
		behavior:   behavior.New(log),
		strategy:   strategy.New(log),
		counter:    counteroffer.New(log),
		preference: preference.New(log),
		log:        log.With().Str("component", "decision").Logger(),
	}
}

// Decide runs one negotiation round. It never mutates the input state: a
// cloned state with this round's history folded in is returned alongside the
// decision.
func (e *Engine) Decide(in Input) (domain.Decision, *domain.NegotiationState, error) {
	if in.Config == nil {
		return domain.Decision{}, nil, errors.New("decide: resolved configuration is required")
	}
	if in.Round < 1 {
		return domain.Decision{}, nil, fmt.Errorf("decide: invalid round %d", in.Round)
	}

	state := domain.NewNegotiationState()
	if in.State != nil {
		state = in.State.Clone()
	}

	recordConcessions(state, in.Config, in.PreviousOffer, in.Offer, in.Round)

	for _, msg := range in.Messages {
		state.AddKeywords(behavior.DetectKeywords(msg))
	}

	pref := e.preference.Detect(state, in.Messages)
	state.VendorEmphasis = pref.Emphasis
	state.EmphasisConfidence = pref.Confidence

	signals := e.resolveSignals(in, state)
	strat := e.resolveStrategy(in, signals)

	// Converging vendors may earn soft-limit extensions, but never past the
	// hard round limit.
	if strat.ExtendRounds ||
		(in.Round > in.Config.MaxRounds && signals.ConvergenceRate > 0) {
		if in.Config.DynamicHardMax(state.RoundExtensions) < in.Config.HardRoundLimit {
			state.RoundExtensions++
		}
	}

	decision := Evaluate(in.Config, state, in.Offer, in.Round, signals, strat, e.counter)

	if in.Offer != nil && in.Offer.Price != nil && in.Offer.PaymentTerms != nil {
		state.RecordUtility(in.Round, decision.Utility)
	}
	if decision.Action == domain.ActionCounter && decision.CounterOffer != nil {
		state.CountersMade = append(state.CountersMade, domain.CounterRecord{
			Round:     in.Round,
			Price:     decision.CounterOffer.Price,
			TermsDays: decision.CounterOffer.TermsDays,
		})
	}

	e.log.Info().
		Int("round", in.Round).
		Str("action", string(decision.Action)).
		Float64("utility", decision.Utility).
		Str("strategy", decision.Strategy).
		Strs("reasons", decision.Reasons).
		Msg("Decision made")

	return decision, state, nil
}

// Evaluate runs the ordered decision gates. It is a pure function of its
// inputs: no logging, no mutation, fully deterministic. The counter-offer
// generator is passed in so COUNTER branches can produce concrete terms.
func Evaluate(
	cfg *domain.ResolvedConfig,
	state *domain.NegotiationState,
	offer *domain.AccumulatedOffer,
	round int,
	signals domain.BehavioralSignals,
	strat domain.StrategyResult,
	counter *counteroffer.Generator,
) domain.Decision {
	d := domain.Decision{Config: cfg, Strategy: strat.Name}
	converging := signals.ConvergenceRate > 0

	// Gate 1: the hard safety net. Never bypassed by any advisory signal.
	if round > cfg.HardRoundLimit {
		d.Action = domain.ActionEscalate
		d.Reasons = append(d.Reasons, fmt.Sprintf(
			"hard round limit %d exceeded at round %d; escalating to a human", cfg.HardRoundLimit, round))
		return d
	}
	if state.RoundExtensions > 0 && round > cfg.DynamicHardMax(state.RoundExtensions) {
		d.Action = domain.ActionEscalate
		d.Reasons = append(d.Reasons, fmt.Sprintf(
			"extended round budget %d exhausted at round %d; escalating to a human",
			cfg.DynamicHardMax(state.RoundExtensions), round))
		return d
	}

	// Gate 2: soft round budget, waived while the vendor is converging.
	if round > cfg.MaxRounds && !converging {
		d.Action = domain.ActionEscalate
		d.Reasons = append(d.Reasons, fmt.Sprintf(
			"round budget %d exhausted at round %d without convergence", cfg.MaxRounds, round))
		return d
	}

	// Gate 3: incomplete offers cannot be scored.
	if missing := accumulator.MissingRequiredFields(offer); len(missing) > 0 {
		d.Action = domain.ActionAskClarify
		d.Reasons = append(d.Reasons, fmt.Sprintf(
			"offer is missing required fields: %s", strings.Join(missing, ", ")))
		return d
	}

	scored := utility.Score(cfg, offer)
	d.Utility = scored.Utility
	d.Breakdown = scored.Breakdown

	// Gate 4: price above the configured ceiling. Early rounds counter to
	// give the vendor room to move; from the round floor on, walk away.
	if *offer.Price > cfg.MaxAcceptablePrice {
		if round < MinRoundsFloor {
			co := counter.Generate(cfg, state, offer, strat.Aggressiveness)
			d.Action = domain.ActionCounter
			d.CounterOffer = &co
			d.Reasons = append(d.Reasons, fmt.Sprintf(
				"vendor price %.2f exceeds max acceptable %.2f; countering at %.2f (utility %.0f%%)",
				*offer.Price, cfg.MaxAcceptablePrice, co.Price, d.Utility*100))
			return d
		}
		d.Action = domain.ActionWalkAway
		d.Reasons = append(d.Reasons, fmt.Sprintf(
			"vendor price %.2f still exceeds max acceptable %.2f at round %d (utility %.0f%%)",
			*offer.Price, cfg.MaxAcceptablePrice, round, d.Utility*100))
		return d
	}

	// Gate 5: good enough to sign.
	if d.Utility >= cfg.AcceptThreshold {
		d.Action = domain.ActionAccept
		d.Reasons = append(d.Reasons, fmt.Sprintf(
			"utility %.0f%% meets accept threshold %.0f%%", d.Utility*100, cfg.AcceptThreshold*100))
		return d
	}

	exploring := state.InPreferenceExploration()

	// Gate 6: below walkaway. Only a rigid vendor after the round floor is
	// abandoned; anything else gets another counter.
	if d.Utility < cfg.WalkawayThreshold {
		if round >= MinRoundsFloor && state.IsRigid(round, MinRoundsFloor) && !exploring {
			d.Action = domain.ActionWalkAway
			d.Reasons = append(d.Reasons, fmt.Sprintf(
				"utility %.0f%% below walkaway threshold %.0f%% with zero concessions over %d rounds",
				d.Utility*100, cfg.WalkawayThreshold*100, round))
			return d
		}
		return counterDecision(d, cfg, state, offer, strat, counter, fmt.Sprintf(
			"utility %.0f%% below walkaway threshold %.0f%% but still negotiable",
			d.Utility*100, cfg.WalkawayThreshold*100))
	}

	// Gate 7: below escalate. A stalled negotiation past the round floor
	// (or one the strategy flagged for early escalation) goes to a human.
	if d.Utility < cfg.EscalateThreshold {
		stalled := state.IsStalled(StallRounds)
		if stalled && !exploring && (round >= MinRoundsFloor || strat.EscalateEarly) {
			d.Action = domain.ActionEscalate
			d.Reasons = append(d.Reasons, fmt.Sprintf(
				"utility %.0f%% below escalate threshold %.0f%% with no improvement for %d+ rounds",
				d.Utility*100, cfg.EscalateThreshold*100, StallRounds))
			return d
		}
		return counterDecision(d, cfg, state, offer, strat, counter, fmt.Sprintf(
			"utility %.0f%% below escalate threshold %.0f%%; continuing to negotiate",
			d.Utility*100, cfg.EscalateThreshold*100))
	}

	// Gate 8: the negotiating band.
	return counterDecision(d, cfg, state, offer, strat, counter, fmt.Sprintf(
		"utility %.0f%% between escalate %.0f%% and accept %.0f%% thresholds",
		d.Utility*100, cfg.EscalateThreshold*100, cfg.AcceptThreshold*100))
}

func counterDecision(
	d domain.Decision,
	cfg *domain.ResolvedConfig,
	state *domain.NegotiationState,
	offer *domain.AccumulatedOffer,
	strat domain.StrategyResult,
	counter *counteroffer.Generator,
	reason string,
) domain.Decision {
	co := counter.Generate(cfg, state, offer, strat.Aggressiveness)
	d.Action = domain.ActionCounter
	d.CounterOffer = &co
	d.Reasons = append(d.Reasons, reason)
	return d
}

func (e *Engine) resolveSignals(in Input, state *domain.NegotiationState) domain.BehavioralSignals {
	if in.Signals != nil {
		return *in.Signals
	}
	return e.behavior.Analyze(in.Events, state.CountersMade, in.Config.TargetPrice)
}

func (e *Engine) resolveStrategy(in Input, signals domain.BehavioralSignals) domain.StrategyResult {
	if in.Strategy != nil {
		return *in.Strategy
	}
	return e.strategy.Select(signals, in.Config, in.Round)
}

// recordConcessions compares the previous accumulated offer with the current
// one and appends any price or terms movement toward the buyer.
func recordConcessions(
	state *domain.NegotiationState,
	cfg *domain.ResolvedConfig,
	previous, current *domain.AccumulatedOffer,
	round int,
) {
	if previous == nil || current == nil {
		return
	}

	if previous.Price != nil && current.Price != nil && *current.Price < *previous.Price {
		percent := 0.0
		if cfg.PriceRange > 0 {
			percent = (*previous.Price - *current.Price) / cfg.PriceRange * 100
		}
		state.PriceConcessions = append(state.PriceConcessions, domain.Concession{
			Round:          round,
			Previous:       *previous.Price,
			New:            *current.Price,
			PercentOfRange: percent,
		})
	}

	if previous.PaymentTerms != nil && current.PaymentTerms != nil &&
		current.PaymentTerms.Days > previous.PaymentTerms.Days {
		termsRange := float64(cfg.PaymentTermsMaxDays - cfg.PaymentTermsMinDays)
		percent := 0.0
		if termsRange > 0 {
			percent = float64(current.PaymentTerms.Days-previous.PaymentTerms.Days) / termsRange * 100
		}
		state.TermsConcessions = append(state.TermsConcessions, domain.Concession{
			Round:          round,
			Previous:       float64(previous.PaymentTerms.Days),
			New:            float64(current.PaymentTerms.Days),
			PercentOfRange: percent,
		})
	}
}
