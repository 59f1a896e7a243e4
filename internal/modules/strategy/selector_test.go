package strategy

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/negotiator/internal/domain"
)

func mediumConfig() *domain.ResolvedConfig {
	return &domain.ResolvedConfig{
		Priority:  domain.PriorityMedium,
		MaxRounds: 10,
	}
}

func TestSelect_Diverging_FinalPush(t *testing.T) {
	s := New(zerolog.Nop())

	signals := domain.BehavioralSignals{Diverging: true, ConvergenceRate: -0.2}
	result := s.Select(signals, mediumConfig(), 3)

	assert.Equal(t, domain.StrategyFinalPush, result.Name)
	// base 0.40 + roundAdj 0.06 + boost 0.20
	assert.InDelta(t, 0.66, result.Aggressiveness, 1e-9)
	assert.False(t, result.EscalateEarly, "round 3 of 10 is before the 50% gate")

	result = s.Select(signals, mediumConfig(), 5)
	assert.True(t, result.EscalateEarly, "round 5 of 10 hits the 50% gate")
}

func TestSelect_Stalling_Accelerating(t *testing.T) {
	s := New(zerolog.Nop())

	signals := domain.BehavioralSignals{Stalling: true}
	result := s.Select(signals, mediumConfig(), 2)

	assert.Equal(t, domain.StrategyAccelerating, result.Name)
	// base 0.40 + roundAdj 0.04 + boost 0.08
	assert.InDelta(t, 0.52, result.Aggressiveness, 1e-9)
	assert.False(t, result.EscalateEarly)

	result = s.Select(signals, mediumConfig(), 6)
	assert.True(t, result.EscalateEarly, "round 6 of 10 hits the 60% gate")
}

func TestSelect_DivergingOutranksStalling(t *testing.T) {
	s := New(zerolog.Nop())

	signals := domain.BehavioralSignals{Diverging: true, Stalling: true}
	result := s.Select(signals, mediumConfig(), 1)

	assert.Equal(t, domain.StrategyFinalPush, result.Name)
}

func TestSelect_ConvergingAccelerating_HoldingFirm(t *testing.T) {
	s := New(zerolog.Nop())

	signals := domain.BehavioralSignals{ConvergenceRate: 0.05, Accelerating: true}
	result := s.Select(signals, mediumConfig(), 2)

	assert.Equal(t, domain.StrategyHoldingFirm, result.Name)
	// (0.40 + 0.04) x 0.70
	assert.InDelta(t, 0.308, result.Aggressiveness, 1e-9)
	assert.True(t, result.ExtendRounds)
}

func TestSelect_SteadyConvergence_HoldingFirm(t *testing.T) {
	s := New(zerolog.Nop())

	signals := domain.BehavioralSignals{ConvergenceRate: 0.15}
	result := s.Select(signals, mediumConfig(), 2)

	assert.Equal(t, domain.StrategyHoldingFirm, result.Name)
	// (0.40 + 0.04) x 0.75
	assert.InDelta(t, 0.33, result.Aggressiveness, 1e-9)
	assert.False(t, result.ExtendRounds)
}

func TestSelect_Default_MatchingPace(t *testing.T) {
	s := New(zerolog.Nop())

	result := s.Select(domain.BehavioralSignals{}, mediumConfig(), 4)

	assert.Equal(t, domain.StrategyMatchingPace, result.Name)
	// base 0.40 + roundAdj 0.08
	assert.InDelta(t, 0.48, result.Aggressiveness, 1e-9)
}

func TestSelect_AggressivenessClamped(t *testing.T) {
	s := New(zerolog.Nop())

	lowCfg := &domain.ResolvedConfig{Priority: domain.PriorityLow, MaxRounds: 10}
	signals := domain.BehavioralSignals{Diverging: true}

	// 0.55 + 0.10 + 0.20 = 0.85, still below the cap.
	result := s.Select(signals, lowCfg, 20)
	assert.LessOrEqual(t, result.Aggressiveness, MaxAggressiveness)
	assert.GreaterOrEqual(t, result.Aggressiveness, MinAggressiveness)

	// High priority holding firm at round 0 stays above the floor.
	highCfg := &domain.ResolvedConfig{Priority: domain.PriorityHigh, MaxRounds: 10}
	result = s.Select(domain.BehavioralSignals{ConvergenceRate: 0.2}, highCfg, 0)
	assert.GreaterOrEqual(t, result.Aggressiveness, MinAggressiveness)
}

func TestRoundAdjustment_CapsAtTenPercent(t *testing.T) {
	assert.Equal(t, 0.0, RoundAdjustment(0))
	assert.InDelta(t, 0.04, RoundAdjustment(2), 1e-9)
	assert.InDelta(t, 0.10, RoundAdjustment(5), 1e-9)
	assert.InDelta(t, 0.10, RoundAdjustment(50), 1e-9, "adjustment caps at 0.10")
}

func TestBaseAggressivenessByPriority(t *testing.T) {
	s := New(zerolog.Nop())

	high := s.Select(domain.BehavioralSignals{}, &domain.ResolvedConfig{Priority: domain.PriorityHigh, MaxRounds: 10}, 0)
	medium := s.Select(domain.BehavioralSignals{}, &domain.ResolvedConfig{Priority: domain.PriorityMedium, MaxRounds: 10}, 0)
	low := s.Select(domain.BehavioralSignals{}, &domain.ResolvedConfig{Priority: domain.PriorityLow, MaxRounds: 10}, 0)

	assert.InDelta(t, 0.15, high.Aggressiveness, 1e-9)
	assert.InDelta(t, 0.40, medium.Aggressiveness, 1e-9)
	assert.InDelta(t, 0.55, low.Aggressiveness, 1e-9)
}
