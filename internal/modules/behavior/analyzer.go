// Package behavior derives momentum signals from the message/offer history:
// concession velocity and acceleration, price-gap convergence, response
// cadence, sentiment, and a composite momentum score.
package behavior

import (
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/negotiator/internal/domain"
)

// Momentum component weights. The composite blends convergence, concession
// direction, sentiment, response cadence and a stalling penalty into [-1,1].
const (
	momentumWeightConvergence  = 0.30
	momentumWeightConcessions  = 0.25
	momentumWeightSentiment    = 0.20
	momentumWeightResponseTime = 0.15
	momentumStallingPenalty    = 0.20

	// A concession is an acceleration when it exceeds the running average
	// of prior concessions by more than 10%.
	accelerationFactor = 1.10

	// Stalling: the last two concessions are both below 2% of the average
	// offered price.
	stallingConcessionRatio = 0.02

	// Diverging: convergence rate below -5%.
	divergingThreshold = -0.05

	// Response cadence comparison threshold (+/-15%).
	cadenceThreshold = 0.15

	// gapWindow is how many trailing gaps feed trend analysis.
	gapWindow = 3
)

// Analyzer computes behavioral signals.
type Analyzer struct {
	log zerolog.Logger
}

// New creates a behavioral analyzer.
func New(log zerolog.Logger) *Analyzer {
	return &Analyzer{
		log: log.With().Str("component", "behavior").Logger(),
	}
}

// Analyze derives the full signal set from the ordered counterparty offer
// events and the buyer's counter history. Events must be ordered oldest
// first. An empty or single-event history yields neutral signals.
func (a *Analyzer) Analyze(
	events []domain.OfferEvent,
	counters []domain.CounterRecord,
	targetPrice float64,
) domain.BehavioralSignals {
	signals := domain.BehavioralSignals{
		ResponseTimeTrend: domain.TrendStable,
		Sentiment:         domain.SentimentNeutral,
	}

	prices := pricedEvents(events)

	if len(prices) >= 2 {
		signals.ConcessionVelocity = concessionVelocity(prices)
		signals.Accelerating = isAccelerating(prices)
		signals.Stalling = isStalling(prices)
	}

	signals.GapTrend = gapTrend(prices, counters, targetPrice)
	signals.ConvergenceRate = convergenceRate(signals.GapTrend)
	signals.Diverging = signals.ConvergenceRate < divergingThreshold

	signals.ResponseTimeTrend = responseTimeTrend(events)
	signals.Sentiment = classifySentiment(events)

	signals.Momentum = momentum(signals)

	a.log.Debug().
		Float64("velocity", signals.ConcessionVelocity).
		Float64("convergence", signals.ConvergenceRate).
		Bool("stalling", signals.Stalling).
		Bool("diverging", signals.Diverging).
		Str("sentiment", string(signals.Sentiment)).
		Float64("momentum", signals.Momentum).
		Msg("Analyzed counterparty behavior")

	return signals
}

type pricedEvent struct {
	round int
	price float64
}

func pricedEvents(events []domain.OfferEvent) []pricedEvent {
	out := make([]pricedEvent, 0, len(events))
	for _, e := range events {
		if e.Price != nil {
			out = append(out, pricedEvent{round: e.Round, price: *e.Price})
		}
	}
	return out
}

// concessionVelocity is (firstOffer - latestOffer) / roundsElapsed.
func concessionVelocity(prices []pricedEvent) float64 {
	first := prices[0]
	latest := prices[len(prices)-1]
	rounds := latest.round - first.round
	if rounds <= 0 {
		rounds = len(prices) - 1
	}
	if rounds <= 0 {
		return 0
	}
	return (first.price - latest.price) / float64(rounds)
}

// concessionSizes returns the successive price drops (positive = toward the
// buyer).
func concessionSizes(prices []pricedEvent) []float64 {
	sizes := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		sizes = append(sizes, prices[i-1].price-prices[i].price)
	}
	return sizes
}

func isAccelerating(prices []pricedEvent) bool {
	sizes := concessionSizes(prices)
	if len(sizes) < 2 {
		return false
	}
	latest := sizes[len(sizes)-1]
	prior := sizes[:len(sizes)-1]
	avg := stat.Mean(prior, nil)
	if avg <= 0 {
		return latest > 0
	}
	return latest > avg*accelerationFactor
}

func isStalling(prices []pricedEvent) bool {
	sizes := concessionSizes(prices)
	if len(sizes) < 2 {
		return false
	}

	values := make([]float64, len(prices))
	for i, p := range prices {
		values[i] = p.price
	}
	avgPrice := stat.Mean(values, nil)
	if avgPrice <= 0 {
		return false
	}

	threshold := avgPrice * stallingConcessionRatio
	last := sizes[len(sizes)-1]
	prev := sizes[len(sizes)-2]
	return math.Abs(last) < threshold && math.Abs(prev) < threshold
}

// gapTrend returns the last up-to-3 fractional gaps between vendor offers
// and the buyer's position (latest counter price when one exists at or
// before the offer's round, else the target price).
func gapTrend(prices []pricedEvent, counters []domain.CounterRecord, targetPrice float64) []float64 {
	if len(prices) == 0 || targetPrice <= 0 {
		return nil
	}

	gaps := make([]float64, 0, len(prices))
	for _, p := range prices {
		ref := buyerReference(counters, p.round, targetPrice)
		if ref <= 0 {
			continue
		}
		gaps = append(gaps, (p.price-ref)/ref)
	}

	if len(gaps) > gapWindow {
		gaps = gaps[len(gaps)-gapWindow:]
	}
	return gaps
}

// buyerReference is the buyer's most recent counter price at or before the
// given round, falling back to the target price.
func buyerReference(counters []domain.CounterRecord, round int, targetPrice float64) float64 {
	ref := targetPrice
	for _, c := range counters {
		if c.Round <= round && c.Price > 0 {
			ref = c.Price
		}
	}
	return ref
}

// convergenceRate is the average fractional gap reduction round-over-round.
// Positive = converging.
func convergenceRate(gaps []float64) float64 {
	if len(gaps) < 2 {
		return 0
	}
	reductions := make([]float64, 0, len(gaps)-1)
	for i := 1; i < len(gaps); i++ {
		prev := math.Abs(gaps[i-1])
		if prev < 1e-9 {
			continue
		}
		reductions = append(reductions, (prev-math.Abs(gaps[i]))/prev)
	}
	if len(reductions) == 0 {
		return 0
	}
	return stat.Mean(reductions, nil)
}

// responseTimeTrend compares the first half vs the second half of the last 3
// inter-message gaps with a +/-15% threshold.
func responseTimeTrend(events []domain.OfferEvent) domain.ResponseTrend {
	if len(events) < 3 {
		return domain.TrendStable
	}

	gaps := make([]float64, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		d := events[i].ReceivedAt.Sub(events[i-1].ReceivedAt).Seconds()
		if d > 0 {
			gaps = append(gaps, d)
		}
	}
	if len(gaps) > gapWindow {
		gaps = gaps[len(gaps)-gapWindow:]
	}
	if len(gaps) < 2 {
		return domain.TrendStable
	}

	mid := (len(gaps) + 1) / 2
	firstHalf := stat.Mean(gaps[:mid], nil)
	secondHalf := stat.Mean(gaps[mid:], nil)
	if firstHalf <= 0 {
		return domain.TrendStable
	}

	switch {
	case secondHalf < firstHalf*(1-cadenceThreshold):
		return domain.TrendFaster
	case secondHalf > firstHalf*(1+cadenceThreshold):
		return domain.TrendSlower
	default:
		return domain.TrendStable
	}
}

// momentum blends the individual signals into one composite in [-1,1].
func momentum(s domain.BehavioralSignals) float64 {
	m := 0.0

	// Convergence contribution.
	switch {
	case s.ConvergenceRate > 0:
		m += momentumWeightConvergence
	case s.Diverging:
		m -= momentumWeightConvergence
	}

	// Concession direction.
	switch {
	case s.ConcessionVelocity > 0:
		m += momentumWeightConcessions
	case s.ConcessionVelocity < 0:
		m -= momentumWeightConcessions
	}

	// Sentiment.
	switch s.Sentiment {
	case domain.SentimentPositive, domain.SentimentUrgent:
		m += momentumWeightSentiment
	case domain.SentimentResistant:
		m -= momentumWeightSentiment
	}

	// Response cadence.
	switch s.ResponseTimeTrend {
	case domain.TrendFaster:
		m += momentumWeightResponseTime
	case domain.TrendSlower:
		m -= momentumWeightResponseTime
	}

	if s.Stalling {
		m -= momentumStallingPenalty
	}

	return math.Max(-1, math.Min(1, m))
}

// Sentiment vocabularies. Matching is lowercase substring matching over the
// concatenated message text.
var (
	positiveKeywords = []string{
		"great", "pleased", "happy", "agree", "good deal",
		"works for us", "appreciate", "looking forward", "confirm",
	}
	resistantKeywords = []string{
		"cannot", "can't", "unable", "firm", "final offer",
		"best we can do", "no room", "unfortunately", "not possible",
		"take it or leave",
	}
	urgencyKeywords = []string{
		"urgent", "asap", "immediately", "deadline", "end of quarter",
		"expires", "today only", "right away", "time-sensitive",
	}
)

// classifySentiment derives one sentiment from all event texts. Urgent takes
// priority when at least two urgency keywords match.
func classifySentiment(events []domain.OfferEvent) domain.Sentiment {
	var text strings.Builder
	for _, e := range events {
		text.WriteString(strings.ToLower(e.Text))
		text.WriteString(" ")
	}
	combined := text.String()

	urgentHits := countMatches(combined, urgencyKeywords)
	if urgentHits >= 2 {
		return domain.SentimentUrgent
	}

	positiveHits := countMatches(combined, positiveKeywords)
	resistantHits := countMatches(combined, resistantKeywords)

	switch {
	case resistantHits > positiveHits:
		return domain.SentimentResistant
	case positiveHits > resistantHits:
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

func countMatches(text string, keywords []string) int {
	count := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			count++
		}
	}
	return count
}

// DetectKeywords returns every sentiment/urgency keyword present in the
// text, for accumulation into the negotiation state.
func DetectKeywords(text string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, set := range [][]string{positiveKeywords, resistantKeywords, urgencyKeywords} {
		for _, k := range set {
			if strings.Contains(lower, k) {
				hits = append(hits, k)
			}
		}
	}
	return hits
}
