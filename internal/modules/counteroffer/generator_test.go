package counteroffer

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/negotiator/internal/domain"
)

func mediumConfig() *domain.ResolvedConfig {
	return &domain.ResolvedConfig{
		TargetPrice:         1000,
		MaxAcceptablePrice:  1500,
		PriceRange:          500,
		PaymentTermsMinDays: 15,
		PaymentTermsMaxDays: 90,
		Priority:            domain.PriorityMedium,
		MaxRounds:           10,
	}
}

func vendorOffer(price float64, termsDays int) *domain.AccumulatedOffer {
	acc := domain.NewAccumulatedOffer()
	acc.Price = &price
	terms := domain.TermsForDays(termsDays)
	acc.PaymentTerms = &terms
	acc.IsComplete = true
	return acc
}

func TestGenerate_BasicFormula(t *testing.T) {
	g := New(zerolog.Nop())
	state := domain.NewNegotiationState()

	// 1000 + 500 x 0.40 = 1200, below both caps.
	counter := g.Generate(mediumConfig(), state, vendorOffer(1600, 30), 0.40)

	assert.InDelta(t, 1200.0, counter.Price, 1e-9)
	assert.Equal(t, 45, counter.TermsDays, "advances to next longer standard term")
}

func TestGenerate_ClampedToMaxAcceptable(t *testing.T) {
	g := New(zerolog.Nop())
	state := domain.NewNegotiationState()

	counter := g.Generate(mediumConfig(), state, vendorOffer(2000, 30), 0.95)

	assert.LessOrEqual(t, counter.Price, 1500.0)
}

func TestGenerate_NoPriceRegression(t *testing.T) {
	g := New(zerolog.Nop())
	state := domain.NewNegotiationState()
	cfg := mediumConfig()

	// Property: the counter price never exceeds both the vendor's latest
	// price and the configured max-acceptable price.
	for _, vendorPrice := range []float64{900, 1100, 1300, 1600, 2500} {
		for _, aggr := range []float64{0.05, 0.40, 0.95} {
			counter := g.Generate(cfg, state, vendorOffer(vendorPrice, 30), aggr)
			assert.LessOrEqual(t, counter.Price, math.Min(vendorPrice, cfg.MaxAcceptablePrice)+1e-9)
		}
	}
}

func TestGenerate_ConcessionBonus(t *testing.T) {
	g := New(zerolog.Nop())

	state := domain.NewNegotiationState()
	state.PriceConcessions = append(state.PriceConcessions,
		domain.Concession{Round: 1, Previous: 1600, New: 1575, PercentOfRange: 5})

	counter := g.Generate(mediumConfig(), state, vendorOffer(1600, 30), 0.40)

	// 1000 + 500 x (0.40 + 0.05) = 1225.
	assert.InDelta(t, 1225.0, counter.Price, 1e-9)
}

func TestGenerate_ConcessionBonusCapped(t *testing.T) {
	g := New(zerolog.Nop())

	state := domain.NewNegotiationState()
	state.PriceConcessions = append(state.PriceConcessions,
		domain.Concession{Round: 1, PercentOfRange: 60})

	counter := g.Generate(mediumConfig(), state, vendorOffer(1600, 30), 0.40)

	// Bonus caps at 0.10: 1000 + 500 x 0.50 = 1250.
	assert.InDelta(t, 1250.0, counter.Price, 1e-9)
}

func TestGenerate_PriceFocusedVendorAdjustment(t *testing.T) {
	g := New(zerolog.Nop())

	state := domain.NewNegotiationState()
	state.VendorEmphasis = domain.EmphasisPriceFocused
	state.EmphasisConfidence = 0.8

	counter := g.Generate(mediumConfig(), state, vendorOffer(1600, 30), 0.40)

	// Price moves up by 0.10 x 0.8: 1000 + 500 x 0.48 = 1240.
	assert.InDelta(t, 1240.0, counter.Price, 1e-9)
	// Terms pushed to the longest in exchange.
	assert.Equal(t, 90, counter.TermsDays)
}

func TestGenerate_TermsFocusedVendorAdjustment(t *testing.T) {
	g := New(zerolog.Nop())

	state := domain.NewNegotiationState()
	state.VendorEmphasis = domain.EmphasisTermsFocused
	state.EmphasisConfidence = 0.9

	counter := g.Generate(mediumConfig(), state, vendorOffer(1600, 30), 0.40)

	// Price pushed down by 0.05 x 0.9: 1000 + 500 x 0.355 = 1177.50.
	assert.InDelta(t, 1177.50, counter.Price, 1e-9)
	// Terms left near the vendor's own offer.
	assert.Equal(t, 30, counter.TermsDays)
}

func TestGenerate_LowConfidenceEmphasisIgnored(t *testing.T) {
	g := New(zerolog.Nop())

	state := domain.NewNegotiationState()
	state.VendorEmphasis = domain.EmphasisPriceFocused
	state.EmphasisConfidence = 0.6 // below the 0.7 floor

	counter := g.Generate(mediumConfig(), state, vendorOffer(1600, 30), 0.40)

	assert.InDelta(t, 1200.0, counter.Price, 1e-9)
}

func TestGenerate_CappedAtVendorShortensTerms(t *testing.T) {
	g := New(zerolog.Nop())
	state := domain.NewNegotiationState()

	// Vendor already at 1100, below the computed 1200 counter: price caps
	// at the vendor's own offer, so the counter gives ground on terms.
	counter := g.Generate(mediumConfig(), state, vendorOffer(1100, 60), 0.40)

	assert.InDelta(t, 1100.0, counter.Price, 1e-9)
	assert.Equal(t, 45, counter.TermsDays, "terms shortened below the vendor's 60 days")
	assert.NotEmpty(t, counter.Notes)
}

func TestGenerate_HighPriorityJumpsToLongestTerms(t *testing.T) {
	g := New(zerolog.Nop())
	state := domain.NewNegotiationState()

	cfg := mediumConfig()
	cfg.Priority = domain.PriorityHigh

	counter := g.Generate(cfg, state, vendorOffer(1600, 15), 0.15)

	assert.Equal(t, 90, counter.TermsDays)
}

func TestGenerate_RoundsToCents(t *testing.T) {
	g := New(zerolog.Nop())
	state := domain.NewNegotiationState()

	counter := g.Generate(mediumConfig(), state, vendorOffer(1600, 30), 0.333333)

	cents := counter.Price * 100
	assert.InDelta(t, math.Round(cents), cents, 1e-9)
}

func TestGenerate_NeverEchoesVendorOffer(t *testing.T) {
	g := New(zerolog.Nop())
	state := domain.NewNegotiationState()

	vendor := vendorOffer(1050, 30)
	counter := g.Generate(mediumConfig(), state, vendor, 0.40)

	echoed := counter.Price == *vendor.Price && counter.TermsDays == vendor.PaymentTerms.Days
	assert.False(t, echoed, "counter must differ from the vendor's offer in price or terms")
}
