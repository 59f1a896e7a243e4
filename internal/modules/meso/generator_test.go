package meso

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/negotiator/internal/domain"
)

// balancedWeights is a weighting under which the three standard options land
// naturally close in utility: the price-lean discount roughly pays for the
// terms and delivery trade-offs.
func balancedWeights() map[string]float64 {
	return map[string]float64{
		domain.ParamPrice:        80,
		domain.ParamPaymentTerms: 12,
		domain.ParamDelivery:     8,
	}
}

func mesoConfig(weights map[string]float64) *domain.ResolvedConfig {
	return &domain.ResolvedConfig{
		TargetPrice:         1000,
		MaxAcceptablePrice:  1500,
		PriceRange:          500,
		PaymentTermsMinDays: 15,
		PaymentTermsMaxDays: 90,
		Priority:            domain.PriorityMedium,
		Weights:             weights,
		MaxRounds:           10,
		HardRoundLimit:      20,
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

func optionByID(t *testing.T, result domain.MesoResult, id string) domain.MesoOption {
	t.Helper()
	for _, opt := range result.Options {
		if opt.ID == id {
			return opt
		}
	}
	t.Fatalf("option %q not in result", id)
	return domain.MesoOption{}
}

func TestGenerateStatic_ThreeDistinctOptions(t *testing.T) {
	g := New(zerolog.Nop())
	cfg := mesoConfig(balancedWeights())
	state := domain.NewNegotiationState()

	result := g.GenerateStatic(cfg, state, vendorOffer(1600, 30), 0.40)

	require.True(t, result.Success, result.Reason)
	require.Len(t, result.Options, 3)
	assert.LessOrEqual(t, result.MaxDeviation, StaticVarianceBudget)

	// Base counter price is 1000 + 500 x 0.40 = 1200.
	priceLean := optionByID(t, result, OptionPriceLean)
	assert.InDelta(t, 1170.0, *priceLean.Offer.Price, 1e-9, "price-lean is base x 0.975")
	assert.Equal(t, 60, priceLean.Offer.PaymentTerms.Days, "mid-range terms")

	termsLean := optionByID(t, result, OptionTermsLean)
	assert.InDelta(t, 1200.0, *termsLean.Offer.Price, 1e-9)
	assert.Equal(t, 90, termsLean.Offer.PaymentTerms.Days, "longest terms")

	balanced := optionByID(t, result, OptionBalanced)
	require.NotNil(t, balanced.Offer.DeliveryDays)
	assert.Equal(t, 7, *balanced.Offer.DeliveryDays, "fastest delivery")
	require.NotNil(t, balanced.Offer.WarrantyMonths)
	assert.Equal(t, 24, *balanced.Offer.WarrantyMonths, "extended warranty")
}

func TestGenerateStatic_VarianceBudgetExceeded(t *testing.T) {
	g := New(zerolog.Nop())

	// With terms weighted as heavily as price the terms-lean option runs
	// away from its siblings and one nudge pass cannot close the gap.
	cfg := mesoConfig(map[string]float64{
		domain.ParamPrice:        50,
		domain.ParamPaymentTerms: 50,
	})

	result := g.GenerateStatic(cfg, domain.NewNegotiationState(), vendorOffer(1600, 30), 0.40)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Reason)
	assert.Greater(t, result.MaxDeviation, StaticVarianceBudget)
	assert.Len(t, result.Options, 3, "failed menus still expose their options")
}

func TestGenerateStatic_ZeroPriceRange(t *testing.T) {
	g := New(zerolog.Nop())
	cfg := mesoConfig(balancedWeights())
	cfg.PriceRange = 0

	result := g.GenerateStatic(cfg, domain.NewNegotiationState(), vendorOffer(1600, 30), 0.40)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Reason)
}

func TestGenerateStatic_VarianceBoundProperty(t *testing.T) {
	g := New(zerolog.Nop())
	state := domain.NewNegotiationState()

	weightSets := []map[string]float64{
		balancedWeights(),
		{domain.ParamPrice: 100},
		{domain.ParamPrice: 50, domain.ParamPaymentTerms: 50},
		{domain.ParamPrice: 40, domain.ParamPaymentTerms: 20, domain.ParamDelivery: 20, domain.ParamWarranty: 20},
	}

	// Either the menu is inside the budget or it is reported as a failure -
	// never a "successful" menu outside the bound.
	for _, weights := range weightSets {
		for _, aggr := range []float64{0.15, 0.40, 0.55} {
			result := g.GenerateStatic(mesoConfig(weights), state, vendorOffer(1600, 30), aggr)
			if result.Success {
				assert.LessOrEqual(t, result.MaxDeviation, StaticVarianceBudget)
			}
		}
	}
}

func TestGenerateDynamic_EarlyRoundRates(t *testing.T) {
	g := New(zerolog.Nop())
	cfg := mesoConfig(balancedWeights())
	state := domain.NewNegotiationState()

	result := g.GenerateDynamic(cfg, state, vendorOffer(1600, 30), 0.40, nil, 2)

	require.True(t, result.Success, result.Reason)
	assert.LessOrEqual(t, result.MaxDeviation, DynamicVarianceBudget)

	// Without a profile the price-lean option takes the primary 2.5%
	// discount and terms-lean the secondary 1.5%.
	assert.InDelta(t, 1170.0, *optionByID(t, result, OptionPriceLean).Offer.Price, 1e-9)
	assert.InDelta(t, 1182.0, *optionByID(t, result, OptionTermsLean).Offer.Price, 1e-9)
	assert.InDelta(t, 1200.0, *optionByID(t, result, OptionBalanced).Offer.Price, 1e-9)
}

func TestGenerateDynamic_ProfileBiasesCheapestOption(t *testing.T) {
	g := New(zerolog.Nop())
	cfg := mesoConfig(balancedWeights())
	state := domain.NewNegotiationState()

	profile := &domain.VendorProfile{PriceWeight: 0.2, TermsWeight: 0.6, DeliveryWeight: 0.1, WarrantyWeight: 0.1}
	result := g.GenerateDynamic(cfg, state, vendorOffer(1600, 30), 0.40, profile, 2)

	termsLean := optionByID(t, result, OptionTermsLean)
	priceLean := optionByID(t, result, OptionPriceLean)
	assert.Less(t, *termsLean.Offer.Price, *priceLean.Offer.Price,
		"a terms-focused vendor gets the deepest discount on the terms-lean option")
}

func TestConcessionRates_ShrinkLate(t *testing.T) {
	cfg := mesoConfig(balancedWeights())

	primary, secondary := concessionRates(cfg, 5)
	assert.Equal(t, earlyPrimaryRate, primary)
	assert.Equal(t, earlySecondaryRate, secondary)

	primary, secondary = concessionRates(cfg, 6)
	assert.Equal(t, latePrimaryRate, primary)
	assert.Equal(t, lateSecondaryRate, secondary)
}

func TestEnforceMinimumDelta(t *testing.T) {
	// Moved only $20 since last round: pushed a full $50 below the prior
	// price instead.
	assert.InDelta(t, 1140.0, enforceMinimumDelta(1170, 1190, 1000), 1e-9)

	// Already moved enough: unchanged.
	assert.InDelta(t, 1100.0, enforceMinimumDelta(1100, 1190, 1000), 1e-9)

	// At a high previous price the 0.5% rule dominates the $50 floor.
	assert.InDelta(t, 19900.0, enforceMinimumDelta(19980, 20000, 1000), 1e-9)

	// No prior price recorded: unchanged.
	assert.InDelta(t, 1170.0, enforceMinimumDelta(1170, 0, 1000), 1e-9)

	// Never pushed below the target price.
	assert.InDelta(t, 1000.0, enforceMinimumDelta(1010, 1020, 1000), 1e-9)
}

func TestGenerateFinal_GatedByUtilityAndRound(t *testing.T) {
	g := New(zerolog.Nop())
	cfg := mesoConfig(map[string]float64{domain.ParamPrice: 100})

	result := g.GenerateFinal(cfg, vendorOffer(1100, 30), 0.70, 5)
	assert.False(t, result.Success, "utility below the 0.75 floor")

	result = g.GenerateFinal(cfg, vendorOffer(1100, 30), 0.80, 1)
	assert.False(t, result.Success, "never in round 1")

	result = g.GenerateFinal(cfg, nil, 0.80, 5)
	assert.False(t, result.Success, "no vendor price to close against")
}

func TestGenerateFinal_ClustersNearVendorPrice(t *testing.T) {
	g := New(zerolog.Nop())
	cfg := mesoConfig(map[string]float64{domain.ParamPrice: 100})

	result := g.GenerateFinal(cfg, vendorOffer(1100, 30), 0.80, 5)

	require.True(t, result.Success, result.Reason)
	require.Len(t, result.Options, 3)
	assert.LessOrEqual(t, result.MaxDeviation, StaticVarianceBudget)

	for _, opt := range result.Options {
		price := *opt.Offer.Price
		assert.GreaterOrEqual(t, price, 1100*0.98-1e-9)
		assert.LessOrEqual(t, price, 1100.0)
	}
}

func TestRemember_StoresOptionPrices(t *testing.T) {
	g := New(zerolog.Nop())
	cfg := mesoConfig(balancedWeights())
	state := domain.NewNegotiationState()

	result := g.GenerateStatic(cfg, state, vendorOffer(1600, 30), 0.40)
	require.True(t, result.Success, result.Reason)

	g.Remember(state, result)

	assert.InDelta(t, 1170.0, state.LastMesoPrices[OptionPriceLean], 1e-9)
	assert.InDelta(t, 1200.0, state.LastMesoPrices[OptionTermsLean], 1e-9)
	assert.InDelta(t, 1200.0, state.LastMesoPrices[OptionBalanced], 1e-9)
}

func TestRemember_SkipsFailedResults(t *testing.T) {
	g := New(zerolog.Nop())
	state := domain.NewNegotiationState()

	g.Remember(state, failure("nothing generated"))

	assert.Empty(t, state.LastMesoPrices)
}
