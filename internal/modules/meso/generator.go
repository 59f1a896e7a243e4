// Package meso generates Multiple Equivalent Simultaneous Offers: 2-3
// sibling counter-offers with different trade-offs but near-equal utility.
// The counterparty's pick reveals which dimension they actually care about.
package meso

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/negotiator/internal/domain"
	"github.com/aristath/negotiator/internal/modules/counteroffer"
	"github.com/aristath/negotiator/internal/modules/utility"
)

const (
	// Utility variance budgets. Options must sit within this deviation from
	// the mean after one adjustment pass, or generation reports failure.
	StaticVarianceBudget  = 0.02
	DynamicVarianceBudget = 0.03

	// Final-offer gate: only once the vendor's own offer already scores this
	// well, and never in round 1.
	FinalUtilityFloor = 0.75
	FinalMinRound     = 2

	// Price-lean option discount off the base counter price.
	priceLeanDiscount = 0.025

	// One balancing pass nudges each option's price by
	// deviation x priceRange x this factor.
	nudgeFactor = 0.1

	// Dynamic concession rates: generous early, tight late.
	earlyPrimaryRate   = 0.025
	earlySecondaryRate = 0.015
	latePrimaryRate    = 0.010
	lateSecondaryRate  = 0.005

	// Dynamic options must move at least max($50, 0.5% x previous price)
	// from the prior round's corresponding option.
	minOptionDeltaFloor   = 50.0
	minOptionDeltaPercent = 0.005
)

// Option identifiers. Stable across rounds so prior-round prices can be
// matched per option.
const (
	OptionPriceLean = "price_lean"
	OptionTermsLean = "terms_lean"
	OptionBalanced  = "balanced"
)

// Generator builds MESO menus.
type Generator struct {
	counter *counteroffer.Generator
	log     zerolog.Logger
}

// New creates a MESO generator.
func New(log zerolog.Logger) *Generator {
	return &Generator{
		counter: counteroffer.New(log),
		log:     log.With().Str("component", "meso").Logger(),
	}
}

// GenerateStatic produces the three standard options around the base counter
// price: price-lean (base x 0.975, standard warranty, mid terms), terms-lean
// (base price, longest terms, standard warranty) and balanced (base price,
// mid terms, fastest delivery, extended warranty).
func (g *Generator) GenerateStatic(
	cfg *domain.ResolvedConfig,
	state *domain.NegotiationState,
	vendorOffer *domain.AccumulatedOffer,
	aggressiveness float64,
) domain.MesoResult {
	if cfg == nil || cfg.PriceRange <= 0 {
		return failure("price range is zero; cannot construct distinct options")
	}

	base := g.counter.Generate(cfg, state, vendorOffer, aggressiveness).Price

	options := []domain.MesoOption{
		priceLeanOption(cfg, base*(1-priceLeanDiscount)),
		termsLeanOption(cfg, base),
		balancedOption(cfg, base),
	}

	result := g.balance(cfg, options, StaticVarianceBudget)
	g.logResult("static", result)
	return result
}

// GenerateDynamic is the learning-adjusted variant: the vendor-preference
// profile decides which option is cheapest, concession rates shrink as the
// negotiation ages, and every option must move a minimum distance from the
// prior round's corresponding option so the menu never repeats itself.
func (g *Generator) GenerateDynamic(
	cfg *domain.ResolvedConfig,
	state *domain.NegotiationState,
	vendorOffer *domain.AccumulatedOffer,
	aggressiveness float64,
	profile *domain.VendorProfile,
	round int,
) domain.MesoResult {
	if cfg == nil || cfg.PriceRange <= 0 {
		return failure("price range is zero; cannot construct distinct options")
	}

	base := g.counter.Generate(cfg, state, vendorOffer, aggressiveness).Price

	primary, secondary := concessionRates(cfg, round)
	cheapest := cheapestOptionID(profile)

	prices := map[string]float64{
		OptionPriceLean: base,
		OptionTermsLean: base,
		OptionBalanced:  base,
	}
	prices[cheapest] = base * (1 - primary)
	prices[nextOptionID(cheapest)] = base * (1 - secondary)

	if state != nil {
		for id, price := range prices {
			prices[id] = enforceMinimumDelta(price, state.LastMesoPrices[id], cfg.TargetPrice)
		}
	}

	options := []domain.MesoOption{
		priceLeanOption(cfg, prices[OptionPriceLean]),
		termsLeanOption(cfg, prices[OptionTermsLean]),
		balancedOption(cfg, prices[OptionBalanced]),
	}

	result := g.balance(cfg, options, DynamicVarianceBudget)
	g.logResult("dynamic", result)
	return result
}

// GenerateFinal produces three near-identical closing offers clustered near
// the vendor's own price. It fires only once the vendor's offer already
// scores at or above the final-offer floor, from round 2 on; the goal is to
// accelerate closure, not explore preferences.
func (g *Generator) GenerateFinal(
	cfg *domain.ResolvedConfig,
	vendorOffer *domain.AccumulatedOffer,
	currentUtility float64,
	round int,
) domain.MesoResult {
	if currentUtility < FinalUtilityFloor {
		return failure(fmt.Sprintf("utility %.2f below final-offer floor %.2f", currentUtility, FinalUtilityFloor))
	}
	if round < FinalMinRound {
		return failure(fmt.Sprintf("round %d before final-offer minimum round %d", round, FinalMinRound))
	}
	if vendorOffer == nil || vendorOffer.Price == nil {
		return failure("vendor offer carries no price to close against")
	}

	anchor := math.Min(*vendorOffer.Price, cfg.MaxAcceptablePrice)
	vendorDays := cfg.PaymentTermsMinDays
	if vendorOffer.PaymentTerms != nil {
		vendorDays = vendorOffer.PaymentTerms.Days
	}

	standard := standardWarranty(cfg)
	extended := standard + 12

	options := []domain.MesoOption{
		newOption("final_price", "Close on price", anchor*0.99,
			domain.TermsForDays(vendorDays), standard,
			[]string{"price"}, "slightly below your current price, terms as offered"),
		newOption("final_terms", "Close on terms", anchor*0.985,
			domain.NextLongerTerms(vendorDays), standard,
			[]string{"terms"}, "a small price step for one longer payment term"),
		newOption("final_package", "Close the package", anchor*0.98,
			domain.NextLongerTerms(vendorDays), extended,
			[]string{"price", "warranty"}, "best price with extended warranty to sign now"),
	}

	result := g.balance(cfg, options, StaticVarianceBudget)
	g.logResult("final", result)
	return result
}

// Remember stores the generated option prices on the negotiation state so
// the next dynamic round can enforce its minimum-movement rule.
func (g *Generator) Remember(state *domain.NegotiationState, result domain.MesoResult) {
	if state == nil || !result.Success {
		return
	}
	if state.LastMesoPrices == nil {
		state.LastMesoPrices = make(map[string]float64, len(result.Options))
	}
	for _, opt := range result.Options {
		if opt.Offer.Price != nil {
			state.LastMesoPrices[opt.ID] = *opt.Offer.Price
		}
	}
}

// balance scores every option, then runs at most one adjustment pass: when
// the max deviation from the mean utility exceeds the budget, each option's
// price is nudged by deviation x priceRange x 0.1 and rescored. A menu still
// outside the budget after the pass is reported as a failure.
func (g *Generator) balance(cfg *domain.ResolvedConfig, options []domain.MesoOption, budget float64) domain.MesoResult {
	mean, maxDev := score(cfg, options)

	if maxDev > budget {
		for i := range options {
			deviation := options[i].Utility - mean
			nudged := *options[i].Offer.Price + deviation*cfg.PriceRange*nudgeFactor
			nudged = math.Max(nudged, cfg.TargetPrice)
			nudged = math.Min(nudged, cfg.MaxAcceptablePrice)
			options[i].Offer.Price = &nudged
		}
		mean, maxDev = score(cfg, options)
	}

	if maxDev > budget {
		return domain.MesoResult{
			Options:      options,
			MeanUtility:  mean,
			MaxDeviation: maxDev,
			Success:      false,
			Reason:       fmt.Sprintf("utility deviation %.3f exceeds budget %.3f after adjustment", maxDev, budget),
		}
	}

	return domain.MesoResult{
		Options:      options,
		MeanUtility:  mean,
		MaxDeviation: maxDev,
		Success:      true,
	}
}

// score computes each option's utility and returns the mean and the max
// absolute deviation from it.
func score(cfg *domain.ResolvedConfig, options []domain.MesoOption) (mean, maxDev float64) {
	utilities := make([]float64, len(options))
	for i := range options {
		acc := domain.AccumulatedOffer{Offer: options[i].Offer}
		options[i].Utility = utility.Score(cfg, &acc).Utility
		utilities[i] = options[i].Utility
	}

	mean = stat.Mean(utilities, nil)
	for _, u := range utilities {
		if dev := math.Abs(u - mean); dev > maxDev {
			maxDev = dev
		}
	}
	return mean, maxDev
}

func priceLeanOption(cfg *domain.ResolvedConfig, price float64) domain.MesoOption {
	return newOption(OptionPriceLean, "Best price", price,
		midTerms(cfg), standardWarranty(cfg),
		[]string{"price"}, "lowest price with mid-range payment terms and standard warranty")
}

func termsLeanOption(cfg *domain.ResolvedConfig, price float64) domain.MesoOption {
	longest := domain.StandardPaymentTerms[len(domain.StandardPaymentTerms)-1]
	return newOption(OptionTermsLean, "Best terms", price,
		longest, standardWarranty(cfg),
		[]string{"terms"}, "longest payment terms at the base price")
}

func balancedOption(cfg *domain.ResolvedConfig, price float64) domain.MesoOption {
	opt := newOption(OptionBalanced, "Balanced package", price,
		midTerms(cfg), standardWarranty(cfg)+12,
		[]string{"balanced"}, "base price with mid terms, fastest delivery and extended warranty")
	fastest := 7
	opt.Offer.DeliveryDays = &fastest
	return opt
}

func newOption(id, label string, price float64, terms domain.PaymentTerms, warrantyMonths int, emphasis []string, note string) domain.MesoOption {
	price = math.Round(price*100) / 100
	warranty := warrantyMonths
	return domain.MesoOption{
		ID:           id,
		Label:        label,
		Emphasis:     emphasis,
		TradeoffNote: note,
		Offer: domain.Offer{
			Price:          &price,
			PaymentTerms:   &terms,
			WarrantyMonths: &warranty,
		},
	}
}

// midTerms returns the standard term in the middle of the configured
// min/max day window.
func midTerms(cfg *domain.ResolvedConfig) domain.PaymentTerms {
	mid := (cfg.PaymentTermsMinDays + cfg.PaymentTermsMaxDays) / 2
	return domain.NextLongerTerms(mid - 1)
}

func standardWarranty(cfg *domain.ResolvedConfig) int {
	if cfg.WarrantyTargetMonths > 0 {
		return cfg.WarrantyTargetMonths
	}
	return 12
}

// concessionRates returns (primary, secondary) price discounts for the
// cheapest and second-cheapest options. The first half of the round budget
// concedes faster than the second.
func concessionRates(cfg *domain.ResolvedConfig, round int) (float64, float64) {
	half := cfg.MaxRounds / 2
	if half < 1 {
		half = 1
	}
	if round <= half {
		return earlyPrimaryRate, earlySecondaryRate
	}
	return latePrimaryRate, lateSecondaryRate
}

// cheapestOptionID maps the vendor-preference profile to the option that
// should carry the deepest discount: a vendor known to care about terms gets
// the discount on the terms-lean option, and so on.
func cheapestOptionID(profile *domain.VendorProfile) string {
	if profile == nil {
		return OptionPriceLean
	}
	id := OptionPriceLean
	best := profile.PriceWeight
	if profile.TermsWeight > best {
		id, best = OptionTermsLean, profile.TermsWeight
	}
	if profile.DeliveryWeight > best {
		id, best = OptionBalanced, profile.DeliveryWeight
	}
	if profile.WarrantyWeight > best {
		id = OptionBalanced
	}
	return id
}

// nextOptionID cycles price-lean -> terms-lean -> balanced -> price-lean.
func nextOptionID(id string) string {
	switch id {
	case OptionPriceLean:
		return OptionTermsLean
	case OptionTermsLean:
		return OptionBalanced
	default:
		return OptionPriceLean
	}
}

// enforceMinimumDelta guarantees the option moved at least
// max($50, 0.5% x previous price) from last round's price, always downward,
// floored at the target price.
func enforceMinimumDelta(price, previous, target float64) float64 {
	if previous <= 0 {
		return price
	}
	minDelta := math.Max(minOptionDeltaFloor, previous*minOptionDeltaPercent)
	if math.Abs(price-previous) < minDelta {
		price = previous - minDelta
	}
	return math.Max(price, target)
}

func failure(reason string) domain.MesoResult {
	return domain.MesoResult{Success: false, Reason: reason}
}

func (g *Generator) logResult(variant string, result domain.MesoResult) {
	if !result.Success {
		g.log.Debug().Str("variant", variant).Str("reason", result.Reason).Msg("MESO generation failed")
		return
	}
	g.log.Debug().
		Str("variant", variant).
		Int("options", len(result.Options)).
		Float64("mean_utility", result.MeanUtility).
		Float64("max_deviation", result.MaxDeviation).
		Msg("Generated MESO menu")
}
