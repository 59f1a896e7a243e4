// Package counteroffer computes concrete counter prices and terms from
// aggressiveness, round number, concession history and vendor emphasis.
package counteroffer

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/negotiator/internal/domain"
)

const (
	// Concession bonus cap: a counterparty who has already moved earns at
	// most 10 extra points of aggressiveness.
	maxConcessionBonus = 0.10

	// Emphasis adjustments apply only once vendor-emphasis confidence
	// reaches this floor.
	emphasisConfidenceFloor = 0.70

	// Price-focused vendors get up to +10% x confidence on price (paid for
	// with longer terms); terms-focused vendors get price pushed down by
	// up to 5% x confidence.
	priceFocusedMaxBoost = 0.10
	termsFocusedMaxCut   = 0.05
)

// Generator builds counter-offers.
type Generator struct {
	log zerolog.Logger
}

// New creates a counter-offer generator.
func New(log zerolog.Logger) *Generator {
	return &Generator{
		log: log.With().Str("component", "counteroffer").Logger(),
	}
}

// Generate computes the counter price and terms for this round.
//
// Counter price = target + priceRange x (aggressiveness + concessionBonus +
// emphasisAdjustment), clamped to min(vendorPrice, maxAcceptable) and
// rounded to cents. The aggressiveness input is the strategy-adjusted
// coefficient (base + round adjustment + posture modifiers).
//
// When the price is capped at the vendor's own offer there is no room to
// move on price, so the requested payment terms are shortened instead - a
// counter is never a verbatim echo of the input.
func (g *Generator) Generate(
	cfg *domain.ResolvedConfig,
	state *domain.NegotiationState,
	vendorOffer *domain.AccumulatedOffer,
	aggressiveness float64,
) domain.CounterOffer {
	var notes []string

	bonus := concessionBonus(state)
	emphasisAdj := emphasisAdjustment(state)
	coefficient := aggressiveness + bonus + emphasisAdj

	price := cfg.TargetPrice + cfg.PriceRange*coefficient

	vendorPrice := math.Inf(1)
	if vendorOffer != nil && vendorOffer.Price != nil {
		vendorPrice = *vendorOffer.Price
	}

	ceiling := math.Min(vendorPrice, cfg.MaxAcceptablePrice)
	cappedAtVendor := false
	if price >= ceiling {
		cappedAtVendor = price >= vendorPrice && vendorPrice <= cfg.MaxAcceptablePrice
		price = ceiling
	}
	price = roundCents(price)

	if bonus > 0 {
		notes = append(notes, fmt.Sprintf("concession bonus %.0f%% applied for movement already made", bonus*100))
	}
	if emphasisAdj != 0 {
		notes = append(notes, fmt.Sprintf("price adjusted %.1f%% for detected %s vendor", emphasisAdj*100, state.VendorEmphasis))
	}

	terms := g.chooseTerms(cfg, state, vendorOffer, cappedAtVendor, &notes)

	counter := domain.CounterOffer{
		Price:      price,
		TermsDays:  terms.Days,
		TermsLabel: terms.Label,
		Notes:      notes,
	}
	if cfg.DeliveryPreferredDate != nil {
		d := *cfg.DeliveryPreferredDate
		counter.DeliveryDate = &d
	}
	if cfg.WarrantyTargetMonths > 0 {
		w := cfg.WarrantyTargetMonths
		counter.WarrantyMonths = &w
	}

	g.log.Debug().
		Float64("price", counter.Price).
		Int("terms_days", counter.TermsDays).
		Float64("aggressiveness", aggressiveness).
		Float64("concession_bonus", bonus).
		Float64("emphasis_adj", emphasisAdj).
		Bool("capped_at_vendor", cappedAtVendor).
		Msg("Generated counter-offer")

	return counter
}

// chooseTerms picks the payment terms to request. The default move is to the
// next longer standard term above the vendor's offer (HIGH priority jumps
// straight to the longest). A terms-focused vendor keeps terms near its own
// offer; a price cap converts the price move into a terms concession.
func (g *Generator) chooseTerms(
	cfg *domain.ResolvedConfig,
	state *domain.NegotiationState,
	vendorOffer *domain.AccumulatedOffer,
	cappedAtVendor bool,
	notes *[]string,
) domain.PaymentTerms {
	vendorDays := cfg.PaymentTermsMinDays
	if vendorOffer != nil && vendorOffer.PaymentTerms != nil {
		vendorDays = vendorOffer.PaymentTerms.Days
	}

	if cappedAtVendor {
		// No room on price: give ground on terms instead so the counter
		// still differs from the vendor's offer.
		shorter := previousShorterTerms(vendorDays)
		*notes = append(*notes, "price capped at vendor offer; conceding shorter payment terms instead")
		return shorter
	}

	confident := state != nil && state.EmphasisConfidence >= emphasisConfidenceFloor

	if confident && state.VendorEmphasis == domain.EmphasisTermsFocused {
		// Terms matter to this vendor - leave them near its own offer.
		return domain.TermsForDays(vendorDays)
	}

	if cfg.Priority == domain.PriorityHigh ||
		(confident && state.VendorEmphasis == domain.EmphasisPriceFocused) {
		longest := domain.StandardPaymentTerms[len(domain.StandardPaymentTerms)-1]
		return longest
	}

	return domain.NextLongerTerms(vendorDays)
}

// concessionBonus rewards a counterparty who has already moved:
// min(0.10, totalPriceConcessionPercent/100).
func concessionBonus(state *domain.NegotiationState) float64 {
	if state == nil {
		return 0
	}
	return math.Min(maxConcessionBonus, state.TotalPriceConcessionPercent()/100)
}

// emphasisAdjustment shifts the price coefficient once vendor emphasis is
// known with confidence >= 0.7.
func emphasisAdjustment(state *domain.NegotiationState) float64 {
	if state == nil || state.EmphasisConfidence < emphasisConfidenceFloor {
		return 0
	}
	switch state.VendorEmphasis {
	case domain.EmphasisPriceFocused:
		return priceFocusedMaxBoost * state.EmphasisConfidence
	case domain.EmphasisTermsFocused:
		return -termsFocusedMaxCut * state.EmphasisConfidence
	default:
		return 0
	}
}

// previousShorterTerms returns the standard term immediately below the given
// day count, or the shortest standard term.
func previousShorterTerms(days int) domain.PaymentTerms {
	for i := len(domain.StandardPaymentTerms) - 1; i >= 0; i-- {
		if domain.StandardPaymentTerms[i].Days < days {
			return domain.StandardPaymentTerms[i]
		}
	}
	return domain.StandardPaymentTerms[0]
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
