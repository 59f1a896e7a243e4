// Package resolver merges user-supplied negotiation configuration with
// legacy values and product defaults into one fully-populated, internally
// consistent configuration.
package resolver

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/negotiator/internal/domain"
)

// Default round limits. A zero or missing max-rounds always resolves to the
// default rather than dividing by zero downstream.
const (
	DefaultMaxRounds      = 10
	DefaultHardRoundLimit = 20
)

// Input is a raw (wizard or legacy) configuration. Pointer fields
// distinguish "not supplied" from zero values.
type Input struct {
	TargetPrice           *float64           `json:"target_price,omitempty"`
	MaxAcceptablePrice    *float64           `json:"max_acceptable_price,omitempty"`
	AnchorPrice           *float64           `json:"anchor_price,omitempty"`
	PaymentTermsMinDays   *int               `json:"payment_terms_min_days,omitempty"`
	PaymentTermsMaxDays   *int               `json:"payment_terms_max_days,omitempty"`
	AdvancePaymentLimit   *float64           `json:"advance_payment_limit,omitempty"`
	DeliveryTargetDate    *time.Time         `json:"delivery_target_date,omitempty"`
	DeliveryPreferredDate *time.Time         `json:"delivery_preferred_date,omitempty"`
	WarrantyTargetMonths  *int               `json:"warranty_target_months,omitempty"`
	LatePenaltyTarget     *float64           `json:"late_penalty_target,omitempty"`
	QualityStandards      []string           `json:"quality_standards,omitempty"`
	Priority              *domain.Priority   `json:"priority,omitempty"`
	Weights               map[string]float64 `json:"weights,omitempty"`
	AcceptThreshold       *float64           `json:"accept_threshold,omitempty"`
	EscalateThreshold     *float64           `json:"escalate_threshold,omitempty"`
	WalkawayThreshold     *float64           `json:"walkaway_threshold,omitempty"`
	MaxRounds             *int               `json:"max_rounds,omitempty"`
	HardRoundLimit        *int               `json:"hard_round_limit,omitempty"`
}

// thresholdPreset is one priority-dependent set of decision thresholds.
type thresholdPreset struct {
	accept   float64
	escalate float64
	walkaway float64
}

// Threshold presets by priority. HIGH holds out for a strong deal; LOW
// closes quickly.
var thresholdPresets = map[domain.Priority]thresholdPreset{
	domain.PriorityHigh:   {accept: 0.75, escalate: 0.55, walkaway: 0.35},
	domain.PriorityMedium: {accept: 0.70, escalate: 0.50, walkaway: 0.30},
	domain.PriorityLow:    {accept: 0.65, escalate: 0.45, walkaway: 0.25},
}

// defaultWeights is the product-default parameter weighting (sums to 100).
func defaultWeights() map[string]float64 {
	return map[string]float64{
		domain.ParamPrice:          40,
		domain.ParamPaymentTerms:   20,
		domain.ParamDelivery:       15,
		domain.ParamWarranty:       10,
		domain.ParamVolumeDiscount: 5,
		domain.ParamAdvancePayment: 5,
		domain.ParamLatePenalty:    3,
		domain.ParamCertifications: 2,
	}
}

// Resolver builds resolved configurations.
type Resolver struct {
	log zerolog.Logger
}

// New creates a config resolver.
func New(log zerolog.Logger) *Resolver {
	return &Resolver{
		log: log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve merges, per field, a user-supplied wizard value, else a legacy
// value, else a priority-dependent product default, recording the origin of
// every value. The anchorAdjustment is an optional advisory fractional delta
// derived from historical vendor behavior, applied to the derived anchor.
//
// Target price is the one field with no sensible product default - it must
// come from the user or legacy config.
func (r *Resolver) Resolve(user, legacy *Input, anchorAdjustment *float64) (*domain.ResolvedConfig, error) {
	if user == nil {
		user = &Input{}
	}
	if legacy == nil {
		legacy = &Input{}
	}

	origins := make(map[string]domain.FieldOrigin)
	cfg := &domain.ResolvedConfig{Origins: origins}

	// Priority first - it selects the threshold preset.
	priority, origin := resolvePriority(user.Priority, legacy.Priority)
	cfg.Priority = priority
	origins["priority"] = origin

	target, origin, ok := resolveFloat(user.TargetPrice, legacy.TargetPrice, 0)
	if !ok {
		return nil, fmt.Errorf("target price must be supplied by user or legacy configuration")
	}
	cfg.TargetPrice = target
	origins["target_price"] = origin

	if max, origin, ok := resolveFloat(user.MaxAcceptablePrice, legacy.MaxAcceptablePrice, 0); ok {
		cfg.MaxAcceptablePrice = max
		origins["max_acceptable_price"] = origin
	} else {
		cfg.MaxAcceptablePrice = target * 1.5
		origins["max_acceptable_price"] = domain.OriginDefault
	}
	if cfg.MaxAcceptablePrice < cfg.TargetPrice {
		// Inconsistent supplied values: collapse to a zero range rather
		// than a negative one.
		cfg.MaxAcceptablePrice = cfg.TargetPrice
	}

	if anchor, origin, ok := resolveFloat(user.AnchorPrice, legacy.AnchorPrice, 0); ok {
		cfg.AnchorPrice = anchor
		origins["anchor_price"] = origin
	} else {
		cfg.AnchorPrice = target * 0.85
		origins["anchor_price"] = domain.OriginCalculated
	}
	if anchorAdjustment != nil {
		cfg.AnchorPrice = cfg.AnchorPrice * (1 + *anchorAdjustment)
		origins["anchor_price"] = domain.OriginCalculated
	}

	cfg.PaymentTermsMinDays, origins["payment_terms_min_days"] = resolveInt(user.PaymentTermsMinDays, legacy.PaymentTermsMinDays, 15)
	cfg.PaymentTermsMaxDays, origins["payment_terms_max_days"] = resolveInt(user.PaymentTermsMaxDays, legacy.PaymentTermsMaxDays, 90)
	if cfg.PaymentTermsMaxDays < cfg.PaymentTermsMinDays {
		cfg.PaymentTermsMaxDays = cfg.PaymentTermsMinDays
	}

	limit, origin, ok := resolveFloat(user.AdvancePaymentLimit, legacy.AdvancePaymentLimit, 20)
	if !ok {
		origin = domain.OriginDefault
	}
	cfg.AdvancePaymentLimit = limit
	origins["advance_payment_limit"] = origin

	cfg.DeliveryTargetDate = resolveTime(user.DeliveryTargetDate, legacy.DeliveryTargetDate)
	cfg.DeliveryPreferredDate = resolveTime(user.DeliveryPreferredDate, legacy.DeliveryPreferredDate)

	cfg.WarrantyTargetMonths, origins["warranty_target_months"] = resolveInt(user.WarrantyTargetMonths, legacy.WarrantyTargetMonths, 12)

	penalty, origin, ok := resolveFloat(user.LatePenaltyTarget, legacy.LatePenaltyTarget, 2)
	if !ok {
		origin = domain.OriginDefault
	}
	cfg.LatePenaltyTarget = penalty
	origins["late_penalty_target"] = origin

	if len(user.QualityStandards) > 0 {
		cfg.QualityStandards = append([]string{}, user.QualityStandards...)
		origins["quality_standards"] = domain.OriginUser
	} else if len(legacy.QualityStandards) > 0 {
		cfg.QualityStandards = append([]string{}, legacy.QualityStandards...)
		origins["quality_standards"] = domain.OriginLegacy
	}

	cfg.Weights, origins["weights"] = resolveWeights(user.Weights, legacy.Weights)

	preset := thresholdPresets[cfg.Priority]
	cfg.AcceptThreshold, origins["accept_threshold"] = resolveThreshold(user.AcceptThreshold, legacy.AcceptThreshold, preset.accept)
	cfg.EscalateThreshold, origins["escalate_threshold"] = resolveThreshold(user.EscalateThreshold, legacy.EscalateThreshold, preset.escalate)
	cfg.WalkawayThreshold, origins["walkaway_threshold"] = resolveThreshold(user.WalkawayThreshold, legacy.WalkawayThreshold, preset.walkaway)

	cfg.MaxRounds, origins["max_rounds"] = resolveInt(user.MaxRounds, legacy.MaxRounds, DefaultMaxRounds)
	if cfg.MaxRounds <= 0 {
		// A zero round budget would divide the concession step by zero.
		cfg.MaxRounds = DefaultMaxRounds
		origins["max_rounds"] = domain.OriginDefault
	}

	cfg.HardRoundLimit, origins["hard_round_limit"] = resolveInt(user.HardRoundLimit, legacy.HardRoundLimit, 0)
	if cfg.HardRoundLimit <= 0 {
		cfg.HardRoundLimit = cfg.MaxRounds * 2
		if cfg.HardRoundLimit < DefaultHardRoundLimit {
			cfg.HardRoundLimit = DefaultHardRoundLimit
		}
		origins["hard_round_limit"] = domain.OriginCalculated
	}
	if cfg.HardRoundLimit < cfg.MaxRounds {
		cfg.HardRoundLimit = cfg.MaxRounds
	}

	// Derived values.
	cfg.PriceRange = cfg.MaxAcceptablePrice - cfg.TargetPrice
	origins["price_range"] = domain.OriginCalculated
	cfg.ConcessionStep = cfg.PriceRange / float64(cfg.MaxRounds)
	origins["concession_step"] = domain.OriginCalculated

	r.log.Debug().
		Str("priority", string(cfg.Priority)).
		Float64("target", cfg.TargetPrice).
		Float64("max", cfg.MaxAcceptablePrice).
		Float64("anchor", cfg.AnchorPrice).
		Int("max_rounds", cfg.MaxRounds).
		Msg("Resolved negotiation config")

	return cfg, nil
}

func resolvePriority(user, legacy *domain.Priority) (domain.Priority, domain.FieldOrigin) {
	if user != nil && validPriority(*user) {
		return *user, domain.OriginUser
	}
	if legacy != nil && validPriority(*legacy) {
		return *legacy, domain.OriginLegacy
	}
	return domain.PriorityMedium, domain.OriginDefault
}

func validPriority(p domain.Priority) bool {
	return p == domain.PriorityHigh || p == domain.PriorityMedium || p == domain.PriorityLow
}

func resolveFloat(user, legacy *float64, def float64) (float64, domain.FieldOrigin, bool) {
	if user != nil {
		return *user, domain.OriginUser, true
	}
	if legacy != nil {
		return *legacy, domain.OriginLegacy, true
	}
	return def, domain.OriginDefault, false
}

func resolveInt(user, legacy *int, def int) (int, domain.FieldOrigin) {
	if user != nil {
		return *user, domain.OriginUser
	}
	if legacy != nil {
		return *legacy, domain.OriginLegacy
	}
	return def, domain.OriginDefault
}

func resolveTime(user, legacy *time.Time) *time.Time {
	if user != nil {
		v := *user
		return &v
	}
	if legacy != nil {
		v := *legacy
		return &v
	}
	return nil
}

// resolveThreshold keeps supplied thresholds only when they are valid
// probabilities; anything else falls back to the priority preset.
func resolveThreshold(user, legacy *float64, def float64) (float64, domain.FieldOrigin) {
	if user != nil && *user > 0 && *user < 1 {
		return *user, domain.OriginUser
	}
	if legacy != nil && *legacy > 0 && *legacy < 1 {
		return *legacy, domain.OriginLegacy
	}
	return def, domain.OriginDefault
}

// resolveWeights copies the first supplied weight map, dropping negative
// entries. Missing maps fall back to the product defaults.
func resolveWeights(user, legacy map[string]float64) (map[string]float64, domain.FieldOrigin) {
	source := user
	origin := domain.OriginUser
	if len(source) == 0 {
		source = legacy
		origin = domain.OriginLegacy
	}
	if len(source) == 0 {
		return defaultWeights(), domain.OriginDefault
	}

	out := make(map[string]float64, len(source))
	for k, v := range source {
		if v < 0 {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return defaultWeights(), domain.OriginDefault
	}
	return out, origin
}
