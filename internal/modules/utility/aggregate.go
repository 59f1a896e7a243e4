package utility

import (
	"sort"
	"strings"

	"github.com/aristath/negotiator/internal/domain"
)

// Recommendation is the advisory label derived from the total utility and
// the three ordered thresholds. The decision policy applies additional
// round and stall gating before committing to an action.
type Recommendation string

// Advisory recommendations.
const (
	RecommendAccept   Recommendation = "ACCEPT"
	RecommendCounter  Recommendation = "COUNTER"
	RecommendEscalate Recommendation = "ESCALATE"
	RecommendWalkAway Recommendation = "WALK_AWAY"
)

// Result is the weighted aggregation output: total utility in [0,1], the
// advisory recommendation, and the per-parameter breakdown.
type Result struct {
	Utility        float64
	Recommendation Recommendation
	Breakdown      []domain.ParameterUtility
}

// Score computes the total weighted utility for an offer against a resolved
// configuration.
//
// Each configured, present parameter contributes utility x weight/100. When
// the sum of included weights is not exactly 100 (the vendor omitted some
// fields), the accumulated sum is rescaled by 100/sum(weight) so partial
// participation does not silently depress the score. The final utility is
// clamped to [0,1].
func Score(cfg *domain.ResolvedConfig, offer *domain.AccumulatedOffer) Result {
	specs := buildSpecs(cfg)

	var weighted float64
	var includedWeight float64
	breakdown := make([]domain.ParameterUtility, 0, len(specs))

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		weight := cfg.Weights[name]
		if weight <= 0 {
			continue
		}
		value := extractValue(offer, name, cfg)
		if value == nil {
			continue
		}

		u := Calculate(specs[name], value)
		weighted += u * weight / 100
		includedWeight += weight

		breakdown = append(breakdown, domain.ParameterUtility{
			Parameter: name,
			Utility:   u,
			Weight:    weight,
			Weighted:  u * weight / 100,
		})
	}

	total := weighted
	if includedWeight > 0 && includedWeight != 100 {
		total = weighted * 100 / includedWeight
	}
	if includedWeight <= 0 {
		// Degenerate configuration: zero weight total resolves to zero
		// utility rather than NaN.
		total = 0
	}
	total = clamp01(total)

	return Result{
		Utility:        total,
		Recommendation: Recommend(cfg, total),
		Breakdown:      breakdown,
	}
}

// Recommend maps a utility score to its advisory label via the three ordered
// thresholds (walkaway < escalate < accept).
func Recommend(cfg *domain.ResolvedConfig, utility float64) Recommendation {
	switch {
	case utility >= cfg.AcceptThreshold:
		return RecommendAccept
	case utility >= cfg.EscalateThreshold:
		return RecommendCounter
	case utility >= cfg.WalkawayThreshold:
		return RecommendEscalate
	default:
		return RecommendWalkAway
	}
}

// buildSpecs derives the per-parameter utility specs from the resolved
// configuration.
func buildSpecs(cfg *domain.ResolvedConfig) map[string]Spec {
	specs := map[string]Spec{
		domain.ParamPrice: {
			Name:      domain.ParamPrice,
			Shape:     ShapeLinear,
			Direction: LowerBetter,
			Target:    cfg.TargetPrice,
			Max:       cfg.MaxAcceptablePrice,
		},
		domain.ParamPaymentTerms: {
			Name:      domain.ParamPaymentTerms,
			Shape:     ShapeLinear,
			Direction: HigherBetter, // longer terms favor the buyer
			Min:       float64(cfg.PaymentTermsMinDays),
			Target:    float64(cfg.PaymentTermsMaxDays),
		},
		domain.ParamVolumeDiscount: {
			Name:      domain.ParamVolumeDiscount,
			Shape:     ShapePercentage,
			Direction: HigherBetter,
			Target:    10, // a 10% volume discount is full utility
		},
		domain.ParamAdvancePayment: {
			Name:      domain.ParamAdvancePayment,
			Shape:     ShapePercentage,
			Direction: LowerBetter,
			Target:    cfg.AdvancePaymentLimit,
		},
		domain.ParamWarranty: {
			Name:      domain.ParamWarranty,
			Shape:     ShapeLinear,
			Direction: HigherBetter,
			Min:       0,
			Target:    float64(cfg.WarrantyTargetMonths),
		},
		domain.ParamLatePenalty: {
			Name:      domain.ParamLatePenalty,
			Shape:     ShapePercentage,
			Direction: HigherBetter, // a late-delivery penalty protects the buyer
			Target:    cfg.LatePenaltyTarget,
		},
		domain.ParamCertifications: {
			Name:      domain.ParamCertifications,
			Shape:     ShapeBinary,
			Threshold: 1, // all required standards covered
		},
		domain.ParamPartialDelivery: {
			Name:       domain.ParamPartialDelivery,
			Shape:      ShapeBoolean,
			TargetBool: false, // buyer wants full delivery by default
		},
	}

	if cfg.DeliveryTargetDate != nil {
		specs[domain.ParamDelivery] = Spec{
			Name:       domain.ParamDelivery,
			Shape:      ShapeDate,
			Direction:  LowerBetter, // earlier is better
			TargetDate: cfg.DeliveryTargetDate,
			WindowDays: 30,
		}
	} else {
		// No target date configured: score delivery as a day count.
		specs[domain.ParamDelivery] = Spec{
			Name:      domain.ParamDelivery,
			Shape:     ShapeLinear,
			Direction: LowerBetter,
			Target:    14,
			Max:       60,
		}
	}

	return specs
}

// extractValue pulls the raw parameter value out of the offer. A nil return
// means the parameter is absent and excluded from aggregation.
func extractValue(offer *domain.AccumulatedOffer, param string, cfg *domain.ResolvedConfig) any {
	if offer == nil {
		return nil
	}
	switch param {
	case domain.ParamPrice:
		if offer.Price == nil {
			return nil
		}
		return *offer.Price
	case domain.ParamPaymentTerms:
		if offer.PaymentTerms == nil {
			return nil
		}
		return float64(offer.PaymentTerms.Days)
	case domain.ParamDelivery:
		if cfg.DeliveryTargetDate != nil {
			if offer.DeliveryDate == nil {
				return nil
			}
			return *offer.DeliveryDate
		}
		if offer.DeliveryDays == nil {
			return nil
		}
		return float64(*offer.DeliveryDays)
	case domain.ParamVolumeDiscount:
		if offer.VolumeDiscount == nil {
			return nil
		}
		return *offer.VolumeDiscount
	case domain.ParamAdvancePayment:
		if offer.AdvancePayment == nil {
			return nil
		}
		return *offer.AdvancePayment
	case domain.ParamWarranty:
		if offer.WarrantyMonths == nil {
			return nil
		}
		return float64(*offer.WarrantyMonths)
	case domain.ParamLatePenalty:
		if offer.LatePenalty == nil {
			return nil
		}
		return *offer.LatePenalty
	case domain.ParamCertifications:
		if len(offer.Certifications) == 0 {
			return nil
		}
		return certificationCoverage(offer.Certifications, cfg.QualityStandards)
	case domain.ParamPartialDelivery:
		if offer.PartialDelivery == nil {
			return nil
		}
		return *offer.PartialDelivery
	}
	return nil
}

// certificationCoverage returns 1 when every required quality standard is
// present in the offered certifications, otherwise 0.
func certificationCoverage(offered, required []string) float64 {
	if len(required) == 0 {
		return 1
	}
	have := make(map[string]bool, len(offered))
	for _, c := range offered {
		have[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	for _, r := range required {
		if !have[strings.ToUpper(strings.TrimSpace(r))] {
			return 0
		}
	}
	return 1
}
