// Package accumulator merges successive partial offers into one running
// offer, tracking which fields are known and when they were last updated.
package accumulator

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/negotiator/internal/domain"
)

// Accumulator folds partial offer extractions into an AccumulatedOffer.
type Accumulator struct {
	log zerolog.Logger
}

// New creates an offer accumulator.
func New(log zerolog.Logger) *Accumulator {
	return &Accumulator{
		log: log.With().Str("component", "accumulator").Logger(),
	}
}

// Merge folds a new partial offer into the accumulated offer and returns the
// updated copy. The latest non-nil value per field always wins; fields absent
// from the partial offer keep their accumulated values. Merging the same
// offer twice yields the same values (only timestamps differ).
func (a *Accumulator) Merge(
	acc *domain.AccumulatedOffer,
	partial domain.Offer,
	messageID string,
	receivedAt time.Time,
) *domain.AccumulatedOffer {
	if acc == nil {
		acc = domain.NewAccumulatedOffer()
	}

	out := &domain.AccumulatedOffer{
		Offer:          acc.Offer.Clone(),
		FieldUpdatedAt: make(map[string]time.Time, len(acc.FieldUpdatedAt)),
		SourceMessages: append([]string{}, acc.SourceMessages...),
	}
	for k, v := range acc.FieldUpdatedAt {
		out.FieldUpdatedAt[k] = v
	}

	updated := []string{}

	if partial.Price != nil {
		v := *partial.Price
		out.Price = &v
		updated = append(updated, domain.ParamPrice)
	}
	if partial.PaymentTerms != nil {
		v := *partial.PaymentTerms
		out.PaymentTerms = &v
		updated = append(updated, domain.ParamPaymentTerms)
	}
	if partial.DeliveryDate != nil {
		v := *partial.DeliveryDate
		out.DeliveryDate = &v
		updated = append(updated, domain.ParamDelivery)
	}
	if partial.DeliveryDays != nil {
		v := *partial.DeliveryDays
		out.DeliveryDays = &v
		updated = append(updated, domain.ParamDelivery)
	}
	if partial.VolumeDiscount != nil {
		v := *partial.VolumeDiscount
		out.VolumeDiscount = &v
		updated = append(updated, domain.ParamVolumeDiscount)
	}
	if partial.AdvancePayment != nil {
		v := *partial.AdvancePayment
		out.AdvancePayment = &v
		updated = append(updated, domain.ParamAdvancePayment)
	}
	if partial.WarrantyMonths != nil {
		v := *partial.WarrantyMonths
		out.WarrantyMonths = &v
		updated = append(updated, domain.ParamWarranty)
	}
	if partial.LatePenalty != nil {
		v := *partial.LatePenalty
		out.LatePenalty = &v
		updated = append(updated, domain.ParamLatePenalty)
	}
	if len(partial.Certifications) > 0 {
		out.Certifications = append([]string{}, partial.Certifications...)
		updated = append(updated, domain.ParamCertifications)
	}
	if partial.PartialDelivery != nil {
		v := *partial.PartialDelivery
		out.PartialDelivery = &v
		updated = append(updated, domain.ParamPartialDelivery)
	}
	if len(partial.ParseMetadata) > 0 {
		if out.ParseMetadata == nil {
			out.ParseMetadata = make(map[string]string, len(partial.ParseMetadata))
		}
		for k, v := range partial.ParseMetadata {
			out.ParseMetadata[k] = v
		}
	}

	// Field timestamps never move backward in time.
	for _, field := range updated {
		if prev, ok := out.FieldUpdatedAt[field]; !ok || !receivedAt.Before(prev) {
			out.FieldUpdatedAt[field] = receivedAt
		}
	}

	if messageID != "" {
		out.SourceMessages = append(out.SourceMessages, messageID)
	}

	out.IsComplete = out.HasRequiredFields()

	a.log.Debug().
		Str("message_id", messageID).
		Strs("updated_fields", updated).
		Bool("complete", out.IsComplete).
		Msg("Merged partial offer")

	return out
}

// MissingRequiredFields lists the required fields that are still absent.
func MissingRequiredFields(acc *domain.AccumulatedOffer) []string {
	if acc == nil {
		return []string{domain.ParamPrice, domain.ParamPaymentTerms}
	}
	var missing []string
	if acc.Price == nil {
		missing = append(missing, domain.ParamPrice)
	}
	if acc.PaymentTerms == nil {
		missing = append(missing, domain.ParamPaymentTerms)
	}
	return missing
}
