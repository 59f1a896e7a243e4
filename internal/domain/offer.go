// Package domain provides core negotiation domain models.
// Domain types are pure data - no infrastructure dependencies.
package domain

import (
	"time"
)

// PaymentTerms expresses payment terms both as a display label and a day count.
// The label is what vendors write ("Net 30"); the day count is what utility
// calculations operate on.
type PaymentTerms struct {
	Label string `json:"label"`
	Days  int    `json:"days"`
}

// StandardPaymentTerms is the ordered ladder of standard terms, shortest first.
// Counter-offer generation advances along this ladder.
var StandardPaymentTerms = []PaymentTerms{
	{Label: "Net 15", Days: 15},
	{Label: "Net 30", Days: 30},
	{Label: "Net 45", Days: 45},
	{Label: "Net 60", Days: 60},
	{Label: "Net 90", Days: 90},
}

// TermsForDays returns the standard payment terms entry matching the given
// day count, or a synthetic entry when the count is non-standard.
func TermsForDays(days int) PaymentTerms {
	for _, t := range StandardPaymentTerms {
		if t.Days == days {
			return t
		}
	}
	return PaymentTerms{Label: "Custom", Days: days}
}

// NextLongerTerms returns the next standard terms entry strictly longer than
// the given day count. Returns the longest entry when already at or past it.
func NextLongerTerms(days int) PaymentTerms {
	for _, t := range StandardPaymentTerms {
		if t.Days > days {
			return t
		}
	}
	return StandardPaymentTerms[len(StandardPaymentTerms)-1]
}

// Offer represents the negotiable terms at one point in time.
// Price and payment terms are the two required fields - an offer lacking
// either is incomplete and cannot be scored.
type Offer struct {
	Price            *float64          `json:"price,omitempty"`
	PaymentTerms     *PaymentTerms     `json:"payment_terms,omitempty"`
	DeliveryDate     *time.Time        `json:"delivery_date,omitempty"`
	DeliveryDays     *int              `json:"delivery_days,omitempty"`
	VolumeDiscount   *float64          `json:"volume_discount,omitempty"` // percent
	AdvancePayment   *float64          `json:"advance_payment,omitempty"` // percent
	WarrantyMonths   *int              `json:"warranty_months,omitempty"`
	LatePenalty      *float64          `json:"late_penalty,omitempty"` // percent per period
	Certifications   []string          `json:"certifications,omitempty"`
	PartialDelivery  *bool             `json:"partial_delivery,omitempty"`
	ParseMetadata    map[string]string `json:"parse_metadata,omitempty"`
}

// HasRequiredFields reports whether both required fields are present.
func (o *Offer) HasRequiredFields() bool {
	return o.Price != nil && o.PaymentTerms != nil
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() Offer {
	out := Offer{}
	if o.Price != nil {
		v := *o.Price
		out.Price = &v
	}
	if o.PaymentTerms != nil {
		v := *o.PaymentTerms
		out.PaymentTerms = &v
	}
	if o.DeliveryDate != nil {
		v := *o.DeliveryDate
		out.DeliveryDate = &v
	}
	if o.DeliveryDays != nil {
		v := *o.DeliveryDays
		out.DeliveryDays = &v
	}
	if o.VolumeDiscount != nil {
		v := *o.VolumeDiscount
		out.VolumeDiscount = &v
	}
	if o.AdvancePayment != nil {
		v := *o.AdvancePayment
		out.AdvancePayment = &v
	}
	if o.WarrantyMonths != nil {
		v := *o.WarrantyMonths
		out.WarrantyMonths = &v
	}
	if o.LatePenalty != nil {
		v := *o.LatePenalty
		out.LatePenalty = &v
	}
	if o.Certifications != nil {
		out.Certifications = append([]string{}, o.Certifications...)
	}
	if o.PartialDelivery != nil {
		v := *o.PartialDelivery
		out.PartialDelivery = &v
	}
	if o.ParseMetadata != nil {
		out.ParseMetadata = make(map[string]string, len(o.ParseMetadata))
		for k, v := range o.ParseMetadata {
			out.ParseMetadata[k] = v
		}
	}
	return out
}

// Parameter field names used across weights, utility breakdowns and stall
// tracking. These are the canonical keys - the weight map in configuration
// is keyed by them.
const (
	ParamPrice           = "price"
	ParamPaymentTerms    = "payment_terms"
	ParamDelivery        = "delivery"
	ParamVolumeDiscount  = "volume_discount"
	ParamAdvancePayment  = "advance_payment"
	ParamWarranty        = "warranty"
	ParamLatePenalty     = "late_penalty"
	ParamCertifications  = "certifications"
	ParamPartialDelivery = "partial_delivery"
)

// AccumulatedOffer is an Offer plus accumulation metadata. It is created
// empty at negotiation start and mutated by merging each new partial
// extraction. The latest non-nil value per field always wins; merges never
// move backward in time.
type AccumulatedOffer struct {
	Offer
	FieldUpdatedAt map[string]time.Time `json:"field_updated_at"`
	SourceMessages []string             `json:"source_messages"`
	IsComplete     bool                 `json:"is_complete"`
}

// NewAccumulatedOffer creates an empty accumulated offer.
func NewAccumulatedOffer() *AccumulatedOffer {
	return &AccumulatedOffer{
		FieldUpdatedAt: make(map[string]time.Time),
		SourceMessages: []string{},
	}
}
