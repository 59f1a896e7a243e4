package accumulator

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/negotiator/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func TestMerge_EmptyAccumulator(t *testing.T) {
	acc := New(zerolog.Nop())

	partial := domain.Offer{Price: floatPtr(1200)}
	result := acc.Merge(nil, partial, "msg-1", time.Now())

	require.NotNil(t, result.Price)
	assert.Equal(t, 1200.0, *result.Price)
	assert.False(t, result.IsComplete, "price alone is not complete")
	assert.Equal(t, []string{"msg-1"}, result.SourceMessages)
}

func TestMerge_CompletesWithPriceAndTerms(t *testing.T) {
	acc := New(zerolog.Nop())

	state := acc.Merge(nil, domain.Offer{Price: floatPtr(1200)}, "msg-1", time.Now())
	assert.False(t, state.IsComplete)

	terms := domain.TermsForDays(30)
	state = acc.Merge(state, domain.Offer{PaymentTerms: &terms}, "msg-2", time.Now())

	assert.True(t, state.IsComplete)
	assert.Equal(t, []string{"msg-1", "msg-2"}, state.SourceMessages)
}

func TestMerge_LatestNonNilValueWins(t *testing.T) {
	acc := New(zerolog.Nop())

	state := acc.Merge(nil, domain.Offer{Price: floatPtr(1200)}, "msg-1", time.Now())
	state = acc.Merge(state, domain.Offer{Price: floatPtr(1150)}, "msg-2", time.Now())

	assert.Equal(t, 1150.0, *state.Price)
}

func TestMerge_AbsentFieldsKeepAccumulatedValues(t *testing.T) {
	acc := New(zerolog.Nop())
	terms := domain.TermsForDays(45)

	state := acc.Merge(nil, domain.Offer{
		Price:        floatPtr(1200),
		PaymentTerms: &terms,
	}, "msg-1", time.Now())

	// New message only mentions warranty - price and terms must survive.
	state = acc.Merge(state, domain.Offer{WarrantyMonths: intPtr(24)}, "msg-2", time.Now())

	require.NotNil(t, state.Price)
	assert.Equal(t, 1200.0, *state.Price)
	require.NotNil(t, state.PaymentTerms)
	assert.Equal(t, 45, state.PaymentTerms.Days)
	require.NotNil(t, state.WarrantyMonths)
	assert.Equal(t, 24, *state.WarrantyMonths)
}

func TestMerge_Idempotent(t *testing.T) {
	acc := New(zerolog.Nop())
	terms := domain.TermsForDays(30)
	offer := domain.Offer{
		Price:          floatPtr(1000),
		PaymentTerms:   &terms,
		WarrantyMonths: intPtr(12),
	}

	first := acc.Merge(nil, offer, "msg-1", time.Now())
	second := acc.Merge(first, offer, "msg-2", time.Now().Add(time.Minute))

	assert.Equal(t, *first.Price, *second.Price)
	assert.Equal(t, first.PaymentTerms.Days, second.PaymentTerms.Days)
	assert.Equal(t, *first.WarrantyMonths, *second.WarrantyMonths)
	assert.Equal(t, first.IsComplete, second.IsComplete)
}

func TestMerge_TimestampsNeverMoveBackward(t *testing.T) {
	acc := New(zerolog.Nop())
	now := time.Now()

	state := acc.Merge(nil, domain.Offer{Price: floatPtr(1200)}, "msg-1", now)
	// A replayed older message must not rewind the field timestamp.
	state = acc.Merge(state, domain.Offer{Price: floatPtr(1100)}, "msg-0", now.Add(-time.Hour))

	assert.Equal(t, now, state.FieldUpdatedAt[domain.ParamPrice])
	// Value still follows latest merge order.
	assert.Equal(t, 1100.0, *state.Price)
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	acc := New(zerolog.Nop())

	original := acc.Merge(nil, domain.Offer{Price: floatPtr(1200)}, "msg-1", time.Now())
	_ = acc.Merge(original, domain.Offer{Price: floatPtr(900)}, "msg-2", time.Now())

	assert.Equal(t, 1200.0, *original.Price, "merge must return a new copy")
	assert.Len(t, original.SourceMessages, 1)
}

func TestMissingRequiredFields(t *testing.T) {
	assert.Equal(t,
		[]string{domain.ParamPrice, domain.ParamPaymentTerms},
		MissingRequiredFields(nil))

	acc := New(zerolog.Nop())
	state := acc.Merge(nil, domain.Offer{Price: floatPtr(100)}, "m", time.Now())
	assert.Equal(t, []string{domain.ParamPaymentTerms}, MissingRequiredFields(state))

	terms := domain.TermsForDays(30)
	state = acc.Merge(state, domain.Offer{PaymentTerms: &terms}, "m2", time.Now())
	assert.Empty(t, MissingRequiredFields(state))
}
