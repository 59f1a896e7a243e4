package negotiations

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/negotiator/internal/domain"
	"github.com/aristath/negotiator/internal/modules/resolver"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(newTestRepository(t), zerolog.Nop())
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func testCreateRequest() CreateRequest {
	return CreateRequest{
		Title:  "Annual license renewal",
		Vendor: "Acme Corp",
		Config: &resolver.Input{
			TargetPrice:         fptr(1000),
			MaxAcceptablePrice:  fptr(1500),
			PaymentTermsMinDays: iptr(15),
			PaymentTermsMaxDays: iptr(90),
			Weights: map[string]float64{
				domain.ParamPrice:        40,
				domain.ParamPaymentTerms: 20,
			},
		},
	}
}

func vendorOffer(price float64, termsDays int) domain.Offer {
	terms := domain.TermsForDays(termsDays)
	return domain.Offer{Price: &price, PaymentTerms: &terms}
}

func TestService_CreateResolvesConfig(t *testing.T) {
	svc := newTestService(t)

	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)

	assert.Equal(t, StatusNegotiating, n.Status)
	assert.Equal(t, 0, n.Round)
	assert.Equal(t, 1000.0, n.Config.TargetPrice)
	assert.Equal(t, 1500.0, n.Config.MaxAcceptablePrice)
	assert.Equal(t, domain.PriorityMedium, n.Config.Priority)
	assert.Equal(t, 0.70, n.Config.AcceptThreshold)

	stored, decisions, err := svc.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, stored.ID)
	assert.Empty(t, decisions)
}

func TestService_CreateRejectsMissingTarget(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(CreateRequest{Title: "no target", Config: &resolver.Input{}})
	assert.Error(t, err)
}

func TestService_SubmitRoundAccepts(t *testing.T) {
	svc := newTestService(t)
	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)

	// 1100 at Net 90: price utility 0.8, terms utility 1.0,
	// weighted (0.8*40 + 1.0*20) / 60 = 0.8667.
	resp, err := svc.SubmitRound(n.ID, RoundRequest{Offer: vendorOffer(1100, 90)})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Round)
	assert.Equal(t, StatusAccepted, resp.Status)
	assert.Equal(t, domain.ActionAccept, resp.Decision.Action)
	assert.InDelta(t, 0.8667, resp.Decision.Utility, 0.001)

	stored, decisions, err := svc.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, stored.Status)
	assert.Equal(t, 1, stored.Round)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.ActionAccept, decisions[0].Action)
}

func TestService_SubmitRoundCountersAboveMax(t *testing.T) {
	svc := newTestService(t)
	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)

	resp, err := svc.SubmitRound(n.ID, RoundRequest{Offer: vendorOffer(1600, 30)})
	require.NoError(t, err)

	assert.Equal(t, StatusNegotiating, resp.Status)
	assert.Equal(t, domain.ActionCounter, resp.Decision.Action)
	require.NotNil(t, resp.Decision.CounterOffer)
	assert.LessOrEqual(t, resp.Decision.CounterOffer.Price, 1500.0)
}

func TestService_SubmitRoundAsksForMissingTerms(t *testing.T) {
	svc := newTestService(t)
	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)

	price := 1200.0
	resp, err := svc.SubmitRound(n.ID, RoundRequest{Offer: domain.Offer{Price: &price}})
	require.NoError(t, err)

	assert.Equal(t, domain.ActionAskClarify, resp.Decision.Action)
	assert.Equal(t, StatusNegotiating, resp.Status)
}

func TestService_PartialOffersAccumulate(t *testing.T) {
	svc := newTestService(t)
	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)

	// Round 1 carries only a price.
	price := 1100.0
	resp, err := svc.SubmitRound(n.ID, RoundRequest{Offer: domain.Offer{Price: &price}})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAskClarify, resp.Decision.Action)

	// Round 2 supplies only terms; the accumulated offer is now complete
	// and scores well enough to accept.
	terms := domain.TermsForDays(90)
	resp, err = svc.SubmitRound(n.ID, RoundRequest{Offer: domain.Offer{PaymentTerms: &terms}})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Round)
	assert.Equal(t, domain.ActionAccept, resp.Decision.Action)

	stored, _, err := svc.Get(n.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Offer)
	assert.Equal(t, 1100.0, *stored.Offer.Price)
	assert.Equal(t, 90, stored.Offer.PaymentTerms.Days)
}

func TestService_SubmitRoundRejectsTerminalNegotiation(t *testing.T) {
	svc := newTestService(t)
	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)

	_, err = svc.SubmitRound(n.ID, RoundRequest{Offer: vendorOffer(1100, 90)})
	require.NoError(t, err)

	_, err = svc.SubmitRound(n.ID, RoundRequest{Offer: vendorOffer(1050, 90)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already")
}

func TestService_SubmitRoundUnknownID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SubmitRound("missing", RoundRequest{Offer: vendorOffer(1100, 90)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_GenerateMesoStatic(t *testing.T) {
	svc := newTestService(t)
	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)

	result, err := svc.GenerateMeso(n.ID, MesoRequest{Variant: "static"})
	require.NoError(t, err)
	assert.Len(t, result.Options, 3)
}

func TestService_GenerateMesoFinalGated(t *testing.T) {
	svc := newTestService(t)
	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)

	// Round 0 with no utility history never qualifies for a final menu.
	result, err := svc.GenerateMeso(n.ID, MesoRequest{Variant: "final"})
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestService_RecordSelection(t *testing.T) {
	svc := newTestService(t)
	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)

	err = svc.RecordSelection(n.ID, domain.MesoSelection{
		Round:    1,
		OptionID: "balanced",
		Emphasis: "balanced",
		PickedAt: time.Now(),
	})
	require.NoError(t, err)

	stored, _, err := svc.Get(n.ID)
	require.NoError(t, err)
	require.Len(t, stored.State.MesoSelections, 1)
	assert.Equal(t, 1, stored.State.BalancedSelectionStreak)
}

func TestService_EscalateIdle(t *testing.T) {
	svc := newTestService(t)
	n, err := svc.Create(testCreateRequest())
	require.NoError(t, err)

	count, err := svc.EscalateIdle(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, decisions, err := svc.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEscalated, stored.Status)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.ActionEscalate, decisions[0].Action)
	assert.Contains(t, decisions[0].Reasons[0], "no vendor activity")

	// Already escalated negotiations are not touched again.
	count, err = svc.EscalateIdle(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
