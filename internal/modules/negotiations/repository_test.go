package negotiations

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/negotiator/internal/database"
	"github.com/aristath/negotiator/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "negotiations.db"),
		Name:    "negotiations",
		Profile: database.ProfileStandard,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())

	return NewRepository(db.Conn(), zerolog.Nop())
}

func testNegotiation(id string) *Negotiation {
	price := 1200.0
	terms := domain.TermsForDays(30)
	return &Negotiation{
		ID:     id,
		Title:  "Annual license renewal",
		Vendor: "Acme Corp",
		Status: StatusNegotiating,
		Round:  1,
		Config: &domain.ResolvedConfig{
			TargetPrice:         1000,
			MaxAcceptablePrice:  1500,
			PriceRange:          500,
			PaymentTermsMinDays: 15,
			PaymentTermsMaxDays: 90,
			Priority:            domain.PriorityMedium,
			Weights:             map[string]float64{domain.ParamPrice: 40, domain.ParamPaymentTerms: 20},
			AcceptThreshold:     0.70,
			EscalateThreshold:   0.50,
			WalkawayThreshold:   0.30,
			MaxRounds:           10,
			HardRoundLimit:      20,
		},
		State: domain.NewNegotiationState(),
		Offer: &domain.AccumulatedOffer{
			Offer: domain.Offer{Price: &price, PaymentTerms: &terms},
		},
		Events: []domain.OfferEvent{
			{Round: 1, Price: &price, ReceivedAt: time.Now()},
		},
	}
}

func TestRepository_CreateAndGetRoundtrip(t *testing.T) {
	repo := newTestRepository(t)

	n := testNegotiation("neg-1")
	n.State.DetectedKeywords = []string{"firm"}
	n.State.NoImprovementStreak = 2
	require.NoError(t, repo.Create(n))

	got, err := repo.Get("neg-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Annual license renewal", got.Title)
	assert.Equal(t, "Acme Corp", got.Vendor)
	assert.Equal(t, StatusNegotiating, got.Status)
	assert.Equal(t, 1, got.Round)
	assert.Equal(t, 1000.0, got.Config.TargetPrice)
	assert.Equal(t, []string{"firm"}, got.State.DetectedKeywords)
	assert.Equal(t, 2, got.State.NoImprovementStreak)
	require.NotNil(t, got.Offer)
	assert.Equal(t, 1200.0, *got.Offer.Price)
	require.Len(t, got.Events, 1)
	assert.Equal(t, 1200.0, *got.Events[0].Price)
}

func TestRepository_GetMissingReturnsNil(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.Get("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_Update(t *testing.T) {
	repo := newTestRepository(t)

	n := testNegotiation("neg-2")
	require.NoError(t, repo.Create(n))

	n.Round = 3
	n.Status = StatusAccepted
	n.State.NoImprovementStreak = 1
	require.NoError(t, repo.Update(n))

	got, err := repo.Get("neg-2")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Round)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.Equal(t, 1, got.State.NoImprovementStreak)
}

func TestRepository_UpdateMissingFails(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.Update(testNegotiation("ghost"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRepository_SetStatus(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Create(testNegotiation("neg-3")))
	require.NoError(t, repo.SetStatus("neg-3", StatusEscalated))

	got, err := repo.Get("neg-3")
	require.NoError(t, err)
	assert.Equal(t, StatusEscalated, got.Status)
}

func TestRepository_DecisionLogRoundtrip(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Create(testNegotiation("neg-4")))

	require.NoError(t, repo.AppendDecision(DecisionEntry{
		NegotiationID: "neg-4",
		Round:         1,
		Action:        domain.ActionCounter,
		Utility:       0.42,
		Strategy:      "aggressive",
		Reasons:       []string{"price above target", "terms below target"},
		CounterOffer:  &domain.CounterOffer{Price: 1100, TermsDays: 60, TermsLabel: "Net 60"},
	}))
	require.NoError(t, repo.AppendDecision(DecisionEntry{
		NegotiationID: "neg-4",
		Round:         2,
		Action:        domain.ActionAccept,
		Utility:       0.81,
		Reasons:       []string{"utility above accept threshold"},
	}))

	decisions, err := repo.Decisions("neg-4")
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	first := decisions[0]
	assert.Equal(t, domain.ActionCounter, first.Action)
	assert.Equal(t, 0.42, first.Utility)
	assert.Equal(t, "aggressive", first.Strategy)
	assert.Equal(t, []string{"price above target", "terms below target"}, first.Reasons)
	require.NotNil(t, first.CounterOffer)
	assert.Equal(t, 1100.0, first.CounterOffer.Price)
	assert.Equal(t, "Net 60", first.CounterOffer.TermsLabel)

	second := decisions[1]
	assert.Equal(t, domain.ActionAccept, second.Action)
	assert.Nil(t, second.CounterOffer)
}

func TestRepository_ListIdle(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Create(testNegotiation("active")))

	done := testNegotiation("done")
	done.Status = StatusAccepted
	require.NoError(t, repo.Create(done))

	// Future cutoff: everything still NEGOTIATING counts as idle.
	idle, err := repo.ListIdle(time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, "active", idle[0].ID)

	// Past cutoff: nothing is idle yet.
	idle, err = repo.ListIdle(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, idle)
}
