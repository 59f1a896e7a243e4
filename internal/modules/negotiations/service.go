package negotiations

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/negotiator/internal/domain"
	"github.com/aristath/negotiator/internal/modules/accumulator"
	"github.com/aristath/negotiator/internal/modules/decision"
	"github.com/aristath/negotiator/internal/modules/meso"
	"github.com/aristath/negotiator/internal/modules/preference"
	"github.com/aristath/negotiator/internal/modules/resolver"
	"github.com/aristath/negotiator/internal/modules/stall"
)

// ErrNotFound is returned when a negotiation ID does not exist.
var ErrNotFound = errors.New("negotiation not found")

// CreateRequest starts a new negotiation. Config and Legacy are raw
// configurations resolved user-over-legacy-over-defaults; AnchorAdjustment
// is the optional advisory enrichment from historical vendor behavior.
type CreateRequest struct {
	Title            string          `json:"title"`
	Vendor           string          `json:"vendor"`
	Config           *resolver.Input `json:"config"`
	Legacy           *resolver.Input `json:"legacy,omitempty"`
	AnchorAdjustment *float64        `json:"anchor_adjustment,omitempty"`
}

// RoundRequest submits one vendor message for a decision round. The offer is
// already structured - free-text parsing happens upstream.
type RoundRequest struct {
	Offer      domain.Offer `json:"offer"`
	MessageID  string       `json:"message_id,omitempty"`
	Message    string       `json:"message,omitempty"`
	ReceivedAt time.Time    `json:"received_at,omitempty"`
}

// RoundResponse is the outcome of one round.
type RoundResponse struct {
	Round             int                      `json:"round"`
	Status            Status                   `json:"status"`
	Decision          domain.Decision          `json:"decision"`
	StalledParameters []domain.StalledParameter `json:"stalled_parameters,omitempty"`
}

// MesoRequest asks for a MESO menu against the current negotiation state.
type MesoRequest struct {
	Variant string                `json:"variant"` // static, dynamic or final
	Profile *domain.VendorProfile `json:"profile,omitempty"`
}

// Service orchestrates negotiation rounds: one writer per negotiation,
// concurrent negotiations are independent.
type Service struct {
	repo        *Repository
	resolver    *resolver.Resolver
	engine      *decision.Engine
	accumulator *accumulator.Accumulator
	meso        *meso.Generator
	preference  *preference.Detector
	stall       *stall.Detector
	log         zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a negotiation service.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		resolver:    resolver.New(log),
		engine:      decision.New(log),
		accumulator: accumulator.New(log),
		meso:        meso.New(log),
		preference:  preference.New(log),
		stall:       stall.New(stall.DefaultWindow, log),
		log:         log.With().Str("service", "negotiations").Logger(),
		locks:       make(map[string]*sync.Mutex),
	}
}

// Create resolves the configuration and stores a fresh negotiation.
func (s *Service) Create(req CreateRequest) (*Negotiation, error) {
	cfg, err := s.resolver.Resolve(req.Config, req.Legacy, req.AnchorAdjustment)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration: %w", err)
	}

	n := &Negotiation{
		ID:     uuid.New().String(),
		Title:  req.Title,
		Vendor: req.Vendor,
		Status: StatusNegotiating,
		Config: cfg,
		State:  domain.NewNegotiationState(),
	}

	if err := s.repo.Create(n); err != nil {
		return nil, err
	}

	s.log.Info().Str("id", n.ID).Str("title", n.Title).Msg("Negotiation created")
	return n, nil
}

// SubmitRound runs one decision round against a vendor message. Rounds for
// the same negotiation are serialized; the engine itself is pure.
func (s *Service) SubmitRound(id string, req RoundRequest) (*RoundResponse, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	n, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotFound
	}
	if n.Status != StatusNegotiating {
		return nil, fmt.Errorf("negotiation %s is already %s", id, n.Status)
	}

	round := n.Round + 1
	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.New().String()
	}
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	previousOffer := n.Offer
	acc := s.accumulator.Merge(n.Offer, req.Offer, messageID, receivedAt)

	event := domain.OfferEvent{Round: round, Text: req.Message, ReceivedAt: receivedAt}
	if acc.Price != nil {
		p := *acc.Price
		event.Price = &p
	}
	if acc.PaymentTerms != nil {
		d := acc.PaymentTerms.Days
		event.TermsDays = &d
	}
	events := append(append([]domain.OfferEvent{}, n.Events...), event)

	var messages []string
	if req.Message != "" {
		messages = []string{req.Message}
	}

	dec, state, err := s.engine.Decide(decision.Input{
		Round:         round,
		Offer:         acc,
		PreviousOffer: previousOffer,
		State:         n.State,
		Config:        n.Config,
		Events:        events,
		Messages:      messages,
	})
	if err != nil {
		return nil, fmt.Errorf("decision failed for %s: %w", id, err)
	}

	n.Round = round
	n.Status = statusForAction(dec.Action)
	n.State = state
	n.Offer = acc
	n.Events = events

	if err := s.repo.Update(n); err != nil {
		return nil, err
	}
	if err := s.repo.AppendDecision(DecisionEntry{
		NegotiationID: id,
		Round:         round,
		Action:        dec.Action,
		Utility:       dec.Utility,
		Strategy:      dec.Strategy,
		Reasons:       dec.Reasons,
		CounterOffer:  dec.CounterOffer,
	}); err != nil {
		return nil, err
	}

	return &RoundResponse{
		Round:             round,
		Status:            n.Status,
		Decision:          dec,
		StalledParameters: s.stall.Detect(parameterHistory(events)),
	}, nil
}

// Get loads a negotiation and its decision log.
func (s *Service) Get(id string) (*Negotiation, []DecisionEntry, error) {
	n, err := s.repo.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if n == nil {
		return nil, nil, ErrNotFound
	}
	decisions, err := s.repo.Decisions(id)
	if err != nil {
		return nil, nil, err
	}
	return n, decisions, nil
}

// GenerateMeso builds a MESO menu against the current state. Failures are
// reported inside the result, never as an error.
func (s *Service) GenerateMeso(id string, req MesoRequest) (domain.MesoResult, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	n, err := s.repo.Get(id)
	if err != nil {
		return domain.MesoResult{}, err
	}
	if n == nil {
		return domain.MesoResult{}, ErrNotFound
	}

	aggressiveness := n.Config.BaseAggressiveness()
	currentUtility := latestUtility(n.State)

	var result domain.MesoResult
	switch req.Variant {
	case "dynamic":
		result = s.meso.GenerateDynamic(n.Config, n.State, n.Offer, aggressiveness, req.Profile, n.Round)
	case "final":
		result = s.meso.GenerateFinal(n.Config, n.Offer, currentUtility, n.Round)
	default:
		result = s.meso.GenerateStatic(n.Config, n.State, n.Offer, aggressiveness)
	}

	if result.Success {
		s.meso.Remember(n.State, result)
		if err := s.repo.Update(n); err != nil {
			return domain.MesoResult{}, err
		}
	}
	return result, nil
}

// RecordSelection folds the counterparty's MESO pick into the negotiation
// state for preference tracking.
func (s *Service) RecordSelection(id string, selection domain.MesoSelection) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	n, err := s.repo.Get(id)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotFound
	}

	s.preference.RecordMesoSelection(n.State, selection)
	return s.repo.Update(n)
}

// EscalateIdle escalates every active negotiation with no activity since the
// cutoff. Returns the number escalated.
func (s *Service) EscalateIdle(cutoff time.Time) (int, error) {
	idle, err := s.repo.ListIdle(cutoff)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for _, n := range idle {
		lock := s.lockFor(n.ID)
		lock.Lock()

		if err := s.repo.SetStatus(n.ID, StatusEscalated); err != nil {
			lock.Unlock()
			return escalated, err
		}
		if err := s.repo.AppendDecision(DecisionEntry{
			NegotiationID: n.ID,
			Round:         n.Round,
			Action:        domain.ActionEscalate,
			Utility:       latestUtility(n.State),
			Reasons: []string{fmt.Sprintf(
				"no vendor activity since %s; escalating to a human", n.UpdatedAt.Format(time.RFC3339))},
		}); err != nil {
			lock.Unlock()
			return escalated, err
		}

		lock.Unlock()
		escalated++
		s.log.Warn().Str("id", n.ID).Time("last_activity", n.UpdatedAt).Msg("Escalated idle negotiation")
	}
	return escalated, nil
}

// lockFor returns the per-negotiation mutex, creating it on first use.
func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[id] == nil {
		s.locks[id] = &sync.Mutex{}
	}
	return s.locks[id]
}

// parameterHistory projects the offer-event history into per-round tracked
// parameter values for the stall detector.
func parameterHistory(events []domain.OfferEvent) []stall.RoundValues {
	out := make([]stall.RoundValues, 0, len(events))
	for _, e := range events {
		values := stall.RoundValues{}
		if e.Price != nil {
			values[domain.ParamPrice] = *e.Price
		}
		if e.TermsDays != nil {
			values[domain.ParamPaymentTerms] = float64(*e.TermsDays)
		}
		out = append(out, values)
	}
	return out
}

func latestUtility(state *domain.NegotiationState) float64 {
	if state == nil || len(state.UtilityHistory) == 0 {
		return 0
	}
	return state.UtilityHistory[len(state.UtilityHistory)-1].Utility
}
