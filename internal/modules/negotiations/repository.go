package negotiations

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/negotiator/internal/domain"
)

// Repository handles negotiation persistence. Records live in the
// negotiations table; engine state snapshots are msgpack blobs, the resolved
// config, latest offer and event history are JSON columns. Decisions go to
// the append-only decision_log table.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a negotiations repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "negotiations").Logger(),
	}
}

// Create inserts a new negotiation record.
func (r *Repository) Create(n *Negotiation) error {
	configJSON, stateBlob, offerJSON, eventsJSON, err := encode(n)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	_, err = r.db.Exec(`
		INSERT INTO negotiations (id, title, vendor, status, round, config_json, state_blob, offer_json, events_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Vendor, string(n.Status), n.Round, configJSON, stateBlob, offerJSON, eventsJSON, now, now)
	if err != nil {
		return fmt.Errorf("failed to create negotiation %s: %w", n.ID, err)
	}

	r.log.Debug().Str("id", n.ID).Str("title", n.Title).Msg("Created negotiation")
	return nil
}

// Update persists the mutable parts of a negotiation after a round.
func (r *Repository) Update(n *Negotiation) error {
	configJSON, stateBlob, offerJSON, eventsJSON, err := encode(n)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(`
		UPDATE negotiations
		SET status = ?, round = ?, config_json = ?, state_blob = ?, offer_json = ?, events_json = ?, updated_at = ?
		WHERE id = ?
	`, string(n.Status), n.Round, configJSON, stateBlob, offerJSON, eventsJSON, time.Now().Unix(), n.ID)
	if err != nil {
		return fmt.Errorf("failed to update negotiation %s: %w", n.ID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("negotiation %s not found", n.ID)
	}
	return nil
}

// Get loads one negotiation by ID. Returns nil without error when the record
// does not exist.
func (r *Repository) Get(id string) (*Negotiation, error) {
	row := r.db.QueryRow(`
		SELECT id, title, vendor, status, round, config_json, state_blob, offer_json, events_json, created_at, updated_at
		FROM negotiations WHERE id = ?
	`, id)

	n, err := scanNegotiation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get negotiation %s: %w", id, err)
	}
	return n, nil
}

// ListIdle returns active negotiations whose last update is older than the
// cutoff. Used by the idle-escalation watchdog.
func (r *Repository) ListIdle(cutoff time.Time) ([]*Negotiation, error) {
	rows, err := r.db.Query(`
		SELECT id, title, vendor, status, round, config_json, state_blob, offer_json, events_json, created_at, updated_at
		FROM negotiations
		WHERE status = ? AND updated_at < ?
	`, string(StatusNegotiating), cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list idle negotiations: %w", err)
	}
	defer rows.Close()

	var out []*Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan negotiation row")
			continue
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SetStatus updates only the lifecycle status.
func (r *Repository) SetStatus(id string, status Status) error {
	_, err := r.db.Exec(`
		UPDATE negotiations SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set status for %s: %w", id, err)
	}
	return nil
}

// AppendDecision writes one decision to the append-only log.
func (r *Repository) AppendDecision(entry DecisionEntry) error {
	var counterJSON *string
	if entry.CounterOffer != nil {
		b, err := json.Marshal(entry.CounterOffer)
		if err != nil {
			return fmt.Errorf("failed to encode counter offer: %w", err)
		}
		s := string(b)
		counterJSON = &s
	}

	_, err := r.db.Exec(`
		INSERT INTO decision_log (negotiation_id, round, action, utility, strategy, reasons, counter_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.NegotiationID, entry.Round, string(entry.Action), entry.Utility,
		entry.Strategy, strings.Join(entry.Reasons, "\n"), counterJSON, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to append decision for %s: %w", entry.NegotiationID, err)
	}
	return nil
}

// Decisions returns the decision log for one negotiation, oldest first.
func (r *Repository) Decisions(negotiationID string) ([]DecisionEntry, error) {
	rows, err := r.db.Query(`
		SELECT negotiation_id, round, action, utility, strategy, reasons, counter_json, created_at
		FROM decision_log WHERE negotiation_id = ? ORDER BY id
	`, negotiationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load decisions for %s: %w", negotiationID, err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var entry DecisionEntry
		var action, reasons string
		var counterJSON sql.NullString
		var createdAt int64

		if err := rows.Scan(&entry.NegotiationID, &entry.Round, &action, &entry.Utility,
			&entry.Strategy, &reasons, &counterJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}

		entry.Action = domain.Action(action)
		if reasons != "" {
			entry.Reasons = strings.Split(reasons, "\n")
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		if counterJSON.Valid {
			var co domain.CounterOffer
			if err := json.Unmarshal([]byte(counterJSON.String), &co); err != nil {
				return nil, fmt.Errorf("failed to decode counter offer: %w", err)
			}
			entry.CounterOffer = &co
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// encode serializes the variable-width parts of a negotiation record.
func encode(n *Negotiation) (configJSON string, stateBlob []byte, offerJSON, eventsJSON *string, err error) {
	configBytes, err := json.Marshal(n.Config)
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("failed to encode config: %w", err)
	}
	configJSON = string(configBytes)

	if n.State != nil {
		stateBlob, err = msgpack.Marshal(n.State)
		if err != nil {
			return "", nil, nil, nil, fmt.Errorf("failed to encode state snapshot: %w", err)
		}
	}

	if n.Offer != nil {
		b, err := json.Marshal(n.Offer)
		if err != nil {
			return "", nil, nil, nil, fmt.Errorf("failed to encode offer: %w", err)
		}
		s := string(b)
		offerJSON = &s
	}

	if len(n.Events) > 0 {
		b, err := json.Marshal(n.Events)
		if err != nil {
			return "", nil, nil, nil, fmt.Errorf("failed to encode events: %w", err)
		}
		s := string(b)
		eventsJSON = &s
	}

	return configJSON, stateBlob, offerJSON, eventsJSON, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNegotiation(row rowScanner) (*Negotiation, error) {
	var n Negotiation
	var status, configJSON string
	var stateBlob []byte
	var offerJSON, eventsJSON sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&n.ID, &n.Title, &n.Vendor, &status, &n.Round,
		&configJSON, &stateBlob, &offerJSON, &eventsJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	n.Status = Status(status)
	n.CreatedAt = time.Unix(createdAt, 0)
	n.UpdatedAt = time.Unix(updatedAt, 0)

	n.Config = &domain.ResolvedConfig{}
	if err := json.Unmarshal([]byte(configJSON), n.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if len(stateBlob) > 0 {
		n.State = &domain.NegotiationState{}
		if err := msgpack.Unmarshal(stateBlob, n.State); err != nil {
			return nil, fmt.Errorf("failed to decode state snapshot: %w", err)
		}
	}

	if offerJSON.Valid {
		n.Offer = &domain.AccumulatedOffer{}
		if err := json.Unmarshal([]byte(offerJSON.String), n.Offer); err != nil {
			return nil, fmt.Errorf("failed to decode offer: %w", err)
		}
	}

	if eventsJSON.Valid {
		if err := json.Unmarshal([]byte(eventsJSON.String), &n.Events); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
	}

	return &n, nil
}
