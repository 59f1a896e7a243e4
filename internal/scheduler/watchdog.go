package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// IdleEscalator is the part of the negotiation service the watchdog needs.
type IdleEscalator interface {
	EscalateIdle(cutoff time.Time) (int, error)
}

// IdleEscalationJob escalates negotiations with no vendor activity for longer
// than the configured window. A silent counterparty should land on a human
// desk, not sit in NEGOTIATING forever.
type IdleEscalationJob struct {
	service   IdleEscalator
	idleAfter time.Duration
	log       zerolog.Logger
}

// NewIdleEscalationJob creates the idle-negotiation watchdog.
func NewIdleEscalationJob(service IdleEscalator, idleAfter time.Duration, log zerolog.Logger) *IdleEscalationJob {
	return &IdleEscalationJob{
		service:   service,
		idleAfter: idleAfter,
		log:       log.With().Str("job", "idle-escalation").Logger(),
	}
}

// Name returns the job name
func (j *IdleEscalationJob) Name() string {
	return "idle-escalation"
}

// Run escalates every negotiation idle past the cutoff.
func (j *IdleEscalationJob) Run() error {
	cutoff := time.Now().Add(-j.idleAfter)

	count, err := j.service.EscalateIdle(cutoff)
	if err != nil {
		return err
	}

	if count > 0 {
		j.log.Info().Int("escalated", count).Time("cutoff", cutoff).Msg("Escalated idle negotiations")
	}
	return nil
}
