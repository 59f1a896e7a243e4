// Package stall finds parameters whose offered value has repeated for N
// rounds while others vary - a signal the counterparty may have reached a
// hard limit on that parameter specifically.
package stall

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/negotiator/internal/domain"
)

// DefaultWindow is the number of rounds a value must repeat to count as
// stalled.
const DefaultWindow = 3

// RoundValues is one round's tracked numeric/boolean parameter values,
// keyed by canonical parameter name. Booleans are encoded as 0/1.
type RoundValues map[string]float64

// Detector finds stalled parameters.
type Detector struct {
	window int
	log    zerolog.Logger
}

// New creates a stall detector with the given repeat window. A window below
// 2 falls back to the default.
func New(window int, log zerolog.Logger) *Detector {
	if window < 2 {
		window = DefaultWindow
	}
	return &Detector{
		window: window,
		log:    log.With().Str("component", "stall").Logger(),
	}
}

// Detect scans the per-round value history (oldest first) and returns every
// parameter whose latest value matches the previous window-1 values while at
// least one other tracked parameter changed in the same window.
func (d *Detector) Detect(history []RoundValues) []domain.StalledParameter {
	if len(history) < d.window {
		return nil
	}

	window := history[len(history)-d.window:]

	// Only parameters present in every round of the window participate.
	params := make([]string, 0)
	for name := range window[len(window)-1] {
		present := true
		for _, round := range window {
			if _, ok := round[name]; !ok {
				present = false
				break
			}
		}
		if present {
			params = append(params, name)
		}
	}
	sort.Strings(params)

	stalled := make([]string, 0)
	changed := make([]string, 0)
	for _, name := range params {
		if repeats(window, name) {
			stalled = append(stalled, name)
		} else {
			changed = append(changed, name)
		}
	}

	// A stall is only meaningful when something else moved: an entirely
	// frozen offer is rigidity, handled by the decision policy.
	if len(changed) == 0 {
		return nil
	}

	out := make([]domain.StalledParameter, 0, len(stalled))
	for _, name := range stalled {
		out = append(out, domain.StalledParameter{
			Parameter: name,
			Value:     window[len(window)-1][name],
			Rounds:    d.window,
		})
	}

	if len(out) > 0 {
		d.log.Debug().
			Int("stalled", len(out)).
			Strs("changed", changed).
			Msg("Detected stalled parameters")
	}

	return out
}

// repeats reports whether the parameter's value is unchanged (within
// tolerance) across the whole window.
func repeats(window []RoundValues, name string) bool {
	latest := window[len(window)-1][name]
	tol := tolerance(name, latest)
	for _, round := range window[:len(window)-1] {
		if math.Abs(round[name]-latest) > tol {
			return false
		}
	}
	return true
}

// tolerance returns the per-parameter match tolerance. Price uses
// max(10, 0.1%) absolute; everything else uses a small epsilon.
func tolerance(name string, value float64) float64 {
	if name == domain.ParamPrice {
		return math.Max(10, math.Abs(value)*0.001)
	}
	return 1e-6
}
