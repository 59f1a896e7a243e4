// Package utility converts raw offer attribute values into normalized
// utilities in [0,1] and aggregates them into a single weighted score.
package utility

import (
	"math"
	"strings"
	"time"
)

// Shape is the closed set of utility shapes. New shapes are compile-time
// checked - there is no open-ended string dispatch.
type Shape int

// Utility shapes.
const (
	ShapeLinear Shape = iota
	ShapeStepped
	ShapeDate
	ShapePercentage
	ShapeBoolean
	ShapeBinary
)

// Direction orients a linear or date shape.
type Direction int

// Directions.
const (
	LowerBetter Direction = iota
	HigherBetter
	CloserBetter
)

// Spec declares how one parameter's raw value maps to a utility.
type Spec struct {
	Name      string
	Shape     Shape
	Direction Direction

	// Linear / percentage bounds. For LowerBetter the utility is 1 at
	// Target and 0 at Max; for HigherBetter it is 0 at Min and 1 at Target;
	// for CloserBetter it decays linearly with distance from Target over
	// the half-range.
	Target float64
	Min    float64
	Max    float64

	// Date shape: target date plus a tolerance window in days over which
	// the utility decays to zero.
	TargetDate *time.Time
	WindowDays float64

	// Stepped shape: explicit option utilities, or position-based fallback
	// over the ordered option list.
	Options        map[string]float64
	OrderedOptions []string

	// Boolean shape target.
	TargetBool bool

	// Binary shape thresholds.
	Threshold       float64
	ThresholdString string
}

// Calculate converts one raw value into a utility in [0,1].
// Nil input always yields 0. Division by a zero range short-circuits to 0
// rather than producing NaN or Inf.
func Calculate(spec Spec, value any) float64 {
	if value == nil {
		return 0
	}

	var u float64
	switch spec.Shape {
	case ShapeLinear:
		u = linearUtility(spec, value)
	case ShapeStepped:
		u = steppedUtility(spec, value)
	case ShapeDate:
		u = dateUtility(spec, value)
	case ShapePercentage:
		u = percentageUtility(spec, value)
	case ShapeBoolean:
		u = booleanUtility(spec, value)
	case ShapeBinary:
		u = binaryUtility(spec, value)
	default:
		u = 0
	}

	return clamp01(u)
}

func linearUtility(spec Spec, value any) float64 {
	v, ok := toFloat(value)
	if !ok {
		return 0
	}

	switch spec.Direction {
	case LowerBetter:
		span := spec.Max - spec.Target
		if span <= 0 {
			return 0
		}
		if v <= spec.Target {
			return 1
		}
		return (spec.Max - v) / span

	case HigherBetter:
		span := spec.Target - spec.Min
		if span <= 0 {
			return 0
		}
		if v >= spec.Target {
			return 1
		}
		return (v - spec.Min) / span

	case CloserBetter:
		span := spec.Max - spec.Min
		if span <= 0 {
			return 0
		}
		return 1 - math.Abs(v-spec.Target)/(span/2)
	}

	return 0
}

func steppedUtility(spec Spec, value any) float64 {
	key, ok := toString(value)
	if !ok {
		return 0
	}

	if spec.Options != nil {
		if u, found := spec.Options[key]; found {
			return u
		}
		// Case-insensitive second pass - vendor labels are inconsistent.
		for k, u := range spec.Options {
			if strings.EqualFold(k, key) {
				return u
			}
		}
	}

	// Position-based fallback over the ordered option list.
	if len(spec.OrderedOptions) == 0 {
		return 0
	}
	if len(spec.OrderedOptions) == 1 {
		if strings.EqualFold(spec.OrderedOptions[0], key) {
			return 1
		}
		return 0
	}
	for i, opt := range spec.OrderedOptions {
		if strings.EqualFold(opt, key) {
			return float64(i) / float64(len(spec.OrderedOptions)-1)
		}
	}
	return 0
}

func dateUtility(spec Spec, value any) float64 {
	t, ok := value.(time.Time)
	if !ok {
		if p, isPtr := value.(*time.Time); isPtr && p != nil {
			t = *p
		} else {
			return 0
		}
	}
	if spec.TargetDate == nil {
		return 0
	}

	window := spec.WindowDays
	if window <= 0 {
		return 0
	}

	days := t.Sub(*spec.TargetDate).Hours() / 24

	switch spec.Direction {
	case LowerBetter: // earlier is better
		if days <= 0 {
			return 1
		}
		return 1 - days/window
	case HigherBetter: // later is better
		if days >= 0 {
			return 1
		}
		return 1 + days/window
	default: // closer is better
		return 1 - math.Abs(days)/window
	}
}

func percentageUtility(spec Spec, value any) float64 {
	v, ok := toFloat(value)
	if !ok {
		return 0
	}
	v = math.Max(0, math.Min(100, v))

	if spec.Direction == LowerBetter {
		if v <= spec.Target {
			return 1
		}
		span := 100 - spec.Target
		if span <= 0 {
			return 0
		}
		return 1 - (v-spec.Target)/span
	}

	// Higher is better: full utility at or above target.
	if spec.Target > 0 {
		return v / spec.Target
	}
	return v / 100
}

func booleanUtility(spec Spec, value any) float64 {
	b, ok := value.(bool)
	if !ok {
		if p, isPtr := value.(*bool); isPtr && p != nil {
			b = *p
		} else {
			return 0
		}
	}
	if b == spec.TargetBool {
		return 1
	}
	return 0
}

func binaryUtility(spec Spec, value any) float64 {
	switch v := value.(type) {
	case bool:
		if v == spec.TargetBool {
			return 1
		}
		return 0
	case string:
		if spec.ThresholdString != "" && strings.EqualFold(v, spec.ThresholdString) {
			return 1
		}
		return 0
	default:
		f, ok := toFloat(value)
		if !ok {
			return 0
		}
		if f >= spec.Threshold {
			return 1
		}
		return 0
	}
}

// toFloat converts supported numeric representations. NaN and Inf inputs are
// rejected so they can never leak into utility arithmetic.
func toFloat(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case *float64:
		if v == nil {
			return 0, false
		}
		f = *v
	case *int:
		if v == nil {
			return 0, false
		}
		f = float64(*v)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	}
	return "", false
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
