package resample

import (
	"fmt"
	"strings"

	"dconnresample/internal/models"
)

// Kind classifies resampling errors
type Kind int

const (
	// TopologyMismatch means mesh vertex counts or connectivity disagree
	// with the data they are applied to
	TopologyMismatch Kind = iota + 1

	// NotASphere means a sphere input has vertices at differing radii
	NotASphere

	// MissingResamplingInputs means the template needs a structure that can
	// be neither resampled nor passed through
	MissingResamplingInputs

	// ConflictingInputs means mutually exclusive inputs were both given
	ConflictingInputs

	// InvalidDilationRadius means a dilation radius is negative or not a number
	InvalidDilationRadius

	// OutOfBoundsSample marks samples falling outside the source data. It is
	// only counted in statistics, never returned.
	OutOfBoundsSample

	// UnsupportedInterpolationMethod means an unknown surface or volume method
	UnsupportedInterpolationMethod
)

var kindNames = map[Kind]string{
	TopologyMismatch:               "topology mismatch",
	NotASphere:                     "not a sphere",
	MissingResamplingInputs:        "missing resampling inputs",
	ConflictingInputs:              "conflicting inputs",
	InvalidDilationRadius:          "invalid dilation radius",
	OutOfBoundsSample:              "out of bounds sample",
	UnsupportedInterpolationMethod: "unsupported interpolation method",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error lets a Kind be used as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// Error is a resampling failure tied to one axis and, usually, one structure.
type Error struct {
	Kind      Kind
	Axis      Axis
	Structure models.Structure
	Msg       string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "resampling along %s: ", e.Axis)
	if e.Structure != "" {
		fmt.Fprintf(&b, "%s: ", e.Structure)
	}
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors against their Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// ValidationErrors collects every configuration problem found before
// resampling starts.
type ValidationErrors []*Error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	if len(msgs) == 1 {
		return msgs[0]
	}
	return fmt.Sprintf("%d resampling errors:\n  %s", len(msgs), strings.Join(msgs, "\n  "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, e := range v {
		out[i] = e
	}
	return out
}

// OfKind returns the errors of the given kind.
func (v ValidationErrors) OfKind(k Kind) ValidationErrors {
	var out ValidationErrors
	for _, e := range v {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// errOrNil returns nil for an empty list so callers can compare against nil
func (v ValidationErrors) errOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
