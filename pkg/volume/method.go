// Package volume maps target voxels through an affine or a deformation field
// into a source volume and interpolates vector-valued voxel data there.
package volume

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedMethod is returned for unknown interpolation methods
var ErrUnsupportedMethod = errors.New("unsupported interpolation method")

// Method is a volume interpolation method
type Method int

const (
	// EnclosingVoxel takes the value of the voxel containing the point
	EnclosingVoxel Method = iota

	// Trilinear blends the 8 surrounding voxels
	Trilinear

	// Cubic uses cubic convolution over the 4x4x4 surrounding voxels
	Cubic
)

var methodNames = map[Method]string{
	EnclosingVoxel: "ENCLOSING_VOXEL",
	Trilinear:      "TRILINEAR",
	Cubic:          "CUBIC",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok
}

// Support returns how many voxels beyond the enclosing one the kernel reads.
func (m Method) Support() int {
	switch m {
	case Trilinear:
		return 1
	case Cubic:
		return 2
	default:
		return 0
	}
}

// ParseMethod converts a method name such as "CUBIC" into a Method.
func ParseMethod(name string) (Method, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for m, n := range methodNames {
		if n == upper {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q, use CUBIC, TRILINEAR or ENCLOSING_VOXEL", ErrUnsupportedMethod, name)
}

// MarshalText implements encoding.TextMarshaler for config files.
func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMethod, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for config files.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
