package registry

import (
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// InputDomain names one of the four validation domains a process input
// field can declare.
type InputDomain string

// The closed set of input validation domains.
const (
	// DomainStringPath validates the field is a non-empty string naming a
	// path relative to the reach data layout (e.g. a plan file name).
	DomainStringPath InputDomain = "string_path"

	// DomainEnumeratedString validates the field is one of a fixed set of
	// string values (e.g. DEM resolution units).
	DomainEnumeratedString InputDomain = "enumerated_string"

	// DomainBoundedInteger validates the field is an integer within an
	// inclusive [Min, Max] range.
	DomainBoundedInteger InputDomain = "bounded_integer"

	// DomainBoolean validates the field is a JSON boolean.
	DomainBoolean InputDomain = "boolean"
)

// InputSpec declares one field a process accepts in its input document and
// the domain its value must satisfy.
type InputSpec struct {
	Name     string
	Domain   InputDomain
	Required bool
	Enum     []string
	Min      *int
	Max      *int
	Default  any
}

// apply validates fields[s.Name] against the spec's domain, filling in
// Default when the field is absent and not required.
func (s InputSpec) apply(fields map[string]any) error {
	value, present := fields[s.Name]

	if !present {
		if s.Required {
			return newInvalidInput("missing required field %q", s.Name)
		}

		if s.Default != nil {
			fields[s.Name] = s.Default
		}

		return nil
	}

	switch s.Domain {
	case DomainStringPath:
		return s.validateStringPath(value)
	case DomainEnumeratedString:
		return s.validateEnumeratedString(value)
	case DomainBoundedInteger:
		return s.validateBoundedInteger(value)
	case DomainBoolean:
		return s.validateBoolean(value)
	default:
		return newInvalidInput("field %q has unknown validation domain %q", s.Name, s.Domain)
	}
}

func (s InputSpec) validateStringPath(value any) error {
	str, ok := value.(string)
	if !ok || str == "" {
		return newInvalidInput("field %q must be a non-empty path string", s.Name)
	}

	return nil
}

func (s InputSpec) validateEnumeratedString(value any) error {
	str, ok := value.(string)
	if !ok {
		return newInvalidInput("field %q must be a string", s.Name)
	}

	for _, allowed := range s.Enum {
		if str == allowed {
			return nil
		}
	}

	return newInvalidInput("field %q has value %q, must be one of %v", s.Name, str, s.Enum)
}

func (s InputSpec) validateBoundedInteger(value any) error {
	n, ok := value.(float64) // encoding/json decodes numbers as float64
	if !ok || n != float64(int(n)) {
		return newInvalidInput("field %q must be an integer", s.Name)
	}

	i := int(n)

	if s.Min != nil && i < *s.Min {
		return newInvalidInput("field %q is %d, must be >= %d", s.Name, i, *s.Min)
	}

	if s.Max != nil && i > *s.Max {
		return newInvalidInput("field %q is %d, must be <= %d", s.Name, i, *s.Max)
	}

	return nil
}

func (s InputSpec) validateBoolean(value any) error {
	if _, ok := value.(bool); !ok {
		return newInvalidInput("field %q must be a boolean", s.Name)
	}

	return nil
}

func newInvalidInput(format string, args ...any) error {
	return stageerr.New(stageerr.KindInvalidInput, format, args...)
}
