package decl

import "fmt"

// Provenance records who owns a declaration.
type Provenance int

const (
	// Unmarked declarations carry no marker. They are never overwritten.
	Unmarked Provenance = iota
	// Generated declarations may be replaced on regeneration.
	Generated
	// Manual declarations must survive regeneration verbatim.
	Manual
)

// String returns the lower-case name of the provenance.
func (p Provenance) String() string {
	switch p {
	case Unmarked:
		return "unmarked"
	case Generated:
		return "generated"
	case Manual:
		return "manual"
	default:
		return fmt.Sprintf("Provenance(%d)", int(p))
	}
}

// ParseProvenance is the inverse of String.
func ParseProvenance(s string) (Provenance, error) {
	switch s {
	case "unmarked", "":
		return Unmarked, nil
	case "generated":
		return Generated, nil
	case "manual":
		return Manual, nil
	default:
		return Unmarked, fmt.Errorf("unknown provenance %q", s)
	}
}

// MarshalText encodes the provenance by name.
func (p Provenance) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText.
func (p *Provenance) UnmarshalText(text []byte) error {
	v, err := ParseProvenance(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
