package models

// StatusKind describes how far the resolution of an address has progressed.
type StatusKind int

const (
	// Unresolved means the address has not been looked up yet.
	Unresolved StatusKind = iota
	// Resolved means the provider returned coordinates for the address.
	Resolved
	// Failed means the provider rejected the address permanently or retries ran out.
	Failed
)

func (k StatusKind) String() string {
	switch k {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// AddressRecord is the cached resolution state of a single address.
// Location is only meaningful for Resolved records and Reason only for Failed ones.
type AddressRecord struct {
	Address  string
	Kind     StatusKind
	Location Coordinates
	Reason   string
}

// IsTerminal reports whether the record will never be requested again.
func (r AddressRecord) IsTerminal() bool {
	return r.Kind == Resolved || r.Kind == Failed
}
