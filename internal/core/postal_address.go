package core

// PostalAddress is the venue address entity. Name and Region are optional;
// an empty string means unset and is stored as NULL. When set, Name must be
// unique across all addresses (case-insensitive).
type PostalAddress struct {
	IdVersion IdVersion

	// Name of the location, e.g. the club house or hall.
	Name string
	// Street address including house number.
	Street string
	// PostalCode of the locality.
	PostalCode string
	// Locality is the city or town.
	Locality string
	// Region is an optional state or province.
	Region string
	// Country as ISO name or code.
	Country string
}

// Clone returns a deep copy of the address.
func (a *PostalAddress) Clone() *PostalAddress {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
