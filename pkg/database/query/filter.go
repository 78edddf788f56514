package query

// Filter restricts results to records whose type discriminator equals Value.
// The zero Filter matches everything.
type Filter struct {
	Value uint64
	Valid bool
}

func NewFilter(value uint64) Filter {
	return Filter{Value: value, Valid: true}
}

func (f Filter) IsValid() bool {
	return f.Valid
}

// Matches reports whether a record with the given discriminator passes the
// filter.
func (f Filter) Matches(value uint64) bool {
	return !f.Valid || f.Value == value
}
