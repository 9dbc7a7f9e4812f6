package model

import "time"

// Change is the before and after value of one facet in an activity.
type Change struct {
	From string
	To   string
}

// Untouched reports whether neither side carries a value.
func (c Change) Untouched() bool {
	return c.From == "" && c.To == ""
}

// Activity is a set of facet changes an author made to an entity at one instant.
type Activity[F Facet] struct {
	EntityID   int64
	ModifiedBy string
	ModifiedAt time.Time
	Changes    map[F]Change
}
