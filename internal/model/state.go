package model

// PersistenceState tracks whether a version has to be written to storage.
type PersistenceState uint8

const (
	// StateNew marks a version that was never written.
	StateNew PersistenceState = iota
	// StateDirty marks a written version whose To was moved afterwards.
	StateDirty
	// StateSaved marks a version identical to its stored row.
	StateSaved
)

func (s PersistenceState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateDirty:
		return "dirty"
	case StateSaved:
		return "saved"
	default:
		return "unknown"
	}
}

// Extended returns the state of a version after its validity was extended.
// Unwritten versions stay new.
func (s PersistenceState) Extended() PersistenceState {
	if s == StateSaved {
		return StateDirty
	}
	return s
}

// Written returns the state of a version after it was stored.
func (s PersistenceState) Written() PersistenceState {
	return StateSaved
}

// NeedsWrite reports whether a sink has to write a version in this state.
func (s PersistenceState) NeedsWrite() bool {
	return s != StateSaved
}
