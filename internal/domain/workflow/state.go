package workflow

// State represents a stage in the evaluation of a single record
type State string

const (
	StateStart     State = "START"
	StateValidated State = "VALIDATED"
	StateExtracted State = "EXTRACTED"
	StateChecked   State = "CHECKED"
	StateDone      State = "DONE"
)

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return s == StateDone
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known evaluation state
func (s State) IsValid() bool {
	switch s {
	case StateStart, StateValidated, StateExtracted, StateChecked, StateDone:
		return true
	}
	return false
}
