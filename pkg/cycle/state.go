package cycle

// State is the phase an update cycle is in.
type State int

const (
	Idle State = iota
	Aggregating
	Blending
	Persisted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Aggregating:
		return "aggregating"
	case Blending:
		return "blending"
	case Persisted:
		return "persisted"
	default:
		return "unknown"
	}
}
