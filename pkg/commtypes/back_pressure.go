package commtypes

// BackPressureStrategy selects what a consumer handle does when its buffer
// has no room for a submission.
type BackPressureStrategy uint8

const (
	// BLOCK waits for room.
	BLOCK BackPressureStrategy = iota
	// DROP rejects the submission and reports it to the caller.
	DROP
	// UNBOUNDED always accepts; the answer is only advisory.
	UNBOUNDED
)

func (s BackPressureStrategy) String() string {
	switch s {
	case BLOCK:
		return "BLOCK"
	case DROP:
		return "DROP"
	case UNBOUNDED:
		return "UNBOUNDED"
	default:
		return "BackPressureStrategy(unknown)"
	}
}

func (s BackPressureStrategy) Valid() bool {
	return s <= UNBOUNDED
}
