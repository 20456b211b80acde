package task

// Kind classifies a task by execution mode.
type Kind string

const (
	// Regular tasks are invoked on demand.
	Regular Kind = "regular"
	// Periodic tasks are eligible for periodic scheduling by the
	// execution layer.
	Periodic Kind = "periodic"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Regular || k == Periodic
}

func (k Kind) String() string { return string(k) }
