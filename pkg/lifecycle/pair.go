package lifecycle

// Pair couples two opposite phases, such as start and stop. A manager may
// move directly between the two ends of a pair without replaying the
// phases in between.
type Pair struct {
	begin string
	end   string
}

// NewPair returns the pair (begin, end).
func NewPair(begin, end string) (Pair, error) {
	if begin == end {
		return Pair{}, ErrInvalidPair
	}
	return Pair{begin: begin, end: end}, nil
}

// MustPair is like NewPair but panics on an invalid pair.
func MustPair(begin, end string) Pair {
	p, err := NewPair(begin, end)
	if err != nil {
		panic(err)
	}
	return p
}

// Begin returns the opening phase.
func (p Pair) Begin() string { return p.begin }

// End returns the closing phase.
func (p Pair) End() string { return p.end }

// Joins reports whether a and b are the two ends of the pair, in either order.
func (p Pair) Joins(a, b string) bool {
	return (a == p.begin && b == p.end) || (a == p.end && b == p.begin)
}

// DefaultPairs returns (initialise, dispose) and (start, stop).
func DefaultPairs() []Pair {
	return []Pair{
		MustPair(Initialise, Dispose),
		MustPair(Start, Stop),
	}
}
