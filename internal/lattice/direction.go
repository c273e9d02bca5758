package lattice

// Direction is one of the four axis-aligned unit steps.
//
// The encoding is significant: the opposite of d is always (d+2) mod 4,
// which the non-reversing walk relies on.
type Direction uint8

const (
	PosX Direction = iota
	PosY
	NegX
	NegY

	// NoDirection marks "no previous step". Its opposite is never a real
	// direction, so exclusion checks against it never trigger.
	NoDirection Direction = 4
)

// NumDirections is the lattice coordination number.
const NumDirections = 4

// Directions lists the real directions in encoding order.
func Directions() [NumDirections]Direction {
	return [NumDirections]Direction{PosX, PosY, NegX, NegY}
}

// DirectionOf reduces an arbitrary unsigned draw to a direction.
func DirectionOf(u uint64) Direction {
	return Direction(u % NumDirections)
}

// Opposite returns (d+2) mod 4 for real directions and NoDirection for the
// sentinel.
func (d Direction) Opposite() Direction {
	if !d.Valid() {
		return NoDirection
	}
	return (d + 2) % NumDirections
}

// Valid reports whether d is one of the four real directions.
func (d Direction) Valid() bool {
	return d < NumDirections
}

func (d Direction) String() string {
	switch d {
	case PosX:
		return "+x"
	case PosY:
		return "+y"
	case NegX:
		return "-x"
	case NegY:
		return "-y"
	default:
		return "none"
	}
}

// Step maps d (taken mod 4) to its unit vector:
// 0 -> (+1,0), 1 -> (0,+1), 2 -> (-1,0), 3 -> (0,-1).
func Step[T Scalar](d Direction) Vec[T] {
	switch d % NumDirections {
	case PosX:
		return Vec[T]{1, 0}
	case PosY:
		return Vec[T]{0, 1}
	case NegX:
		return Vec[T]{-1, 0}
	default:
		return Vec[T]{0, -1}
	}
}
