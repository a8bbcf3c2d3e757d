package typesystem

// Grade is the outcome of matching a source type against a target type.
// Grades are totally ordered; a higher grade is a better match.
type Grade uint8

const (
	NoMatch    Grade = iota
	Unbound          // a variable was bound to a concrete type
	AnyUnbound       // a variable was bound to any or to another variable
	Any              // the target is any
	Subtype          // the source is usable as a more specific type
	Similar          // numeric types that convert implicitly
	Exact
	// ExactWrapped and ExactNamed mark pairs that are equal modulo a variant
	// or parameter wrapper. The matcher resolves them before returning, so
	// they only order dispatch rules.
	ExactWrapped
	ExactNamed
)

var gradeNames = [...]string{
	NoMatch:      "NoMatch",
	Unbound:      "Unbound",
	AnyUnbound:   "AnyUnbound",
	Any:          "Any",
	Subtype:      "Subtype",
	Similar:      "Similar",
	Exact:        "Exact",
	ExactWrapped: "ExactWrapped",
	ExactNamed:   "ExactNamed",
}

func (g Grade) String() string {
	if int(g) < len(gradeNames) {
		return gradeNames[g]
	}
	return "Grade(?)"
}

// Accepts reports whether a value of the source type may be used where the
// target is expected.
func (g Grade) Accepts() bool { return g > NoMatch }

// AtLeast reports whether g is o or better. The exact-like markers count as
// Exact.
func (g Grade) AtLeast(o Grade) bool { return g.clamp() >= o.clamp() }

func (g Grade) clamp() Grade {
	if g > Exact {
		return Exact
	}
	return g
}

func minGrade(a, b Grade) Grade {
	if a < b {
		return a
	}
	return b
}

func maxGrade(a, b Grade) Grade {
	if a > b {
		return a
	}
	return b
}
