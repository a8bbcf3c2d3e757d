package typesystem

import "github.com/funvibe/typecore/internal/config"

// Kind is the discriminant of a type descriptor.
type Kind uint8

const (
	KindUnset Kind = iota // "?", a variable that is not named by the user
	KindAny
	KindHolder // "@T"
	KindNone
	KindBool
	KindInt
	KindFloat
	KindDouble
	KindComplex
	KindString
	KindEnum
	KindArray
	KindList
	KindMap
	KindTuple
	KindTypeOf
	KindFuture
	KindRoutine
	KindVariant
	KindClass
	KindObject
	KindForeign
	KindInterface
	KindNamed   // "name:T" parameter or tuple field
	KindDefault // "name=T" parameter with a default value
	kindCount
)

var kindNames = [kindCount]string{
	KindUnset:     config.UnsetTypeName,
	KindAny:       config.AnyTypeName,
	KindHolder:    "holder",
	KindNone:      config.NoneTypeName,
	KindBool:      config.BoolTypeName,
	KindInt:       config.IntTypeName,
	KindFloat:     config.FloatTypeName,
	KindDouble:    config.DoubleTypeName,
	KindComplex:   config.ComplexTypeName,
	KindString:    config.StringTypeName,
	KindEnum:      config.EnumTypeName,
	KindArray:     config.ArrayTypeName,
	KindList:      config.ListTypeName,
	KindMap:       config.MapTypeName,
	KindTuple:     config.TupleTypeName,
	KindTypeOf:    config.TypeOfTypeName,
	KindFuture:    config.FutureTypeName,
	KindRoutine:   config.RoutineTypeName,
	KindVariant:   "variant",
	KindClass:     config.ClassTypeName,
	KindObject:    "object",
	KindForeign:   "foreign",
	KindInterface: config.InterfaceTypeName,
	KindNamed:     "named",
	KindDefault:   "default",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "invalid"
}

// IsVariable reports whether descriptors of this kind take part in
// unification as placeholders.
func (k Kind) IsVariable() bool {
	return k == KindUnset || k == KindHolder
}

// IsPrimitive reports whether k is a scalar kind whose canonical name is the
// kind name itself.
func (k Kind) IsPrimitive() bool {
	return k >= KindNone && k <= KindEnum
}

// IsNumeric reports whether k takes part in numeric similarity.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat || k == KindDouble
}

// IsContainer reports whether k carries element types matched pairwise.
func (k Kind) IsContainer() bool {
	switch k {
	case KindArray, KindList, KindMap, KindTuple, KindTypeOf, KindFuture:
		return true
	}
	return false
}

// IsWrapper reports whether k is a parameter wrapper around an inner type.
func (k Kind) IsWrapper() bool {
	return k == KindNamed || k == KindDefault
}

// IsDeclared reports whether descriptors of this kind name a declared entity.
func (k Kind) IsDeclared() bool {
	switch k {
	case KindClass, KindObject, KindForeign, KindInterface:
		return true
	}
	return false
}

// arity returns the number of element types a container kind requires, or -1
// when any count is allowed.
func (k Kind) arity() int {
	switch k {
	case KindArray, KindList, KindTypeOf, KindFuture:
		return 1
	case KindMap:
		return 2
	}
	return -1
}
