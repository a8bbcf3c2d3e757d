package config

// Parent limits.
const (
	DefaultMaxParents       = 16
	DefaultMaxForeignSupers = 16
)

// Built-in type names
const (
	AnyTypeName       = "any"
	UnsetTypeName     = "?"
	NoneTypeName      = "none"
	BoolTypeName      = "bool"
	IntTypeName       = "int"
	FloatTypeName     = "float"
	DoubleTypeName    = "double"
	ComplexTypeName   = "complex"
	StringTypeName    = "string"
	EnumTypeName      = "enum"
	ArrayTypeName     = "array"
	ListTypeName      = "list"
	MapTypeName       = "map"
	TupleTypeName     = "tuple"
	TypeOfTypeName    = "type"
	FutureTypeName    = "future"
	RoutineTypeName   = "routine"
	CoroutineTypeName = "coroutine"
	ClassTypeName     = "class"
	InterfaceTypeName = "interface"
)

// HolderPrefix marks a type variable, e.g. "@T".
const HolderPrefix = "@"

// SelfParamName is the name of the implicit receiver parameter of methods.
const SelfParamName = "self"

// OperatorMethodNames are the method names a class may define to overload
// an operator. The index of a name is its bit in the class operator set.
var OperatorMethodNames = []string{
	"+", "-", "*", "/", "%", "**",
	"==", "!=", "<", "<=",
	"!", "&&", "||",
	"&", "|", "^", "~", "<<", ">>",
	"[]", "[]=", "()",
}
