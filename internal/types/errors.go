package types

import "errors"

// Sentinel errors for remap operations.
//
// Specification errors (undefined refs, malformed loops, unknown transforms,
// bad unit targets) surface before any row is processed. Structural errors
// (ErrFieldMissing) abort the run mid-stream: they indicate a source file
// that does not match the parser's assumptions.
var (
	// ErrUndefinedRef indicates a ref to a name absent from the definitions.
	ErrUndefinedRef = errors.New("reference to undefined definition")

	// ErrCircularRef indicates a reference cycle in the definitions.
	ErrCircularRef = errors.New("circular reference in definitions")

	// ErrDefCollision indicates an include-def name already defined.
	ErrDefCollision = errors.New("definition name collision")

	// ErrMalformedFor indicates a for variable with neither a range nor a list.
	ErrMalformedFor = errors.New("for variable requires a range or a value list")

	// ErrUnboundLoopVar indicates a {var} placeholder with no loop binding.
	ErrUnboundLoopVar = errors.New("unbound loop variable in template")

	// ErrUnknownFunction indicates an apply.function not in the registry.
	ErrUnknownFunction = errors.New("unknown transformation function")

	// ErrUnitConversion indicates an impossible unit conversion.
	ErrUnitConversion = errors.New("incompatible unit conversion")

	// ErrFieldMissing indicates a required source field absent from the row.
	ErrFieldMissing = errors.New("source field missing from row")

	// ErrInvalidRule indicates a rule node that fits no rule variant.
	ErrInvalidRule = errors.New("invalid field rule")

	// ErrInvalidCondition indicates a condition node that cannot be compiled.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrInvalidExcludeWhen indicates an unsupported excludeWhen value.
	ErrInvalidExcludeWhen = errors.New("excludeWhen must be 'none', 'false-like', or a list of values")

	// ErrUnknownCombinedType indicates an unsupported combinedType.
	ErrUnknownCombinedType = errors.New("unknown combinedType")

	// ErrInvalidSpec indicates a specification that fails structural checks.
	ErrInvalidSpec = errors.New("invalid specification")

	// ErrUnknownTable indicates a request for a table the spec does not declare.
	ErrUnknownTable = errors.New("unknown table")
)
