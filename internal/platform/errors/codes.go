// Package errors provides structured, coded errors for the simulation
// service surface.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Scenario errors
	CodeScenarioUnknown   Code = "SCENARIO_UNKNOWN"
	CodeScenarioNameEmpty Code = "SCENARIO_NAME_EMPTY"
	CodeScenarioInvalid   Code = "SCENARIO_INVALID"

	// Session errors
	CodeSessionNotFound    Code = "SESSION_NOT_FOUND"
	CodeSessionIDEmpty     Code = "SESSION_ID_EMPTY"
	CodeSessionLimit       Code = "SESSION_LIMIT_REACHED"
	CodeSessionInterrupted Code = "SESSION_INTERRUPTED"

	// Simulation errors
	CodeOptionOutOfRange Code = "OPTION_OUT_OF_RANGE"
	CodeCircuitInvalid   Code = "CIRCUIT_INVALID"
	CodeSpecMisaligned   Code = "SPEC_MISALIGNED"

	// Journal errors
	CodeJournalFilterInvalid Code = "JOURNAL_FILTER_INVALID"
	CodeJournalUnavailable   Code = "JOURNAL_UNAVAILABLE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Category is a coarse, transport-neutral error class.
type Category int

const (
	// CategoryInternal covers unexpected failures.
	CategoryInternal Category = iota
	// CategoryInvalid covers validation failures and bad input.
	CategoryInvalid
	// CategoryNotFound covers lookups that missed.
	CategoryNotFound
	// CategoryUnavailable covers dependencies that cannot serve right now.
	CategoryUnavailable
)

// Category maps domain codes to their coarse class.
func (c Code) Category() Category {
	switch c {
	case CodeScenarioNameEmpty,
		CodeScenarioInvalid,
		CodeSessionIDEmpty,
		CodeOptionOutOfRange,
		CodeCircuitInvalid,
		CodeSpecMisaligned,
		CodeJournalFilterInvalid:
		return CategoryInvalid

	case CodeScenarioUnknown,
		CodeSessionNotFound,
		CodeNotFound:
		return CategoryNotFound

	case CodeSessionLimit,
		CodeSessionInterrupted,
		CodeJournalUnavailable:
		return CategoryUnavailable

	default:
		return CategoryInternal
	}
}

// String names the category for logs and diagnostics.
func (c Category) String() string {
	switch c {
	case CategoryInvalid:
		return "invalid"
	case CategoryNotFound:
		return "not_found"
	case CategoryUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}
