// Package errors provides structured domain errors with stable codes.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeInvalidBudget    Code = "INVALID_BUDGET"
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Combat action outcomes
	CodeSpamDetected       Code = "SPAM_DETECTED"
	CodeInsufficientEnergy Code = "INSUFFICIENT_ENERGY"
	CodeActionTooSmall     Code = "ACTION_TOO_SMALL"
	CodeKillBlocked        Code = "KILL_BLOCKED"

	// Run lifecycle errors
	CodeNoActiveRun      Code = "NO_ACTIVE_RUN"
	CodeRunAlreadyActive Code = "RUN_ALREADY_ACTIVE"
	CodePlusLevelLocked  Code = "PLUS_LEVEL_LOCKED"

	// Group session errors
	CodeSessionAlreadyActive Code = "SESSION_ALREADY_ACTIVE"
	CodeNoActiveSession      Code = "NO_ACTIVE_SESSION"
	CodeNotEligible          Code = "NOT_ELIGIBLE"
	CodeCooldownActive       Code = "COOLDOWN_ACTIVE"
	CodeActivityTooLow       Code = "ACTIVITY_TOO_LOW"
	CodeChainAlreadyActive   Code = "CHAIN_ALREADY_ACTIVE"

	// Content errors
	CodePoolInvalid    Code = "POOL_INVALID"
	CodeNoEligibleBase Code = "NO_ELIGIBLE_BASE"

	// Storage errors
	CodeNotFound  Code = "NOT_FOUND"
	CodeConflict  Code = "CONFLICT"
	CodeTransient Code = "TRANSIENT"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidArgument,
		CodeInvalidBudget,
		CodeActionTooSmall:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInsufficientEnergy,
		CodeKillBlocked,
		CodeNoActiveRun,
		CodeNoActiveSession,
		CodeNotEligible,
		CodeActivityTooLow,
		CodePlusLevelLocked,
		CodePoolInvalid,
		CodeNoEligibleBase:
		return codes.FailedPrecondition

	// ResourceExhausted - rate limits and cooldowns
	case CodeSpamDetected,
		CodeCooldownActive:
		return codes.ResourceExhausted

	// AlreadyExists - unique resource constraint
	case CodeRunAlreadyActive,
		CodeSessionAlreadyActive,
		CodeChainAlreadyActive:
		return codes.AlreadyExists

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// PermissionDenied - operator-only requests
	case CodePermissionDenied:
		return codes.PermissionDenied

	// Aborted - lost an optimistic write race
	case CodeConflict:
		return codes.Aborted

	// Unavailable - safe to retry
	case CodeTransient:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

// Retryable reports whether the caller may safely retry after this code.
func (c Code) Retryable() bool {
	return c == CodeTransient || c == CodeConflict
}
