package allocvote

import "errors"

var (
	// ErrValidation is returned for malformed input the caller must fix before resubmitting.
	ErrValidation = errors.New("invalid input")

	// ErrNotAuthorized is returned when the caller lacks the required role or credential.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound is returned when the referenced proposal does not exist.
	ErrNotFound = errors.New("proposal not found")

	// ErrNotActive is returned when a vote targets a proposal that is no
	// longer ACTIVE or whose voting deadline has passed.
	ErrNotActive = errors.New("proposal is not open for voting")

	// ErrInvalidState is returned when a transition's state-machine precondition is violated.
	ErrInvalidState = errors.New("invalid proposal state for operation")

	// ErrDuplicateVote is returned when a voter already has a vote on the proposal.
	// A voter gets exactly one vote, ever; there is no vote revision.
	ErrDuplicateVote = errors.New("voter has already voted on this proposal")

	// ErrNotEligible is returned when the emergency supermajority threshold is not met.
	ErrNotEligible = errors.New("emergency finalization threshold not met")

	// ErrAlreadyExecuted is returned when an EXECUTED proposal is executed
	// again. Callers should treat it as a no-op confirmation.
	ErrAlreadyExecuted = errors.New("proposal already executed")

	// ErrCollaboratorUnavailable is returned when an external collaborator
	// call failed transiently. Safe to retry with backoff.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)
