package allocvote

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/google/uuid"
)

// executionNamespace is the fixed UUID namespace for idempotency keys.
var executionNamespace = uuid.MustParse("8f7e2d14-3a96-4c14-9f14-6c1f0b5a9d27")

// idempotencyKey derives the deterministic key for a proposal's mutation
// call. A retried call for the same proposal always carries the same key,
// so the collaborator can deduplicate it.
func idempotencyKey(councilID string, proposalID int64) string {
	var name = fmt.Sprintf("%s/%d", councilID, proposalID)
	return uuid.NewSHA1(executionNamespace, []byte(name)).String()
}

// mutationRequest builds the kind-specific allocation change for an
// approved proposal.
func mutationRequest(councilID string, proposal *Proposal) MutationRequest {
	return MutationRequest{
		Kind:           proposal.Kind,
		SubjectRef:     proposal.SubjectRef,
		CurrentValue:   proposal.CurrentValue,
		ProposedValue:  proposal.ProposedValue,
		IdempotencyKey: idempotencyKey(councilID, proposal.ID),
	}
}

// Execute applies an APPROVED proposal's change through the state-mutation
// collaborator and marks it EXECUTED. The dispatch worker calls this
// automatically; it is exposed for manual retry.
//
// Re-execution of an EXECUTED proposal is a no-op returning the recorded
// execution reference. On collaborator failure the proposal remains
// APPROVED and a later call resumes from the same idempotency key.
func (c *Council) Execute(ctx context.Context, proposalID int64) (string, error) {
	if c.store == nil {
		return "", errCouncilNotStarted
	}

	proposal, err := c.store.Get(ctx, proposalID)
	if err != nil {
		return "", err
	}

	switch proposal.Status {
	case StatusExecuted:
		return proposal.ExecutionRef, nil
	case StatusApproved:
	default:
		return "", fmt.Errorf("%w: cannot execute proposal in status %s", ErrInvalidState, proposal.Status)
	}

	var (
		request      = mutationRequest(c.councilID, proposal)
		executionRef string
		action       = func(attempt uint) error {
			var applyErr error
			executionRef, applyErr = c.mutator.Apply(ctx, request)
			return applyErr
		}
	)

	if err := retry.Retry(action, strategy.Limit(5), strategy.Backoff(backoff.Fibonacci(c.options.dispatchBackoff))); err != nil {
		return "", fmt.Errorf("%w: mutation dispatch failed: %v", ErrCollaboratorUnavailable, err)
	}

	if err := c.store.MarkExecuted(ctx, proposalID, executionRef); err != nil {
		// A concurrent dispatcher run won the transition; the mutation
		// itself was deduplicated by the idempotency key.
		if errors.Is(err, ErrAlreadyExecuted) {
			executed, getErr := c.store.Get(ctx, proposalID)
			if getErr != nil {
				return "", getErr
			}
			return executed.ExecutionRef, nil
		}
		return "", err
	}

	return executionRef, nil
}
