package allocvote

import (
	"context"
	"time"
)

// finalizeDueWorker periodically finalizes ACTIVE proposals past their
// voting deadline. Overlapping runs are harmless because finalization is
// idempotent under the proposal's row lock.
func (c *Council) finalizeDueWorker(ctx context.Context) {
	var ticker = time.NewTicker(c.options.scanInterval)
	defer ticker.Stop()

	// Run immediately on start, then periodically
	c.finalizeDueProposals(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.finalizeDueProposals(ctx)
		}
	}
}

// finalizeDueProposals finalizes each due proposal, logging per-item
// failures so one stuck proposal never blocks the rest of the batch.
func (c *Council) finalizeDueProposals(ctx context.Context) {
	due, err := c.store.ListDue(ctx, time.Now())
	if err != nil {
		c.options.logger.Error("failed to scan for due proposals", "error", err)
		return
	}

	for _, proposal := range due {
		outcome, err := c.store.FinalizeAtDeadline(ctx, proposal.ID)
		if err != nil {
			c.options.logger.Error("failed to finalize proposal",
				"proposal_id", proposal.ID,
				"error", err)
			continue
		}

		c.options.logger.Info("proposal finalized",
			"proposal_id", proposal.ID,
			"outcome", outcome)
	}
}

// dispatchWorker periodically executes APPROVED proposals. A proposal whose
// mutation call keeps failing stays APPROVED and is retried on later scans.
func (c *Council) dispatchWorker(ctx context.Context) {
	var ticker = time.NewTicker(c.options.scanInterval)
	defer ticker.Stop()

	// Run immediately on start, then periodically
	c.dispatchApprovedProposals(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.dispatchApprovedProposals(ctx)
		}
	}
}

func (c *Council) dispatchApprovedProposals(ctx context.Context) {
	approved, err := c.store.ListByStatus(ctx, StatusApproved)
	if err != nil {
		c.options.logger.Error("failed to scan for approved proposals", "error", err)
		return
	}

	for _, proposal := range approved {
		ref, err := c.Execute(ctx, proposal.ID)
		if err != nil {
			c.options.logger.Error("failed to execute proposal",
				"proposal_id", proposal.ID,
				"error", err)
			continue
		}

		c.options.logger.Info("proposal executed",
			"proposal_id", proposal.ID,
			"execution_ref", ref)
	}
}
