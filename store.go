package allocvote

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go-allocvote/database"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
)

// proposalStore owns all proposal and vote mutations. Every transition runs
// inside a transaction holding the proposal's row lock, so the pair
// (status, cached tally, vote set) changes as one consistency unit.
// Collaborator calls are made before the transaction opens, never under
// the lock.
type proposalStore struct {
	councilID string
	db        *sql.DB
	queries   *database.Queries
	registry  VoterRegistry
	options   options
}

func newProposalStore(councilID string, db *sql.DB, queries *database.Queries, registry VoterRegistry, opts options) *proposalStore {
	return &proposalStore{
		councilID: councilID,
		db:        db,
		queries:   queries,
		registry:  registry,
		options:   opts,
	}
}

// Create validates a draft and inserts it as an ACTIVE proposal.
func (s *proposalStore) Create(ctx context.Context, creatorID string, draft Draft) (int64, error) {
	if err := draft.validate(); err != nil {
		return 0, err
	}

	creator, err := s.registry.Resolve(ctx, creatorID)
	if err != nil {
		return 0, fmt.Errorf("%w: creator lookup failed: %v", ErrCollaboratorUnavailable, err)
	}
	if !creator.CanCreateProposals {
		return 0, fmt.Errorf("%w: %q may not create proposals", ErrNotAuthorized, creatorID)
	}

	// A council without authorized voters could never finalize anything;
	// reject at creation rather than dividing by zero at the deadline.
	totalPower, err := s.totalVotingPower(ctx)
	if err != nil {
		return 0, err
	}
	if totalPower <= 0 {
		return 0, fmt.Errorf("%w: no authorized voters exist", ErrValidation)
	}

	var (
		now    = time.Now()
		record = &database.ProposalRecord{
			CouncilID:      s.councilID,
			Kind:           string(draft.Kind),
			Urgency:        string(draft.Urgency),
			SubjectRef:     draft.SubjectRef,
			CurrentValue:   nullInt64(draft.CurrentValue),
			ProposedValue:  nullInt64(draft.ProposedValue),
			Reasoning:      draft.Reasoning,
			EvidenceRef:    draft.EvidenceRef,
			CreatorID:      creatorID,
			CreatedAt:      now,
			VotingDeadline: now.Add(s.options.window(draft.Urgency)),
			Status:         string(StatusActive),
		}
	)

	id, err := s.queries.InsertProposal(ctx, record)
	if err != nil {
		return 0, fmt.Errorf("failed to create proposal: %w", err)
	}

	return id, nil
}

// CastVote records a voter's single, immutable ballot and folds its weight
// into the cached tally. The active check, the duplicate check and the
// tally update commit atomically under the proposal's row lock.
func (s *proposalStore) CastVote(ctx context.Context, proposalID int64, voterID string, choice Choice, reasoning string) error {
	if err := validateChoice(choice, reasoning); err != nil {
		return err
	}

	voter, err := s.registry.Resolve(ctx, voterID)
	if err != nil {
		return fmt.Errorf("%w: voter lookup failed: %v", ErrCollaboratorUnavailable, err)
	}
	if !voter.IsAuthorizedVoter {
		return fmt.Errorf("%w: %q is not an authorized voter", ErrNotAuthorized, voterID)
	}

	return s.inTx(ctx, func(q *database.Queries) error {
		record, err := q.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: id %d", ErrNotFound, proposalID)
		}

		var now = time.Now()
		if Status(record.Status) != StatusActive || !now.Before(record.VotingDeadline) {
			return fmt.Errorf("%w: status %s", ErrNotActive, record.Status)
		}

		inserted, err := q.InsertVote(ctx, &database.VoteRecord{
			ProposalID:  proposalID,
			VoterID:     voterID,
			Choice:      string(choice),
			VotingPower: voter.VotingPower,
			Reasoning:   reasoning,
			CastAt:      now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return fmt.Errorf("%w: voter %q, proposal %d", ErrDuplicateVote, voterID, proposalID)
		}

		var forDelta, againstDelta, abstainDelta int64
		switch choice {
		case ChoiceApprove:
			forDelta = voter.VotingPower
		case ChoiceReject:
			againstDelta = voter.VotingPower
		case ChoiceAbstain:
			abstainDelta = voter.VotingPower
		}

		return q.AddVoteToTally(ctx, proposalID, forDelta, againstDelta, abstainDelta)
	})
}

// FinalizeAtDeadline applies the natural-finalization rule to an ACTIVE
// proposal past its voting deadline. Idempotent: an already-finalized
// proposal is a no-op returning its existing terminal status.
func (s *proposalStore) FinalizeAtDeadline(ctx context.Context, proposalID int64) (Status, error) {
	// Sampled at finalize time, so registry changes during voting are
	// reflected in the outcome.
	totalPower, err := s.totalVotingPower(ctx)
	if err != nil {
		return "", err
	}

	var outcome Status
	err = s.inTx(ctx, func(q *database.Queries) error {
		record, err := q.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: id %d", ErrNotFound, proposalID)
		}

		if Status(record.Status) != StatusActive {
			outcome = Status(record.Status)
			return nil
		}

		var now = time.Now()
		if now.Before(record.VotingDeadline) {
			return fmt.Errorf("%w: voting deadline not reached", ErrInvalidState)
		}

		outcome = naturalOutcome(tallyFromRecord(record), totalPower, UrgencyClass(record.Urgency), s.options)

		applied, err := q.FinalizeProposal(ctx, proposalID, string(outcome), now, totalPower)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: proposal %d left ACTIVE concurrently", ErrInvalidState, proposalID)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return outcome, nil
}

// EmergencyFinalize terminates voting early when a supermajority of cast
// votes approves. Credential verification happens first; an
// already-finalized proposal is a no-op returning its terminal status.
func (s *proposalStore) EmergencyFinalize(ctx context.Context, proposalID int64, credential EmergencyCredential, suppliedSecret string) (Status, error) {
	if !credential.Verify(suppliedSecret) {
		return "", fmt.Errorf("%w: emergency credential mismatch", ErrNotAuthorized)
	}

	totalPower, err := s.totalVotingPower(ctx)
	if err != nil {
		return "", err
	}

	var outcome Status
	err = s.inTx(ctx, func(q *database.Queries) error {
		record, err := q.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: id %d", ErrNotFound, proposalID)
		}

		if Status(record.Status) != StatusActive {
			outcome = Status(record.Status)
			return nil
		}

		if !emergencyEligible(tallyFromRecord(record), s.options.supermajority) {
			return fmt.Errorf("%w: need %.0f%% of cast votes approving", ErrNotEligible, s.options.supermajority*100)
		}

		outcome = StatusApproved

		applied, err := q.FinalizeProposal(ctx, proposalID, string(outcome), time.Now(), totalPower)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: proposal %d left ACTIVE concurrently", ErrInvalidState, proposalID)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return outcome, nil
}

// MarkExecuted transitions an APPROVED proposal to EXECUTED, recording the
// collaborator's execution reference exactly once.
func (s *proposalStore) MarkExecuted(ctx context.Context, proposalID int64, executionRef string) error {
	return s.inTx(ctx, func(q *database.Queries) error {
		record, err := q.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: id %d", ErrNotFound, proposalID)
		}

		switch {
		case Status(record.Status) == StatusExecuted || record.ExecutedAt.Valid:
			return fmt.Errorf("%w: proposal %d", ErrAlreadyExecuted, proposalID)
		case Status(record.Status) != StatusApproved:
			return fmt.Errorf("%w: cannot execute proposal in status %s", ErrInvalidState, record.Status)
		}

		applied, err := q.MarkExecuted(ctx, proposalID, time.Now(), executionRef)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: proposal %d", ErrAlreadyExecuted, proposalID)
		}
		return nil
	})
}

// Get returns a snapshot of a proposal.
func (s *proposalStore) Get(ctx context.Context, proposalID int64) (*Proposal, error) {
	record, err := s.queries.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, proposalID)
	}

	return proposalFromRecord(record), nil
}

// ListVotes returns a proposal's votes ordered by cast time.
func (s *proposalStore) ListVotes(ctx context.Context, proposalID int64) ([]*Vote, error) {
	records, err := s.queries.ListVotes(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	var votes = make([]*Vote, len(records))
	for i, record := range records {
		votes[i] = &Vote{
			ProposalID:  record.ProposalID,
			VoterID:     record.VoterID,
			Choice:      Choice(record.Choice),
			VotingPower: record.VotingPower,
			Reasoning:   record.Reasoning,
			CastAt:      record.CastAt,
		}
	}
	return votes, nil
}

// ListByStatus returns the council's proposals with the given status.
func (s *proposalStore) ListByStatus(ctx context.Context, status Status) ([]*Proposal, error) {
	records, err := s.queries.ListProposalsByStatus(ctx, s.councilID, string(status))
	if err != nil {
		return nil, err
	}
	return proposalsFromRecords(records), nil
}

// ListDue returns the council's ACTIVE proposals whose deadline has passed.
func (s *proposalStore) ListDue(ctx context.Context, now time.Time) ([]*Proposal, error) {
	records, err := s.queries.ListDueProposals(ctx, s.councilID, now)
	if err != nil {
		return nil, err
	}
	return proposalsFromRecords(records), nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *proposalStore) inTx(ctx context.Context, fn func(q *database.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(s.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// totalVotingPower samples the registry with bounded retries.
func (s *proposalStore) totalVotingPower(ctx context.Context) (int64, error) {
	var total int64
	var action = func(attempt uint) error {
		var err error
		total, err = s.registry.TotalEligibleVotingPower(ctx)
		return err
	}

	if err := retry.Retry(action, strategy.Limit(3), strategy.Backoff(backoff.Fibonacci(s.options.dispatchBackoff))); err != nil {
		return 0, fmt.Errorf("%w: total voting power lookup failed: %v", ErrCollaboratorUnavailable, err)
	}
	return total, nil
}

func tallyFromRecord(record *database.ProposalRecord) Tally {
	return Tally{
		VotesFor:         record.VotesFor,
		VotesAgainst:     record.VotesAgainst,
		VotesAbstain:     record.VotesAbstain,
		TotalVotingPower: record.TotalPowerSnapshot.Int64,
	}
}

func proposalFromRecord(record *database.ProposalRecord) *Proposal {
	return &Proposal{
		ID:             record.ID,
		Kind:           ProposalKind(record.Kind),
		Urgency:        UrgencyClass(record.Urgency),
		SubjectRef:     record.SubjectRef,
		CurrentValue:   int64Ptr(record.CurrentValue),
		ProposedValue:  int64Ptr(record.ProposedValue),
		Reasoning:      record.Reasoning,
		EvidenceRef:    record.EvidenceRef,
		CreatorID:      record.CreatorID,
		CreatedAt:      record.CreatedAt,
		VotingDeadline: record.VotingDeadline,
		Status:         Status(record.Status),
		Tally:          tallyFromRecord(record),
		FinalizedAt:    timePtr(record.FinalizedAt),
		ExecutedAt:     timePtr(record.ExecutedAt),
		ExecutionRef:   record.ExecutionRef.String,
	}
}

func proposalsFromRecords(records []*database.ProposalRecord) []*Proposal {
	var proposals = make([]*Proposal, len(records))
	for i, record := range records {
		proposals[i] = proposalFromRecord(record)
	}
	return proposals
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func int64Ptr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	var v = value.Int64
	return &v
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	var t = value.Time
	return &t
}
