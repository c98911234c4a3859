package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is an interface that both sql.DB and sql.Tx implement.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries provides table-aware database operations.
type Queries struct {
	db        DBTX
	tableName string
}

// NewQueries creates a new Queries instance with the given table name.
func NewQueries(db DBTX, tableName string) *Queries {
	return &Queries{
		db:        db,
		tableName: tableName,
	}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db:        tx,
		tableName: q.tableName,
	}
}

const proposalColumns = `id, council_id, kind, urgency, subject_ref, current_value, proposed_value,
       reasoning, evidence_ref, creator_id, created_at, voting_deadline, status,
       votes_for, votes_against, votes_abstain, total_power_snapshot,
       finalized_at, executed_at, execution_ref`

var (
	insertProposalSQL = `
INSERT INTO %s_proposals (council_id, kind, urgency, subject_ref, current_value, proposed_value,
                          reasoning, evidence_ref, creator_id, created_at, voting_deadline, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id;`

	getProposalSQL = `
SELECT ` + proposalColumns + `
FROM %s_proposals
WHERE id = $1;`

	getProposalForUpdateSQL = `
SELECT ` + proposalColumns + `
FROM %s_proposals
WHERE id = $1
FOR UPDATE;`

	listProposalsByStatusSQL = `
SELECT ` + proposalColumns + `
FROM %s_proposals
WHERE council_id = $1 AND status = $2
ORDER BY id ASC;`

	listDueProposalsSQL = `
SELECT ` + proposalColumns + `
FROM %s_proposals
WHERE council_id = $1 AND status = 'ACTIVE' AND voting_deadline <= $2
ORDER BY voting_deadline ASC;`

	insertVoteSQL = `
INSERT INTO %s_votes (proposal_id, voter_id, choice, voting_power, reasoning, cast_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (proposal_id, voter_id) DO NOTHING;`

	listVotesSQL = `
SELECT proposal_id, voter_id, choice, voting_power, reasoning, cast_at
FROM %s_votes
WHERE proposal_id = $1
ORDER BY cast_at ASC, voter_id ASC;`

	addVoteToTallySQL = `
UPDATE %s_proposals
SET votes_for     = votes_for + $2,
    votes_against = votes_against + $3,
    votes_abstain = votes_abstain + $4
WHERE id = $1;`

	finalizeProposalSQL = `
UPDATE %s_proposals
SET status = $2,
    finalized_at = $3,
    total_power_snapshot = $4
WHERE id = $1 AND status = 'ACTIVE';`

	markExecutedSQL = `
UPDATE %s_proposals
SET status = 'EXECUTED',
    executed_at = $2,
    execution_ref = $3
WHERE id = $1 AND status = 'APPROVED' AND executed_at IS NULL;`
)

// InsertProposal inserts a new proposal and returns its assigned id.
func (q *Queries) InsertProposal(ctx context.Context, proposal *ProposalRecord) (int64, error) {
	var (
		query = fmt.Sprintf(insertProposalSQL, q.tableName)
		id    int64
		err   = q.db.QueryRowContext(ctx, query,
			proposal.CouncilID, proposal.Kind, proposal.Urgency, proposal.SubjectRef,
			proposal.CurrentValue, proposal.ProposedValue, proposal.Reasoning, proposal.EvidenceRef,
			proposal.CreatorID, proposal.CreatedAt, proposal.VotingDeadline, proposal.Status,
		).Scan(&id)
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert proposal: %w", err)
	}

	return id, nil
}

// GetProposal retrieves a single proposal by id, or nil if not found.
func (q *Queries) GetProposal(ctx context.Context, id int64) (*ProposalRecord, error) {
	var query = fmt.Sprintf(getProposalSQL, q.tableName)
	return q.scanProposalRow(q.db.QueryRowContext(ctx, query, id))
}

// GetProposalForUpdate retrieves a proposal by id while holding its row lock.
// Must be called inside a transaction; the lock is held until commit/rollback.
func (q *Queries) GetProposalForUpdate(ctx context.Context, id int64) (*ProposalRecord, error) {
	var query = fmt.Sprintf(getProposalForUpdateSQL, q.tableName)
	return q.scanProposalRow(q.db.QueryRowContext(ctx, query, id))
}

// ListProposalsByStatus returns all proposals of a council with the given status, ordered by id.
func (q *Queries) ListProposalsByStatus(ctx context.Context, councilID, status string) ([]*ProposalRecord, error) {
	var (
		query     = fmt.Sprintf(listProposalsByStatusSQL, q.tableName)
		rows, err = q.db.QueryContext(ctx, query, councilID, status)
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	return scanProposals(rows)
}

// ListDueProposals returns all ACTIVE proposals whose voting deadline has passed.
func (q *Queries) ListDueProposals(ctx context.Context, councilID string, now time.Time) ([]*ProposalRecord, error) {
	var (
		query     = fmt.Sprintf(listDueProposalsSQL, q.tableName)
		rows, err = q.db.QueryContext(ctx, query, councilID, now)
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due proposals: %w", err)
	}
	defer rows.Close()

	return scanProposals(rows)
}

// InsertVote inserts a vote record. Returns false if a vote by the same
// voter already exists for the proposal (the insert is a no-op then).
func (q *Queries) InsertVote(ctx context.Context, vote *VoteRecord) (bool, error) {
	var query = fmt.Sprintf(insertVoteSQL, q.tableName)
	result, err := q.db.ExecContext(ctx, query,
		vote.ProposalID, vote.VoterID, vote.Choice, vote.VotingPower, vote.Reasoning, vote.CastAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert vote: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return affected == 1, nil
}

// ListVotes returns all votes for a proposal in cast order.
func (q *Queries) ListVotes(ctx context.Context, proposalID int64) ([]*VoteRecord, error) {
	var (
		query     = fmt.Sprintf(listVotesSQL, q.tableName)
		rows, err = q.db.QueryContext(ctx, query, proposalID)
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []*VoteRecord
	for rows.Next() {
		var vote VoteRecord
		if err := rows.Scan(&vote.ProposalID, &vote.VoterID, &vote.Choice,
			&vote.VotingPower, &vote.Reasoning, &vote.CastAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, &vote)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return votes, nil
}

// AddVoteToTally adds a cast vote's weight to the proposal's cached tally.
func (q *Queries) AddVoteToTally(ctx context.Context, proposalID, forDelta, againstDelta, abstainDelta int64) error {
	var query = fmt.Sprintf(addVoteToTallySQL, q.tableName)
	_, err := q.db.ExecContext(ctx, query, proposalID, forDelta, againstDelta, abstainDelta)
	if err != nil {
		return fmt.Errorf("failed to update tally: %w", err)
	}
	return nil
}

// FinalizeProposal transitions an ACTIVE proposal to a terminal status,
// stamping finalized_at and the total-power snapshot. Returns false if the
// proposal was not ACTIVE (already finalized by someone else).
func (q *Queries) FinalizeProposal(ctx context.Context, id int64, status string, finalizedAt time.Time, totalPower int64) (bool, error) {
	var query = fmt.Sprintf(finalizeProposalSQL, q.tableName)
	result, err := q.db.ExecContext(ctx, query, id, status, finalizedAt, totalPower)
	if err != nil {
		return false, fmt.Errorf("failed to finalize proposal: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read finalize result: %w", err)
	}

	return affected == 1, nil
}

// MarkExecuted transitions an APPROVED proposal to EXECUTED, recording the
// execution reference. Returns false if the proposal was not APPROVED or
// was already executed.
func (q *Queries) MarkExecuted(ctx context.Context, id int64, executedAt time.Time, executionRef string) (bool, error) {
	var query = fmt.Sprintf(markExecutedSQL, q.tableName)
	result, err := q.db.ExecContext(ctx, query, id, executedAt, executionRef)
	if err != nil {
		return false, fmt.Errorf("failed to mark proposal executed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read execution result: %w", err)
	}

	return affected == 1, nil
}

func (q *Queries) scanProposalRow(row *sql.Row) (*ProposalRecord, error) {
	var proposal ProposalRecord
	var err = row.Scan(
		&proposal.ID, &proposal.CouncilID, &proposal.Kind, &proposal.Urgency,
		&proposal.SubjectRef, &proposal.CurrentValue, &proposal.ProposedValue,
		&proposal.Reasoning, &proposal.EvidenceRef, &proposal.CreatorID,
		&proposal.CreatedAt, &proposal.VotingDeadline, &proposal.Status,
		&proposal.VotesFor, &proposal.VotesAgainst, &proposal.VotesAbstain,
		&proposal.TotalPowerSnapshot, &proposal.FinalizedAt, &proposal.ExecutedAt,
		&proposal.ExecutionRef,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}

	return &proposal, nil
}

func scanProposals(rows *sql.Rows) ([]*ProposalRecord, error) {
	var proposals []*ProposalRecord
	for rows.Next() {
		var proposal ProposalRecord
		if err := rows.Scan(
			&proposal.ID, &proposal.CouncilID, &proposal.Kind, &proposal.Urgency,
			&proposal.SubjectRef, &proposal.CurrentValue, &proposal.ProposedValue,
			&proposal.Reasoning, &proposal.EvidenceRef, &proposal.CreatorID,
			&proposal.CreatedAt, &proposal.VotingDeadline, &proposal.Status,
			&proposal.VotesFor, &proposal.VotesAgainst, &proposal.VotesAbstain,
			&proposal.TotalPowerSnapshot, &proposal.FinalizedAt, &proposal.ExecutedAt,
			&proposal.ExecutionRef,
		); err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, &proposal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return proposals, nil
}
