package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueries(t *testing.T) {
	var (
		newDb = func(t *testing.T) *Queries {
			var db = SetupTestDatabase(t)
			err := Migrate(db, "test_allocvote")
			require.NoError(t, err)
			return NewQueries(db, "test_allocvote")
		}
		newCtx = func() context.Context {
			return context.Background()
		}
		newProposal = func(councilID, kind, status string, deadline time.Time) *ProposalRecord {
			return &ProposalRecord{
				CouncilID:      councilID,
				Kind:           kind,
				Urgency:        "STANDARD",
				SubjectRef:     "patient-abc",
				CurrentValue:   sql.NullInt64{Int64: 3, Valid: true},
				ProposedValue:  sql.NullInt64{Int64: 7, Valid: true},
				Reasoning:      "repeated complications on current therapy warrant escalation",
				CreatorID:      "mccoy",
				CreatedAt:      time.Now(),
				VotingDeadline: deadline,
				Status:         status,
			}
		}
		newVote = func(proposalID int64, voterID string, choice string, power int64) *VoteRecord {
			return &VoteRecord{
				ProposalID:  proposalID,
				VoterID:     voterID,
				Choice:      choice,
				VotingPower: power,
				Reasoning:   "reviewed the chart, concur with escalation",
				CastAt:      time.Now(),
			}
		}
	)

	t.Run("should insert and get proposal", func(t *testing.T) {
		// Arrange
		var (
			sut      = newDb(t)
			ctx      = newCtx()
			proposal = newProposal("council_1", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(time.Hour))
		)

		// Act
		id, err := sut.InsertProposal(ctx, proposal)
		require.NoError(t, err)

		var retrieved, getErr = sut.GetProposal(ctx, id)

		// Assert
		require.NoError(t, getErr)
		require.NotNil(t, retrieved)
		assert.Equal(t, id, retrieved.ID)
		assert.Equal(t, "council_1", retrieved.CouncilID)
		assert.Equal(t, "URGENCY_UPDATE", retrieved.Kind)
		assert.Equal(t, "ACTIVE", retrieved.Status)
		assert.Equal(t, int64(3), retrieved.CurrentValue.Int64)
		assert.Equal(t, int64(7), retrieved.ProposedValue.Int64)
		assert.Zero(t, retrieved.VotesFor)
		assert.False(t, retrieved.FinalizedAt.Valid)
		assert.False(t, retrieved.ExecutedAt.Valid)
		assert.WithinDuration(t, proposal.VotingDeadline, retrieved.VotingDeadline, time.Second)
	})

	t.Run("should return nil for non-existent proposal", func(t *testing.T) {
		// Arrange
		var (
			sut = newDb(t)
			ctx = newCtx()
		)

		// Act
		var retrieved, err = sut.GetProposal(ctx, 999)

		// Assert
		require.NoError(t, err)
		assert.Nil(t, retrieved)
	})

	t.Run("should preserve null optional values", func(t *testing.T) {
		// Arrange - removals carry no value pair
		var (
			sut      = newDb(t)
			ctx      = newCtx()
			proposal = newProposal("council_1", "PATIENT_REMOVAL", "ACTIVE", time.Now().Add(time.Hour))
		)
		proposal.CurrentValue = sql.NullInt64{}
		proposal.ProposedValue = sql.NullInt64{}

		// Act
		id, err := sut.InsertProposal(ctx, proposal)
		require.NoError(t, err)

		var retrieved, getErr = sut.GetProposal(ctx, id)

		// Assert
		require.NoError(t, getErr)
		assert.False(t, retrieved.CurrentValue.Valid)
		assert.False(t, retrieved.ProposedValue.Valid)
	})

	t.Run("should list proposals by council and status ordered by id", func(t *testing.T) {
		// Arrange
		var (
			sut = newDb(t)
			ctx = newCtx()
		)
		id1, err := sut.InsertProposal(ctx, newProposal("council_1", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(time.Hour)))
		require.NoError(t, err)
		_, err = sut.InsertProposal(ctx, newProposal("council_1", "PATIENT_REMOVAL", "APPROVED", time.Now().Add(time.Hour)))
		require.NoError(t, err)
		_, err = sut.InsertProposal(ctx, newProposal("council_2", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(time.Hour)))
		require.NoError(t, err)
		id4, err := sut.InsertProposal(ctx, newProposal("council_1", "SYSTEM_PARAMETER", "ACTIVE", time.Now().Add(time.Hour)))
		require.NoError(t, err)

		// Act
		var active, listErr = sut.ListProposalsByStatus(ctx, "council_1", "ACTIVE")

		// Assert - other council and other statuses excluded
		require.NoError(t, listErr)
		require.Len(t, active, 2)
		assert.Equal(t, id1, active[0].ID)
		assert.Equal(t, id4, active[1].ID)
	})

	t.Run("should list only due active proposals", func(t *testing.T) {
		// Arrange
		var (
			sut = newDb(t)
			ctx = newCtx()
		)
		dueID, err := sut.InsertProposal(ctx, newProposal("council_1", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(-time.Minute)))
		require.NoError(t, err)
		_, err = sut.InsertProposal(ctx, newProposal("council_1", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(time.Hour)))
		require.NoError(t, err)
		_, err = sut.InsertProposal(ctx, newProposal("council_1", "URGENCY_UPDATE", "REJECTED", time.Now().Add(-time.Minute)))
		require.NoError(t, err)

		// Act
		var due, listErr = sut.ListDueProposals(ctx, "council_1", time.Now())

		// Assert
		require.NoError(t, listErr)
		require.Len(t, due, 1)
		assert.Equal(t, dueID, due[0].ID)
	})

	t.Run("should insert vote once per voter", func(t *testing.T) {
		// Arrange
		var (
			sut = newDb(t)
			ctx = newCtx()
		)
		id, err := sut.InsertProposal(ctx, newProposal("council_1", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(time.Hour)))
		require.NoError(t, err)

		// Act
		first, err1 := sut.InsertVote(ctx, newVote(id, "mccoy", "APPROVE", 3))
		second, err2 := sut.InsertVote(ctx, newVote(id, "mccoy", "REJECT", 3))

		// Assert - second insert is a silent no-op, not an error
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.True(t, first)
		assert.False(t, second)

		votes, listErr := sut.ListVotes(ctx, id)
		require.NoError(t, listErr)
		require.Len(t, votes, 1)
		assert.Equal(t, "APPROVE", votes[0].Choice)
	})

	t.Run("should list votes in cast order", func(t *testing.T) {
		// Arrange
		var (
			sut = newDb(t)
			ctx = newCtx()
		)
		id, err := sut.InsertProposal(ctx, newProposal("council_1", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(time.Hour)))
		require.NoError(t, err)

		var base = time.Now()
		for i, voterID := range []string{"crusher", "mccoy", "bashir"} {
			var vote = newVote(id, voterID, "APPROVE", 1)
			vote.CastAt = base.Add(time.Duration(2-i) * time.Minute)
			_, err := sut.InsertVote(ctx, vote)
			require.NoError(t, err)
		}

		// Act
		var votes, listErr = sut.ListVotes(ctx, id)

		// Assert - bashir cast earliest, crusher latest
		require.NoError(t, listErr)
		require.Len(t, votes, 3)
		assert.Equal(t, "bashir", votes[0].VoterID)
		assert.Equal(t, "mccoy", votes[1].VoterID)
		assert.Equal(t, "crusher", votes[2].VoterID)
	})

	t.Run("should accumulate tally deltas", func(t *testing.T) {
		// Arrange
		var (
			sut = newDb(t)
			ctx = newCtx()
		)
		id, err := sut.InsertProposal(ctx, newProposal("council_1", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(time.Hour)))
		require.NoError(t, err)

		// Act
		require.NoError(t, sut.AddVoteToTally(ctx, id, 3, 0, 0))
		require.NoError(t, sut.AddVoteToTally(ctx, id, 0, 2, 0))
		require.NoError(t, sut.AddVoteToTally(ctx, id, 0, 0, 1))

		// Assert
		retrieved, getErr := sut.GetProposal(ctx, id)
		require.NoError(t, getErr)
		assert.Equal(t, int64(3), retrieved.VotesFor)
		assert.Equal(t, int64(2), retrieved.VotesAgainst)
		assert.Equal(t, int64(1), retrieved.VotesAbstain)
	})

	t.Run("should finalize only once", func(t *testing.T) {
		// Arrange
		var (
			sut = newDb(t)
			ctx = newCtx()
		)
		id, err := sut.InsertProposal(ctx, newProposal("council_1", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(time.Hour)))
		require.NoError(t, err)

		// Act
		first, err1 := sut.FinalizeProposal(ctx, id, "APPROVED", time.Now(), 100)
		second, err2 := sut.FinalizeProposal(ctx, id, "REJECTED", time.Now(), 100)

		// Assert - the guarded update refuses the second transition
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.True(t, first)
		assert.False(t, second)

		retrieved, getErr := sut.GetProposal(ctx, id)
		require.NoError(t, getErr)
		assert.Equal(t, "APPROVED", retrieved.Status)
		assert.True(t, retrieved.FinalizedAt.Valid)
		assert.Equal(t, int64(100), retrieved.TotalPowerSnapshot.Int64)
	})

	t.Run("should mark executed only from approved", func(t *testing.T) {
		// Arrange
		var (
			sut = newDb(t)
			ctx = newCtx()
		)
		id, err := sut.InsertProposal(ctx, newProposal("council_1", "URGENCY_UPDATE", "ACTIVE", time.Now().Add(time.Hour)))
		require.NoError(t, err)

		// Act & Assert - refused while ACTIVE
		applied, execErr := sut.MarkExecuted(ctx, id, time.Now(), "exec-1")
		require.NoError(t, execErr)
		assert.False(t, applied)

		// Approve, then execution succeeds exactly once
		_, err = sut.FinalizeProposal(ctx, id, "APPROVED", time.Now(), 100)
		require.NoError(t, err)

		applied, execErr = sut.MarkExecuted(ctx, id, time.Now(), "exec-1")
		require.NoError(t, execErr)
		assert.True(t, applied)

		applied, execErr = sut.MarkExecuted(ctx, id, time.Now(), "exec-2")
		require.NoError(t, execErr)
		assert.False(t, applied)

		retrieved, getErr := sut.GetProposal(ctx, id)
		require.NoError(t, getErr)
		assert.Equal(t, "EXECUTED", retrieved.Status)
		assert.Equal(t, "exec-1", retrieved.ExecutionRef.String)
		assert.True(t, retrieved.ExecutedAt.Valid)
	})
}
