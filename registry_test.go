package allocvote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRegistry(t *testing.T) {
	var (
		newRegistry = func() *StaticRegistry {
			var registry = NewStaticRegistry()
			registry.Authorize(Voter{VoterID: "mccoy", VotingPower: 3, IsAuthorizedVoter: true, CanCreateProposals: true})
			registry.Authorize(Voter{VoterID: "crusher", VotingPower: 2, IsAuthorizedVoter: true})
			registry.Authorize(Voter{VoterID: "zoidberg", VotingPower: 5, IsAuthorizedVoter: false})
			return registry
		}
		newCtx = func() context.Context {
			return context.Background()
		}
	)

	t.Run("should resolve a known voter", func(t *testing.T) {
		// Arrange
		var sut = newRegistry()

		// Act
		var voter, err = sut.Resolve(newCtx(), "mccoy")

		// Assert
		require.NoError(t, err)
		assert.True(t, voter.IsAuthorizedVoter)
		assert.True(t, voter.CanCreateProposals)
		assert.Equal(t, int64(3), voter.VotingPower)
	})

	t.Run("should resolve unknown identity to unauthorized voter", func(t *testing.T) {
		// Arrange
		var sut = newRegistry()

		// Act
		var voter, err = sut.Resolve(newCtx(), "stranger")

		// Assert
		require.NoError(t, err)
		assert.False(t, voter.IsAuthorizedVoter)
		assert.Zero(t, voter.VotingPower)
	})

	t.Run("should sum only authorized voting power", func(t *testing.T) {
		// Arrange - zoidberg's 5 power is not authorized
		var sut = newRegistry()

		// Act
		var total, err = sut.TotalEligibleVotingPower(newCtx())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
	})

	t.Run("should reflect revocation in total power", func(t *testing.T) {
		// Arrange
		var sut = newRegistry()
		sut.Revoke("crusher")

		// Act
		var total, err = sut.TotalEligibleVotingPower(newCtx())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})
}

func TestHashedCredential(t *testing.T) {
	t.Run("should verify the configured secret", func(t *testing.T) {
		// Arrange
		var sut = NewHashedCredential("correct horse battery staple")

		// Act & Assert
		assert.True(t, sut.Verify("correct horse battery staple"))
		assert.False(t, sut.Verify("incorrect horse"))
		assert.False(t, sut.Verify(""))
	})
}

func TestStaticMutator(t *testing.T) {
	var newRequest = func(key string) MutationRequest {
		return MutationRequest{
			Kind:           KindPatientRemoval,
			SubjectRef:     "patient-abc",
			IdempotencyKey: key,
		}
	}

	t.Run("should deduplicate by idempotency key", func(t *testing.T) {
		// Arrange
		var (
			sut = NewStaticMutator()
			ctx = context.Background()
		)

		// Act
		ref1, err1 := sut.Apply(ctx, newRequest("aaaaaaaa-0000"))
		ref2, err2 := sut.Apply(ctx, newRequest("aaaaaaaa-0000"))

		// Assert
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, ref1, ref2)
		assert.Equal(t, 1, sut.AppliedCount())
		assert.Equal(t, 2, sut.ApplyCalls())
	})

	t.Run("should fail transiently when told to", func(t *testing.T) {
		// Arrange
		var (
			sut = NewStaticMutator()
			ctx = context.Background()
		)
		sut.FailNext(1)

		// Act
		_, err1 := sut.Apply(ctx, newRequest("bbbbbbbb-0000"))
		ref, err2 := sut.Apply(ctx, newRequest("bbbbbbbb-0000"))

		// Assert
		assert.ErrorIs(t, err1, ErrCollaboratorUnavailable)
		require.NoError(t, err2)
		assert.NotEmpty(t, ref)
	})
}

func TestIdempotencyKey(t *testing.T) {
	t.Run("should be deterministic per council and proposal", func(t *testing.T) {
		assert.Equal(t, idempotencyKey("board_a", 7), idempotencyKey("board_a", 7))
		assert.NotEqual(t, idempotencyKey("board_a", 7), idempotencyKey("board_a", 8))
		assert.NotEqual(t, idempotencyKey("board_a", 7), idempotencyKey("board_b", 7))
	})
}
