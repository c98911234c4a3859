package allocvote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraft(t *testing.T) {
	var longReasoning = strings.Repeat("clinical justification ", 5)

	t.Run("should validate a complete urgency update", func(t *testing.T) {
		// Arrange
		var draft = NewUrgencyUpdate("patient-abc", 3, 7)
		draft.Reasoning = longReasoning

		// Act & Assert
		require.NoError(t, draft.validate())
		assert.Equal(t, KindUrgencyUpdate, draft.Kind)
		assert.Equal(t, UrgencyStandard, draft.Urgency)
		require.NotNil(t, draft.CurrentValue)
		require.NotNil(t, draft.ProposedValue)
		assert.Equal(t, int64(3), *draft.CurrentValue)
		assert.Equal(t, int64(7), *draft.ProposedValue)
	})

	t.Run("should reject urgency update without subject", func(t *testing.T) {
		// Arrange
		var draft = NewUrgencyUpdate("", 3, 7)
		draft.Reasoning = longReasoning

		// Act & Assert
		assert.ErrorIs(t, draft.validate(), ErrValidation)
	})

	t.Run("should reject short reasoning", func(t *testing.T) {
		// Arrange
		var draft = NewPatientRemoval("patient-abc")
		draft.Reasoning = "too short"

		// Act & Assert
		assert.ErrorIs(t, draft.validate(), ErrValidation)
	})

	t.Run("should reject patient removal without subject", func(t *testing.T) {
		// Arrange
		var draft = NewPatientRemoval("")
		draft.Reasoning = longReasoning

		// Act & Assert
		assert.ErrorIs(t, draft.validate(), ErrValidation)
	})

	t.Run("should accept system parameter change", func(t *testing.T) {
		// Arrange
		var draft = NewSystemParameter("max_cold_ischemia_hours", 24, 30)
		draft.Reasoning = longReasoning

		// Act & Assert
		assert.NoError(t, draft.validate())
	})

	t.Run("should accept emergency override without subject or values", func(t *testing.T) {
		// Arrange
		var draft = NewEmergencyOverride()
		draft.Reasoning = longReasoning

		// Act & Assert
		require.NoError(t, draft.validate())
		assert.Equal(t, UrgencyEmergency, draft.Urgency)
		assert.Nil(t, draft.CurrentValue)
	})

	t.Run("should reject unknown kind", func(t *testing.T) {
		// Arrange
		var draft = Draft{Kind: "PAROLE_HEARING", Urgency: UrgencyStandard, Reasoning: longReasoning}

		// Act & Assert
		assert.ErrorIs(t, draft.validate(), ErrValidation)
	})

	t.Run("should reject unknown urgency class", func(t *testing.T) {
		// Arrange
		var draft = NewPatientRemoval("patient-abc")
		draft.Urgency = "PANIC"
		draft.Reasoning = longReasoning

		// Act & Assert
		assert.ErrorIs(t, draft.validate(), ErrValidation)
	})

	t.Run("should validate vote choice and reasoning", func(t *testing.T) {
		assert.NoError(t, validateChoice(ChoiceApprove, "reviewed the chart, concur"))
		assert.ErrorIs(t, validateChoice("MAYBE", "reviewed the chart, concur"), ErrValidation)
		assert.ErrorIs(t, validateChoice(ChoiceReject, "nope"), ErrValidation)
	})
}
