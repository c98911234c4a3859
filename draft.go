package allocvote

import "fmt"

const (
	// minProposalReasoning is the minimum length of a proposal's reasoning text.
	minProposalReasoning = 50

	// minVoteReasoning is the minimum length of a vote's reasoning text.
	minVoteReasoning = 20
)

// Draft is a validated, kind-tagged proposal payload. Use the per-kind
// constructors; each carries only the fields its kind requires.
type Draft struct {
	Kind          ProposalKind
	Urgency       UrgencyClass
	SubjectRef    string
	CurrentValue  *int64
	ProposedValue *int64
	Reasoning     string
	EvidenceRef   string
}

// NewUrgencyUpdate drafts a change to a patient's urgency value.
func NewUrgencyUpdate(patientRef string, currentValue, proposedValue int64) Draft {
	return Draft{
		Kind:          KindUrgencyUpdate,
		Urgency:       UrgencyStandard,
		SubjectRef:    patientRef,
		CurrentValue:  &currentValue,
		ProposedValue: &proposedValue,
	}
}

// NewPatientRemoval drafts the deactivation of a patient in the queue.
func NewPatientRemoval(patientRef string) Draft {
	return Draft{
		Kind:       KindPatientRemoval,
		Urgency:    UrgencyStandard,
		SubjectRef: patientRef,
	}
}

// NewSystemParameter drafts a change to a named allocation parameter.
func NewSystemParameter(parameterKey string, currentValue, proposedValue int64) Draft {
	return Draft{
		Kind:          KindSystemParameter,
		Urgency:       UrgencyStandard,
		SubjectRef:    parameterKey,
		CurrentValue:  &currentValue,
		ProposedValue: &proposedValue,
	}
}

// NewEmergencyOverride drafts an application-defined override action.
// Overrides default to the EMERGENCY urgency class.
func NewEmergencyOverride() Draft {
	return Draft{
		Kind:    KindEmergencyOverride,
		Urgency: UrgencyEmergency,
	}
}

// validate checks kind-specific required fields and the reasoning length.
func (d Draft) validate() error {
	switch d.Kind {
	case KindUrgencyUpdate, KindSystemParameter:
		if d.SubjectRef == "" {
			return fmt.Errorf("%w: %s requires a subject reference", ErrValidation, d.Kind)
		}
		if d.CurrentValue == nil || d.ProposedValue == nil {
			return fmt.Errorf("%w: %s requires current and proposed values", ErrValidation, d.Kind)
		}
	case KindPatientRemoval:
		if d.SubjectRef == "" {
			return fmt.Errorf("%w: %s requires a subject reference", ErrValidation, d.Kind)
		}
	case KindEmergencyOverride:
		// No subject or values; the effect is application-defined.
	default:
		return fmt.Errorf("%w: unknown proposal kind %q", ErrValidation, d.Kind)
	}

	if d.Urgency != UrgencyStandard && d.Urgency != UrgencyEmergency {
		return fmt.Errorf("%w: unknown urgency class %q", ErrValidation, d.Urgency)
	}

	if len(d.Reasoning) < minProposalReasoning {
		return fmt.Errorf("%w: reasoning must be at least %d characters", ErrValidation, minProposalReasoning)
	}

	return nil
}

// validateChoice checks a vote's choice and reasoning.
func validateChoice(choice Choice, reasoning string) error {
	switch choice {
	case ChoiceApprove, ChoiceReject, ChoiceAbstain:
	default:
		return fmt.Errorf("%w: unknown vote choice %q", ErrValidation, choice)
	}

	if len(reasoning) < minVoteReasoning {
		return fmt.Errorf("%w: reasoning must be at least %d characters", ErrValidation, minVoteReasoning)
	}

	return nil
}
