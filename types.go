package allocvote

import (
	"context"
	"database/sql"
	"time"
)

// ProposalKind discriminates what an approved proposal mutates.
type ProposalKind string

const (
	KindUrgencyUpdate     ProposalKind = "URGENCY_UPDATE"
	KindPatientRemoval    ProposalKind = "PATIENT_REMOVAL"
	KindSystemParameter   ProposalKind = "SYSTEM_PARAMETER"
	KindEmergencyOverride ProposalKind = "EMERGENCY_OVERRIDE"
)

// UrgencyClass fixes the voting window and the natural-finalization
// approval threshold at creation time. Immutable afterwards.
type UrgencyClass string

const (
	UrgencyStandard  UrgencyClass = "STANDARD"
	UrgencyEmergency UrgencyClass = "EMERGENCY"
)

// Status is the proposal lifecycle state. Transitions are monotone:
// ACTIVE -> {APPROVED, REJECTED, EXPIRED} -> EXECUTED, where EXECUTED is
// reachable only from APPROVED.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
	StatusExecuted Status = "EXECUTED"
)

// Finalized reports whether the proposal has left ACTIVE.
func (s Status) Finalized() bool {
	return s != StatusActive
}

// Choice is a voter's stance on a proposal.
type Choice string

const (
	ChoiceApprove Choice = "APPROVE"
	ChoiceReject  Choice = "REJECT"
	ChoiceAbstain Choice = "ABSTAIN"
)

// Tally is the cached, voting-power-weighted vote snapshot of a proposal.
// It is refreshed atomically with every accepted vote. TotalVotingPower is
// sampled from the registry at finalize time and is zero while ACTIVE.
type Tally struct {
	VotesFor         int64
	VotesAgainst     int64
	VotesAbstain     int64
	TotalVotingPower int64
}

// Cast returns the total weight of non-abstain votes.
func (t Tally) Cast() int64 {
	return t.VotesFor + t.VotesAgainst
}

// Proposal is a reviewed exception to the allocation queue.
type Proposal struct {
	ID             int64
	Kind           ProposalKind
	Urgency        UrgencyClass
	SubjectRef     string
	CurrentValue   *int64
	ProposedValue  *int64
	Reasoning      string
	EvidenceRef    string
	CreatorID      string
	CreatedAt      time.Time
	VotingDeadline time.Time
	Status         Status
	Tally          Tally
	FinalizedAt    *time.Time
	ExecutedAt     *time.Time
	ExecutionRef   string
}

// Vote is a single reviewer's immutable ballot on a proposal. VotingPower
// is snapshotted at cast time and is immune to later registry changes.
type Vote struct {
	ProposalID  int64
	VoterID     string
	Choice      Choice
	VotingPower int64
	Reasoning   string
	CastAt      time.Time
}

// Council owns the proposal/voting state machine for one reviewer board.
// All proposal and vote mutations go through it; the scheduler and
// dispatcher workers it starts are the only background writers.
type Council struct {
	councilID  string
	db         *sql.DB
	registry   VoterRegistry
	credential EmergencyCredential
	mutator    StateMutationService
	options    options
	store      *proposalStore
	cancel     context.CancelFunc
}
