package database

import (
	"database/sql"
	"time"
)

// ProposalRecord represents a proposal row in the database.
type ProposalRecord struct {
	ID                 int64
	CouncilID          string
	Kind               string
	Urgency            string
	SubjectRef         string
	CurrentValue       sql.NullInt64
	ProposedValue      sql.NullInt64
	Reasoning          string
	EvidenceRef        string
	CreatorID          string
	CreatedAt          time.Time
	VotingDeadline     time.Time
	Status             string
	VotesFor           int64
	VotesAgainst       int64
	VotesAbstain       int64
	TotalPowerSnapshot sql.NullInt64
	FinalizedAt        sql.NullTime
	ExecutedAt         sql.NullTime
	ExecutionRef       sql.NullString
}

// VoteRecord represents a vote row in the database.
type VoteRecord struct {
	ProposalID  int64
	VoterID     string
	Choice      string
	VotingPower int64
	Reasoning   string
	CastAt      time.Time
}
