package allocvote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"go-allocvote/database"
)

var (
	// ErrInvalidCouncilID is returned when the councilID contains invalid characters
	ErrInvalidCouncilID = errors.New("councilID must contain only lowercase letters, numbers, and underscores, and start with a letter")

	// validCouncilIDPattern validates PostgreSQL-safe identifiers
	validCouncilIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	errCouncilNotStarted = errors.New("council not started")
)

// NewCouncil creates a new Council instance.
// The councilID must be a valid PostgreSQL identifier (lowercase letters,
// numbers, underscores, starting with a letter); it scopes this council's
// tables so several councils can share one database.
func NewCouncil(db *sql.DB, councilID string, registry VoterRegistry, credential EmergencyCredential, mutator StateMutationService, opts ...Option) *Council {
	var options = defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Council{
		councilID:  councilID,
		db:         db,
		registry:   registry,
		credential: credential,
		mutator:    mutator,
		options:    options,
	}
}

// ValidateCouncilID checks if the councilID is valid for use as a PostgreSQL identifier.
func ValidateCouncilID(councilID string) error {
	if councilID == "" {
		return errors.New("councilID cannot be empty")
	}

	if len(councilID) > 63 {
		return errors.New("councilID must be 63 characters or less")
	}

	if !validCouncilIDPattern.MatchString(councilID) {
		return ErrInvalidCouncilID
	}

	return nil
}

// Start migrates the council's tables and launches the lifecycle scheduler
// and execution dispatcher workers.
//
// Context handling: the caller's context covers startup only. Workers run
// with a separate context.Background() so they continue independently of
// the caller's context; Stop cancels them via the internal cancel function.
func (c *Council) Start(ctx context.Context) error {
	if err := ValidateCouncilID(c.councilID); err != nil {
		return fmt.Errorf("invalid councilID: %w", err)
	}

	if err := database.Migrate(c.db, c.councilID); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var queries = database.NewQueries(c.db, c.councilID)
	c.store = newProposalStore(c.councilID, c.db, queries, c.registry, c.options)

	var workerCtx context.Context
	workerCtx, c.cancel = context.WithCancel(context.Background())

	go c.finalizeDueWorker(workerCtx)
	go c.dispatchWorker(workerCtx)

	c.options.logger.Info("council started",
		"council_id", c.councilID,
		"scan_interval", c.options.scanInterval)

	return nil
}

// Stop shuts down the background workers. Safe to call once after Start.
func (c *Council) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return errCouncilNotStarted
	}

	c.cancel()
	return nil
}

// CreateProposal validates the draft, checks the creator's authorization
// and opens a new ACTIVE proposal. Returns its assigned id.
func (c *Council) CreateProposal(ctx context.Context, creatorID string, draft Draft) (int64, error) {
	if c.store == nil {
		return 0, errCouncilNotStarted
	}
	return c.store.Create(ctx, creatorID, draft)
}

// CastVote records a voter's ballot on an ACTIVE proposal.
func (c *Council) CastVote(ctx context.Context, proposalID int64, voterID string, choice Choice, reasoning string) error {
	if c.store == nil {
		return errCouncilNotStarted
	}
	return c.store.CastVote(ctx, proposalID, voterID, choice, reasoning)
}

// EmergencyFinalize terminates voting early, bypassing the deadline. Gated
// by the shared emergency credential and a supermajority of cast votes.
func (c *Council) EmergencyFinalize(ctx context.Context, proposalID int64, suppliedSecret string) (Status, error) {
	if c.store == nil {
		return "", errCouncilNotStarted
	}
	return c.store.EmergencyFinalize(ctx, proposalID, c.credential, suppliedSecret)
}

// FinalizeAtDeadline applies the natural-finalization rule to a proposal
// past its voting deadline. The scheduler calls this automatically; it is
// exposed for manual operation.
func (c *Council) FinalizeAtDeadline(ctx context.Context, proposalID int64) (Status, error) {
	if c.store == nil {
		return "", errCouncilNotStarted
	}
	return c.store.FinalizeAtDeadline(ctx, proposalID)
}

// GetProposal returns a snapshot of a proposal with its cached tally.
func (c *Council) GetProposal(ctx context.Context, proposalID int64) (*Proposal, error) {
	if c.store == nil {
		return nil, errCouncilNotStarted
	}
	return c.store.Get(ctx, proposalID)
}

// ListVotes returns all votes for a proposal, ordered by cast time.
func (c *Council) ListVotes(ctx context.Context, proposalID int64) ([]*Vote, error) {
	if c.store == nil {
		return nil, errCouncilNotStarted
	}
	return c.store.ListVotes(ctx, proposalID)
}

// ListProposals returns the council's proposals with the given status.
func (c *Council) ListProposals(ctx context.Context, status Status) ([]*Proposal, error) {
	if c.store == nil {
		return nil, errCouncilNotStarted
	}
	return c.store.ListByStatus(ctx, status)
}
