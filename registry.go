package allocvote

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sync"
)

// Voter is a registry entry for a credentialed reviewer.
type Voter struct {
	VoterID            string
	VotingPower        int64
	IsAuthorizedVoter  bool
	CanCreateProposals bool
}

// VoterRegistry resolves caller identities to voting credentials. It is an
// external collaborator: the council consumes it read-only and snapshots
// voting power per vote, so registry changes mid-proposal never rewrite
// already-cast ballots.
type VoterRegistry interface {
	Resolve(ctx context.Context, identity string) (Voter, error)
	TotalEligibleVotingPower(ctx context.Context) (int64, error)
}

// EmergencyCredential verifies the shared secret gating emergency finalization.
type EmergencyCredential interface {
	Verify(suppliedSecret string) bool
}

// MutationRequest describes the allocation-table change an approved
// proposal requires. IdempotencyKey is deterministic per proposal so a
// retried Apply is deduplicated by the collaborator.
type MutationRequest struct {
	Kind           ProposalKind
	SubjectRef     string
	CurrentValue   *int64
	ProposedValue  *int64
	IdempotencyKey string
}

// StateMutationService applies an approved proposal's change to the
// allocation table and returns an execution reference.
type StateMutationService interface {
	Apply(ctx context.Context, request MutationRequest) (string, error)
}

// StaticRegistry is an in-memory VoterRegistry managed by an administrator.
// Safe for concurrent use.
type StaticRegistry struct {
	mu     sync.RWMutex
	voters map[string]Voter
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		voters: make(map[string]Voter),
	}
}

// Authorize adds or replaces a voter entry.
func (r *StaticRegistry) Authorize(voter Voter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voters[voter.VoterID] = voter
}

// Revoke removes a voter entry. Already-cast votes keep their snapshot weight.
func (r *StaticRegistry) Revoke(voterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.voters, voterID)
}

// Resolve returns the voter for an identity. Unknown identities resolve to
// an unauthorized zero-power voter, not an error.
func (r *StaticRegistry) Resolve(ctx context.Context, identity string) (Voter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.voters[identity], nil
}

// TotalEligibleVotingPower sums the power of all currently authorized voters.
func (r *StaticRegistry) TotalEligibleVotingPower(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, voter := range r.voters {
		if voter.IsAuthorizedVoter {
			total += voter.VotingPower
		}
	}
	return total, nil
}

// HashedCredential is an EmergencyCredential backed by a SHA-256 digest of
// the shared secret. The plaintext is never retained.
type HashedCredential struct {
	digest [sha256.Size]byte
}

// NewHashedCredential creates a credential from the shared secret.
func NewHashedCredential(secret string) *HashedCredential {
	return &HashedCredential{
		digest: sha256.Sum256([]byte(secret)),
	}
}

// Verify compares the supplied secret against the stored digest in constant time.
func (c *HashedCredential) Verify(suppliedSecret string) bool {
	var supplied = sha256.Sum256([]byte(suppliedSecret))
	return subtle.ConstantTimeCompare(c.digest[:], supplied[:]) == 1
}

// StaticMutator is an in-memory StateMutationService that deduplicates by
// idempotency key. Useful for demos and tests; real deployments implement
// StateMutationService against the allocation ledger.
type StaticMutator struct {
	mu           sync.Mutex
	applied      map[string]string
	applyCalls   int
	failuresLeft int
}

// NewStaticMutator creates an empty mutator.
func NewStaticMutator() *StaticMutator {
	return &StaticMutator{
		applied: make(map[string]string),
	}
}

// FailNext makes the next n Apply calls fail with a transient error.
func (m *StaticMutator) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failuresLeft = n
}

// Apply records the mutation once per idempotency key and returns a stable
// execution reference for it.
func (m *StaticMutator) Apply(ctx context.Context, request MutationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failuresLeft > 0 {
		m.failuresLeft--
		return "", fmt.Errorf("%w: mutation service rejected the call", ErrCollaboratorUnavailable)
	}

	m.applyCalls++

	if ref, exists := m.applied[request.IdempotencyKey]; exists {
		return ref, nil
	}

	var ref = fmt.Sprintf("exec-%s", request.IdempotencyKey[:8])
	m.applied[request.IdempotencyKey] = ref
	return ref, nil
}

// ApplyCalls returns how many non-failing Apply calls were made.
func (m *StaticMutator) ApplyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyCalls
}

// AppliedCount returns how many distinct mutations were applied.
func (m *StaticMutator) AppliedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}
