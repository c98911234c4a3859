package allocvote

// Tally math. All functions here are pure; they read a cached tally
// snapshot plus the registry's total eligible voting power and never
// touch storage. The store invokes them while holding the proposal's
// row lock, so a computed outcome is never based on a tally that a
// concurrent vote amends before the transition commits.

// participationRate returns the weighted share of eligible power that voted.
func participationRate(t Tally, totalPower int64) float64 {
	if totalPower <= 0 {
		return 0
	}
	return float64(t.VotesFor+t.VotesAgainst+t.VotesAbstain) / float64(totalPower)
}

// approvalRate returns approving weight relative to all eligible power,
// not to votes cast. A unanimous handful cannot carry a silent majority.
func approvalRate(t Tally, totalPower int64) float64 {
	if totalPower <= 0 {
		return 0
	}
	return float64(t.VotesFor) / float64(totalPower)
}

// rejectRate returns rejecting weight relative to all eligible power.
func rejectRate(t Tally, totalPower int64) float64 {
	if totalPower <= 0 {
		return 0
	}
	return float64(t.VotesAgainst) / float64(totalPower)
}

// naturalOutcome computes the terminal status of a proposal at its voting
// deadline. Quorum not reached means the outcome is undecided: EXPIRED.
// Once quorum is reached the electorate has spoken, so a proposal that
// misses its approval threshold is REJECTED regardless of the reject share.
func naturalOutcome(t Tally, totalPower int64, urgency UrgencyClass, o options) Status {
	if participationRate(t, totalPower) < o.quorum {
		return StatusExpired
	}

	if approvalRate(t, totalPower) >= o.approvalThreshold(urgency) {
		return StatusApproved
	}

	return StatusRejected
}

// emergencyApprovalRate returns approving weight relative to cast
// (non-abstain) weight only. Zero when nothing was cast.
func emergencyApprovalRate(t Tally) float64 {
	if t.Cast() <= 0 {
		return 0
	}
	return float64(t.VotesFor) / float64(t.Cast())
}

// emergencyEligible reports whether the supermajority fast-path may
// finalize the proposal: at least one non-abstain vote exists and the
// approval share of cast votes meets the supermajority threshold.
func emergencyEligible(t Tally, supermajority float64) bool {
	return t.Cast() > 0 && emergencyApprovalRate(t) >= supermajority
}
