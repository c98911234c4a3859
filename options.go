package allocvote

import (
	"io"
	"log/slog"
	"time"
)

// options configures Council policy (internal only).
type options struct {
	standardWindow    time.Duration
	emergencyWindow   time.Duration
	quorum            float64
	standardApproval  float64
	emergencyApproval float64
	supermajority     float64
	scanInterval      time.Duration
	dispatchBackoff   time.Duration
	logger            *slog.Logger
}

// defaultOptions returns the standing policy constants.
func defaultOptions() options {
	return options{
		standardWindow:    7 * 24 * time.Hour,
		emergencyWindow:   24 * time.Hour,
		quorum:            0.50,
		standardApproval:  0.60,
		emergencyApproval: 0.66,
		supermajority:     0.75,
		scanInterval:      time.Minute,
		dispatchBackoff:   500 * time.Millisecond,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// window returns the voting window for an urgency class.
func (o options) window(urgency UrgencyClass) time.Duration {
	if urgency == UrgencyEmergency {
		return o.emergencyWindow
	}
	return o.standardWindow
}

// approvalThreshold returns the natural-finalization approval threshold
// for an urgency class.
func (o options) approvalThreshold(urgency UrgencyClass) float64 {
	if urgency == UrgencyEmergency {
		return o.emergencyApproval
	}
	return o.standardApproval
}

// Option is a functional option for configuring a Council.
type Option func(*options)

// WithVotingWindows sets the voting windows per urgency class.
// Policy expects standard within 7-14 days and emergency within 24-48 hours.
func WithVotingWindows(standard, emergency time.Duration) Option {
	return func(o *options) {
		o.standardWindow = standard
		o.emergencyWindow = emergency
	}
}

// WithQuorum sets the minimum weighted participation rate required before
// a natural finalization can approve or reject.
func WithQuorum(quorum float64) Option {
	return func(o *options) {
		o.quorum = quorum
	}
}

// WithScanInterval sets how often the scheduler and dispatcher workers scan.
func WithScanInterval(interval time.Duration) Option {
	return func(o *options) {
		o.scanInterval = interval
	}
}

// WithDispatchBackoff sets the base backoff between mutation-call retries.
func WithDispatchBackoff(backoff time.Duration) Option {
	return func(o *options) {
		o.dispatchBackoff = backoff
	}
}

// WithLogger sets the logger for the council.
// If the logger is nil, the council will use a no-op logger.
// DEFAULT: A no-op logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			return
		}

		o.logger = logger
	}
}
