package policy

import "errors"

// ErrInvalidRetryConfig indicates a RetryConfig failed Validate.
var ErrInvalidRetryConfig = errors.New("policy: invalid retry config")

// ErrCircuitOpen names the "circuit open" condition for callers. The engine
// itself does not return it: a refused attempt shows up as Allow returning
// false, after which the scheduler asks DecideRefused for the outcome, and
// the refusal does not count as a new failure against the rolling window.
var ErrCircuitOpen = errors.New("circuit open")
