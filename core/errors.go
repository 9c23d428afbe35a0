package core

import "errors"

// Error taxonomy for the pipeline. Optional data sources degrade and
// continue; these sentinels mark the conditions that abort a request
// or that callers may want to branch on.
var (
	// ErrTransientIO marks a store or model call that timed out or was
	// unreachable. Callers retry once or degrade.
	ErrTransientIO = errors.New("transient io failure")

	// ErrDataUnavailable means both memory tiers came back empty and
	// there is no fixed content to assemble either.
	ErrDataUnavailable = errors.New("no memory or fixed content available")

	// ErrServiceUnavailable means a mandatory model call (fallback
	// classification or generation) failed after retry.
	ErrServiceUnavailable = errors.New("model service unavailable")

	// ErrBudgetUnsatisfiable means the fixed sections alone exceed the
	// prompt budget. A configuration error; not retried.
	ErrBudgetUnsatisfiable = errors.New("fixed sections exceed prompt budget")
)
