package models

import "errors"

// Rejection conditions for a single pair within a cycle. All of these are
// local: the affected pair is dropped from the current cycle's output and
// the cycle continues for every other pair.
var (
	// ErrInsufficientData means fewer aligned observations than the minimum
	// required before any statistic may be computed.
	ErrInsufficientData = errors.New("insufficient aligned observations")

	// ErrDegenerateSpread means the spread (or a return series feeding it)
	// has zero variance. The pair is unusable; a z-score must never be
	// substituted with a default.
	ErrDegenerateSpread = errors.New("degenerate spread: zero variance")

	// ErrStaleDivergenceProfile means a divergence profile was computed on a
	// lookback window that is no longer current and must be rebuilt.
	ErrStaleDivergenceProfile = errors.New("divergence profile is stale")

	// ErrConcurrencyCapExceeded means an entry signal was dropped because
	// the global live-trade cap is reached. Expected in steady state.
	ErrConcurrencyCapExceeded = errors.New("live trade cap reached")

	// ErrDuplicateTradeAttempt means an entry signal arrived for a pair that
	// already has a live trade. Expected in steady state; not surfaced to
	// callers as a failure.
	ErrDuplicateTradeAttempt = errors.New("pair already in trade")

	// ErrTradeNotFound means a manual exit referenced a pair with no live
	// trade.
	ErrTradeNotFound = errors.New("no live trade for pair")
)
