package domain

import "errors"

// Failure taxonomy. Only ErrConfiguration is fatal, and only at startup;
// everything else degrades a single item, source, or channel without
// aborting the run.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrScoringDegraded   = errors.New("scoring degraded")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrTransportFailure  = errors.New("transport failure")
	ErrConfiguration     = errors.New("configuration error")
)
