package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Goal errors. An unknown app identifier means "no limit configured",
	// never a crash; callers branch on this sentinel.
	ErrGoalNotFound = errors.New("goal not found")
	ErrGoalExists   = errors.New("goal already exists for app identifier")

	// Ledger errors
	ErrStaleState   = errors.New("durable write failed — in-memory state authoritative until next flush")
	ErrNoFeePending = errors.New("no accountability fee is pending")

	// Override errors
	ErrUnknownSessionMode      = errors.New("unknown session mode")
	ErrUnknownRestrictionScope = errors.New("unknown restriction period")
)
