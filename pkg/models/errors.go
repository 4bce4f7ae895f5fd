package models

import "errors"

// ErrorClass enumerates the error taxonomy of spec §7 as labels. No
// component in this module returns errors tagged with these values;
// cmd/agent prints the matching label text as the prefix of its fatal log
// messages.
type ErrorClass string

const (
	ClassIdentityResolution    ErrorClass = "identity-resolution"
	ClassTelemetryInvalid      ErrorClass = "telemetry-invalid"
	ClassPersistenceFailure    ErrorClass = "persistence-failure"
	ClassUpstreamSourceFailure ErrorClass = "upstream-source-failure"
	ClassReconciliationMismatch ErrorClass = "reconciliation-mismatch"
	ClassPreflightRejected     ErrorClass = "preflight-rejected"
	ClassRegimeBlocked         ErrorClass = "regime-blocked"
	ClassGovernorSuppressed    ErrorClass = "governor-suppressed"
	ClassFatalConfig           ErrorClass = "fatal-config"
)

// ErrMissingCredentials is the sentinel for an absent required environment
// variable. Nothing in this module returns it: cmd/agent's requireEnv exits
// through log.Fatalf (exit code 1) instead.
var ErrMissingCredentials = errors.New("fatal-config: missing required credential")

// ErrReconciliationMismatch is the sentinel for a Seal whose expected open
// count differs from what persistence returned. Nothing in this module
// returns it: cmd/agent and Scheduler.Hydrate exit through log.Fatalf
// (exit code 1) instead.
var ErrReconciliationMismatch = errors.New("reconciliation-mismatch: seal expectation diverges from persisted state")
