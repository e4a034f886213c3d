package audithook

// Action constants for audit events.
const (
	// Session actions
	ActionSessionCommitted = "session.committed"
	ActionSessionAborted   = "session.aborted"

	// Claim actions
	ActionClaimMinted      = "claim.minted"
	ActionClaimBurned      = "claim.burned"
	ActionClaimTransferred = "claim.transferred"

	// Settlement actions
	ActionPayout  = "transfer.payout"
	ActionSettled = "transfer.settled"
)

// Resource constants for audit events.
const (
	ResourceSession  = "session"
	ResourceClaim    = "claim"
	ResourceTransfer = "transfer"
)

// Category constants for audit events.
const (
	CategorySession    = "session"
	CategoryClaims     = "claims"
	CategorySettlement = "settlement"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
