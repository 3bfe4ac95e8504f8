package hookengine

// Stable error tokens carried in Decision.Reason (design doc §7). Every
// blocked Decision's Reason contains exactly one of these, in uppercase,
// so a host can match on the token without parsing prose.
const (
	TokenIntentRequired     = "INTENT_REQUIRED"
	TokenIntentNotFound     = "INTENT_NOT_FOUND"
	TokenScopeViolation     = "SCOPE_VIOLATION"
	TokenStaleFile          = "STALE_FILE"
	TokenPathInvalid        = "PATH_INVALID"
	TokenRegistryUnreadable = "REGISTRY_UNREADABLE"
	TokenLedgerCorrupt      = "LEDGER_CORRUPT"
	TokenInternalError      = "INTERNAL_ERROR"
)

// BlockedError wraps a blocked Decision as an error, for callers (tests,
// CLI) that prefer Go's error idiom over inspecting Decision directly.
// PreHook itself never returns an error — design doc §7 "Propagation
// policy" — this type exists only for callers who want one.
type BlockedError struct {
	Token  string
	Reason string
}

func (e *BlockedError) Error() string {
	return e.Reason
}
