// Package ledger implements the TraceLedger: the append-only JSONL audit
// log of every authorized mutation, plus an optional SQLite projection
// for fast queries. See design doc §3, §4.2.
package ledger

// MutationClass is the coarse label HookEngine assigns to a mutation for
// later analysis (design doc §8, classifier lives in hookengine).
type MutationClass string

const (
	MutationASTRefactor    MutationClass = "AST_REFACTOR"
	MutationIntentEvolution MutationClass = "INTENT_EVOLUTION"
)

// Contributor identifies who (or what) produced a file's content.
type Contributor struct {
	EntityType      string `json:"entity_type"`
	ModelIdentifier string `json:"model_identifier"`
}

// FileChange is one file touched by a mutation.
type FileChange struct {
	RelativePath string      `json:"relative_path"`
	ContentHash  string      `json:"content_hash"`
	Contributor  Contributor `json:"contributor"`
}

// Record is one line of the trace ledger (design doc §3).
type Record struct {
	ID            string        `json:"id"`
	Seq           uint64        `json:"seq"`
	Timestamp     string        `json:"timestamp"`
	IntentID      string        `json:"intent_id"`
	Tool          string        `json:"tool"`
	MutationClass MutationClass `json:"mutation_class"`
	Files         []FileChange  `json:"files"`
	ElapsedMs     *int64        `json:"elapsed_ms,omitempty"`

	// PrevHash/Hash form the optional tamper-evidence chain described in
	// SPEC_FULL §3.1. A reader that ignores them still sees a fully
	// spec-conformant record.
	PrevHash string `json:"prev_hash,omitempty"`
	Hash     string `json:"hash,omitempty"`
}
