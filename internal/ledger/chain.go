// Chain hashing for the trace ledger's optional tamper-evidence feature.
// Generalizes the teacher's audit hash chain (internal/audit/chain.go,
// SHA-256 of prev_hash|seq|ts|agent|tool|decision) from "decision" to
// "mutation_class", since the ledger has no allow/block decision of its
// own — every record it holds already passed the pre-hook.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// genesisPrevHash seeds the chain for the first record ever appended.
const genesisPrevHash = "sha256:genesis"

// computeHash derives a record's chain hash from the previous record's
// hash plus seq, timestamp, intent_id, tool, mutation_class and each
// file's path and content hash. Tampering with any of those fields breaks
// every hash from that point forward; id, elapsed_ms and contributor are
// not covered.
func computeHash(r *Record) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s",
		r.PrevHash, r.Seq, r.Timestamp, r.IntentID, r.Tool, r.MutationClass)
	for _, f := range r.Files {
		fmt.Fprintf(h, "|%s:%s", f.RelativePath, f.ContentHash)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// ChainResult is the outcome of verifying the ledger's hash chain.
type ChainResult struct {
	Valid          bool   `json:"valid"`
	EntriesChecked int    `json:"entries_checked"`
	BrokenAt       int    `json:"broken_at,omitempty"`
	ExpectedHash   string `json:"expected_hash,omitempty"`
	ActualHash     string `json:"actual_hash,omitempty"`
}

// verifyChain walks records in order, checking each one's own hash and
// its linkage to the previous record's hash.
func verifyChain(records []Record) ChainResult {
	if len(records) == 0 {
		return ChainResult{Valid: true, EntriesChecked: 0}
	}

	for i, r := range records {
		expectedLink := genesisPrevHash
		if i > 0 {
			expectedLink = records[i-1].Hash
		}
		if r.PrevHash != expectedLink {
			return ChainResult{
				Valid:          false,
				EntriesChecked: i + 1,
				BrokenAt:       i,
				ExpectedHash:   expectedLink,
				ActualHash:     r.PrevHash,
			}
		}

		expected := computeHash(&r)
		if r.Hash != expected {
			return ChainResult{
				Valid:          false,
				EntriesChecked: i + 1,
				BrokenAt:       i,
				ExpectedHash:   expected,
				ActualHash:     r.Hash,
			}
		}
	}

	return ChainResult{Valid: true, EntriesChecked: len(records)}
}
