package hookengine

import (
	"regexp"

	"github.com/hookguard/hookguard/internal/ledger"
)

// intentEvolutionMarkers is the minimum marker set from design doc §8:
// exported top-level symbols, new route registrations, new class/type/
// struct/interface declarations, and database-migration keywords.
// Anything matching none of these is an AST_REFACTOR — a shape-preserving
// edit rather than new surface area.
var intentEvolutionMarkers = []*regexp.Regexp{
	// JS/TS exports.
	regexp.MustCompile(`\bexport\s+(default\s+)?(const|function|class|interface|type|async\s+function)\b`),
	regexp.MustCompile(`\bexport\s*\{`),

	// Rust.
	regexp.MustCompile(`\bpub\s+(fn|struct|enum|trait)\b`),

	// Java/C#/Kotlin.
	regexp.MustCompile(`\bpublic\s+(class|interface|enum)\b`),

	// Go: an exported top-level func or a new top-level type declaration.
	regexp.MustCompile(`(?m)^func\s+(\([^)]*\)\s*)?[A-Z]\w*\s*\(`),
	regexp.MustCompile(`(?m)^type\s+[A-Z]\w*\s+(struct|interface)\b`),

	// Class/interface/struct declarations in general.
	regexp.MustCompile(`\b(class|interface)\s+[A-Za-z_]\w*`),

	// HTTP route registrations.
	regexp.MustCompile(`\b(router|app|r|mux)\.(Get|Post|Put|Delete|Patch|get|post|put|delete|patch)\s*\(`),
	regexp.MustCompile(`@(Get|Post|Put|Delete|Patch)Mapping\b`),

	// Database migrations.
	regexp.MustCompile(`(?i)\bCREATE\s+TABLE\b`),
	regexp.MustCompile(`(?i)\bALTER\s+TABLE\b`),
	regexp.MustCompile(`--\s*\+migrate\s+Up`),
}

// classifyMutation assigns the coarse mutation_class label for a piece
// of written content (design doc §4.5.3 step 2, §8 marker set). Matching
// any marker is sufficient — the list is OR'd, not AND'd.
func classifyMutation(content string) ledger.MutationClass {
	for _, re := range intentEvolutionMarkers {
		if re.MatchString(content) {
			return ledger.MutationIntentEvolution
		}
	}
	return ledger.MutationASTRefactor
}
