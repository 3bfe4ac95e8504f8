// Package scope implements the ScopeMatcher: deciding whether a
// workspace-relative path lies within an intent's owned glob set.
//
// Compiling glob patterns once and caching them keeps the pre-hook's
// per-call cost low, the same reasoning the teacher applies to
// compileMatcher/compiledMatcher for rule patterns (design doc §4.4,
// §9 "Extensibility").
package scope

import (
	"sync"

	"github.com/gobwas/glob"
)

// globCache memoizes compiled globs by pattern string. Read-mostly and
// shared process-wide — the intent registry is small and patterns repeat
// across PreHook calls for the same session, so recompiling on every call
// would be wasted work.
var globCache = struct {
	mu    sync.Mutex
	byPat map[string]glob.Glob
}{byPat: make(map[string]glob.Glob)}

// compile returns the compiled glob for pattern, compiling and caching it
// on first use. '/' is the path separator so '*' cannot cross segments
// and '**' can. A '**' between two separators matches one or more
// segments, never zero: "src/**/x.ts" does not match "src/x.ts".
func compile(pattern string) (glob.Glob, error) {
	globCache.mu.Lock()
	if g, ok := globCache.byPat[pattern]; ok {
		globCache.mu.Unlock()
		return g, nil
	}
	globCache.mu.Unlock()

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}

	globCache.mu.Lock()
	globCache.byPat[pattern] = g
	globCache.mu.Unlock()
	return g, nil
}

// InScope reports whether path matches at least one pattern in globs.
// An empty glob list means no path is in scope. An invalid glob pattern
// is treated as never matching rather than panicking — a malformed
// owned_scope entry should narrow an intent's authority, not widen it.
func InScope(path string, globs []string) bool {
	if len(globs) == 0 {
		return false
	}
	for _, pattern := range globs {
		g, err := compile(pattern)
		if err != nil {
			continue
		}
		if g.Match(path) {
			return true
		}
	}
	return false
}
