// Package hookengine implements the HookEngine: the orchestrator that
// binds an agent turn to an intent via a handshake, gates every mutating
// tool call against scope and freshness before it runs, and classifies
// and records every authorized mutation in the trace ledger. See design
// doc §4.5.
package hookengine

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hookguard/hookguard/internal/fingerprint"
	"github.com/hookguard/hookguard/internal/intent"
	"github.com/hookguard/hookguard/internal/ledger"
	"github.com/hookguard/hookguard/internal/scope"
)

// Decision is the outcome of a pre-hook evaluation (design doc §4.5.2,
// §6).
type Decision struct {
	Allowed bool
	Reason  string
}

// ToolResult carries whatever the external tool produced that the
// post-hook needs. Content, if set, is used directly for mutation-class
// classification; if empty, PostHook reads the on-disk content at the
// tool's target path instead (the common case — the external tool has
// already written the file by the time PostHook runs).
type ToolResult struct {
	Content string
}

// Options configures a new Engine.
type Options struct {
	// WorkspaceRoot is the absolute filesystem path the engine resolves
	// workspace-relative paths against.
	WorkspaceRoot string
	// DefaultModelIdentifier is used as Contributor.ModelIdentifier when
	// PostHook's caller does not supply one via params["model_identifier"].
	DefaultModelIdentifier string
}

// Engine is the HookEngine: per-session mutable state (design doc §9
// "Per-session mutable state" — owned by the host's session object,
// never a package-global) plus references to its three supporting
// stores. Engine.mu guards activeIntentID defensively, matching the
// teacher's belt-and-suspenders locking on Engine.mu in
// internal/engine/engine.go even though the design's own scheduling
// model (§5) says a single session never calls it concurrently.
type Engine struct {
	mu             sync.Mutex
	store          *intent.Store
	cache          *fingerprint.Cache
	trace          *ledger.Ledger
	workspaceRoot  string
	defaultModel   string
	activeIntentID string
}

// New returns a fresh HookEngine bound to the given stores. The engine
// starts in the INIT state (no active intent).
func New(store *intent.Store, trace *ledger.Ledger, opts Options) *Engine {
	return &Engine{
		store:         store,
		cache:         fingerprint.NewCache(),
		trace:         trace,
		workspaceRoot: opts.WorkspaceRoot,
		defaultModel:  opts.DefaultModelIdentifier,
	}
}

// GetActiveIntentID returns the id of the currently bound intent, or ""
// if none is bound (INIT state).
func (e *Engine) GetActiveIntentID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeIntentID
}

// SelectIntent is the handshake (design doc §4.5.1). On success it binds
// activeIntentID and returns the <intent_context> XML block; on failure
// it leaves the bound intent unchanged and returns an ERROR string.
func (e *Engine) SelectIntent(id string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("hookengine: recovered panic in SelectIntent", "panic", r)
			result = fmt.Sprintf("ERROR: %s: internal failure selecting intent %q", TokenInternalError, id)
		}
	}()

	it, err := e.store.GetIntent(id)
	if err != nil {
		if isRegistryUnreadable(err) {
			slog.Error("hookengine: registry unreadable during selectIntent", "error", err)
			return renderRegistryUnreadableError(id, err)
		}

		ids, listErr := e.store.ListIntentIDs()
		if listErr != nil {
			return renderRegistryUnreadableError(id, listErr)
		}
		return renderSelectIntentError(TokenIntentNotFound, id, ids)
	}

	xmlBlock, err := renderIntentContext(it)
	if err != nil {
		slog.Error("hookengine: failed to render intent_context", "error", err)
		return fmt.Sprintf("ERROR: %s: failed to render intent context for %q", TokenInternalError, id)
	}

	e.mu.Lock()
	e.activeIntentID = id
	e.mu.Unlock()

	slog.Info("intent bound", "intent_id", id)
	return xmlBlock
}

// PreHook gates a tool call before it runs (design doc §4.5.2). It never
// returns an error — internal failures fail closed as a blocked
// Decision naming INTERNAL_ERROR, per §4.5.4 and §7.
func (e *Engine) PreHook(ctx context.Context, tool string, params map[string]any) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("hookengine: recovered panic in PreHook", "panic", r, "tool", tool)
			decision = blocked(TokenInternalError, "internal error evaluating tool call")
		}
	}()

	kind := classifyTool(tool)
	if kind == ToolSafe {
		return Decision{Allowed: true}
	}

	activeID := e.GetActiveIntentID()
	if activeID == "" {
		return blocked(TokenIntentRequired,
			fmt.Sprintf("no active intent is bound; call %s before using %q", SelectIntentToolName, tool))
	}

	it, err := e.store.GetIntent(activeID)
	if err != nil {
		if isRegistryUnreadable(err) {
			return blocked(TokenRegistryUnreadable, fmt.Sprintf("intent registry is unreadable: %v", err))
		}
		return blocked(TokenIntentNotFound, fmt.Sprintf("bound intent %q no longer resolves in the registry", activeID))
	}

	if !requiresPathCheck(tool) {
		// execute_command and friends: intent required, but scope and
		// freshness cannot be statically attributed to one path.
		return Decision{Allowed: true}
	}

	relPath, ok := extractPath(params)
	if !ok {
		return blocked(TokenPathInvalid, fmt.Sprintf("%q requires a non-empty params.path", tool))
	}
	if err := validatePath(relPath); err != nil {
		return blocked(TokenPathInvalid, fmt.Sprintf("invalid path %q: %v", relPath, err))
	}

	if !scope.InScope(relPath, it.OwnedScope) {
		return blocked(TokenScopeViolation, fmt.Sprintf(
			"path %q is outside intent %s's owned scope %v", relPath, it.ID, it.OwnedScope))
	}

	absPath := e.resolve(relPath)
	freshness, err := e.cache.Check(absPath)
	if err != nil {
		return blocked(TokenInternalError, fmt.Sprintf("checking freshness of %q: %v", relPath, err))
	}
	if freshness == fingerprint.Stale {
		return blocked(TokenStaleFile, fmt.Sprintf(
			"%q has changed on disk since it was last observed; re-read it before retrying", relPath))
	}

	// Authorized — record the pre-write baseline so the next PreHook on
	// this path detects any out-of-band write (design doc §4.3 policy).
	if err := e.cache.Observe(absPath); err != nil {
		return blocked(TokenInternalError, fmt.Sprintf("observing fingerprint of %q: %v", relPath, err))
	}

	return Decision{Allowed: true}
}

// PostHook records a completed, authorized mutation in the trace ledger
// (design doc §4.5.3). Only called after PreHook allowed the call.
func (e *Engine) PostHook(ctx context.Context, tool string, params map[string]any, result ToolResult, elapsedMs int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("hookengine: recovered panic in PostHook", "panic", r, "tool", tool)
			err = fmt.Errorf("%s: internal failure recording trace for %q", TokenInternalError, tool)
		}
	}()

	activeID := e.GetActiveIntentID()

	var files []ledger.FileChange
	content := result.Content

	if requiresPathCheck(tool) {
		if relPath, ok := extractPath(params); ok {
			absPath := e.resolve(relPath)

			if content == "" {
				if read, readErr := readFileContent(absPath); readErr == nil {
					content = read
				}
			}

			hash, hashErr := fingerprint.Compute(absPath)
			if hashErr != nil {
				return fmt.Errorf("hashing %q after mutation: %w", relPath, hashErr)
			}

			files = []ledger.FileChange{{
				RelativePath: relPath,
				ContentHash:  hash,
				Contributor: ledger.Contributor{
					EntityType:      "AI",
					ModelIdentifier: e.modelIdentifier(params),
				},
			}}

			if err := e.cache.Observe(absPath); err != nil {
				slog.Error("hookengine: failed to update freshness cache post-write", "path", relPath, "error", err)
			}
		}
	}

	record := ledger.Record{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		IntentID:      activeID,
		Tool:          tool,
		MutationClass: classifyMutation(content),
		Files:         files,
	}
	if elapsedMs > 0 {
		record.ElapsedMs = &elapsedMs
	}

	if err := e.trace.Append(record); err != nil {
		return fmt.Errorf("appending trace record: %w", err)
	}
	return nil
}

// modelIdentifier resolves the contributor's model identifier: an
// explicit params["model_identifier"] wins, falling back to the
// engine's configured default, falling back to "unknown" (design doc
// §4.5.3 step 3).
func (e *Engine) modelIdentifier(params map[string]any) string {
	if v, ok := params["model_identifier"].(string); ok && v != "" {
		return v
	}
	if e.defaultModel != "" {
		return e.defaultModel
	}
	return "unknown"
}

// resolve turns a validated workspace-relative path into an absolute
// filesystem path for hashing/reading.
func (e *Engine) resolve(relPath string) string {
	if e.workspaceRoot == "" {
		return relPath
	}
	return path.Join(e.workspaceRoot, relPath)
}

// validatePath enforces the path convention from design doc §6: no
// absolute paths, no ".." segments, non-empty.
func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("path is empty")
	}
	if path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("path must be workspace-relative, not absolute")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("path must not contain '..' segments")
		}
	}
	return nil
}

func blocked(token, reason string) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf("%s: %s", token, reason)}
}

func isRegistryUnreadable(err error) bool {
	return strings.Contains(err.Error(), intent.ErrRegistryUnreadable.Error())
}
