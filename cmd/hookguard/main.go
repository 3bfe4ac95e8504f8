// Package main is the CLI entry point for HookGuard — deterministic
// governance middleware that sits between an AI coding agent and its
// file-mutating tools.
//
// HookGuard gates every mutating tool call behind an intent handshake,
// enforces declared owned-scope globs, detects stale writes via content
// fingerprinting, and records every authorized mutation in a
// tamper-evident trace ledger — all without touching the agent's LLM
// transport or tool implementations.
//
// Architecture overview:
//
//	Agent SDK --> HookGuard.PreHook  --> [allowed] --> tool runs --> HookGuard.PostHook --> trace ledger
//	                   |
//	                   +-- intent handshake (select_active_intent)
//	                   +-- scope check (owned_scope globs)
//	                   +-- freshness check (FreshnessCache)
//
// CLI commands (cobra):
//
//	hookguard intents list|show|init  - Inspect and scaffold the intent registry
//	hookguard hooks simulate          - Dry-run a PreHook decision from the shell
//	hookguard trace tail|query|verify|export|stats - Inspect the trace ledger
//	hookguard serve                   - Run the live-feed dashboard
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hookguard/hookguard/internal/dashboard"
	"github.com/hookguard/hookguard/internal/hookconfig"
	"github.com/hookguard/hookguard/internal/hookengine"
	"github.com/hookguard/hookguard/internal/intent"
	"github.com/hookguard/hookguard/internal/ledger"
)

// Build-time variables injected via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hookguard:", err)
		os.Exit(1)
	}
}

// workspaceDir is the global flag for the workspace root whose
// .orchestration/ directory HookGuard reads and writes. Defaults to the
// current directory.
var workspaceDir string

var rootCmd = &cobra.Command{
	Use:   "hookguard",
	Short: "HookGuard — intent-scoped governance for AI coding agents",
	Long: `HookGuard gates AI agent file mutations behind a declared intent,
enforces owned-scope boundaries, detects stale writes, and records a
tamper-evident trace of every authorized change.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	wd, _ := os.Getwd()
	rootCmd.PersistentFlags().StringVar(&workspaceDir, "workspace", wd, "Path to the workspace root")

	rootCmd.AddCommand(intentsCmd)
	rootCmd.AddCommand(hooksCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(serveCmd)
}

// orchestrationDir returns the .orchestration directory under the
// configured workspace.
func orchestrationDir() string {
	return filepath.Join(workspaceDir, ".orchestration")
}

// loadWorkspace opens the intent store, trace ledger, and config for the
// configured workspace. Callers are responsible for closing the ledger.
func loadWorkspace() (*hookconfig.Config, *intent.Store, *ledger.Ledger, error) {
	cfg, err := hookconfig.Load(filepath.Join(orchestrationDir(), "config.yaml"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(workspaceDir, p)
	}

	store := intent.New(resolve(cfg.Paths.IntentRegistry))

	indexPath := ""
	if cfg.Ledger.UseIndex {
		indexPath = resolve(cfg.Paths.LedgerIndex)
	}
	trace, err := ledger.New(resolve(cfg.Paths.TraceLedger), ledger.Options{
		IndexPath:   indexPath,
		LockTimeout: time.Duration(cfg.Ledger.LockTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening trace ledger: %w", err)
	}

	return cfg, store, trace, nil
}

// ============================================================================
// hookguard intents
// ============================================================================

var intentsCmd = &cobra.Command{
	Use:   "intents",
	Short: "Inspect and scaffold the intent registry",
}

func init() {
	intentsCmd.AddCommand(intentsListCmd)
	intentsCmd.AddCommand(intentsShowCmd)
	intentsCmd.AddCommand(intentsInitCmd)
}

var intentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all declared intents",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := intent.New(filepath.Join(orchestrationDir(), "active_intents.yaml"))
		intents, err := store.List()
		if err != nil {
			return fmt.Errorf("listing intents: %w", err)
		}
		if len(intents) == 0 {
			fmt.Println("No intents declared.")
			return nil
		}
		for _, it := range intents {
			fmt.Printf("%-10s %-8s %s\n", it.ID, it.Status, it.Name)
		}
		return nil
	},
}

var intentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single intent's full declaration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := intent.New(filepath.Join(orchestrationDir(), "active_intents.yaml"))
		it, err := store.GetIntent(args[0])
		if err != nil {
			return fmt.Errorf("looking up intent %q: %w", args[0], err)
		}
		fmt.Printf("id:       %s\n", it.ID)
		fmt.Printf("name:     %s\n", it.Name)
		fmt.Printf("status:   %s\n", it.Status)
		fmt.Printf("owner:    %s\n", it.Owner)
		fmt.Printf("updated:  %s\n", it.UpdatedAt)
		fmt.Println("owned_scope:")
		for _, g := range it.OwnedScope {
			fmt.Printf("  - %s\n", g)
		}
		fmt.Println("constraints:")
		for _, c := range it.Constraints {
			fmt.Printf("  - %s\n", c)
		}
		fmt.Println("acceptance_criteria:")
		for _, a := range it.AcceptanceCriteria {
			fmt.Printf("  - %s\n", a)
		}
		return nil
	},
}

var intentsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold an empty .orchestration directory in the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := orchestrationDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}

		store := intent.New(filepath.Join(dir, "active_intents.yaml"))
		if err := store.Ensure(); err != nil {
			return fmt.Errorf("initializing intent registry: %w", err)
		}

		configPath := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := hookconfig.WriteDefault(configPath); err != nil {
				return fmt.Errorf("writing default config: %w", err)
			}
		}

		fmt.Printf("Initialized %s\n", dir)
		return nil
	},
}

// ============================================================================
// hookguard hooks simulate
// ============================================================================

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Dry-run hook decisions without running an agent",
}

var (
	simulateTool   string
	simulatePath   string
	simulateIntent string
)

func init() {
	hooksCmd.AddCommand(hooksSimulateCmd)
	hooksSimulateCmd.Flags().StringVar(&simulateTool, "tool", "", "Tool name, e.g. write_to_file")
	hooksSimulateCmd.Flags().StringVar(&simulatePath, "path", "", "Workspace-relative path the tool targets")
	hooksSimulateCmd.Flags().StringVar(&simulateIntent, "intent", "", "Intent id to bind before simulating")
	hooksSimulateCmd.MarkFlagRequired("tool")
}

var hooksSimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Evaluate a PreHook decision for a hypothetical tool call",
	Long: `Simulate evaluates the exact PreHook decision HookGuard would make for
a given tool and path, optionally after binding an intent first. Useful
for debugging a SCOPE_VIOLATION or STALE_FILE before wiring up a live
agent session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, trace, err := loadWorkspace()
		if err != nil {
			return err
		}
		defer trace.Close()

		eng := hookengine.New(store, trace, hookengine.Options{WorkspaceRoot: workspaceDir})

		if simulateIntent != "" {
			out := eng.SelectIntent(simulateIntent)
			if strings.HasPrefix(out, "ERROR") {
				return fmt.Errorf("%s", out)
			}
		}

		params := map[string]any{}
		if simulatePath != "" {
			params["path"] = simulatePath
		}

		decision := eng.PreHook(context.Background(), simulateTool, params)
		if decision.Allowed {
			fmt.Println("ALLOWED")
			return nil
		}
		fmt.Printf("BLOCKED: %s\n", decision.Reason)
		token, reason := decision.Reason, decision.Reason
		if i := strings.Index(decision.Reason, ": "); i >= 0 {
			token, reason = decision.Reason[:i], decision.Reason[i+2:]
		}
		return &hookengine.BlockedError{Token: token, Reason: reason}
	},
}

// ============================================================================
// hookguard trace
// ============================================================================

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect the trace ledger",
	Long: `The trace ledger records every authorized mutation HookGuard's PostHook
observed: which intent it served, which tool ran, how the change was
classified, and the content hash of every file it touched. Entries are
hash-chained — each entry's hash depends on the previous one, so
tampering breaks the chain from that point forward.`,
}

var (
	traceFollowMode bool
	traceTailLimit  int
)

func init() {
	traceCmd.AddCommand(traceTailCmd)
	traceCmd.AddCommand(traceQueryCmd)
	traceCmd.AddCommand(traceVerifyCmd)
	traceCmd.AddCommand(traceExportCmd)
	traceCmd.AddCommand(traceStatsCmd)

	traceTailCmd.Flags().BoolVarP(&traceFollowMode, "follow", "f", false, "Follow new records in real time")
	traceTailCmd.Flags().IntVarP(&traceTailLimit, "limit", "n", 20, "Number of recent records to show")
}

var traceTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent trace records",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, trace, err := loadWorkspace()
		if err != nil {
			return err
		}
		defer trace.Close()

		records, err := trace.Tail(traceTailLimit)
		if err != nil {
			return fmt.Errorf("reading trace ledger: %w", err)
		}
		for _, r := range records {
			printTraceRecord(r)
		}

		if traceFollowMode {
			return trace.Follow(context.Background(), printTraceRecord)
		}
		return nil
	},
}

var (
	traceQueryIntent string
	traceQueryTool   string
	traceQuerySince  string
	traceQueryLimit  int
)

func init() {
	traceQueryCmd.Flags().StringVar(&traceQueryIntent, "intent", "", "Filter by intent id")
	traceQueryCmd.Flags().StringVar(&traceQueryTool, "tool", "", "Filter by tool name")
	traceQueryCmd.Flags().StringVar(&traceQuerySince, "since", "", "Show records since duration (e.g., 1h, 30m)")
	traceQueryCmd.Flags().IntVar(&traceQueryLimit, "limit", 50, "Maximum number of records to return")
}

var traceQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query trace records with filters",
	Long: `Examples:
  hookguard trace query --intent INT-001 --since 1h
  hookguard trace query --tool write_to_file --limit 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, trace, err := loadWorkspace()
		if err != nil {
			return err
		}
		defer trace.Close()

		records, err := trace.Query(ledger.QueryParams{
			IntentID: traceQueryIntent,
			Tool:     traceQueryTool,
			Since:    traceQuerySince,
			Limit:    traceQueryLimit,
		})
		if err != nil {
			return fmt.Errorf("trace query failed: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No matching trace records found.")
			return nil
		}
		for _, r := range records {
			printTraceRecord(r)
		}
		fmt.Printf("\n%d records found.\n", len(records))
		return nil
	},
}

var traceVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify hash chain integrity",
	Long: `Each trace record's hash is computed over its prev_hash, sequence
number, timestamp, intent id, tool, mutation class, and the path and
content hash of each file. If any of those fields has been edited after
the fact, the chain breaks and this command reports where.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, trace, err := loadWorkspace()
		if err != nil {
			return err
		}
		defer trace.Close()

		result, err := trace.VerifyChain()
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		if result.Valid {
			fmt.Printf("Hash chain VALID (%d records verified)\n", result.EntriesChecked)
			return nil
		}
		fmt.Printf("Hash chain BROKEN at record #%d\n", result.BrokenAt)
		fmt.Printf("  Expected hash: %s\n", result.ExpectedHash)
		fmt.Printf("  Actual hash:   %s\n", result.ActualHash)
		return fmt.Errorf("trace ledger integrity violation detected")
	},
}

var traceExportFormat string

func init() {
	traceExportCmd.Flags().StringVar(&traceExportFormat, "format", "jsonl", "Export format: csv, json, jsonl")
}

var traceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full trace ledger",
	Long: `Example:
  hookguard trace export --format csv > trace_export.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, trace, err := loadWorkspace()
		if err != nil {
			return err
		}
		defer trace.Close()

		return trace.Export(os.Stdout, traceExportFormat)
	},
}

var traceStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the trace ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, trace, err := loadWorkspace()
		if err != nil {
			return err
		}
		defer trace.Close()

		records, err := trace.ReadAll()
		if err != nil {
			return fmt.Errorf("reading trace ledger: %w", err)
		}

		var totalBytes uint64
		byIntent := map[string]int{}
		byClass := map[ledger.MutationClass]int{}
		for _, r := range records {
			byIntent[r.IntentID]++
			byClass[r.MutationClass]++
			totalBytes += uint64(len(r.Files)) * 32 // sha256 digest size, a rough proxy for ledger payload size
		}

		fmt.Printf("%d records, approx. %s of fingerprint payload\n",
			len(records), humanize.Bytes(totalBytes))
		fmt.Println("by intent:")
		for id, n := range byIntent {
			fmt.Printf("  %-10s %d\n", id, n)
		}
		fmt.Println("by mutation class:")
		for class, n := range byClass {
			fmt.Printf("  %-18s %d\n", class, n)
		}
		return nil
	},
}

func printTraceRecord(r ledger.Record) {
	fmt.Printf("[%s] seq=%-5d intent=%-10s tool=%-16s class=%s\n",
		r.Timestamp, r.Seq, r.IntentID, r.Tool, r.MutationClass)
	for _, f := range r.Files {
		fmt.Printf("    %s  %s\n", f.RelativePath, f.ContentHash)
	}
}

// ============================================================================
// hookguard serve
// ============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HookGuard live-feed dashboard",
	Long: `Serve mounts the dashboard's web UI, WebSocket live feed, and REST
API over the workspace's intent registry and trace ledger. It does not
start an engine session of its own — it observes state that a host
process's HookEngine is writing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, trace, err := loadWorkspace()
		if err != nil {
			return err
		}
		defer trace.Close()

		if !cfg.Dashboard.Enabled {
			return fmt.Errorf("dashboard is disabled in config.yaml")
		}

		eng := hookengine.New(store, trace, hookengine.Options{WorkspaceRoot: workspaceDir})
		dash := dashboard.New(dashboard.Options{Intents: store, Trace: trace, Engine: eng})

		watcher, err := hookconfig.NewWatcher(orchestrationDir(), hookconfig.WatchTargets{
			OnIntentsChange: dash.NotifyIntentsChanged,
			OnConfigChange: func() {
				slog.Warn("config.yaml changed; dashboard bind address and ledger tuning require a restart to take effect")
			},
		})
		if err != nil {
			return fmt.Errorf("starting orchestration directory watcher: %w", err)
		}
		defer watcher.Close()

		mux := http.NewServeMux()
		mux.Handle("/dashboard", dash)
		mux.Handle("/dashboard/ws", dash.WebSocketHandler())
		mux.Handle("/api/", dash.APIHandler())

		addr := fmt.Sprintf("%s:%d", cfg.Dashboard.Host, cfg.Dashboard.Port)
		fmt.Printf("HookGuard dashboard listening on http://%s/dashboard\n", addr)
		return http.ListenAndServe(addr, mux)
	},
}
