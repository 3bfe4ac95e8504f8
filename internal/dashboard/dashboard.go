// Package dashboard serves HookGuard's live-feed web UI and REST API.
//
// The dashboard is mounted on /dashboard and /api/ on the same port. It
// provides:
//
//   - Web UI:    GET  /dashboard      — single-page status board
//   - WebSocket: GET  /dashboard/ws   — live trace feed
//   - REST API:  GET  /api/status     — workspace + engine status
//                GET  /api/intents    — declared intents
//                GET  /api/trace      — trace records, filterable
//
// See design doc §6.1 for the full operational surface.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hookguard/hookguard/internal/hookengine"
	"github.com/hookguard/hookguard/internal/intent"
	"github.com/hookguard/hookguard/internal/ledger"
)

// Options holds the dependencies injected into the dashboard.
type Options struct {
	Intents *intent.Store
	Trace   *ledger.Ledger
	Engine  *hookengine.Engine
}

// Dashboard serves the web UI and REST API. Implements http.Handler for
// the /dashboard route.
type Dashboard struct {
	intents *intent.Store
	trace   *ledger.Ledger
	engine  *hookengine.Engine
	feedHub *feedHub
}

// New creates a Dashboard with the given dependencies and starts its
// WebSocket broadcast hub.
func New(opts Options) *Dashboard {
	d := &Dashboard{
		intents: opts.Intents,
		trace:   opts.Trace,
		engine:  opts.Engine,
		feedHub: newFeedHub(),
	}
	go d.feedHub.run()
	return d
}

// ServeHTTP serves the embedded single-page dashboard.
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(dashboardHTML))
}

// WebSocketHandler returns the handler for /dashboard/ws.
func (d *Dashboard) WebSocketHandler() http.Handler {
	return http.HandlerFunc(d.handleWebSocket)
}

// APIHandler returns the handler for the /api/ REST routes.
func (d *Dashboard) APIHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", d.handleAPIStatus)
	mux.HandleFunc("/api/intents", d.handleAPIIntents)
	mux.HandleFunc("/api/trace", d.handleAPITrace)
	return mux
}

// feedEvent is the envelope every message on /dashboard/ws carries, so
// the client can tell a trace record apart from a workspace
// notification without guessing from field shape.
type feedEvent struct {
	Kind   string         `json:"kind"`
	Record *ledger.Record `json:"record,omitempty"`
}

// BroadcastRecord sends a trace record to all connected WebSocket
// clients. Called by the host after every PostHook append. Non-blocking
// — dropped silently if no clients are connected or a client is slow.
func (d *Dashboard) BroadcastRecord(r ledger.Record) {
	d.broadcastEvent(feedEvent{Kind: "trace", Record: &r})
}

// NotifyIntentsChanged tells connected clients that active_intents.yaml
// was rewritten, so they can re-fetch /api/intents and /api/status
// immediately instead of waiting for the next poll. Wired to
// hookconfig.Watcher's OnIntentsChange in `hookguard serve`.
func (d *Dashboard) NotifyIntentsChanged() {
	d.broadcastEvent(feedEvent{Kind: "intents_changed"})
}

func (d *Dashboard) broadcastEvent(evt feedEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("dashboard: failed to marshal feed event for broadcast", "kind", evt.Kind, "error", err)
		return
	}
	d.feedHub.broadcast(data)
}

// handleAPIStatus reports the active intent and basic counts.
// GET /api/status
func (d *Dashboard) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	ids, err := d.intents.ListIntentIDs()
	if err != nil {
		slog.Error("dashboard: listing intents for status failed", "error", err)
		http.Error(w, "intent registry unreadable", http.StatusInternalServerError)
		return
	}

	chain, err := d.trace.VerifyChain()
	if err != nil {
		slog.Error("dashboard: verifying chain for status failed", "error", err)
		http.Error(w, "trace ledger unreadable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "running",
		"active_intent":   d.engine.GetActiveIntentID(),
		"declared_intents": len(ids),
		"chain_valid":     chain.Valid,
		"entries_checked": chain.EntriesChecked,
	})
}

// handleAPIIntents lists all declared intents.
// GET /api/intents
func (d *Dashboard) handleAPIIntents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	intents, err := d.intents.List()
	if err != nil {
		slog.Error("dashboard: listing intents failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, intents)
}

// handleAPITrace returns trace records, optionally filtered.
// GET /api/trace?intent=INT-001&tool=write_to_file&since=1h&limit=50
func (d *Dashboard) handleAPITrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	params := ledger.QueryParams{
		IntentID: r.URL.Query().Get("intent"),
		Tool:     r.URL.Query().Get("tool"),
		Since:    r.URL.Query().Get("since"),
		Limit:    limit,
	}

	records, err := d.trace.Query(params)
	if err != nil {
		slog.Error("dashboard: trace query failed", "error", err)
		http.Error(w, "trace query failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// dashboardHTML is the embedded single-page dashboard UI. No build step,
// no framework — it fetches the REST API on load and every 5 seconds
// after that, and also listens on the WebSocket feed for live updates.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>HookGuard Dashboard</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
         background: #0f1117; color: #e1e4e8; padding: 24px; }
  h1 { font-size: 24px; margin-bottom: 8px; }
  .subtitle { color: #8b949e; margin-bottom: 24px; }
  .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; margin-bottom: 24px; }
  .card { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 16px; }
  .card h2 { font-size: 14px; color: #8b949e; text-transform: uppercase; margin-bottom: 12px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th { text-align: left; color: #8b949e; padding: 6px 8px; border-bottom: 1px solid #30363d; }
  td { padding: 6px 8px; border-bottom: 1px solid #21262d; }
  .class-evolution { color: #d29922; }
  .class-refactor { color: #58a6ff; }
  #live-feed { max-height: 340px; overflow-y: auto; font-family: monospace; font-size: 12px; }
  .feed-entry { padding: 4px 0; border-bottom: 1px solid #21262d; }
</style>
</head>
<body>
<h1>HookGuard Dashboard</h1>
<p class="subtitle">Intent-scoped governance for AI agent file mutations</p>

<div class="grid">
  <div class="card">
    <h2>Intents</h2>
    <table>
      <thead><tr><th>ID</th><th>Name</th><th>Status</th><th>Owned scope</th></tr></thead>
      <tbody id="intents-tbody"><tr><td colspan="4">Loading...</td></tr></tbody>
    </table>
  </div>
  <div class="card">
    <h2>Status</h2>
    <table id="status-table"><tbody><tr><td>Loading...</td></tr></tbody></table>
  </div>
</div>

<div class="card">
  <h2>Live Trace Feed</h2>
  <div id="live-feed"><div class="feed-entry">Connecting...</div></div>
</div>

<script>
function esc(s) {
  if (s == null) return '';
  return String(s).replace(/&/g,'&amp;').replace(/</g,'&lt;').replace(/>/g,'&gt;').replace(/"/g,'&quot;').replace(/'/g,'&#39;');
}

async function refresh() {
  try {
    const [intentsRes, statusRes, traceRes] = await Promise.all([
      fetch('/api/intents'), fetch('/api/status'), fetch('/api/trace?limit=20')
    ]);
    renderIntents(await intentsRes.json());
    renderStatus(await statusRes.json());
    renderTrace(await traceRes.json());
  } catch (e) { console.error('refresh failed:', e); }
}

function renderIntents(intents) {
  const tbody = document.getElementById('intents-tbody');
  if (!intents || intents.length === 0) { tbody.innerHTML = '<tr><td colspan="4">No intents declared</td></tr>'; return; }
  tbody.innerHTML = intents.map(i =>
    '<tr><td>' + esc(i.id) + '</td><td>' + esc(i.name) + '</td><td>' + esc(i.status) +
    '</td><td>' + esc((i.owned_scope||[]).join(', ')) + '</td></tr>'
  ).join('');
}

function renderStatus(status) {
  const table = document.getElementById('status-table');
  table.innerHTML = Object.entries(status).map(([k, v]) =>
    '<tr><td>' + esc(k) + '</td><td>' + esc(v) + '</td></tr>'
  ).join('');
}

function renderTrace(records) {
  const feed = document.getElementById('live-feed');
  if (!records || records.length === 0) { feed.innerHTML = '<div class="feed-entry">No trace records yet</div>'; return; }
  feed.innerHTML = records.map(recordLine).join('');
}

function recordLine(r) {
  const cls = r.mutation_class === 'INTENT_EVOLUTION' ? 'class-evolution' : 'class-refactor';
  return '<div class="feed-entry">[' + esc(r.timestamp) + '] intent=' + esc(r.intent_id) +
    ' tool=' + esc(r.tool) + ' <span class="' + cls + '">' + esc(r.mutation_class) + '</span></div>';
}

function connectWS() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/dashboard/ws');
  ws.onmessage = function(e) {
    try {
      const evt = JSON.parse(e.data);
      if (evt.kind === 'intents_changed') { refresh(); return; }
      if (evt.kind !== 'trace' || !evt.record) return;
      const feed = document.getElementById('live-feed');
      const div = document.createElement('div');
      div.innerHTML = recordLine(evt.record);
      feed.insertBefore(div.firstChild, feed.firstChild);
      while (feed.children.length > 100) feed.removeChild(feed.lastChild);
    } catch (err) { console.error('ws parse error:', err); }
  };
  ws.onclose = function() { setTimeout(connectWS, 3000); };
  ws.onerror = function() { ws.close(); };
}

refresh();
setInterval(refresh, 5000);
connectWS();
</script>
</body>
</html>`
