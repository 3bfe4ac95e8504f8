package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrLedgerCorrupt is returned when a ledger line cannot be parsed as a
// Record during a read (design doc §7).
var ErrLedgerCorrupt = errors.New("LEDGER_CORRUPT")

// QueryParams filters a ledger query. Zero values mean "no filter",
// mirroring the teacher's audit.QueryParams.
type QueryParams struct {
	IntentID string
	Tool     string
	Since    string // RFC3339 timestamp or a Go duration string like "1h".
	Limit    int
}

// Ledger is the TraceLedger: a single append-only JSONL file at
// <workspace>/.orchestration/agent_trace.jsonl, chain-hashed, guarded by
// a workspace-scoped advisory lock for cross-process append atomicity,
// and optionally projected into a SQLite index for fast queries.
//
// Mirrors internal/audit/audit.go's structure in the teacher repo: the
// JSONL file is the source of truth, the index is a rebuildable
// projection over it.
type Ledger struct {
	mu          sync.Mutex
	path        string
	lockPath    string
	lockTimeout time.Duration
	seq         uint64
	lastHash    string
	index       *sqliteIndex // nil if indexing is disabled.
}

// Options configures a Ledger.
type Options struct {
	// IndexPath, if non-empty, opens a SQLite query index alongside the
	// JSONL file. Leave empty to run JSONL-only (queries fall back to a
	// full file scan).
	IndexPath string

	// LockTimeout bounds how long Append waits to acquire the
	// cross-process append lock before giving up. Zero uses
	// defaultLockTimeout.
	LockTimeout time.Duration
}

// defaultLockTimeout is used when Options.LockTimeout is zero.
const defaultLockTimeout = 50 * time.Millisecond

// New opens (creating if absent) a trace ledger at path.
func New(path string, opts Options) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	lockTimeout := opts.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}

	l := &Ledger{
		path:        path,
		lockPath:    path + ".lock",
		lastHash:    genesisPrevHash,
		lockTimeout: lockTimeout,
	}

	if opts.IndexPath != "" {
		idx, err := openIndex(opts.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("opening ledger index: %w", err)
		}
		l.index = idx
	}

	if err := l.recoverState(); err != nil {
		if l.index != nil {
			l.index.close()
		}
		return nil, err
	}

	return l, nil
}

// Close releases the SQLite index, if one is open.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index != nil {
		return l.index.close()
	}
	return nil
}

// Append appends a record to the ledger. The caller supplies ID,
// Timestamp, IntentID, Tool, MutationClass, Files, and ElapsedMs; Append
// fills in Seq, PrevHash, and Hash before writing. I3/I4 (append-only,
// non-empty intent_id) are the caller's (HookEngine's) responsibility to
// uphold — Append itself does not reject an empty IntentID, since a
// corrupted invariant upstream should surface as a test failure, not a
// silent drop of an audit record.
func (l *Ledger) Append(record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record.Seq = l.seq + 1
	record.PrevHash = l.lastHash
	record.Hash = computeHash(&record)

	// Serialize fully to a buffer before touching the file, so a
	// cancellation or crash mid-write never leaves a partial line
	// (design doc §5 "Cancellation", §9 "Ledger atomicity").
	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("marshaling trace record: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(data)
	buf.WriteByte('\n')

	if err := l.writeLocked(buf.Bytes()); err != nil {
		return err
	}

	l.seq = record.Seq
	l.lastHash = record.Hash

	if l.index != nil {
		l.index.insert(&record)
	}
	return nil
}

// writeLocked performs the single append-mode write, guarded by a
// gofrs/flock advisory lock on a sibling .lock file so that multiple
// engine processes sharing a workspace never interleave partial lines
// (design doc §5 "Cross-process contention", §9 "Ledger atomicity").
func (l *Ledger) writeLocked(buf []byte) error {
	fl := flock.New(l.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), l.lockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 5*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring ledger lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquiring ledger lock: timed out")
	}
	defer fl.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("writing ledger entry: %w", err)
	}
	return f.Sync()
}

// ReadAll parses every non-empty line of the ledger into a Record,
// propagating any parse failure as ErrLedgerCorrupt.
func (l *Ledger) ReadAll() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ledger %s: %w", l.path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLedgerCorrupt, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerCorrupt, err)
	}
	return records, nil
}

// EntriesForIntent returns every record whose IntentID matches.
func (l *Ledger) EntriesForIntent(intentID string) ([]Record, error) {
	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range all {
		if r.IntentID == intentID {
			out = append(out, r)
		}
	}
	return out, nil
}

// VerifyChain reads the whole ledger and verifies the hash chain.
func (l *Ledger) VerifyChain() (ChainResult, error) {
	records, err := l.ReadAll()
	if err != nil {
		return ChainResult{}, err
	}
	return verifyChain(records), nil
}

// Tail returns the N most recent records, preferring the SQLite index
// when available.
func (l *Ledger) Tail(limit int) ([]Record, error) {
	if l.index != nil {
		return l.index.query(QueryParams{Limit: limit})
	}
	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// Query returns records matching params, preferring the SQLite index.
// Since, if not already an RFC3339 timestamp, is parsed as a Go duration
// relative to now (e.g. "1h", "24h").
func (l *Ledger) Query(params QueryParams) ([]Record, error) {
	if params.Since != "" && !strings.Contains(params.Since, "T") {
		d, err := time.ParseDuration(params.Since)
		if err != nil {
			return nil, fmt.Errorf("invalid since duration %q: %w", params.Since, err)
		}
		params.Since = time.Now().UTC().Add(-d).Format(time.RFC3339Nano)
	}

	if l.index != nil {
		return l.index.query(params)
	}

	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	var filtered []Record
	for _, r := range all {
		if params.IntentID != "" && r.IntentID != params.IntentID {
			continue
		}
		if params.Tool != "" && r.Tool != params.Tool {
			continue
		}
		if params.Since != "" && r.Timestamp < params.Since {
			continue
		}
		filtered = append(filtered, r)
	}
	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[len(filtered)-params.Limit:]
	}
	return filtered, nil
}

// Follow polls the ledger every 500ms for records with Seq greater than
// the ledger's current tail, invoking callback for each. Blocks until
// ctx is canceled. Mirrors audit.AuditLog.Follow in the teacher repo.
func (l *Ledger) Follow(ctx context.Context, callback func(Record)) error {
	l.mu.Lock()
	lastSeq := l.seq
	l.mu.Unlock()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			all, err := l.ReadAll()
			if err != nil {
				slog.Error("ledger follow: read error", "error", err)
				continue
			}
			for _, r := range all {
				if r.Seq > lastSeq {
					callback(r)
					lastSeq = r.Seq
				}
			}
		}
	}
}

// Export writes every record to w in the given format: "jsonl"
// (default), "json", or "csv".
func (l *Ledger) Export(w io.Writer, format string) error {
	records, err := l.ReadAll()
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)

	case "csv":
		cw := csv.NewWriter(w)
		defer cw.Flush()
		if err := cw.Write([]string{"seq", "id", "timestamp", "intent_id", "tool", "mutation_class", "elapsed_ms", "hash"}); err != nil {
			return err
		}
		for _, r := range records {
			elapsed := ""
			if r.ElapsedMs != nil {
				elapsed = fmt.Sprintf("%d", *r.ElapsedMs)
			}
			if err := cw.Write([]string{
				fmt.Sprintf("%d", r.Seq), r.ID, r.Timestamp, r.IntentID,
				r.Tool, string(r.MutationClass), elapsed, r.Hash,
			}); err != nil {
				return err
			}
		}
		return nil

	case "jsonl", "":
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unsupported export format: %s (use json, jsonl, or csv)", format)
	}
}

// recoverState reads the last record (if any) to continue the sequence
// and hash chain correctly across process restarts, and backfills the
// SQLite index from the JSONL file if it's behind (design doc: the
// index is a rebuildable projection, the JSONL file is the source of
// truth).
func (l *Ledger) recoverState() error {
	records, err := l.ReadAll()
	if err != nil {
		if errors.Is(err, ErrLedgerCorrupt) {
			return err
		}
		return err
	}
	if len(records) == 0 {
		return nil
	}

	last := records[len(records)-1]
	l.seq = last.Seq
	l.lastHash = last.Hash

	if l.index != nil {
		indexSeq := l.index.lastSeq()
		for _, r := range records {
			if r.Seq > indexSeq {
				l.index.insert(&r)
			}
		}
	}
	return nil
}
