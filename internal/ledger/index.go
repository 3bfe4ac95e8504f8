package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/glebarez/go-sqlite"
)

// sqliteIndex provides fast queries over the trace ledger using SQLite.
// The JSONL file is the source of truth; the index is a queryable
// projection that can always be rebuilt from it. Mirrors
// internal/audit/index.go in the teacher repo.
type sqliteIndex struct {
	db *sql.DB
}

// openIndex opens (or creates) the SQLite index at path.
func openIndex(path string) (*sqliteIndex, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite index %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			seq            INTEGER PRIMARY KEY,
			id             TEXT NOT NULL DEFAULT '',
			ts             TEXT NOT NULL,
			intent_id      TEXT NOT NULL DEFAULT '',
			tool           TEXT NOT NULL DEFAULT '',
			mutation_class TEXT NOT NULL DEFAULT '',
			files          TEXT NOT NULL DEFAULT '',
			elapsed_ms     INTEGER,
			hash           TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_intent ON records(intent_id);
		CREATE INDEX IF NOT EXISTS idx_tool ON records(tool);
		CREATE INDEX IF NOT EXISTS idx_ts ON records(ts);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}

	return &sqliteIndex{db: db}, nil
}

// insert adds a record to the index. Non-blocking in effect — errors are
// logged but never surfaced, since the JSONL append already succeeded
// and is the durable source of truth.
func (idx *sqliteIndex) insert(r *Record) {
	filesJSON, _ := json.Marshal(r.Files)

	var elapsed any
	if r.ElapsedMs != nil {
		elapsed = *r.ElapsedMs
	}

	_, err := idx.db.Exec(
		`INSERT OR REPLACE INTO records (seq, id, ts, intent_id, tool, mutation_class, files, elapsed_ms, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Seq, r.ID, r.Timestamp, r.IntentID, r.Tool, string(r.MutationClass),
		string(filesJSON), elapsed, r.Hash,
	)
	if err != nil {
		slog.Error("ledger index insert failed", "seq", r.Seq, "error", err)
	}
}

// query retrieves records from the index matching params.
func (idx *sqliteIndex) query(params QueryParams) ([]Record, error) {
	query := "SELECT seq, id, ts, intent_id, tool, mutation_class, files, elapsed_ms, hash FROM records WHERE 1=1"
	var args []any

	if params.IntentID != "" {
		query += " AND intent_id = ?"
		args = append(args, params.IntentID)
	}
	if params.Tool != "" {
		query += " AND tool = ?"
		args = append(args, params.Tool)
	}
	if params.Since != "" {
		query += " AND ts >= ?"
		args = append(args, params.Since)
	}

	query += " ORDER BY seq DESC"
	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
	}

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger index: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var filesJSON string
		var elapsed sql.NullInt64
		if err := rows.Scan(&r.Seq, &r.ID, &r.Timestamp, &r.IntentID, &r.Tool,
			&r.MutationClass, &filesJSON, &elapsed, &r.Hash); err != nil {
			return nil, fmt.Errorf("scanning ledger index row: %w", err)
		}
		if elapsed.Valid {
			v := elapsed.Int64
			r.ElapsedMs = &v
		}
		if filesJSON != "" {
			_ = json.Unmarshal([]byte(filesJSON), &r.Files)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// lastSeq returns the highest seq stored in the index, or 0 if empty.
func (idx *sqliteIndex) lastSeq() uint64 {
	var seq sql.NullInt64
	if err := idx.db.QueryRow("SELECT MAX(seq) FROM records").Scan(&seq); err != nil || !seq.Valid {
		return 0
	}
	return uint64(seq.Int64)
}

func (idx *sqliteIndex) close() error {
	return idx.db.Close()
}
