package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	l, err := New(filepath.Join(dir, "agent_trace.jsonl"), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleRecord(id, intentID string) Record {
	elapsed := int64(42)
	return Record{
		ID:            id,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		IntentID:      intentID,
		Tool:          "write_to_file",
		MutationClass: MutationASTRefactor,
		Files: []FileChange{
			{RelativePath: "src/api/weather.ts", ContentHash: "sha256:deadbeef",
				Contributor: Contributor{EntityType: "AI", ModelIdentifier: "test-model"}},
		},
		ElapsedMs: &elapsed,
	}
}

func TestAppendAndReadAll_RoundTrip(t *testing.T) {
	l := newTestLedger(t)

	if err := l.Append(sampleRecord("rec-1", "INT-001")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID != "rec-1" || got.IntentID != "INT-001" || got.Seq != 1 {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Files[0].RelativePath != "src/api/weather.ts" {
		t.Errorf("file round-trip mismatch: %+v", got.Files)
	}
}

func TestAppend_AppendOnlyOrdering(t *testing.T) {
	l := newTestLedger(t)

	for i, id := range []string{"rec-1", "rec-2", "rec-3"} {
		r := sampleRecord(id, "INT-001")
		if err := l.Append(r); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	records, err := l.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Seq != uint64(i+1) {
			t.Errorf("record %d: expected seq %d, got %d", i, i+1, r.Seq)
		}
	}
}

func TestEntriesForIntent_Filters(t *testing.T) {
	l := newTestLedger(t)
	l.Append(sampleRecord("rec-1", "INT-001"))
	l.Append(sampleRecord("rec-2", "INT-002"))
	l.Append(sampleRecord("rec-3", "INT-001"))

	entries, err := l.EntriesForIntent("INT-001")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for INT-001, got %d", len(entries))
	}
}

func TestVerifyChain_ValidAfterAppends(t *testing.T) {
	l := newTestLedger(t)
	l.Append(sampleRecord("rec-1", "INT-001"))
	l.Append(sampleRecord("rec-2", "INT-001"))

	result, err := l.VerifyChain()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Errorf("expected valid chain, got %+v", result)
	}
	if result.EntriesChecked != 2 {
		t.Errorf("expected 2 entries checked, got %d", result.EntriesChecked)
	}
}

func TestVerifyChain_EmptyLedgerIsValid(t *testing.T) {
	l := newTestLedger(t)
	result, err := l.VerifyChain()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.EntriesChecked != 0 {
		t.Errorf("expected valid empty chain, got %+v", result)
	}
}

func TestRecoverState_ContinuesSequenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_trace.jsonl")

	l1, err := New(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	l1.Append(sampleRecord("rec-1", "INT-001"))
	l1.Append(sampleRecord("rec-2", "INT-001"))
	l1.Close()

	l2, err := New(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()

	if err := l2.Append(sampleRecord("rec-3", "INT-001")); err != nil {
		t.Fatal(err)
	}

	records, err := l2.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records after reopen, got %d", len(records))
	}
	if records[2].Seq != 3 {
		t.Errorf("expected seq 3 after reopen, got %d", records[2].Seq)
	}
	result, err := l2.VerifyChain()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Errorf("expected valid chain across reopen, got %+v", result)
	}
}

func TestQuery_FiltersByIntentAndTool(t *testing.T) {
	l := newTestLedger(t)
	l.Append(sampleRecord("rec-1", "INT-001"))
	r2 := sampleRecord("rec-2", "INT-002")
	r2.Tool = "apply_diff"
	l.Append(r2)

	records, err := l.Query(QueryParams{IntentID: "INT-002"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "rec-2" {
		t.Errorf("unexpected query result: %+v", records)
	}

	records, err = l.Query(QueryParams{Tool: "write_to_file"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "rec-1" {
		t.Errorf("unexpected query result: %+v", records)
	}
}

func TestTail_RespectsLimit(t *testing.T) {
	l := newTestLedger(t)
	for _, id := range []string{"rec-1", "rec-2", "rec-3"} {
		l.Append(sampleRecord(id, "INT-001"))
	}

	records, err := l.Tail(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[len(records)-1].ID != "rec-3" {
		t.Errorf("expected most recent record last, got %+v", records)
	}
}

func TestFollow_DeliversNewRecords(t *testing.T) {
	l := newTestLedger(t)
	l.Append(sampleRecord("rec-1", "INT-001"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	seen := make(chan Record, 4)
	go l.Follow(ctx, func(r Record) { seen <- r })

	time.Sleep(600 * time.Millisecond)
	l.Append(sampleRecord("rec-2", "INT-001"))

	select {
	case r := <-seen:
		if r.ID != "rec-2" {
			t.Errorf("expected rec-2, got %s", r.ID)
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for Follow to deliver new record")
	}
}

func TestIndex_QueryMatchesJSONLFallback(t *testing.T) {
	dir := t.TempDir()
	l, err := New(filepath.Join(dir, "agent_trace.jsonl"), Options{IndexPath: filepath.Join(dir, "index.db")})
	if err != nil {
		t.Fatalf("New with index: %v", err)
	}
	defer l.Close()

	l.Append(sampleRecord("rec-1", "INT-001"))
	l.Append(sampleRecord("rec-2", "INT-002"))

	records, err := l.Query(QueryParams{IntentID: "INT-001"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "rec-1" {
		t.Errorf("unexpected indexed query result: %+v", records)
	}
}
