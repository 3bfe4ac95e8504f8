package intent

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRegistry(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "active_intents.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetIntent_NonexistentFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "active_intents.yaml"))
	if _, err := s.GetIntent("INT-001"); err == nil {
		t.Fatal("expected error for missing registry")
	}
}

func TestEnsure_CreatesEmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "active_intents.yaml")
	s := New(path)

	if err := s.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("registry file not created: %v", err)
	}

	ids, err := s.ListIntentIDs()
	if err != nil {
		t.Fatalf("ListIntentIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty registry, got %v", ids)
	}

	// Idempotent — calling again must not error or truncate.
	if err := s.Ensure(); err != nil {
		t.Fatalf("Ensure (second call): %v", err)
	}
}

func TestGetIntent_Hit(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, `
active_intents:
  - id: INT-001
    name: Weather API
    status: IN_PROGRESS
    owned_scope:
      - src/api/**
    constraints:
      - "no new dependencies"
    acceptance_criteria:
      - "GET /weather returns 200"
`)
	s := New(path)

	got, err := s.GetIntent("INT-001")
	if err != nil {
		t.Fatalf("GetIntent: %v", err)
	}
	if got.Name != "Weather API" || got.Status != StatusInProgress {
		t.Errorf("unexpected intent: %+v", got)
	}
	if len(got.OwnedScope) != 1 || got.OwnedScope[0] != "src/api/**" {
		t.Errorf("unexpected owned_scope: %v", got.OwnedScope)
	}
}

func TestGetIntent_Miss(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, `
active_intents:
  - id: INT-001
    name: Weather API
    status: PENDING
`)
	s := New(path)

	if _, err := s.GetIntent("INT-999"); err == nil {
		t.Fatal("expected ErrIntentNotFound")
	}
}

func TestGetIntent_MissingOwnedScopeIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, `
active_intents:
  - id: INT-002
    name: No scope declared
    status: PENDING
`)
	s := New(path)

	got, err := s.GetIntent("INT-002")
	if err != nil {
		t.Fatalf("GetIntent: %v", err)
	}
	if len(got.OwnedScope) != 0 {
		t.Errorf("expected empty owned_scope, got %v", got.OwnedScope)
	}
}

func TestLoad_DuplicateIDsUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, `
active_intents:
  - id: INT-001
    name: First
  - id: INT-001
    name: Second
`)
	s := New(path)

	if _, err := s.ListIntentIDs(); err == nil {
		t.Fatal("expected REGISTRY_UNREADABLE for duplicate ids")
	}
}

func TestLoad_ScalarOwnedScopeUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, `
active_intents:
  - id: INT-001
    name: Bad scope
    owned_scope: src/api/**
`)
	s := New(path)

	if _, err := s.ListIntentIDs(); err == nil {
		t.Fatal("expected REGISTRY_UNREADABLE for scalar owned_scope")
	}
}

func TestLoad_MalformedYAMLUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, "active_intents: [this is not valid: yaml:\n")
	s := New(path)

	if _, err := s.ListIntentIDs(); err == nil {
		t.Fatal("expected REGISTRY_UNREADABLE for malformed yaml")
	}
}

func TestListIntentIDs_Order(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, `
active_intents:
  - id: INT-003
    name: Third
  - id: INT-001
    name: First
  - id: INT-002
    name: Second
`)
	s := New(path)

	ids, err := s.ListIntentIDs()
	if err != nil {
		t.Fatalf("ListIntentIDs: %v", err)
	}
	want := []string{"INT-003", "INT-001", "INT-002"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], ids[i])
		}
	}
}

func TestList_EmptyFileIsEmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, "")
	s := New(path)

	intents, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(intents) != 0 {
		t.Errorf("expected no intents, got %v", intents)
	}
}
