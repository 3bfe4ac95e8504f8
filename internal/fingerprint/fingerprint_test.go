package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCompute_AbsentFile(t *testing.T) {
	fp, err := Compute(filepath.Join(t.TempDir(), "nope.txt"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if fp != Absent {
		t.Errorf("expected %q, got %q", Absent, fp)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := Compute(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute(path)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected deterministic fingerprint, got %q and %q", a, b)
	}
	if a == Absent {
		t.Error("existing file must not fingerprint as ABSENT")
	}
}

func TestCompute_DifferentBytesDifferentFingerprint(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")
	os.WriteFile(pathA, []byte("content A"), 0o644)
	os.WriteFile(pathB, []byte("content B"), 0o644)

	fa, _ := Compute(pathA)
	fb, _ := Compute(pathB)
	if fa == fb {
		t.Error("expected different fingerprints for different content")
	}
}

func TestCache_CheckUnknownBeforeObserve(t *testing.T) {
	c := NewCache()
	fr, err := c.Check("src/api/weather.ts")
	if err != nil {
		t.Fatal(err)
	}
	if fr != Unknown {
		t.Errorf("expected Unknown, got %v", fr)
	}
}

func TestCache_FreshAfterObserveUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weather.ts")
	os.WriteFile(path, []byte("export class WeatherService {}"), 0o644)

	c := NewCache()
	if err := c.Observe(path); err != nil {
		t.Fatal(err)
	}
	fr, err := c.Check(path)
	if err != nil {
		t.Fatal(err)
	}
	if fr != Fresh {
		t.Errorf("expected Fresh, got %v", fr)
	}
}

func TestCache_StaleAfterExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weather.ts")
	os.WriteFile(path, []byte("bytes A"), 0o644)

	c := NewCache()
	if err := c.Observe(path); err != nil {
		t.Fatal(err)
	}

	// Simulate an out-of-band writer replacing the file contents.
	os.WriteFile(path, []byte("bytes B, written by another agent"), 0o644)

	fr, err := c.Check(path)
	if err != nil {
		t.Fatal(err)
	}
	if fr != Stale {
		t.Errorf("expected Stale, got %v", fr)
	}
}

func TestCache_ObserveAbsentThenCreated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new_file.ts")

	c := NewCache()
	if err := c.Observe(path); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(path, []byte("export const x = 1"), 0o644)

	fr, err := c.Check(path)
	if err != nil {
		t.Fatal(err)
	}
	if fr != Stale {
		t.Errorf("a file created after Observe(absent) must read as Stale, got %v", fr)
	}
}
