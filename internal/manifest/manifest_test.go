package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/opencohort/runner/internal/config"
)

func TestReadWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := New()
	m.AddFile("measures/table.csv", FileEntry{
		CreatedByAction: "generate_measures",
		PrivacyLevel:    config.PrivacyMedium,
		Digest:          "abc123",
	})
	m.EnsureAction("generate_measures")

	if err := Write(dir, m); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	got, err := Read(dir)
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, m)
	}

	// The temp file must not linger after a successful write.
	if _, err := os.Stat(Path(dir) + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp manifest file left behind")
	}
}

func TestRead_MissingManifest(t *testing.T) {
	m, err := Read(t.TempDir())
	if err != nil {
		t.Fatalf("missing manifest must not be an error: %v", err)
	}
	if len(m.Files) != 0 || len(m.Actions) != 0 {
		t.Errorf("expected empty manifest, got %+v", m)
	}
}

func TestRead_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, MetadataDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(dir), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Read(dir); err == nil {
		t.Error("expected error for corrupt manifest")
	}
}

func TestAddFile_ReportsModification(t *testing.T) {
	m := New()
	entry := FileEntry{CreatedByAction: "a", PrivacyLevel: config.PrivacyHigh}

	if !m.AddFile("x.csv", entry) {
		t.Error("first add must report a change")
	}
	if m.AddFile("x.csv", entry) {
		t.Error("identical re-add must not report a change")
	}
	entry.Digest = "new"
	if !m.AddFile("x.csv", entry) {
		t.Error("changed entry must report a change")
	}
}

func TestEnsureAction(t *testing.T) {
	m := New()
	if !m.EnsureAction("run_model") {
		t.Error("first ensure must report a change")
	}
	if m.EnsureAction("run_model") {
		t.Error("second ensure must not report a change")
	}
	if m.Actions["run_model"].State != "succeeded" {
		t.Errorf("action entry = %+v", m.Actions["run_model"])
	}
}

func TestFileNames_Sorted(t *testing.T) {
	m := New()
	for _, name := range []string{"c.csv", "a.csv", "b.csv"} {
		m.AddFile(name, FileEntry{CreatedByAction: "x"})
	}
	got := m.FileNames()
	want := []string{"a.csv", "b.csv", "c.csv"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FileNames = %v, want %v", got, want)
	}
}

func TestDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("patient_id\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	d1, err := Digest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d1) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(d1))
	}

	d2, err := Digest(path)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Error("digest must be deterministic")
	}

	if err := os.WriteFile(path, []byte("patient_id\n2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d3, err := Digest(path)
	if err != nil {
		t.Fatal(err)
	}
	if d3 == d1 {
		t.Error("different contents must produce different digests")
	}
}

func TestDigest_MissingFile(t *testing.T) {
	if _, err := Digest(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing file")
	}
}
