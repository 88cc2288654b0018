package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o640); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCollectInputsDefaultsToPDFDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.pdf"))
	touch(t, filepath.Join(dir, "a.pdf"))
	touch(t, filepath.Join(dir, "notes.txt"))

	got, err := CollectInputs(nil, dir)
	if err != nil {
		t.Fatalf("CollectInputs: %v", err)
	}
	want := []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.pdf")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectInputsExpandsPatternsAndSkipsNonPDF(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "report.pdf"))
	touch(t, filepath.Join(dir, "scan.jpeg"))

	got, err := CollectInputs([]string{
		filepath.Join(dir, "*"),
		filepath.Join(dir, "report.pdf"), // duplicate, deduplicated
	}, "unused")
	if err != nil {
		t.Fatalf("CollectInputs: %v", err)
	}
	want := []string{filepath.Join(dir, "report.pdf")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectInputsErrorsWhenNothingMatches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "notes.txt"))

	if _, err := CollectInputs([]string{filepath.Join(dir, "*.pdf")}, "unused"); err == nil {
		t.Fatal("expected error when no PDFs match")
	}
	if _, err := CollectInputs(nil, filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing default dir")
	}
}
