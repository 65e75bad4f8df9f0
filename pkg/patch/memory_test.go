package patch

import (
	"context"
	"errors"
	"testing"
)

func TestSplitMemoryWritesOutputs(t *testing.T) {
	t.Parallel()

	initial := map[string]string{"repo.diff": sampleDiff}
	updated, results, err := SplitMemoryText(context.Background(), defaultJob(), initial)
	if err != nil {
		t.Fatalf("SplitMemoryText returned error: %v", err)
	}
	if got, want := len(results), 2; got != want {
		t.Fatalf("unexpected result count: got %d want %d", got, want)
	}
	if results[0].Status != "A" || results[0].Path != "our_patch.diff" {
		t.Fatalf("unexpected result entry: %+v", results[0])
	}
	if got, want := updated["our_patch.diff"], "diff --git a b\nindex 123..456\n@@ -1,3 +1,3 @@\nline A\n"; got != want {
		t.Fatalf("ours mismatch: got %q want %q", got, want)
	}
	if got, want := updated["existing_patch.diff"], "diff --git a b\nindex 123..456\n@@ -583,2 +583,2 @@\nline B\n"; got != want {
		t.Fatalf("existing mismatch: got %q want %q", got, want)
	}

	// Ensure the original map was not mutated.
	if len(initial) != 1 {
		t.Fatalf("initial map mutated: %#v", initial)
	}
}

func TestSplitMemoryOverwritesExisting(t *testing.T) {
	t.Parallel()

	initial := map[string]string{
		"repo.diff":           sampleDiff,
		"existing_patch.diff": "stale",
	}
	updated, results, err := SplitMemoryText(context.Background(), defaultJob(), initial)
	if err != nil {
		t.Fatalf("SplitMemoryText returned error: %v", err)
	}
	if results[1].Status != "M" {
		t.Fatalf("expected existing output to be reported as modified: %+v", results)
	}
	if updated["existing_patch.diff"] == "stale" {
		t.Fatalf("existing output was not replaced")
	}
	if initial["existing_patch.diff"] != "stale" {
		t.Fatalf("initial map mutated")
	}
}

func TestSplitMemoryFailureReturnsNoSnapshot(t *testing.T) {
	t.Parallel()

	job := defaultJob()
	job.Marker = "@@ -42"
	updated, results, err := SplitMemoryText(context.Background(), job, map[string]string{"repo.diff": sampleDiff})
	if !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("expected ErrMarkerNotFound, got %v", err)
	}
	if updated != nil || results != nil {
		t.Fatalf("expected no output on failure, got %#v %#v", updated, results)
	}
}

func TestSplitMemoryMissingInput(t *testing.T) {
	t.Parallel()

	_, _, err := SplitMemory(context.Background(), defaultJob(), map[string][]byte{})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestSplitMemoryReadsBZhPrefixedTextAsText(t *testing.T) {
	t.Parallel()

	text := "BZh header line\nindex 1..2\nkeep\n@@ -583,1 +583,1 @@\ntail\n"
	updated, _, err := SplitMemoryText(context.Background(), defaultJob(), map[string]string{"repo.diff": text})
	if err != nil {
		t.Fatalf("SplitMemoryText returned error: %v", err)
	}
	if got, want := updated["our_patch.diff"], "BZh header line\nindex 1..2\nkeep\n"; got != want {
		t.Fatalf("ours mismatch: got %q want %q", got, want)
	}
	if got, want := updated["existing_patch.diff"], "BZh header line\nindex 1..2\n@@ -583,1 +583,1 @@\ntail\n"; got != want {
		t.Fatalf("existing mismatch: got %q want %q", got, want)
	}
}

func TestSplitMemoryRejectsOutputsNamingOneFile(t *testing.T) {
	t.Parallel()

	job := defaultJob()
	job.ExistingPath = "sub/../our_patch.diff"
	_, _, err := SplitMemoryText(context.Background(), job, map[string]string{"repo.diff": sampleDiff})
	if !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob, got %v", err)
	}
}
