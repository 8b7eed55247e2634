package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLedgerQueriesAreMarked(t *testing.T) {
	violations, err := lintTargets([]string{"../../sqlinline"})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s:%d %s", v.file, v.line, v.name)
	}
}

func TestLintFileFlagsUnmarkedQuery(t *testing.T) {
	dir := t.TempDir()
	src := "package q\n\nconst (\n\tQMarked = `--sql 38da48c0-fc88-47d8-b789-4d5641f6da0e\nselect 1`\n\tQBare = `select id from artifact_unlocks`\n\tLabel = \"unlock\"\n)\n\nconst QBadMarker = \"--sql nope\\ndelete from artifact_unlocks\"\n"
	path := filepath.Join(dir, "q.go")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	violations, err := lintFile(path)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %+v", violations)
	}
	if violations[0].name != "QBare" || violations[1].name != "QBadMarker" {
		t.Fatalf("unexpected names %q %q", violations[0].name, violations[1].name)
	}
	if violations[0].line != 6 {
		t.Fatalf("expected line 6, got %d", violations[0].line)
	}
}

func TestRunReportsViolations(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "q.go"), []byte("package q\n\nconst Q = `create table x (id int)`\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "(Q)") {
		t.Fatalf("unexpected output %q", stderr.String())
	}

	stderr.Reset()
	if code := run([]string{filepath.Join(dir, "missing")}, &stderr); code != 1 {
		t.Fatalf("expected exit 1 for missing target")
	}
}
