package main

import (
	"fmt"
	"strings"
	"testing"

	"nemfreview/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("API", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "API:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("API", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "Data directory", Passed: true, Detail: "/data (read/write ok)"},
		{Name: "Catalog all_names.json", Optional: true, Detail: "missing"},
		{Name: "Images directory", Detail: "does not exist"},
	}, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, label := range []string{"[OK]", "[WARN]", "[ERROR]"} {
		if !strings.Contains(lines[i], label) {
			t.Fatalf("line %d: expected %s in %q", i, label, lines[i])
		}
	}
}

func TestStatusWithoutRunningCoordinator(t *testing.T) {
	env := setupCLITestEnv(t)
	importFixture(t, env)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Coordinator ==")
	requireContains(t, out, "[WARN] not reachable")
	requireContains(t, out, "Integrity check:")
	requireContains(t, out, "Data directory:")
	requireContains(t, out, "Remaining")
}
