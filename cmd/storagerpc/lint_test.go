package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func setLintFlags(t *testing.T, files []string, dir, format string) {
	t.Helper()
	lintFlags.files = files
	lintFlags.dir = dir
	lintFlags.format = format
	t.Cleanup(func() {
		lintFlags.files = nil
		lintFlags.dir = ""
		lintFlags.format = "text"
	})
}

func TestLintPoliciesValidFile(t *testing.T) {
	setLintFlags(t, []string{"testdata/valid.gwt.rpc"}, "", "text")

	var out bytes.Buffer
	if err := lintPolicies(&out); err != nil {
		t.Fatalf("lintPolicies() with valid file returned error: %v", err)
	}
	if !strings.Contains(out.String(), "✓ testdata/valid.gwt.rpc (3 types)") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestLintPoliciesInvalidFile(t *testing.T) {
	setLintFlags(t, []string{"testdata/invalid.gwt.rpc"}, "", "text")

	var out bytes.Buffer
	if err := lintPolicies(&out); err == nil {
		t.Error("lintPolicies() with invalid file should return error")
	}
	if !strings.Contains(out.String(), "testdata/invalid.gwt.rpc:2:") {
		t.Errorf("output does not report the failing line:\n%s", out.String())
	}
}

func TestLintPoliciesNonexistentFile(t *testing.T) {
	setLintFlags(t, []string{"testdata/nonexistent.gwt.rpc"}, "", "text")

	if err := lintPolicies(&bytes.Buffer{}); err == nil {
		t.Error("lintPolicies() with nonexistent file should return error")
	}
}

func TestLintPoliciesNoFileOrDir(t *testing.T) {
	setLintFlags(t, nil, "", "text")

	if err := lintPolicies(&bytes.Buffer{}); err == nil {
		t.Error("lintPolicies() without file or dir should return error")
	}
}

func TestLintPoliciesDir(t *testing.T) {
	base := t.TempDir()
	writeModule(t, base, "app1", notesPolicy)
	writeModule(t, base, "app2", "broken line\n")
	setLintFlags(t, nil, base, "json")

	var out bytes.Buffer
	if err := lintPolicies(&out); err == nil {
		t.Error("lintPolicies() over a dir with a broken file should return error")
	}

	var report LintReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	valid := 0
	for _, r := range report.Results {
		if r.Valid {
			valid++
		} else if len(r.Errors) == 0 || r.Errors[0].Line != 1 {
			t.Errorf("invalid result %+v lacks a line number", r)
		}
	}
	if valid != 1 {
		t.Errorf("valid files = %d, want 1", valid)
	}
}

func TestLintPoliciesBadFormat(t *testing.T) {
	setLintFlags(t, []string{"testdata/valid.gwt.rpc"}, "", "xml")

	if err := lintPolicies(&bytes.Buffer{}); err == nil {
		t.Error("lintPolicies() with unknown format should return error")
	}
}
