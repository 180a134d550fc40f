package main

import (
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/storagerpc/pkg/policy/manager"
)

const notesPolicy = `com.example.Note, true, true
com.example.Tag, true, true
`

const tagsPolicy = `com.example.Tag, true, true
`

// writeModule writes a policy file for namespace under base.
func writeModule(t *testing.T, base, namespace, content string) {
	t.Helper()
	dir := filepath.Join(base, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, manager.PolicyFileName+manager.PolicyFileExtension)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeConfig writes a config file and points --config at it for the test.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storagerpc.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })
	return path
}

// twoModuleConfig returns a config for app1 and app2 under base. app1 is
// loaded first and so becomes the default.
func twoModuleConfig(base string) string {
	return `
policy:
  base_dir: ` + base + `
  modules:
    - name: app1
    - name: app2
telemetry:
  logging:
    level: error
`
}
