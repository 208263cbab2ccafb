package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeCLIConfig lays out a config file, a database path, and a small
// Roon albums export under dir.
func writeCLIConfig(t *testing.T, dir string) string {
	t.Helper()

	albumsCSV := filepath.Join(dir, "albums.csv")
	rows := "Item Key,Album,Album Artist,Image Key,Tags\n" +
		"item-1,Harvest,Neil Young,img-1,\n" +
		"item-2,Tago Mago,Can,img-2,mylps\n"
	if err := os.WriteFile(albumsCSV, []byte(rows), 0o600); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
database:
  path: %s
logging:
  level: error
sync:
  lock_dir: %s
roon:
  albums_csv: %s
`, filepath.Join(dir, "catalog.db"), filepath.Join(dir, "locks"), albumsCSV)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCLIVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "milkcrate") {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestCLISyncRequiresSelection(t *testing.T) {
	configPath := writeCLIConfig(t, t.TempDir())
	_, err := runCLI(t, configPath, "sync")
	if err == nil || !strings.Contains(err.Error(), "--source") {
		t.Fatalf("expected flag guidance error, got %v", err)
	}
}

func TestCLISyncUnknownSource(t *testing.T) {
	configPath := writeCLIConfig(t, t.TempDir())
	_, err := runCLI(t, configPath, "sync", "--source", "tape_deck")
	if err == nil || !strings.Contains(err.Error(), "unknown source") {
		t.Fatalf("expected unknown source error, got %v", err)
	}
}

func TestCLISyncAndStatus(t *testing.T) {
	configPath := writeCLIConfig(t, t.TempDir())

	out, err := runCLI(t, configPath, "sync", "--source", "roon_albums")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out, "roon_albums") || !strings.Contains(out, "succeeded") {
		t.Fatalf("unexpected sync output: %q", out)
	}
	if !strings.Contains(out, "Live shows:") {
		t.Fatalf("expected live show rebuild summary, got %q", out)
	}

	out, err = runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "roon_albums") {
		t.Fatalf("status missing source row: %q", out)
	}
	if !strings.Contains(out, "Catalog: 2 digital albums") {
		t.Fatalf("expected catalog counts, got %q", out)
	}
}

func TestCLIStatusBeforeAnySync(t *testing.T) {
	configPath := writeCLIConfig(t, t.TempDir())
	out, err := runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No syncs have run yet") {
		t.Errorf("unexpected status output: %q", out)
	}
}

func TestCLIBackupLifecycle(t *testing.T) {
	configPath := writeCLIConfig(t, t.TempDir())

	out, err := runCLI(t, configPath, "backup", "create")
	if err != nil {
		t.Fatalf("backup create: %v", err)
	}
	if !strings.Contains(out, "Created milkcrate-") {
		t.Fatalf("unexpected create output: %q", out)
	}

	out, err = runCLI(t, configPath, "backup", "list")
	if err != nil {
		t.Fatalf("backup list: %v", err)
	}
	if !strings.Contains(out, "milkcrate-") {
		t.Fatalf("list missing snapshot: %q", out)
	}

	out, err = runCLI(t, configPath, "backup", "prune")
	if err != nil {
		t.Fatalf("backup prune: %v", err)
	}
	if !strings.Contains(out, "Pruned 0 snapshots") {
		t.Fatalf("unexpected prune output: %q", out)
	}
}
