package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/ksred/klear-profitshare/internal/jobs"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	body := fmt.Sprintf(`
database:
  driver: sqlite
  dsn: "%s"
provider:
  base_url: http://127.0.0.1:1
jobs:
  max_retry: 4
log:
  level: error
  pretty: false
`, dsn)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRetryCommandPrintsReport(t *testing.T) {
	out, err := execute(t, "retry", "--config", writeConfig(t), "--dry-run", "--merchant", "1900000100")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}

	var report jobs.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report %q: %v", out, err)
	}
	if !report.DryRun || report.Total != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestSyncAndUnfreezeCommands(t *testing.T) {
	for _, name := range []string{"sync", "unfreeze"} {
		if _, err := execute(t, name, "--config", writeConfig(t)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}

func TestCommandRejectsNegativeFlags(t *testing.T) {
	if _, err := execute(t, "retry", "--config", writeConfig(t), "--max-retry", "-1"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCommandMissingConfig(t *testing.T) {
	if _, err := execute(t, "retry", "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected config error")
	}
}
