// Package main provides tests for the LeapORM CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaporm/internal/cli"
	"github.com/leapstack-labs/leaporm/internal/cli/output"
	"github.com/leapstack-labs/leaporm/internal/cli/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(out, "LeapORM") {
		t.Errorf("version output should contain 'LeapORM', got: %s", out)
	}
	if !strings.Contains(out, "Drivers:  mysql, postgresql, sqlite") {
		t.Errorf("version output should list every linked driver, got: %s", out)
	}
}

func TestHelpCommand(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Errorf("help command error = %v", err)
	}
	for _, expected := range []string{"init", "sources", "ping", "version"} {
		if !strings.Contains(out, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, out)
		}
	}
}

func TestInitThenPing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leaporm.yaml")

	if _, err := run(t, "init", dir); err != nil {
		t.Fatalf("init error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("init did not write %s: %v", path, err)
	}

	out, err := run(t, "--config", path, "-o", "json", "ping")
	if err != nil {
		t.Fatalf("ping error = %v, output: %s", err, out)
	}
	var doc output.PingOutput
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("ping output is not JSON: %v\n%s", err, out)
	}
	if len(doc.Results) != 1 || !doc.Results[0].OK {
		t.Errorf("unexpected ping results: %+v", doc.Results)
	}
}

func TestSourcesCommand(t *testing.T) {
	path := testutil.SetupTestProject(t, "orders", "users")

	out, err := run(t, "--config", path, "sources")
	if err != nil {
		t.Fatalf("sources error = %v", err)
	}
	testutil.AssertNoANSI(t, out)
	for _, want := range []string{"orders", "users", "sqlite"} {
		if !strings.Contains(out, want) {
			t.Errorf("sources output should contain %q, got: %s", want, out)
		}
	}
}

func TestEnvOverride(t *testing.T) {
	path := testutil.SetupTestProject(t, "main")
	t.Setenv("LEAPORM_DATASOURCES__MAIN__DIALECT", "oracle")

	_, err := run(t, "--config", path, "sources")
	if err == nil || !strings.Contains(err.Error(), `unknown dialect "oracle"`) {
		t.Errorf("expected validation error from env override, got %v", err)
	}
}

func TestInvalidConfigReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaporm.yaml")
	if err := os.WriteFile(path, []byte("datasources:\n  a: {dialect: mysql}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "--config", path, "ping")
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	for _, want := range []string{"host is required", "database is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}
