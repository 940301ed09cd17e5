package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shiftbot/internal/production"
)

const planFile = "../../internal/ingest/testdata/plan.json"

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("database:\n  driver: sqlite\n  path: %s\nproduction:\n  timezone: UTC\n", filepath.Join(dir, "plan.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestImportLifecycle(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := runCLI(t, "--config", cfg, "import", "--file", planFile, "--date", "01.03.2024")
	require.NoError(t, err)
	assert.Contains(t, out, "for 2024-03-01: 2 orders, 3 bundles, 4 products")

	_, _, err = runCLI(t, "--config", cfg, "import", "--file", planFile, "--date", "2024-03-01")
	require.ErrorIs(t, err, production.ErrPlanExists)

	_, _, err = runCLI(t, "--config", cfg, "reset")
	require.Error(t, err)
	out, _, err = runCLI(t, "--config", cfg, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "removed")

	_, _, err = runCLI(t, "--config", cfg, "import", "--file", planFile, "--date", "2024-03-01")
	require.NoError(t, err)
}

func TestImportFlags(t *testing.T) {
	cfg := writeConfig(t)

	_, _, err := runCLI(t, "--config", cfg, "import")
	require.ErrorContains(t, err, "ingest.url")
	_, _, err = runCLI(t, "--config", cfg, "import", "--file", planFile, "--url", "http://localhost")
	require.ErrorContains(t, err, "mutually exclusive")
	_, _, err = runCLI(t, "--config", cfg, "import", "--file", planFile, "--date", "March")
	require.ErrorContains(t, err, "invalid --date")
}

func TestValidate(t *testing.T) {
	out, _, err := runCLI(t, "validate", "--file", planFile)
	require.NoError(t, err)
	assert.Equal(t, "ok: 2 orders\n", out)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"id":"o1","name":"x"}]`), 0o600))
	_, errOut, err := runCLI(t, "validate", "--file", bad)
	require.Error(t, err)
	assert.Contains(t, errOut, "orders[0].productionLineId: required")
	assert.Contains(t, errOut, "orders[0].bundles: required")
}

func TestAccount(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := runCLI(t, "--config", cfg, "account", "--phone", "+7 900 111 22 33")
	require.NoError(t, err)
	assert.Equal(t, "created account 79001112233 (operator)\n", out)

	out, _, err = runCLI(t, "--config", cfg, "account", "--phone", "79001112233", "--role", "admin")
	require.NoError(t, err)
	assert.Equal(t, "updated account 79001112233 (admin)\n", out)

	_, _, err = runCLI(t, "--config", cfg, "account", "--phone", "79001112233", "--role", "boss")
	require.Error(t, err)
}
