package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "riskbook-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "riskbook")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/riskbook")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

func runRiskbook(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestInit_WritesConfigAndDatabase(t *testing.T) {
	dir := t.TempDir()
	out, err := runRiskbook(t, "init", dir)
	require.NoError(t, err, out)

	data, err := os.ReadFile(filepath.Join(dir, "riskbook.yaml"))
	require.NoError(t, err)
	contents := string(data)
	assert.Contains(t, contents, "engine: sqlite")
	assert.Contains(t, contents, "listen: :8080")
	assert.Contains(t, contents, "secret:")

	// Opening the store during init creates the database file.
	_, err = os.Stat(filepath.Join(dir, "riskbook.db"))
	require.NoError(t, err, "riskbook.db should exist")
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	out, err := runRiskbook(t, "init", dir)
	require.NoError(t, err, out)

	out, err = runRiskbook(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, out, "already exists")
}

func TestInit_CustomDSN(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "custom.db")
	out, err := runRiskbook(t, "init", dir, "--dsn", dbPath)
	require.NoError(t, err, out)

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

func TestInit_PostgresNeedsDSN(t *testing.T) {
	dir := t.TempDir()
	out, err := runRiskbook(t, "init", dir, "--engine", "postgres")
	require.Error(t, err)
	assert.Contains(t, out, "--dsn is required")
}
