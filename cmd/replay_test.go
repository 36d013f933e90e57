package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drivescore/internal/export"
	"drivescore/internal/score"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parkRun = `
profile: A
weights:
  园区: 1.0
actions:
  - scenario: 园区
    rating: 5
  - scenario: 园区
    rating: 5
  - scenario: 园区
    rating: 1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestReplay_PrintsSnapshot(t *testing.T) {
	script := writeFile(t, "run.yaml", parkRun)

	stdout, _, err := runRoot(t, "replay", script)
	require.NoError(t, err)

	var snap score.Snapshot
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	assert.InDelta(t, 82.0, snap.Final, 1e-9)
	assert.Equal(t, 70.0, snap.Scenario)
}

func TestReplay_ProfileOverride(t *testing.T) {
	script := writeFile(t, "run.yaml", parkRun)

	stdout, _, err := runRoot(t, "replay", "--profile", "B", script)
	require.NoError(t, err)

	var snap score.Snapshot
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	assert.Equal(t, 65.0, snap.Scenario, "profile B maps 5,5,1 to +5,+5,-5")
	assert.Equal(t, 0, snap.Entries, "profile B keeps no log")
}

func TestReplay_Verdicts(t *testing.T) {
	script := writeFile(t, "run.yaml", parkRun)
	rules := writeFile(t, "verdicts.yaml", `
- when: final >= 80.0
  then: 合格
`)

	stdout, _, err := runRoot(t, "replay", "--verdicts", rules, script)
	require.NoError(t, err)

	var snap score.Snapshot
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	assert.Equal(t, "合格", snap.Verdict)
}

func TestReplay_WritesCSV(t *testing.T) {
	script := writeFile(t, "run.yaml", parkRun)
	out := filepath.Join(t.TempDir(), "export.csv")

	_, _, err := runRoot(t, "replay", "--csv", out, script)
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimPrefix(string(content), export.BOM), "\r\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[3], `"综合场景","园区","评分1","-10",`))
}

func TestReplay_EmptyLogDeclinesCSV(t *testing.T) {
	script := writeFile(t, "run.yaml", "weights: {园区: 1.0}\nactions: []\n")
	out := filepath.Join(t.TempDir(), "export.csv")

	_, stderr, err := runRoot(t, "replay", "--csv", out, script)
	require.NoError(t, err)
	assert.Contains(t, stderr, score.EmptyLogMessage)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no file is written for an empty log")
}

func TestReplay_Errors(t *testing.T) {
	cases := map[string]string{
		"no weights":  "actions: []",
		"bad bucket":  "weights: {园区: 1.0}\nactions: [{scenario: 高速, rating: 3}]",
		"bad profile": "profile: Z\nweights: {园区: 1.0}",
		"bad action":  "weights: {园区: 1.0}\nactions: [{}]",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := runRoot(t, "replay", writeFile(t, "run.yaml", content))
			var ee *exitErr
			require.True(t, errors.As(err, &ee), "expected exit error, got %v", err)
			assert.Equal(t, 2, ee.code)
		})
	}
}

func TestReplay_ResetRequiresConfirmation(t *testing.T) {
	script := writeFile(t, "run.yaml", parkRun+"  - reset: true\n  - scenario: 园区\n    rating: 4\n")

	stdout, _, err := runRoot(t, "replay", script)
	var ee *exitErr
	require.True(t, errors.As(err, &ee), "expected exit error, got %v", err)
	assert.Equal(t, 2, ee.code)
	assert.Empty(t, stdout, "nothing is scored without confirmation")

	stdout, _, err = runRoot(t, "replay", "--yes", script)
	require.NoError(t, err)
	var snap score.Snapshot
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	assert.Equal(t, 65.0, snap.Scenario, "only the rating after the reset counts")
	assert.Equal(t, 1, snap.Entries)
}

func TestReplay_MissingScript(t *testing.T) {
	_, _, err := runRoot(t, "replay", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestServe_BadConfig(t *testing.T) {
	_, _, err := runRoot(t, "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	var ee *exitErr
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.code)
}
