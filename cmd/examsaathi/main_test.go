package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestResultCommand(t *testing.T) {
	out := execute(t, "", "result", "--exam", "bitsat", "--score", "3", "--total", "9")
	assert.Contains(t, out, "BITSAT: Score: 3/9 (33.3%)")
	assert.Contains(t, out, "/mock/result?exam=bitsat&score=3&total=9")
}

func TestPrefsCommandPersists(t *testing.T) {
	db := filepath.Join(t.TempDir(), "prefs.db")

	out := execute(t, "", "prefs", "--db", db, "--class", "11", "--exams", "bitsat,cbse")
	assert.Contains(t, out, "Class: 11")
	assert.Contains(t, out, "Preferred exams: bitsat, cbse")

	out = execute(t, "", "prefs", "--db", db)
	assert.Contains(t, out, "Class: 11")
	assert.Contains(t, out, "Preferred exams: bitsat, cbse")
}

func TestPracticeCommandSubmits(t *testing.T) {
	db := filepath.Join(t.TempDir(), "practice.db")

	out := execute(t, "s\n", "practice", "--db", db, "--scope", "math", "--shuffle=false")
	assert.Contains(t, out, "Q 1/3")
	assert.Contains(t, out, "Submitted.")
	assert.Contains(t, out, "Score: 0/3")
}

func TestMockCommandQuit(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mock.db")

	out := execute(t, "q\n", "mock", "--db", db, "--duration", "90", "--sections", "physics")
	assert.Contains(t, out, "Q 1/3")
	assert.NotContains(t, out, "Submitted.")
}
