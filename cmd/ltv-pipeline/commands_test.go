package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInput = `[
{"type":"CUSTOMER","verb":"NEW","key":"96f55c7d8f42","event_time":"2017-01-06T12:46:46.384Z","last_name":"Smith","adr_city":"Middletown","adr_state":"AK"},
{"type":"SITE_VISIT","verb":"NEW","key":"ac05e815502f","event_time":"2017-01-06T12:45:52.041Z","customer_id":"96f55c7d8f42","tags":[{"some key":"some value"}]},
{"type":"SITE_VISIT","verb":"NEW","key":"ac05e815503f","event_time":"2017-01-06T12:45:52.041Z","customer_id":"96f55c7d8f42","tags":[]},
{"type":"SITE_VISIT","verb":"NEW","key":"ac05e815504f","event_time":"2017-01-27T12:45:52.041Z","customer_id":"96f55c7d8f42","tags":[]},
{"type":"IMAGE","verb":"UPLOAD","key":"d8ede43b1d9f","event_time":"2017-01-06T12:47:12.344Z","customer_id":"96f55c7d8f42","camera_make":"Canon","camera_model":"EOS 80D"},
{"type":"ORDER","verb":"NEW","key":"68d84e5d1a43","event_time":"2017-01-06T12:55:55.555Z","customer_id":"96f55c7d8f42","total_amount":"12.34 USD"}
]`

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	output := filepath.Join(dir, "out", "output.txt")
	require.NoError(t, os.WriteFile(input, []byte(sampleInput), 0o644))

	err := execute(t, "run", "--store", "memory", "--input", input, "--output", output, "--top-n", "2", "--log-level", "error")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	// Three visits over three weeks; 12.34 over three visits truncates to 4.
	assert.JSONEq(t, `[["96f55c7d8f42", 2080]]`, string(data))
}

func TestRunCommand_MissingInput(t *testing.T) {
	dir := t.TempDir()
	err := execute(t, "run", "--store", "memory", "--input", filepath.Join(dir, "absent.txt"),
		"--output", filepath.Join(dir, "output.txt"), "--log-level", "error")
	assert.ErrorContains(t, err, "open input")
}

func TestTopCommand_SQLiteFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	db := filepath.Join(dir, "ltv.db")
	require.NoError(t, os.WriteFile(input, []byte(sampleInput), 0o644))

	common := []string{"--store", "sqlite", "--sqlite-path", db, "--log-level", "error"}
	require.NoError(t, execute(t, append([]string{"run", "--input", input, "--output", filepath.Join(dir, "run.txt")}, common...)...))

	topOut := filepath.Join(dir, "top.txt")
	require.NoError(t, execute(t, append([]string{"top", "--output", topOut, "--top-n", "5"}, common...)...))

	data, err := os.ReadFile(topOut)
	require.NoError(t, err)
	assert.JSONEq(t, `[["96f55c7d8f42", 2080]]`, string(data))
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	err := execute(t, "run", "--store", "oracle")
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestRunCommand_BadInputDoesNotResetStore(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(input, []byte(sampleInput), 0o644))

	common := []string{"--store", "sqlite", "--sqlite-path", filepath.Join(dir, "ltv.db"), "--log-level", "error"}
	require.NoError(t, execute(t, append([]string{"run", "--input", input, "--output", filepath.Join(dir, "run.txt")}, common...)...))

	err := execute(t, append([]string{"run", "--reset", "--input", filepath.Join(dir, "typo.txt"), "--output", filepath.Join(dir, "run.txt")}, common...)...)
	require.ErrorContains(t, err, "open input")

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not":"an array"}`), 0o644))
	err = execute(t, append([]string{"run", "--reset", "--input", bad, "--output", filepath.Join(dir, "run.txt")}, common...)...)
	require.ErrorContains(t, err, "parse input")

	topOut := filepath.Join(dir, "top.txt")
	require.NoError(t, execute(t, append([]string{"top", "--output", topOut}, common...)...))
	data, err := os.ReadFile(topOut)
	require.NoError(t, err)
	assert.JSONEq(t, `[["96f55c7d8f42", 2080]]`, string(data))
}

func TestTopCommand_RequiresPersistentStore(t *testing.T) {
	out := filepath.Join(t.TempDir(), "top.txt")

	err := execute(t, "top", "--output", out, "--log-level", "error")
	assert.ErrorContains(t, err, "persistent store")

	err = execute(t, "top", "--store", "memory", "--output", out, "--log-level", "error")
	assert.ErrorContains(t, err, "persistent store")

	assert.NoFileExists(t, out)
}
