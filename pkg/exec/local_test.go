package exec

import (
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesOutput(t *testing.T) {
	e := NewLocalExec()
	result, err := e.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
	assert.Zero(t, result.ExitCode)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	e := NewLocalExec()
	result, err := e.Run(context.Background(), []string{"sh", "-c", "exit 3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestRun_EmptyCommand(t *testing.T) {
	e := NewLocalExec()
	_, err := e.Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestRun_MissingWorkDir(t *testing.T) {
	e := NewLocalExec()
	_, err := e.Run(context.Background(), []string{"true"}, &Opts{WorkDir: "/no/such/dir"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "working directory does not exist")
}

func TestRun_WorkDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	e := NewLocalExec()
	result, err := e.Run(context.Background(), []string{"sh", "-c", "pwd; printf %s \"$RELAY_TEST_VAR\""},
		&Opts{WorkDir: dir, Env: []string{"RELAY_TEST_VAR=hello"}})
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, dir)
	assert.Contains(t, result.Stdout, "hello")
}

func TestRun_Timeout(t *testing.T) {
	e := NewLocalExec()
	result, err := e.Run(context.Background(), []string{"sleep", "5"}, &Opts{Timeout: 100 * time.Millisecond})
	if err == nil {
		assert.NotZero(t, result.ExitCode, "killed process reports a non-zero exit")
	}
}

func TestStart_StreamsStdout(t *testing.T) {
	e := NewLocalExec()
	proc, err := e.Start(context.Background(), []string{"sh", "-c", "echo line1; echo line2"}, nil)
	require.NoError(t, err)

	scanner := bufio.NewScanner(proc.Stdout)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, proc.Wait())
	assert.Equal(t, []string{"line1", "line2"}, lines)
}

func TestName(t *testing.T) {
	assert.Equal(t, "local", NewLocalExec().Name())
}
