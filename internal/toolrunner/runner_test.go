package toolrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunOK(t *testing.T) {
	res := Run(context.Background(), "true", nil, AllowZeroAndOne)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunFindingsExitCode(t *testing.T) {
	res := Run(context.Background(), "sh", []string{"-c", "exit 1"}, AllowZeroAndOne)
	assert.Equal(t, OutcomeFindings, res.Outcome)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRunErrorExitCode(t *testing.T) {
	res := Run(context.Background(), "sh", []string{"-c", "exit 2"}, AllowZeroAndOne)
	assert.Equal(t, OutcomeError, res.Outcome)
}

func TestRunMissingTool(t *testing.T) {
	res := Run(context.Background(), "definitely-not-a-real-binary-xyz", nil, AllowZeroAndOne)
	assert.Equal(t, OutcomeMissingTool, res.Outcome)
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := Run(ctx, "sh", []string{"-c", "sleep 10"}, AllowZeroAndOne)
	elapsed := time.Since(start)

	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Less(t, elapsed, 6*time.Second)
}

func TestAllowAtMostOne(t *testing.T) {
	assert.True(t, AllowAtMostOne(0))
	assert.True(t, AllowAtMostOne(1))
	assert.False(t, AllowAtMostOne(2))
}

func TestAllowOnlyZero(t *testing.T) {
	assert.True(t, AllowOnlyZero(0))
	assert.False(t, AllowOnlyZero(1))
}
