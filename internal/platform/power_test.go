package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPowerOptimizationDisabled(t *testing.T) {
	installStub(t, "powerprofilesctl", `echo balanced`)
	disabled, err := Power{}.OptimizationDisabled(context.Background())
	require.NoError(t, err)
	require.True(t, disabled)

	installStub(t, "powerprofilesctl", `echo power-saver`)
	disabled, err = Power{}.OptimizationDisabled(context.Background())
	require.NoError(t, err)
	require.False(t, disabled)
}

func TestPowerRequestLeavesPowerSaver(t *testing.T) {
	argsFile := installStub(t, "powerprofilesctl", `
if [[ "${1:-}" == "get" ]]; then
  echo power-saver
fi
`)
	require.NoError(t, Power{}.RequestIgnoreOptimization(context.Background()))
	require.Equal(t, []string{"get", "set balanced"}, stubCalls(t, argsFile))
}

func TestPowerRequestKeepsOtherProfiles(t *testing.T) {
	argsFile := installStub(t, "powerprofilesctl", `echo performance`)
	require.NoError(t, Power{}.RequestIgnoreOptimization(context.Background()))
	require.Equal(t, []string{"get"}, stubCalls(t, argsFile))
}

func TestPowerReportsDaemonFailure(t *testing.T) {
	installStub(t, "powerprofilesctl", `echo 'daemon not running' >&2; exit 1`)
	_, err := Power{}.OptimizationDisabled(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "daemon not running")
}
