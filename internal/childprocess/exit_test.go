package childprocess

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitStatus(t *testing.T) {
	ok := ExitStatus{Code: 0}
	require.True(t, ok.Success())
	require.False(t, ok.Signaled())
	require.Empty(t, ok.SignalName())
	require.Equal(t, "exit code 0", ok.String())

	failed := ExitStatus{Code: 2}
	require.False(t, failed.Success())
	require.Equal(t, "exit code 2", failed.String())

	killed := ExitStatus{Code: -1, Signal: syscall.SIGTERM}
	require.True(t, killed.Signaled())
	require.False(t, killed.Success())
	require.Equal(t, "SIGTERM", killed.SignalName())
	require.Equal(t, "signal SIGTERM", killed.String())
}

func TestExitStatusOf_Nil(t *testing.T) {
	require.Equal(t, ExitStatus{Code: -1}, exitStatusOf(nil))
}

func TestSignalByName(t *testing.T) {
	tests := []struct {
		in   string
		want syscall.Signal
	}{
		{"", 0},
		{"SIGTERM", syscall.SIGTERM},
		{"TERM", syscall.SIGTERM},
		{"SIGKILL", syscall.SIGKILL},
		{"INT", syscall.SIGINT},
		{"9", syscall.SIGKILL},
	}
	for _, tt := range tests {
		got, err := SignalByName(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"SIGBOGUS", "-3", "0", "term"} {
		_, err := SignalByName(bad)
		require.Error(t, err, bad)
	}
}
