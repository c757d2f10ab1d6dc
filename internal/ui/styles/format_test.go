package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxWidth int
		expected string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"truncated", `{"cmd":"ping","data":1}`, 10, `{"cmd":...`},
		{"tiny width", "hello", 2, ".."},
		{"zero width", "hello", 0, ""},
		{"wide runes", "日本語テキスト", 7, "日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, TruncateString(tt.input, tt.maxWidth))
		})
	}
}

func TestStatusLine_Plain(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	got := StatusLine("exited", SuccessStyle, "code", "0", "pid", "42")
	require.Equal(t, "exited       code=0 pid=42", got)
}

func TestStatusLine_DropsDanglingKey(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	got := StatusLine("disconnected", WarningStyle, "reason")
	require.Equal(t, "disconnected", got)
}
