package logging_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/expenso/internal/logging"
)

func TestParseLevel(t *testing.T) {
	type testCase struct {
		name    string
		in      string
		want    slog.Level
		wantErr bool
	}

	tests := []testCase{
		{name: "Empty", in: "", want: slog.LevelInfo},
		{name: "Debug", in: "debug", want: slog.LevelDebug},
		{name: "UpperWarn", in: "WARN", want: slog.LevelWarn},
		{name: "Unknown", in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenso.log")

	logger, closer, err := logging.New(logging.Options{Level: "info", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Info("hello", "component", "test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestNew_UnknownFormat(t *testing.T) {
	_, _, err := logging.New(logging.Options{Format: "xml"})
	assert.Error(t, err)
}
