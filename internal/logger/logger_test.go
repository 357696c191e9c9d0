package logger

import (
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SetupLogger(Config{
		LogsDirectory: dir,
		LogFileFormat: "test_%s.log",
		TimeZone:      "UTC",
		Quiet:         true,
	}))
	t.Cleanup(func() { Close() })

	assert.Error(t, SetupLogger(Config{LogsDirectory: dir}), "second setup must fail")

	LogInfo("cart updated", Fields{"items": 2, "total": 1060})
	LogWarn("gallery %s unavailable", "backend")

	raw, err := os.ReadFile(GetLogFilePath())
	require.NoError(t, err)
	out := string(raw)

	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "cart updated items=2 total=1060")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "gallery backend unavailable")
	assert.Contains(t, out, "logger_test.go")
}

func TestSplitFieldsKeepsPositionalArgs(t *testing.T) {
	args, fields := splitFields([]interface{}{"a", map[string]interface{}{"b": 1, "a": 2}, 3})
	assert.Equal(t, []interface{}{"a", 3}, args)
	assert.Equal(t, "a=2 b=1", fields)
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", GetClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", " 192.168.1.1 , 10.0.0.1")
	assert.Equal(t, "192.168.1.1", strings.TrimSpace(GetClientIP(r)))
}
