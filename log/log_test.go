package log

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger() {
	baseLogger = zerolog.New(os.Stderr)
	baseLevel = zerolog.InfoLevel
	viperConf = viper.New()
	isInit = false
}

func createCleanLogger(t *testing.T, configText string, moduleName string) *Logger {
	resetLogger()

	path := filepath.Join(t.TempDir(), "safelog.toml")
	require.NoError(t, os.WriteFile(path, []byte(configText), 0644))
	t.Setenv(confEnvPrefix+"_"+confFilePathKey, path)

	return NewLogger(moduleName)
}

func TestDefaultConfig(t *testing.T) {
	resetLogger()
	logger := Default()
	assert.Equal(t, "info", logger.Level())
	assert.Equal(t, "", logger.Name())
}

func TestBasicLevel(t *testing.T) {
	logger := createCleanLogger(t, `
	level = "error"
	`, "verifier")

	assert.Equal(t, "error", logger.Level())
	assert.Equal(t, "verifier", logger.Name())
}

func TestSubLevel(t *testing.T) {
	logger := createCleanLogger(t, `
	level = "error"

	[aggregator]
	level = "warn"
	`, "aggregator")

	assert.Equal(t, "error", Default().Level())
	assert.Equal(t, "warn", logger.Level())
}

func TestIsDebugEnabled(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"warn", false},
		{"info", false},
		{"debug", true},
		{"trace", true},
	}
	for _, test := range tests {
		t.Run(test.level, func(t *testing.T) {
			logger := createCleanLogger(t, fmt.Sprintf("level = %q", test.level), "m")
			assert.Equal(t, test.want, logger.IsDebugEnabled())
		})
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	assert.False(t, logger.IsDebugEnabled())
	logger.Info().Msg("discarded")
}

func TestGetOutput(t *testing.T) {
	custom := filepath.ToSlash(filepath.Join(t.TempDir(), "out.log"))

	tests := []struct {
		name    string
		arg     string
		wantOut *os.File
		wantErr bool
	}{
		{"Empty", "", nil, true},
		{"Stdout", "stdout", os.Stdout, false},
		{"Stderr", "stderr", os.Stderr, false},
		{"CustomFile", custom, nil, false},
		{"CantCreate", "no/where/dir/nofile.log", nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := getOutput(test.arg)
			if test.wantOut != nil {
				assert.Equal(t, test.wantOut, got)
			}
			assert.Equal(t, test.wantErr, err != nil)
		})
	}
}

func TestFileOutByModule(t *testing.T) {
	dir := t.TempDir()
	baseName := filepath.ToSlash(filepath.Join(dir, "base.log"))
	m1Name := filepath.ToSlash(filepath.Join(dir, "m1.log"))
	m2Name := filepath.ToSlash(filepath.Join(dir, "m2.log"))

	configStr := fmt.Sprintf(`
out = "%s"
formatter = "json"
level = "info"

[m1]
out = "%s"

[m2]
out = "%s"`, baseName, m1Name, m2Name)
	createCleanLogger(t, configStr, "m1")

	NewLogger("m1").Info().Msg("sub1 write")
	NewLogger("m1").Info().Msg("sub1_1 write")
	NewLogger("m2").Info().Msg("sub2 write")
	NewLogger("other").Info().Msg("other write")

	baseContent, err := os.ReadFile(baseName)
	require.NoError(t, err)
	assert.Contains(t, string(baseContent), "other write")

	m1Content, err := os.ReadFile(m1Name)
	require.NoError(t, err)
	assert.Contains(t, string(m1Content), "sub1 write")
	assert.Contains(t, string(m1Content), "sub1_1 write")

	m2Content, err := os.ReadFile(m2Name)
	require.NoError(t, err)
	assert.Contains(t, string(m2Content), "sub2 write")
}

func TestLazyEval(t *testing.T) {
	called := 0
	lazy := DoLazyEval(func() string {
		called++
		return "value"
	})
	assert.Equal(t, 0, called)
	assert.Equal(t, "value", lazy.String())
	assert.Equal(t, 1, called)
}
