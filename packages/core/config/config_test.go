package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	assert.Equal(t, "conf/test_cases.json", c.File)
	assert.Equal(t, 0, c.Timeout)
	assert.True(t, c.GetFollowRedirects())
	assert.True(t, c.GetValidateSSL())
	assert.False(t, c.GetVerbose())
	assert.Equal(t, "console", c.Output)
	assert.True(t, c.IsDefault())
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	c, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, c.IsDefault())
}

func TestFindAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	content := `{
  "host": "api.local",
  "timeout": 1500,
  "validateSSL": false,
  "headers": {"X-Env": "ci"},
  "rate": 10,
  "waitFor": {"path": "/health", "status": 204, "timeout": 3000, "interval": 100},
  "history": "runs.db",
  "envPrefix": "HITCHAIN_VAR_"
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitchainrc"), []byte(content), 0644))

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "api.local", c.Host)
	assert.Equal(t, 1500, c.Timeout)
	assert.False(t, c.GetValidateSSL())
	assert.True(t, c.GetFollowRedirects())
	assert.Equal(t, "ci", c.Headers["X-Env"])
	assert.Equal(t, "runs.db", c.History)
	assert.Equal(t, "conf/test_cases.json", c.File)
	assert.False(t, c.IsDefault())

	rc := c.RunnerConfig()
	assert.Equal(t, 1500*time.Millisecond, rc.Timeout)
	assert.True(t, rc.Insecure)
	assert.Equal(t, 10.0, rc.Rate)
	require.NotNil(t, rc.WaitFor)
	assert.Equal(t, "/health", rc.WaitFor.Path)
	assert.Equal(t, 204, rc.WaitFor.Status)
	assert.Equal(t, 3*time.Second, rc.WaitFor.Timeout)
	assert.Equal(t, 100*time.Millisecond, rc.WaitFor.Interval)
}

func TestFindAndLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitchain.config.json"), []byte(`{"host": "first"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitchainrc"), []byte(`{"host": "second"}`), 0644))

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "first", c.Host)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad json", `{"host": `},
		{"negative timeout", `{"timeout": -1}`},
		{"negative rate", `{"rate": -2}`},
		{"bad wait status", `{"waitFor": {"path": "/", "status": 9}}`},
		{"proxy without host", `{"proxy": "localhost-3128"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "cfg.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1", "B": "2"}

	merged := base.Merge(&Config{
		Host:            "override",
		FollowRedirects: BoolPtr(false),
		Headers:         map[string]string{"B": "3"},
	})

	assert.Equal(t, "override", merged.Host)
	assert.False(t, merged.GetFollowRedirects())
	assert.True(t, merged.GetValidateSSL())
	assert.Equal(t, map[string]string{"A": "1", "B": "3"}, merged.Headers)
	assert.Equal(t, "2", base.Headers["B"])

	assert.Same(t, base, base.Merge(nil))
}

func TestRunnerConfig_WaitForNeedsPath(t *testing.T) {
	c := DefaultConfig()
	c.WaitFor = &WaitForConfig{Status: 200}
	assert.Nil(t, c.RunnerConfig().WaitFor)
	assert.Equal(t, time.Duration(0), c.RunnerConfig().Timeout)
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hitchain.config.json")
	c := DefaultConfig()
	c.Host = "saved"
	require.NoError(t, c.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Host)
}
