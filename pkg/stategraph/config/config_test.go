package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_NilMap verifies a nil map yields a usable empty config.
func TestNew_NilMap(t *testing.T) {
	c := New(nil)
	assert.False(t, c.Has("anything"))
	assert.Equal(t, "fallback", c.String("anything", "fallback"))
}

// TestConfig_Accessors covers the typed accessors with defaults.
func TestConfig_Accessors(t *testing.T) {
	c := New(map[string]any{
		"name":    "planner",
		"limit":   25,
		"ratio":   0.7,
		"enabled": true,
		"wrong":   []int{1},
	})

	assert.Equal(t, "planner", c.String("name", ""))
	assert.Equal(t, 25, c.Int("limit", 0))
	assert.Equal(t, 0.7, c.Float("ratio", 0))
	assert.True(t, c.Bool("enabled", false))

	// Missing and mistyped keys fall back to defaults.
	assert.Equal(t, "d", c.String("missing", "d"))
	assert.Equal(t, 9, c.Int("wrong", 9))
	assert.False(t, c.Bool("wrong", false))
}

// TestConfig_Int_JSONNumbers verifies float64 (JSON's number shape) converts.
func TestConfig_Int_JSONNumbers(t *testing.T) {
	c := New(map[string]any{"n": float64(12)})
	assert.Equal(t, 12, c.Int("n", 0))
}

// TestConfig_Duration covers every accepted duration shape.
func TestConfig_Duration(t *testing.T) {
	testCases := []struct {
		name  string
		value any
		want  time.Duration
	}{
		{"string", "1500ms", 1500 * time.Millisecond},
		{"int seconds", 2, 2 * time.Second},
		{"float seconds", 0.5, 500 * time.Millisecond},
		{"duration", 3 * time.Second, 3 * time.Second},
		{"bad string", "soon", time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(map[string]any{"timeout": tc.value})
			assert.Equal(t, tc.want, c.Duration("timeout", time.Minute))
		})
	}
}

// TestConfig_Sub verifies nested sections, including the map[any]any
// shape older YAML decoders produce.
func TestConfig_Sub(t *testing.T) {
	c := New(map[string]any{
		"retry":  map[string]any{"attempts": 3},
		"legacy": map[any]any{"attempts": 5},
		"scalar": "not a map",
	})

	assert.Equal(t, 3, c.Sub("retry").Int("attempts", 0))
	assert.Equal(t, 5, c.Sub("legacy").Int("attempts", 0))
	assert.Equal(t, 0, c.Sub("scalar").Int("attempts", 0))
	assert.Equal(t, 0, c.Sub("missing").Int("attempts", 0))
}

// TestFromYAML verifies YAML parsing.
func TestFromYAML(t *testing.T) {
	c, err := FromYAML([]byte("max_iterations: 10\nnode_timeout: 5s\nlast_write_wins: true\n"))
	require.NoError(t, err)

	assert.Equal(t, 10, c.Int("max_iterations", 0))
	assert.Equal(t, 5*time.Second, c.Duration("node_timeout", 0))
	assert.True(t, c.Bool("last_write_wins", false))
}

// TestFromJSON verifies JSON parsing.
func TestFromJSON(t *testing.T) {
	c, err := FromJSON([]byte(`{"max_iterations": 30, "retry_attempts": 4}`))
	require.NoError(t, err)
	assert.Equal(t, 30, c.Int("max_iterations", 0))
	assert.Equal(t, 4, c.Int("retry_attempts", 0))
}

// TestFromFile verifies extension detection and error paths.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("max_iterations: 7\n"), 0o644))

	c, err := FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Int("max_iterations", 0))

	_, err = FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	tomlPath := filepath.Join(dir, "engine.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("x=1"), 0o644))
	_, err = FromFile(tomlPath)
	assert.ErrorContains(t, err, "unsupported config file extension")

	// Extension matching is case-insensitive.
	upperPath := filepath.Join(dir, "engine.YML")
	require.NoError(t, os.WriteFile(upperPath, []byte("max_iterations: 9\n"), 0o644))
	c, err = FromFile(upperPath)
	require.NoError(t, err)
	assert.Equal(t, 9, c.Int("max_iterations", 0))
}

// TestFromYAML_Invalid verifies malformed YAML is reported.
func TestFromYAML_Invalid(t *testing.T) {
	_, err := FromYAML([]byte(":\n  - ["))
	assert.Error(t, err)
}
