package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"silent":  LevelSilent,
		"error":   LevelError,
		"warning": LevelWarning,
		"warn":    LevelWarning,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"debug":   LevelDebug,
		"verbose": LevelVerbose,
		"trace":   LevelVerbose,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelOrdering(t *testing.T) {
	assert.Less(t, LevelSilent, LevelError)
	assert.Less(t, LevelError, LevelWarning)
	assert.Less(t, LevelWarning, LevelInfo)
	assert.Less(t, LevelInfo, LevelDebug)
	assert.Less(t, LevelDebug, LevelVerbose)
}

func TestFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: LevelWarning, Output: &buf})

	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	l.SetLevel(LevelVerbose)
	assert.Equal(t, LevelVerbose, l.Level())
	l.Verbose("deep")
	assert.Contains(t, buf.String(), "level=VERBOSE")

	buf.Reset()
	l.SetLevel(LevelSilent)
	l.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestWithSharesFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: LevelError, Output: &buf})
	child := l.With("actor", "a")

	child.Info("before")
	l.SetLevel(LevelInfo)
	child.Info("after")

	out := buf.String()
	assert.NotContains(t, out, "before")
	assert.Contains(t, out, "after")
	assert.Contains(t, out, "actor=a")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: LevelInfo, Format: "json", Output: &buf})
	l.Info("hello", "k", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, float64(1), rec["k"])
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "troupe.log")
	l, closer, err := Open("info", "text", path)
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, closer.Close())

	_, _, err = Open("bogus", "text", path)
	assert.Error(t, err)
	assert.True(t, strings.HasSuffix(path, ".log"))
}
