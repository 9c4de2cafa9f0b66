package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultsToInfoOnBadLevel(t *testing.T) {
	log := New(Config{Level: "nonsense"})
	assert.NotNil(t, log)

	log = New(Config{})
	assert.NotNil(t, log)
}

func TestLogger_KeysAndValues(t *testing.T) {
	log := New(Config{Level: "debug", Format: "json"})

	// Structured emit paths must not panic on odd shapes.
	log.Info("plain message")
	log.Info("with pairs", "key", "value", "count", 3)
	log.Warn("dangling key", "orphan")
	log.Error("non-string key", 42, "value")
	log.Debug("error value", "error", assert.AnError)
}

func TestWith_AttachesFields(t *testing.T) {
	log := New(Config{Level: "info", Format: "json"})
	child := log.With("component", "engine")
	assert.NotNil(t, child)
	child.Info("from child")
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	custom := New(Config{Level: "warn"})
	SetDefault(custom)
	assert.Equal(t, custom, Default())
}

func TestPairs(t *testing.T) {
	assert.Nil(t, pairs(nil))

	m := pairs([]any{"a", 1, "b", "x"})
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, m)

	m = pairs([]any{"a"})
	assert.Equal(t, map[string]any{"a": "(missing)"}, m)
}
