package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishekagnith/xpulse-agentflow-service/testutil"
)

func TestVariableStore_StripsLeadingAt(t *testing.T) {
	store := NewVariableStore(testutil.NewVarStore())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u1", "f1", "@name", "John"))

	val, err := store.Get(ctx, "u1", "f1", "name")
	require.NoError(t, err)
	assert.Equal(t, "John", val)

	val, err = store.Get(ctx, "u1", "f1", "@name")
	require.NoError(t, err)
	assert.Equal(t, "John", val)
}

func TestVariableStore_MissingReadsEmpty(t *testing.T) {
	store := NewVariableStore(testutil.NewVarStore())

	val, err := store.Get(context.Background(), "u1", "f1", "@ghost")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestVariableStore_SnapshotScopedToFlow(t *testing.T) {
	store := NewVariableStore(testutil.NewVarStore())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u1", "f1", "@a", "1"))
	require.NoError(t, store.Set(ctx, "u1", "f2", "@b", "2"))

	snap, err := store.Snapshot(ctx, "u1", "f1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1"}, snap)
}

func TestCleanVariableName(t *testing.T) {
	assert.Equal(t, "name", CleanVariableName("@name"))
	assert.Equal(t, "name", CleanVariableName("  @name "))
	assert.Equal(t, "name", CleanVariableName("name"))
}

func TestInterpolate(t *testing.T) {
	vars := map[string]string{"name": "John", "city": "Delhi"}

	assert.Equal(t, "Hi John from Delhi", Interpolate("Hi @name from @city", vars))
	assert.Equal(t, "Hi @unknown", Interpolate("Hi @unknown", vars))
	assert.Equal(t, "plain text", Interpolate("plain text", vars))
	assert.Equal(t, "no vars", Interpolate("no vars", nil))
}
