package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/expenso/internal/storage"
	"github.com/MrJamesThe3rd/expenso/internal/storage/memory"
)

func TestBackend(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	_, err := b.Load(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	value := []byte(`{"x":1}`)
	require.NoError(t, b.Save(ctx, "ns:a", value))
	require.NoError(t, b.Save(ctx, "ns:b", []byte(`2`)))
	require.NoError(t, b.Save(ctx, "other:a", []byte(`3`)))

	// The backend keeps its own copy.
	value[0] = '['

	got, err := b.Load(ctx, "ns:a")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(got))

	keys, err := b.Keys(ctx, "ns:")
	require.NoError(t, err)
	assert.Equal(t, []string{"ns:a", "ns:b"}, keys)

	require.NoError(t, b.Delete(ctx, "ns:a"))

	keys, err = b.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ns:b", "other:a"}, keys)
}
