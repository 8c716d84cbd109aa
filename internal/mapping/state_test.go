package mapping

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swappiIndexer/internal/model"
)

func TestFileStateStoreRoundTrip(t *testing.T) {
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "state", "apply.json")}
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := model.EventPosition{BlockNumber: 120, LogIndex: 7}
	require.NoError(t, store.Save(ctx, want))

	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

type fakePositionStore struct {
	saved map[string]model.EventPosition
}

func (f *fakePositionStore) LoadState(_ context.Context, name string) (model.EventPosition, bool, error) {
	pos, ok := f.saved[name]
	return pos, ok, nil
}

func (f *fakePositionStore) SaveState(_ context.Context, name string, pos model.EventPosition) error {
	f.saved[name] = pos
	return nil
}

func TestDBStateStoreUsesName(t *testing.T) {
	backend := &fakePositionStore{saved: map[string]model.EventPosition{}}
	store := &DBStateStore{Store: backend, Name: "apply:mainnet"}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, model.EventPosition{BlockNumber: 3}))
	pos, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), pos.BlockNumber)
	assert.Contains(t, backend.saved, "apply:mainnet")
}
