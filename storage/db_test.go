package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	value, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	batch := new(Batch)
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("a"))
	require.Equal(t, 2, batch.Len())
	require.NoError(t, db.Write(batch))

	_, err = db.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)
	value, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)

	require.NoError(t, db.Delete([]byte("b")))
	_, err = db.Get([]byte("b"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ldb"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("rocks", t.TempDir())
	require.Error(t, err)

	db, err := Open(BackendMemory, "")
	require.NoError(t, err)
	db.Close()
}

func TestOverlayCommitAndDiscard(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("keep"), []byte("base")))
	require.NoError(t, base.Put([]byte("drop"), []byte("base")))

	overlay := NewOverlay(base)
	exerciseDatabase(t, overlay)

	require.NoError(t, overlay.Put([]byte("keep"), []byte("new")))
	require.NoError(t, overlay.Delete([]byte("drop")))

	// Base is untouched until commit.
	value, err := base.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), value)
	_, err = overlay.Get([]byte("drop"))
	require.True(t, errors.Is(err, ErrNotFound))

	overlay.Discard()
	require.Zero(t, overlay.Pending())
	value, err = overlay.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), value)

	require.NoError(t, overlay.Put([]byte("keep"), []byte("new")))
	require.NoError(t, overlay.Delete([]byte("drop")))
	require.NoError(t, overlay.Commit())

	value, err = base.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), value)
	_, err = base.Get([]byte("drop"))
	require.ErrorIs(t, err, ErrNotFound)
}
