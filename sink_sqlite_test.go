package fileactivity

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSinkPersistsEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(path, nil)
	require.NoError(t, err)
	defer sink.Close()

	ev := Event{
		ID:     uuid.New(),
		Kind:   RenameKind,
		Volume: "/vol",
		Path:   "/vol/old.txt",
		Dest:   "/vol/new.txt",
		At:     fixedNow,
	}
	sink.Sink()(ev)

	var gotKind, gotPath, gotDest string
	row := sink.db.QueryRow(`SELECT kind, path, dest FROM events WHERE id = ?`, ev.ID.String())
	require.NoError(t, row.Scan(&gotKind, &gotPath, &gotDest))
	assert.Equal(t, "rename", gotKind)
	assert.Equal(t, "/vol/old.txt", gotPath)
	assert.Equal(t, "/vol/new.txt", gotDest)
}

func TestSQLiteSinkUpsertsOnDuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(path, nil)
	require.NoError(t, err)
	defer sink.Close()

	id := uuid.New()
	sink.Sink()(Event{ID: id, Kind: CreateKind, Volume: "/vol", Path: "/vol/a.txt", At: fixedNow})
	sink.Sink()(Event{ID: id, Kind: ModifyKind, Volume: "/vol", Path: "/vol/a.txt", At: fixedNow})

	var count int
	require.NoError(t, sink.db.QueryRow(`SELECT COUNT(*) FROM events WHERE id = ?`, id.String()).Scan(&count))
	assert.Equal(t, 1, count)
}
