package infra

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalReportStore_SaveAndOpen(t *testing.T) {
	store, err := NewLocalReportStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path, err := store.Save(ctx, "closing_x.pdf", []byte("%PDF-1.3 test"))
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	rc, err := store.Open(ctx, "closing_x.pdf")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(data))

	_, err = store.Open(ctx, "missing.pdf")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestLocalReportStore_NameCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalReportStore(dir)
	require.NoError(t, err)

	path, err := store.Save(context.Background(), "../../evil.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, dir+"/evil.pdf", path)
}
