package blobstore_test

import (
	"context"
	"testing"

	"github.com/docuflow/enginecore/internal/blobstore"
	"github.com/stretchr/testify/require"
)

func TestLocalDisk_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	store := blobstore.NewLocalDisk(dir)

	err := store.Write(context.Background(), "documents", "tenant1/doc.pdf", []byte("content"))
	require.NoError(t, err)

	data, err := store.Read(context.Background(), "documents", "tenant1/doc.pdf")
	require.NoError(t, err)
	require.Equal(t, "content", string(data))
}

func TestLocalDisk_RejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	store := blobstore.NewLocalDisk(dir)

	_, err := store.Read(context.Background(), "documents", "../../../etc/passwd")
	require.Error(t, err)
}
