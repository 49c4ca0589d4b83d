package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkrank/internal/crawler"
)

func TestDocumentStorePutCopiesData(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()
	payload := []byte("content")
	uri, err := store.Put(context.Background(), 2, bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://2.html", uri)

	payload[0] = 'C'
	got, err := store.Get(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "content", string(got))

	got[0] = 'X'
	again, err := store.Get(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "content", string(again))
}

func TestDocumentStoreMissing(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()
	ok, err := store.Exists(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.Get(context.Background(), 1)
	require.ErrorIs(t, err, crawler.ErrNotFound)
}

func TestDocumentStoreFailedReadStoresNothing(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()
	body := io.MultiReader(bytes.NewReader([]byte("half")), errReader{})
	_, err := store.Put(context.Background(), 5, body)
	require.Error(t, err)
	require.Zero(t, store.Len())
}

func TestDocumentStoreCanceledPutStoresNothing(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Put(ctx, 5, bytes.NewReader([]byte("body")))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, store.Len())
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}
