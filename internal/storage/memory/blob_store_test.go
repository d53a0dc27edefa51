package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"report_id":"r1"}`)
	uri, err := store.PutObject(context.Background(), "reports/2026/10/16/r1.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://reports/2026/10/16/r1.json", uri)

	payload[0] = 'X'
	body, ct, ok := store.Object("reports/2026/10/16/r1.json")
	require.True(t, ok)
	require.Equal(t, "application/json", ct)
	require.Equal(t, `{"report_id":"r1"}`, string(body))
	require.Equal(t, []string{"reports/2026/10/16/r1.json"}, store.Paths())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.Error(t, err)
}
