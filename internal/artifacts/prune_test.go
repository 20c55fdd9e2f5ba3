package artifacts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/stylehaven/internal/s3client"
)

func TestCapturedAt(t *testing.T) {
	at, ok := CapturedAt("screenshots/add_to_cart_error_1700000000.png")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), at.Unix())

	for _, key := range []string{"screenshots/readme.txt", "screenshots/login_error_.png", "screenshots/login.png"} {
		_, ok := CapturedAt(key)
		assert.False(t, ok, key)
	}
}

func TestPrune_DeletesOnlyOldScreenshots(t *testing.T) {
	ctx := context.Background()
	store := s3client.TestClient(t, "e2e-artifacts")
	for _, key := range []string{
		"screenshots/login_error_1600000000.png",
		"screenshots/search_error_1700000000.png",
		"screenshots/notes.txt",
		"reports/filter_error_1600000000.png",
	} {
		require.NoError(t, store.PutObject(ctx, key, []byte("x"), "image/png"))
	}

	deleted, err := Prune(ctx, store, time.Unix(1650000000, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"screenshots/login_error_1600000000.png"}, deleted)

	left, err := store.ListKeys(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"screenshots/search_error_1700000000.png",
		"screenshots/notes.txt",
		"reports/filter_error_1600000000.png",
	}, left)
}
