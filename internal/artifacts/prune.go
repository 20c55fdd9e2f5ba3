package artifacts

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"time"

	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/s3client"
)

// Store lists and deletes uploaded artifacts.
type Store interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeleteObject(ctx context.Context, key string) error
}

var _ Store = (*s3client.Client)(nil)

var capturedAt = regexp.MustCompile(`_error_(\d+)\.png$`)

// CapturedAt reads the capture time encoded in a screenshot key by FileName.
func CapturedAt(key string) (time.Time, bool) {
	m := capturedAt.FindStringSubmatch(path.Base(key))
	if m == nil {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

// Prune deletes uploaded screenshots captured before cutoff and returns the
// deleted keys. Keys that do not carry a capture time are left alone.
func Prune(ctx context.Context, store Store, cutoff time.Time) ([]string, error) {
	keys, err := store.ListKeys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("artifacts: list: %w", err)
	}
	var deleted []string
	for _, key := range keys {
		at, ok := CapturedAt(key)
		if !ok || !at.Before(cutoff) {
			continue
		}
		if err := store.DeleteObject(ctx, key); err != nil {
			return deleted, fmt.Errorf("artifacts: delete %s: %w", key, err)
		}
		deleted = append(deleted, key)
	}
	obs.From(ctx).Info("pruned screenshots", "deleted", len(deleted), "kept", len(keys)-len(deleted))
	return deleted, nil
}
