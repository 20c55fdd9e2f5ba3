// Package artifacts saves failure screenshots locally and, optionally, to
// object storage.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/s3client"
)

// Uploader stores artifact bytes remotely.
type Uploader interface {
	PutObject(ctx context.Context, key string, content []byte, contentType string) error
	PublicURL(key string) string
}

var _ Uploader = (*s3client.Client)(nil)

// KeyPrefix is the object key prefix for uploaded screenshots.
const KeyPrefix = "screenshots/"

// Recorder captures screenshots.
type Recorder struct {
	Dir      string
	Uploader Uploader // optional
	Now      func() time.Time
}

// Shot describes a saved screenshot.
type Shot struct {
	Path string `json:"path"`
	Key  string `json:"key,omitempty"`
	URL  string `json:"url,omitempty"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName returns "<name>_error_<unix>.png".
func FileName(name string, at time.Time) string {
	return fmt.Sprintf("%s_error_%d.png", unsafeName.ReplaceAllString(name, "_"), at.Unix())
}

// Capture screenshots d and saves it as FileName(name, now). A failed upload
// is logged and the local file still returned.
func (r *Recorder) Capture(ctx context.Context, d driver.Driver, name string) (Shot, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	png, err := d.Screenshot()
	if err != nil {
		return Shot{}, fmt.Errorf("artifacts: screenshot: %w", err)
	}

	dir := r.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Shot{}, fmt.Errorf("artifacts: create dir: %w", err)
	}
	file := FileName(name, now())
	shot := Shot{Path: filepath.Join(dir, file)}
	if err := os.WriteFile(shot.Path, png, 0o644); err != nil {
		return Shot{}, fmt.Errorf("artifacts: write %s: %w", shot.Path, err)
	}

	if r.Uploader != nil {
		key := KeyPrefix + file
		if err := r.Uploader.PutObject(ctx, key, png, "image/png"); err != nil {
			obs.From(ctx).Warn("screenshot upload failed", "key", key, "error", err)
			return shot, nil
		}
		shot.Key = key
		shot.URL = r.Uploader.PublicURL(key)
	}
	obs.From(ctx).Info("screenshot saved", "path", shot.Path, "url", shot.URL)
	return shot, nil
}
