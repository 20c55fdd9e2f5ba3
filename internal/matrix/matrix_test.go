package matrix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Shape(t *testing.T) {
	set := Default()
	require.Len(t, set.Desktop(), 4)
	require.Len(t, set.Mobile(), 2)

	var names []string
	for _, tgt := range set {
		names = append(names, tgt.String())
	}
	want := []string{"chrome-Windows", "firefox-Windows", "safari-macOS", "edge-Windows", "iPhone 15-iOS", "Samsung Galaxy S23-Android"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("target names mismatch (-want +got):\n%s", diff)
	}
}

func TestDefault_NoneSkipped(t *testing.T) {
	for _, tgt := range Default() {
		assert.Empty(t, tgt.SkipReason(), tgt.String())
	}
}

func TestSkipReason(t *testing.T) {
	cases := []struct {
		target Target
		want   string
	}{
		{Target{Browser: Safari, OS: "Windows", Kind: Desktop}, "Skipping Safari test on Windows"},
		{Target{Browser: Safari, OS: "macOS", Kind: Desktop}, ""},
		{Target{Browser: "opera", OS: "Windows", Kind: Desktop}, "Browser opera not supported"},
		{Target{Browser: Chrome, OS: "Android", Kind: Mobile}, "Mobile target chrome-Android has no device profile"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.target.SkipReason(), tc.target.String())
	}
}

func TestFilter(t *testing.T) {
	set := Default()

	onlyChrome := set.Filter([]string{" Chrome "}, nil)
	require.Len(t, onlyChrome.Desktop(), 1)
	assert.Equal(t, Chrome, onlyChrome.Desktop()[0].Browser)
	assert.Len(t, onlyChrome.Mobile(), 2)

	onlyGalaxy := set.Filter(nil, []string{"samsung galaxy s23"})
	require.Len(t, onlyGalaxy.Mobile(), 1)
	assert.Equal(t, "Samsung Galaxy S23", onlyGalaxy.Mobile()[0].Device.Name)

	assert.Equal(t, set, set.Filter(nil, nil))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browsers:
  - browser: Chrome
    os: Linux
  - browser: safari
    os: Windows
devices:
  - browser: chrome
    os: Android
    device:
      name: Pixel 8
      engine: chromium
      width: 412
      height: 915
      scale: 2.625
      mobile: true
      touch: true
`), 0o644))

	set, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, set, 3)
	assert.Equal(t, Target{Browser: Chrome, OS: "Linux", Kind: Desktop}, set[0])
	assert.Equal(t, "Skipping Safari test on Windows", set[1].SkipReason())
	assert.Equal(t, Mobile, set[2].Kind)
	assert.Equal(t, 412, set[2].Device.Width)
	assert.InDelta(t, 2.625, set[2].Device.DeviceScaleFactor, 1e-9)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("browsers: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("devices:\n  - browser: chrome\n    os: Android\n"))
	assert.ErrorContains(t, err, "device.name")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
