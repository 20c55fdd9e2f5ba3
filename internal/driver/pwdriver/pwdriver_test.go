package pwdriver

import (
	"context"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/matrix"
)

func TestEngineFor_Desktop(t *testing.T) {
	cases := map[string]string{
		matrix.Chrome:  "chromium",
		matrix.Firefox: "firefox",
		matrix.Safari:  "webkit",
		matrix.Edge:    "msedge",
	}
	for browser, want := range cases {
		e, err := engineFor(matrix.Target{Browser: browser, Kind: matrix.Desktop}, nil)
		require.NoError(t, err, browser)
		assert.Equal(t, want, e.key, browser)
	}
	assert.Equal(t, "msedge", msedge.channel)

	_, err := engineFor(matrix.Target{Browser: "opera", Kind: matrix.Desktop}, nil)
	assert.ErrorIs(t, err, driver.ErrUnsupported)
}

func TestEngineFor_DevicePrefersDescriptor(t *testing.T) {
	target := matrix.DefaultDevices()[1] // Galaxy, chromium profile
	e, err := engineFor(target, nil)
	require.NoError(t, err)
	assert.Equal(t, "chromium", e.key)

	e, err = engineFor(target, &playwright.DeviceDescriptor{DefaultBrowserType: "webkit"})
	require.NoError(t, err)
	assert.Equal(t, "webkit", e.key)
}

func TestContextOptions_FromMatrixDevice(t *testing.T) {
	target := matrix.DefaultDevices()[1]
	opts := contextOptions(target, nil)
	require.NotNil(t, opts.Viewport)
	assert.Equal(t, 360, opts.Viewport.Width)
	assert.Equal(t, 780, opts.Viewport.Height)
	assert.True(t, *opts.IsMobile)
	assert.True(t, *opts.HasTouch)
	assert.Contains(t, *opts.UserAgent, "Android")

	desktop := contextOptions(matrix.DefaultBrowsers()[0], nil)
	assert.Nil(t, desktop.Viewport)
}

func TestLaunch_SkipsUnsupportedTargetWithoutStarting(t *testing.T) {
	l := New(Options{Headless: true})
	_, err := l.Launch(context.Background(), matrix.Target{Browser: matrix.Safari, OS: "Windows", Kind: matrix.Desktop})
	require.ErrorIs(t, err, driver.ErrUnsupported)
	assert.Contains(t, err.Error(), "Skipping Safari test on Windows")
	assert.Nil(t, l.pw)
	assert.NoError(t, l.Close())
}

func TestSelectorString(t *testing.T) {
	s, err := selectorString(driver.ByXPath, "//label[text()='Dresses']")
	require.NoError(t, err)
	assert.Equal(t, "xpath=//label[text()='Dresses']", s)

	s, err = selectorString(driver.ByID, "cart_icon")
	require.NoError(t, err)
	assert.Equal(t, `css=[id="cart_icon"]`, s)
}
