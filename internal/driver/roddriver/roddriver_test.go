package roddriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/matrix"
)

func TestBinaryFor(t *testing.T) {
	l := New(Options{ChromeBinary: "/opt/chrome"})

	bin, err := l.binaryFor(matrix.Target{Browser: matrix.Chrome, Kind: matrix.Desktop})
	require.NoError(t, err)
	assert.Equal(t, "/opt/chrome", bin)

	for _, tgt := range []matrix.Target{
		{Browser: matrix.Firefox, Kind: matrix.Desktop},
		{Browser: matrix.Safari, OS: "macOS", Kind: matrix.Desktop},
		{Browser: matrix.Edge, Kind: matrix.Desktop},
		matrix.DefaultDevices()[0],
	} {
		_, err := l.binaryFor(tgt)
		assert.ErrorIs(t, err, driver.ErrUnsupported, tgt.String())
	}

	bin, err = l.binaryFor(matrix.DefaultDevices()[1])
	require.NoError(t, err)
	assert.Equal(t, "/opt/chrome", bin)

	l = New(Options{EdgeBinary: "/opt/msedge"})
	bin, err = l.binaryFor(matrix.Target{Browser: matrix.Edge, Kind: matrix.Desktop})
	require.NoError(t, err)
	assert.Equal(t, "/opt/msedge", bin)
}

func TestLaunch_UnsupportedDoesNotStartBrowser(t *testing.T) {
	l := New(Options{Headless: true})
	_, err := l.Launch(context.Background(), matrix.Target{Browser: matrix.Firefox, OS: "Windows", Kind: matrix.Desktop})
	require.ErrorIs(t, err, driver.ErrUnsupported)
	assert.Empty(t, l.browsers)
	assert.NoError(t, l.Close())
}
