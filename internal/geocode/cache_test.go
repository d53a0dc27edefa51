package geocode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

func TestCachedGeocoderCachesHits(t *testing.T) {
	t.Parallel()

	inner := &fakeGeocoder{coords: sentinel.Coordinates{Lat: 6.45, Lon: 3.39}, ok: true}
	cached, err := NewCachedGeocoder(inner, 8)
	require.NoError(t, err)

	for _, q := range []string{"Ikeja, Nigeria", "ikeja,  nigeria"} {
		got, ok, err := cached.Geocode(context.Background(), q)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, inner.coords, got)
	}
	require.Len(t, inner.Queries(), 1)
	require.Equal(t, 1, cached.Len())
}

func TestCachedGeocoderSkipsMissesAndErrors(t *testing.T) {
	t.Parallel()

	miss, err := NewCachedGeocoder(&fakeGeocoder{}, 8)
	require.NoError(t, err)
	_, ok, err := miss.Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, miss.Len())

	failing := &fakeGeocoder{err: errors.New("down")}
	withErr, err := NewCachedGeocoder(failing, 8)
	require.NoError(t, err)
	_, _, err = withErr.Geocode(context.Background(), "Ikeja")
	require.Error(t, err)
	_, _, err = withErr.Geocode(context.Background(), "Ikeja")
	require.Error(t, err)
	require.Len(t, failing.Queries(), 2)
}

func TestNewCachedGeocoderRejectsBadSize(t *testing.T) {
	t.Parallel()

	_, err := NewCachedGeocoder(&fakeGeocoder{}, 0)
	require.Error(t, err)
}
