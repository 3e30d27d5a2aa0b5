package district

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "districts.json")
	cache := NewCache(path, 0)
	assert.Equal(t, DefaultTTL, cache.TTL)

	t.Run("missing file returns nil", func(t *testing.T) {
		assert.Nil(t, cache.Get("layer"))
	})

	fc := geojson.NewFeatureCollection()
	fc.Append(feature(square(0, 0, 1), map[string]interface{}{"DISTRICTNAME": "Dillon Ranger District"}))
	require.NoError(t, cache.Set("layer", fc))

	t.Run("set and get", func(t *testing.T) {
		got := cache.Get("layer")
		require.NotNil(t, got)
		require.Len(t, got.Features, 1)
		assert.Equal(t, "Dillon Ranger District", got.Features[0].Properties["DISTRICTNAME"])
	})

	t.Run("different source returns nil", func(t *testing.T) {
		assert.Nil(t, cache.Get("other-layer"))
	})

	t.Run("expired entries return nil", func(t *testing.T) {
		later := NewCache(path, time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		assert.Nil(t, later.Get("layer"))
	})

	t.Run("corrupt file returns nil", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		assert.Nil(t, cache.Get("layer"))
	})
}
