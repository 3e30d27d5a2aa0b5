package district

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex() *Index {
	return NewIndex([]District{
		{Name: "Dillon Ranger District", Geometry: square(0, 0, 2)},
		{Name: "Leadville Ranger District", Geometry: square(4, 0, 2)},
		{Name: "Hahns Peak/Bears Ears Ranger District", Geometry: orb.MultiPolygon{square(10, 10, 2)}},
	}, map[string]string{
		"Frisco RD": "Dillon Ranger District",
	})
}

func TestIndex_Lookup(t *testing.T) {
	ix := testIndex()
	assert.Equal(t, 3, ix.Len())
	assert.Len(t, ix.lookup("dillon ranger district"), 1)
	assert.Len(t, ix.lookup("Bears Ears Ranger District"), 1)
	assert.Len(t, ix.lookup("Hahns Peak Ranger District"), 1)
	assert.Empty(t, ix.lookup("Pagosa Ranger District"))
}

func TestIndex_Match(t *testing.T) {
	ix := testIndex()

	tests := []struct {
		name      string
		unit      string
		wantUnits []string
		wantX     float64
		wantY     float64
	}{
		{
			name:      "single district",
			unit:      "Dillon RD",
			wantUnits: []string{"Dillon Ranger District"},
			wantX:     1, wantY: 1,
		},
		{
			name:      "two districts use the combined centroid",
			unit:      "Dillon, Leadville Ranger Districts",
			wantUnits: []string{"Dillon Ranger District", "Leadville Ranger District"},
			wantX:     3, wantY: 1,
		},
		{
			name:      "compound district part",
			unit:      "Bears Ears",
			wantUnits: []string{"Hahns Peak/Bears Ears Ranger District"},
			wantX:     11, wantY: 11,
		},
		{
			name:      "alias",
			unit:      "Frisco Ranger District",
			wantUnits: []string{"Dillon Ranger District"},
			wantX:     1, wantY: 1,
		},
		{
			name:      "same district twice counts once",
			unit:      "Dillon RD, Dillon Ranger District",
			wantUnits: []string{"Dillon Ranger District"},
			wantX:     1, wantY: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ix.Match(tt.unit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUnits, m.Units)
			assert.InDelta(t, tt.wantX, m.Centroid.X(), 1e-9)
			assert.InDelta(t, tt.wantY, m.Centroid.Y(), 1e-9)
		})
	}
}

func TestIndex_MatchCentroidEqualsPolygonCentroid(t *testing.T) {
	ix := testIndex()
	for _, d := range []District{
		{Name: "Dillon Ranger District", Geometry: square(0, 0, 2)},
		{Name: "Leadville Ranger District", Geometry: square(4, 0, 2)},
	} {
		m, err := ix.Match(d.Name)
		require.NoError(t, err)
		assert.Equal(t, Centroid(d.Geometry), m.Centroid)
	}
}

func TestIndex_NoMatch(t *testing.T) {
	ix := testIndex()

	_, err := ix.Match("Pagosa Ranger District")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = ix.Match("")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestCentroid_Degenerate(t *testing.T) {
	line := orb.LineString{{0, 0}, {2, 2}}
	c := Centroid(line)
	assert.Equal(t, orb.Point{1, 1}, c)
}

func TestCentroid_OverlapWeightedPerPolygon(t *testing.T) {
	c := Centroid(square(0, 0, 2), square(0, 0, 1))
	assert.InDelta(t, 0.9, c.X(), 1e-9)
	assert.InDelta(t, 0.9, c.Y(), 1e-9)
}
