package district

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Index looks districts up by folded name
type Index struct {
	districts []District
	byKey     map[string][]int
	aliases   map[string]string
}

// NewIndex indexes districts under their folded names. A compound name such
// as "Hahns Peak/Bears Ears Ranger District" is also indexed under each of
// its slash separated parts.
func NewIndex(districts []District, aliases map[string]string) *Index {
	ix := &Index{
		districts: districts,
		byKey:     make(map[string][]int),
		aliases:   NormalizeAliases(aliases),
	}

	for i, d := range districts {
		ix.add(FoldKey(d.Name), i)
		if !strings.Contains(d.Name, "/") {
			continue
		}
		for _, part := range strings.Split(d.Name, "/") {
			if seg := normalizeSegment(part); seg != "" {
				ix.add(FoldKey(seg), i)
			}
		}
	}
	return ix
}

func (ix *Index) add(key string, i int) {
	for _, existing := range ix.byKey[key] {
		if existing == i {
			return
		}
	}
	ix.byKey[key] = append(ix.byKey[key], i)
}

// Len returns the number of indexed districts
func (ix *Index) Len() int {
	return len(ix.districts)
}

// lookup returns the positions of the districts indexed under name
func (ix *Index) lookup(name string) []int {
	return ix.byKey[FoldKey(name)]
}

// Match is the set of districts a unit resolved to
type Match struct {
	Units    []string
	Centroid orb.Point
}

// Match resolves free-text unit to districts. When several districts match,
// the centroid is that of their combined area.
func (ix *Index) Match(unit string) (*Match, error) {
	var matched []int
	seen := make(map[int]bool)
	for _, name := range NormalizeUnit(unit, ix.aliases) {
		for _, i := range ix.lookup(name) {
			if !seen[i] {
				seen[i] = true
				matched = append(matched, i)
			}
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, unit)
	}

	m := &Match{}
	geoms := make([]orb.Geometry, 0, len(matched))
	for _, i := range matched {
		m.Units = append(m.Units, ix.districts[i].Name)
		geoms = append(geoms, ix.districts[i].Geometry)
	}
	m.Centroid = Centroid(geoms...)
	return m, nil
}

// Centroid returns the area-weighted centroid of the combined area of geoms.
// Polygons are not unioned, so any overlap is counted once per polygon.
// Degenerate inputs fall back to the center of their bounds.
func Centroid(geoms ...orb.Geometry) orb.Point {
	var mp orb.MultiPolygon
	var bound orb.Bound
	first := true
	for _, g := range geoms {
		if g == nil {
			continue
		}
		switch g := g.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		}
		if first {
			bound, first = g.Bound(), false
		} else {
			bound = bound.Union(g.Bound())
		}
	}

	if len(mp) > 0 {
		if c, area := planar.CentroidArea(mp); area > 0 {
			return c
		}
	}
	return bound.Center()
}
