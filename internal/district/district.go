// Package district resolves USFS unit names to ranger district polygons
// and their centroids.
package district

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNoMatch means no district matched a unit name
	ErrNoMatch = errors.New("no matching district")
	// ErrNoNameField means the layer has none of the known name attributes
	ErrNoNameField = errors.New("district name field not found")
	// ErrEmptyLayer means the layer returned no features
	ErrEmptyLayer = errors.New("no district features")
)

// NameFields are the attribute names that hold the district name, by layer version
var NameFields = []string{"DISTRICTNAME", "RDNAME", "NAME"}

// District is one ranger district polygon
type District struct {
	Name     string
	Geometry orb.Geometry
}

// FromCollection builds districts from a layer FeatureCollection.
// Features without polygon geometry or a name are skipped.
func FromCollection(fc *geojson.FeatureCollection) ([]District, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, ErrEmptyLayer
	}

	field := nameField(fc)
	if field == "" {
		return nil, ErrNoNameField
	}

	districts := make([]District, 0, len(fc.Features))
	for _, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		v, ok := f.Properties[field]
		if !ok || v == nil {
			continue
		}
		name := strings.TrimSpace(fmt.Sprint(v))
		if name == "" {
			continue
		}
		districts = append(districts, District{Name: name, Geometry: f.Geometry})
	}
	return districts, nil
}

func nameField(fc *geojson.FeatureCollection) string {
	for _, field := range NameFields {
		for _, f := range fc.Features {
			if _, ok := f.Properties[field]; ok {
				return field
			}
		}
	}
	return ""
}

// FoldKey reduces a district name to its lookup key: case folded,
// diacritics stripped, whitespace collapsed.
func FoldKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = cases.Fold().String(folded)
	return strings.Join(strings.Fields(folded), " ")
}

var (
	rdSuffix       = regexp.MustCompile(`(?i)\bRD\b\.?$`)
	rdPlural       = regexp.MustCompile(`(?i)\bRanger Districts\b`)
	rangerDistrict = regexp.MustCompile(`(?i)ranger district$`)
	bareDistrict   = regexp.MustCompile(`(?i)\bdistrict$`)
)

// NormalizeUnit turns SOPA unit text into candidate district names.
// "Leadville RD" becomes "Leadville Ranger District"; comma separated units
// yield several names; zone prefixes like "East Zone/" are dropped. Alias
// keys are matched against the folded result, see NormalizeAliases.
func NormalizeUnit(unit string, aliases map[string]string) []string {
	var out []string
	for _, part := range strings.Split(unit, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.LastIndex(part, "/"); i >= 0 {
			part = part[i+1:]
		}
		seg := normalizeSegment(part)
		if seg == "" {
			continue
		}
		if alias, ok := aliases[FoldKey(seg)]; ok {
			seg = alias
		}
		out = append(out, seg)
	}
	return out
}

// NormalizeAliases rewrites alias keys into the folded, normalized form
// NormalizeUnit looks them up by, so "Leadville RD" and
// "leadville ranger district" are the same key.
func NormalizeAliases(aliases map[string]string) map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[FoldKey(normalizeSegment(k))] = v
	}
	return out
}

func normalizeSegment(seg string) string {
	seg = strings.Join(strings.Fields(seg), " ")
	seg = strings.TrimRight(seg, " .;:")
	if seg == "" {
		return ""
	}
	seg = rdSuffix.ReplaceAllString(seg, "Ranger District")
	seg = rdPlural.ReplaceAllString(seg, "Ranger District")
	if rangerDistrict.MatchString(seg) {
		return seg
	}
	if bareDistrict.MatchString(seg) {
		return bareDistrict.ReplaceAllString(seg, "Ranger District")
	}
	return seg + " Ranger District"
}
