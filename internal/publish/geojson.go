package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

// ErrNotFeatureCollection is returned when a map asset is not a FeatureCollection
var ErrNotFeatureCollection = errors.New("not a GeoJSON FeatureCollection")

// FeatureCollection renders opps as Point features in the given order.
// Properties hold every canonical column except the coordinates, as the same
// strings the CSV carries.
func FeatureCollection(opps []*opportunity.Opportunity) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, o := range opps {
		f := geojson.NewFeature(orb.Point{o.Longitude, o.Latitude})
		for col, v := range o.Fields() {
			if col == "longitude" || col == "latitude" {
				continue
			}
			f.Properties[col] = v
		}
		fc.Append(f)
	}
	return fc
}

// EncodeGeoJSON writes opps as an indented FeatureCollection
func EncodeGeoJSON(w io.Writer, opps []*opportunity.Opportunity) error {
	data, err := json.MarshalIndent(FeatureCollection(opps), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteGeoJSON writes opps to path, creating parent directories
func WriteGeoJSON(path string, opps []*opportunity.Opportunity) error {
	return writeFile(path, func(w io.Writer) error { return EncodeGeoJSON(w, opps) })
}

// StageMapAsset copies a FeatureCollection to the web map's data path,
// compacted. Anything other than a FeatureCollection is rejected.
func StageMapAsset(in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", interim.ErrMissingInput, in)
		}
		return fmt.Errorf("reading %s: %w", in, err)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("parsing %s: %w", in, err)
	}
	if head.Type != "FeatureCollection" {
		return fmt.Errorf("%s: %w", in, ErrNotFeatureCollection)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", in, err)
	}
	compact, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encoding map asset: %w", err)
	}
	return writeFile(out, func(w io.Writer) error {
		_, err := w.Write(compact)
		return err
	})
}
