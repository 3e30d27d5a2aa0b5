package district

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/logger"
)

// LoadFile reads a district FeatureCollection from a local GeoJSON file
func LoadFile(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", interim.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return fc, nil
}

// Source says where the district layer comes from. File wins over Client;
// Cache, when set, fronts the Client.
type Source struct {
	File    string
	Client  *Client
	Cache   *Cache
	Aliases map[string]string
}

// Load builds a district index from the configured source
func Load(ctx context.Context, src Source) (*Index, error) {
	fc, err := src.collection(ctx)
	if err != nil {
		return nil, err
	}
	districts, err := FromCollection(fc)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded ranger districts", logger.Fields{"districts": len(districts)})
	return NewIndex(districts, src.Aliases), nil
}

func (s Source) collection(ctx context.Context) (*geojson.FeatureCollection, error) {
	if s.File != "" {
		return LoadFile(s.File)
	}
	if s.Client == nil {
		return nil, errors.New("no district source configured")
	}

	layer := s.Client.LayerURL()
	if s.Cache != nil {
		if fc := s.Cache.Get(layer); fc != nil {
			logger.Debug("Using cached district layer", logger.Fields{"path": s.Cache.Path})
			return fc, nil
		}
	}

	fc, err := s.Client.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(layer, fc); err != nil {
			logger.Warn("Failed to cache district layer", logger.Fields{"path": s.Cache.Path}, err)
		}
	}
	return fc, nil
}
