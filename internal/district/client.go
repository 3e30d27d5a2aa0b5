package district

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/pfrederiksen/comment-map/internal/logger"
	"github.com/pfrederiksen/comment-map/internal/scraper"
)

const (
	// LayerURL is the national EDW ranger district layer
	LayerURL = "https://apps.fs.usda.gov/arcx/rest/services/EDW/EDW_RangerDistricts_01/MapServer/0"

	defaultPageSize = 1000
)

// Client reads the ranger district layer from an ArcGIS MapServer
type Client struct {
	fetcher  *scraper.Fetcher
	layerURL string
}

// NewClient creates a layer client. An empty layerURL uses LayerURL.
func NewClient(f *scraper.Fetcher, layerURL string) *Client {
	if layerURL == "" {
		layerURL = LayerURL
	}
	return &Client{fetcher: f, layerURL: strings.TrimRight(layerURL, "/")}
}

// LayerURL returns the layer this client reads
func (c *Client) LayerURL() string {
	return c.layerURL
}

// LayerInfo is the subset of layer metadata that drives paging
type LayerInfo struct {
	Name               string `json:"name"`
	MaxRecordCount     int    `json:"maxRecordCount"`
	SupportsPagination bool   `json:"supportsPagination"`
	Advanced           struct {
		SupportsPagination bool `json:"supportsPagination"`
	} `json:"advancedQueryCapabilities"`
}

// Paginates reports whether the layer accepts resultOffset paging
func (l *LayerInfo) Paginates() bool {
	return l.SupportsPagination || l.Advanced.SupportsPagination
}

// PageSize returns the records per request, defaulting to 1000
func (l *LayerInfo) PageSize() int {
	if l.MaxRecordCount <= 0 {
		return defaultPageSize
	}
	return l.MaxRecordCount
}

// LayerInfo fetches the layer metadata
func (c *Client) LayerInfo(ctx context.Context) (*LayerInfo, error) {
	var info LayerInfo
	if err := c.getJSON(ctx, c.layerURL, url.Values{"f": {"json"}}, &info); err != nil {
		return nil, fmt.Errorf("reading layer info: %w", err)
	}
	return &info, nil
}

// Fetch downloads every district feature in WGS84. Layers that page are read
// by offset; others by batches of object IDs, or one query as a last resort.
func (c *Client) Fetch(ctx context.Context) (*geojson.FeatureCollection, error) {
	info, err := c.LayerInfo(ctx)
	if err != nil {
		return nil, err
	}
	size := info.PageSize()
	fc := geojson.NewFeatureCollection()

	if info.Paginates() {
		for offset := 0; ; offset += size {
			page, err := c.query(ctx, url.Values{
				"where":             {"1=1"},
				"resultOffset":      {strconv.Itoa(offset)},
				"resultRecordCount": {strconv.Itoa(size)},
			})
			if err != nil {
				return nil, err
			}
			fc.Features = append(fc.Features, page.Features...)
			logger.Debug("Fetched district page", logger.Fields{"offset": offset, "features": len(page.Features)})
			if len(page.Features) < size {
				break
			}
		}
	} else {
		ids, err := c.objectIDs(ctx)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			page, err := c.query(ctx, url.Values{"where": {"1=1"}})
			if err != nil {
				return nil, err
			}
			fc.Features = page.Features
		}
		for start := 0; start < len(ids); start += size {
			batch := ids[start:min(start+size, len(ids))]
			parts := make([]string, len(batch))
			for i, id := range batch {
				parts[i] = strconv.FormatInt(id, 10)
			}
			page, err := c.query(ctx, url.Values{"objectIds": {strings.Join(parts, ",")}})
			if err != nil {
				return nil, err
			}
			fc.Features = append(fc.Features, page.Features...)
		}
	}

	if len(fc.Features) == 0 {
		return nil, ErrEmptyLayer
	}
	return fc, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*geojson.FeatureCollection, error) {
	params.Set("f", "geojson")
	params.Set("outFields", "*")
	params.Set("outSR", "4326")
	params.Set("returnGeometry", "true")

	body, err := c.fetcher.Get(ctx, c.layerURL+"/query?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("querying districts: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("parsing district features: %w", err)
	}
	return fc, nil
}

func (c *Client) objectIDs(ctx context.Context) ([]int64, error) {
	var resp struct {
		ObjectIDs []int64 `json:"objectIds"`
	}
	params := url.Values{"f": {"json"}, "where": {"1=1"}, "returnIdsOnly": {"true"}}
	if err := c.getJSON(ctx, c.layerURL+"/query", params, &resp); err != nil {
		return nil, fmt.Errorf("listing district ids: %w", err)
	}
	return resp.ObjectIDs, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, v interface{}) error {
	body, err := c.fetcher.Get(ctx, endpoint+"?"+params.Encode())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
