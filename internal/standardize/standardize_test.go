package standardize

import (
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse(opportunity.DateLayout, s)
	return t
}

func blmTable() *interim.Table {
	return &interim.Table{
		Header: interim.BLMColumns,
		Rows: []interim.Row{
			{
				"project_id": "2033900", "agency": "BLM", "title": "Sample BLM Project",
				"comment_start_date": "2024-01-01", "comment_end_date": "2024-02-01",
				"source_url": "https://eplanning.blm.gov/eplanning-ui/project/2033900/510",
				"state": "co", "longitude": "-108.55", "latitude": "39.06", "geom_source": "direct",
				"scrape_confidence": "0.8", "last_checked_utc": "2024-01-10T12:00:00Z",
			},
			{
				"project_id": "1999999", "agency": "BLM", "title": "Mercator Project.",
				"comment_end_date": "2024-01-20",
				"source_url": "https://eplanning.blm.gov/eplanning-ui/project/1999999/510",
				"state": "CO", "longitude": "-11854054", "latitude": "4681502",
			},
		},
	}
}

func usfsTable() *interim.Table {
	return &interim.Table{
		Header: append(append([]string(nil), interim.USFSColumns...), interim.EnrichedColumns...),
		Rows: []interim.Row{
			{
				"project_id": "58231", "agency": "USFS", "title": "Elk Creek",
				"unit": "Columbine Ranger District", "office_or_unit": "San Juan NF",
				"expected_comment_start": "2024-01-10", "expected_comment_end": "2024-02-09",
				"source_url": "https://www.fs.usda.gov/project/?project=58231", "state": "CO",
				"longitude": "-107.5", "latitude": "37.4", "geom_source": "derived",
				"district": "Columbine Ranger District", "location_status": "ok",
			},
			{
				"project_id": "unknown", "agency": "USFS", "title": "Trail Restoration",
				"comment_end_date": "2024-03-15", "source_url": "https://www.fs.usda.gov/sopa/x",
				"longitude": "-106.1", "latitude": "39.2", "geom_source": "derived",
			},
			{
				"project_id": "unknown", "agency": "USFS", "title": "unknown",
				"source_url": "https://www.fs.usda.gov/sopa/x.pdf",
			},
			{
				"project_id": "60001", "agency": "USFS", "title": "No District Match",
				"unit": "Nowhere", "location_status": "unknown",
			},
		},
	}
}

func TestMapRow_BLMStatusAcrossDates(t *testing.T) {
	row := blmTable().Rows[0]

	opp, err := MapRow(row, opportunity.AgencyBLM, day("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, opportunity.StatusActive, opp.Status)

	opp, err = MapRow(row, opportunity.AgencyBLM, day("2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, opportunity.StatusClosed, opp.Status)

	assert.Equal(t, "2033900", opp.ProjectID)
	assert.Equal(t, "CO", opp.State)
	assert.Equal(t, -108.55, opp.Longitude)
	assert.Equal(t, 39.06, opp.Latitude)
	assert.Equal(t, opportunity.GeomDirect, opp.GeomSource)
	assert.Equal(t, opportunity.LocationOK, opp.LocationStatus)
	assert.Equal(t, 0.8, opp.Confidence)
	assert.Equal(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), opp.LastChecked)
}

func TestMapRow_RepairsMercator(t *testing.T) {
	opp, err := MapRow(blmTable().Rows[1], opportunity.AgencyBLM, day("2024-01-15"))
	require.NoError(t, err)
	assert.InDelta(t, -106.4868, opp.Longitude, 1e-3)
	assert.InDelta(t, 38.7190, opp.Latitude, 1e-3)
	assert.Equal(t, "Mercator Project", opp.Title)
	assert.Equal(t, opportunity.StatusActive, opp.Status)
}

func TestMapRow_Unmappable(t *testing.T) {
	_, err := MapRow(interim.Row{"project_id": "unknown", "title": " "}, opportunity.AgencyUSFS, day("2024-01-15"))
	assert.ErrorIs(t, err, ErrUnmappable)
}

func TestMapRow_SyntheticID(t *testing.T) {
	row := usfsTable().Rows[1]
	opp, err := MapRow(row, opportunity.AgencyUSFS, day("2024-01-15"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(opp.ProjectID, "USFS-"))
	assert.Equal(t, opportunity.SyntheticID(opportunity.AgencyUSFS, "Trail Restoration", "https://www.fs.usda.gov/sopa/x"), opp.ProjectID)
}

func TestMapRow_TitleFallsBackToID(t *testing.T) {
	opp, err := MapRow(interim.Row{"project_id": "2040000"}, opportunity.AgencyBLM, day("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, "2040000", opp.Title)
	assert.Equal(t, opportunity.StatusUnknown, opp.Status)
	assert.Equal(t, opportunity.LocationUnknown, opp.LocationStatus)
	assert.Equal(t, opportunity.GeomNone, opp.GeomSource)
}

func TestStandardize(t *testing.T) {
	res := Standardize([]*interim.Table{usfsTable(), blmTable()}, Options{AsOf: day("2024-01-15")})

	require.Len(t, res.Opportunities, 4)
	assert.Equal(t, 1, res.Unmappable)
	require.Len(t, res.Unlocated, 1)
	assert.Equal(t, "60001", res.Unlocated[0].ProjectID)

	var keys []string
	for _, o := range res.Opportunities {
		keys = append(keys, string(o.Agency)+"|"+o.ProjectID)
		assert.True(t, o.Status.Valid())
		assert.True(t, o.HasLocation())
	}
	assert.Equal(t, "BLM|1999999", keys[0])
	assert.Equal(t, "BLM|2033900", keys[1])
	assert.Equal(t, "USFS|58231", keys[2])
	assert.True(t, strings.HasPrefix(keys[3], "USFS|USFS-"))

	elk := res.Opportunities[2]
	assert.Equal(t, opportunity.GeomDerived, elk.GeomSource)
	assert.Equal(t, "Columbine Ranger District", elk.District)
	assert.Equal(t, "San Juan NF", elk.OfficeOrUnit)
	assert.Equal(t, "2024-01-10", opportunity.FormatDate(elk.CommentStart))
	assert.Equal(t, opportunity.StatusActive, elk.Status)
}

func TestStandardize_Deterministic(t *testing.T) {
	opts := Options{AsOf: day("2024-01-15")}
	first := Standardize([]*interim.Table{blmTable(), usfsTable()}, opts)
	second := Standardize([]*interim.Table{blmTable(), usfsTable()}, opts)

	require.Equal(t, len(first.Opportunities), len(second.Opportunities))
	for i := range first.Opportunities {
		assert.Equal(t, first.Opportunities[i].Record(), second.Opportunities[i].Record())
	}
}

func TestStandardize_ForcedAgency(t *testing.T) {
	table := &interim.Table{
		Header: []string{"ProjectID", "ProjectName", "X", "Y"},
		Rows:   []interim.Row{{"ProjectID": "42", "ProjectName": "Forced", "X": "-105", "Y": "40"}},
	}
	res := Standardize([]*interim.Table{table}, Options{Agency: opportunity.AgencyBLM, AsOf: day("2024-01-15")})
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, opportunity.AgencyBLM, res.Opportunities[0].Agency)
	assert.Equal(t, "Forced", res.Opportunities[0].Title)
}

func TestStandardize_ForcedAgencyOverridesColumn(t *testing.T) {
	table := &interim.Table{
		Header: interim.BLMColumns,
		Rows: []interim.Row{{
			"project_id": "58231", "agency": "USFS", "title": "Elk Creek",
			"longitude": "-107.5", "latitude": "37.4",
		}},
	}

	res := Standardize([]*interim.Table{table}, Options{AsOf: day("2024-01-15")})
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, opportunity.AgencyUSFS, res.Opportunities[0].Agency)

	res = Standardize([]*interim.Table{table}, Options{Agency: opportunity.AgencyBLM, AsOf: day("2024-01-15")})
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, opportunity.AgencyBLM, res.Opportunities[0].Agency)
}

func TestDetectAgency(t *testing.T) {
	tests := []struct {
		name  string
		table *interim.Table
		want  opportunity.Agency
	}{
		{
			name:  "agency column",
			table: &interim.Table{Header: []string{"agency"}, Rows: []interim.Row{{"agency": "BLM"}}},
			want:  opportunity.AgencyBLM,
		},
		{
			name: "BLM columns and URL",
			table: &interim.Table{
				Header: []string{"project_id", "state", "latitude", "longitude", "url"},
				Rows:   []interim.Row{{"url": "https://eplanning.blm.gov/eplanning-ui/project/1"}},
			},
			want: opportunity.AgencyBLM,
		},
		{
			name:  "unit column",
			table: &interim.Table{Header: []string{"project_id", "unit"}},
			want:  opportunity.AgencyUSFS,
		},
		{
			name: "URL only",
			table: &interim.Table{
				Header: []string{"title", "source_url"},
				Rows:   []interim.Row{{"source_url": "https://www.blm.gov/x"}},
			},
			want: opportunity.AgencyBLM,
		},
		{
			name:  "default",
			table: &interim.Table{Header: []string{"title"}},
			want:  opportunity.AgencyUSFS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAgency(tt.table))
		})
	}
}

func TestCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lon     string
		lat     string
		wantOK  bool
		wantLon float64
		wantLat float64
	}{
		{"degrees", "-105.5", "39.7", true, -105.5, 39.7},
		{"origin mercator stays zero", "0", "0", true, 0, 0},
		{"missing latitude", "-105", "", false, 0, 0},
		{"not a number", "abc", "39", false, 0, 0},
		{"out of range degrees", "200", "95", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lon, lat, ok := Coordinates(tt.lon, tt.lat)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLon, lon)
			assert.Equal(t, tt.wantLat, lat)
		})
	}
}

func TestMercatorToWGS84(t *testing.T) {
	lon, lat := MercatorToWGS84(20037508.342789244, 0)
	assert.InDelta(t, 180.0, lon, 1e-9)
	assert.InDelta(t, 0.0, lat, 1e-9)

	assert.True(t, LooksLikeMercator(-11854054, 4681502))
	assert.False(t, LooksLikeMercator(-105, 39))
	assert.False(t, LooksLikeMercator(200, 95))
}
