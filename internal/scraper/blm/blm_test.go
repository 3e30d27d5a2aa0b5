package blm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/comment-map/internal/opportunity"
	"github.com/pfrederiksen/comment-map/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchHTML = `<html><body>
<a href="/eplanning-ui/project/2033900/510">Sample BLM Project</a>
<a href="https://eplanning.blm.gov/eplanning-ui/project/2027547">Other</a>
<a href="/eplanning-ui/project/2033900/570">Duplicate</a>
<a href="/eplanning-ui/project/2027000">No Comment Language</a>
<a href="/eplanning-ui/home">Home</a>
</body></html>`

const tab510HTML = `<html><head><title>ePlanning</title></head><body>
<h1>Sample BLM Project</h1>
<p>Office: Grand Junction Field Office</p>
<p>Public Participation</p>
<p>Comments are due by September 15, 2025.</p>
</body></html>`

const tab570HTML = `<html><body>
<h1>Ignore This Title</h1>
<p>Scoping Aug 20, 2025 through Sep 10, 2025.</p>
</body></html>`

const noCommentHTML = `<html><body>
<h1>Grazing Permit Renewal</h1>
<p>No dates posted yet.</p>
</body></html>`

const locationJSON = `{"features":[{"attributes":{"projectID":2033900,"X_match":-108.55,"Y_match":39.06}}]}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/eplanning-ui/project/2033900/510": tab510HTML,
		"/eplanning-ui/project/2033900/570": tab570HTML,
		"/eplanning-ui/project/2027000/510": noCommentHTML,
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/eplanning-ui/search":
			w.Write([]byte(searchHTML))
		case r.URL.Path == "/arcgis/query":
			if strings.Contains(r.URL.Query().Get("where"), "2033900") {
				w.Write([]byte(locationJSON))
				return
			}
			w.Write([]byte(`{"features":[]}`))
		default:
			body, ok := pages[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(body))
		}
	}))
}

func newCollector(server *httptest.Server) *Collector {
	checked := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	return New(
		scraper.New(scraper.WithRate(1000, 100)),
		WithBaseURL(server.URL),
		WithLocationURL(server.URL+"/arcgis/query"),
		WithClock(func() time.Time { return checked }),
	)
}

func TestSearchURL(t *testing.T) {
	c := New(scraper.New())
	got := c.SearchURL("co", true, false)

	require.True(t, strings.HasPrefix(got, "https://eplanning.blm.gov/eplanning-ui/search?filterSearch="))
	u, err := url.Parse(got)
	require.NoError(t, err)
	filter := u.Query().Get("filterSearch")
	assert.Contains(t, filter, `"states":["CO"]`)
	assert.Contains(t, filter, `"active":true`)
	assert.Contains(t, filter, `"open":false`)
}

func TestDiscoverProjectIDs(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	ids, err := newCollector(server).DiscoverProjectIDs(context.Background(), "CO")
	require.NoError(t, err)
	assert.Equal(t, []string{"2027000", "2027547", "2033900"}, ids)
}

func TestScrapeProject_MergesTabs(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	p, err := newCollector(server).ScrapeProject(context.Background(), "2033900", "co")
	require.NoError(t, err)

	assert.Equal(t, "Sample BLM Project", p.Title)
	assert.Equal(t, "2025-08-20", opportunity.FormatDate(p.CommentStart))
	assert.Equal(t, "2025-09-15", opportunity.FormatDate(p.CommentEnd))
	assert.True(t, strings.HasSuffix(p.SourceURL, "/2033900/510"))
	assert.Equal(t, "510:true;570:true;565:false", p.NotesTabs)
	assert.Equal(t, 0.8, p.Confidence)
	assert.Equal(t, "Grand Junction Field Office", p.Office)
	assert.Equal(t, "CO", p.State)
	assert.True(t, p.MentionsComment())
}

func TestScrapeProject_NoDates(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	p, err := newCollector(server).ScrapeProject(context.Background(), "2027000", "CO")
	require.NoError(t, err)

	assert.True(t, p.CommentStart.IsZero())
	assert.True(t, p.CommentEnd.IsZero())
	assert.Equal(t, 0.5, p.Confidence)
	assert.False(t, p.MentionsComment())
}

func TestScrapeProject_NoTabs(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	_, err := newCollector(server).ScrapeProject(context.Background(), "2027547", "CO")
	assert.ErrorIs(t, err, ErrNoTabs)
}

func TestScrapeProject_SourceFallsBackToFirstLoadedTab(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/eplanning-ui/project/2040000/570" {
			w.Write([]byte(tab570HTML))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	p, err := newCollector(server).ScrapeProject(context.Background(), "2040000", "CO")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.SourceURL, "/2040000/570"))
	assert.Equal(t, "510:false;570:true;565:false", p.NotesTabs)
}

func TestLookupLocation(t *testing.T) {
	server := newServer(t)
	defer server.Close()
	c := newCollector(server)

	lon, lat, err := c.LookupLocation(context.Background(), "2033900")
	require.NoError(t, err)
	assert.Equal(t, "-108.55", lon)
	assert.Equal(t, "39.06", lat)

	lon, lat, err = c.LookupLocation(context.Background(), "2027000")
	require.NoError(t, err)
	assert.Empty(t, lon)
	assert.Empty(t, lat)
}

func TestLookupLocation_Disabled(t *testing.T) {
	c := New(scraper.New(), WithLocationURL(""))
	lon, lat, err := c.LookupLocation(context.Background(), "2033900")
	require.NoError(t, err)
	assert.Empty(t, lon)
	assert.Empty(t, lat)
}

func TestCollect(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	rows, err := newCollector(server).Collect(context.Background(), "CO")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "2033900", row["project_id"])
	assert.Equal(t, "BLM", row["agency"])
	assert.Equal(t, "Sample BLM Project", row["title"])
	assert.Equal(t, "2025-08-20", row["comment_start_date"])
	assert.Equal(t, "2025-09-15", row["comment_end_date"])
	assert.Equal(t, "-108.55", row["longitude"])
	assert.Equal(t, "39.06", row["latitude"])
	assert.Equal(t, "direct", row["geom_source"])
	assert.Equal(t, "0.8", row["scrape_confidence"])
	assert.Equal(t, "2025-09-01T12:00:00Z", row["last_checked_utc"])
}

func TestCollect_SearchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newCollector(server).Collect(context.Background(), "CO")
	assert.Error(t, err)
}

func TestRow_MissingLocation(t *testing.T) {
	p := &Project{ID: "1", GeomSource: opportunity.GeomNone, Confidence: 0.5}
	row := p.Row()
	assert.Equal(t, "none", row["geom_source"])
	assert.Empty(t, row["longitude"])
	assert.Empty(t, row["comment_end_date"])
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "short text", summarize("short text", 500))
	assert.Equal(t, "Elk Creek", summarize("Elk Creek grazing permit", 12))

	dashes := strings.Repeat("–", 10)
	got := summarize(dashes, 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("–", 3), got)
}
