// Package blm collects public comment notices from BLM ePlanning.
//
// Project IDs are discovered from the ePlanning search page for a state.
// Each project's participation tabs are fetched and merged: the earliest
// start and latest end across tabs form the comment window, and the ArcGIS
// project-location layer supplies coordinates when it knows the project.
package blm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/logger"
	"github.com/pfrederiksen/comment-map/internal/metrics"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
	"github.com/pfrederiksen/comment-map/internal/scraper"
)

const (
	BaseURL     = "https://eplanning.blm.gov"
	LocationURL = "https://eplanning.blm.gov/arcgisfed/rest/services/Proj_Loc_FO/BLM_ePlan_Proj_Loc/MapServer/4/query"

	// PrimaryTab is the project overview and preferred source URL
	PrimaryTab = "510"

	stage = "collect_blm"
)

// DefaultTabs are the participation tabs that tend to hold notices
var DefaultTabs = []string{"510", "570", "565"}

// ErrNoTabs means none of a project's tabs could be loaded
var ErrNoTabs = errors.New("no project tabs loaded")

var (
	projectLinkPattern = regexp.MustCompile(`/eplanning-ui/project/(\d{6,})`)
	officePattern      = regexp.MustCompile(`\b((?:[A-Z][a-z]+ ){1,4}(?:Field|District) Office)\b`)
)

// Collector scrapes ePlanning projects for one state
type Collector struct {
	fetcher     *scraper.Fetcher
	baseURL     string
	locationURL string
	tabs        []string
	now         func() time.Time
}

// Option configures a Collector
type Option func(*Collector)

// WithBaseURL points the collector at a different ePlanning host
func WithBaseURL(u string) Option {
	return func(c *Collector) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLocationURL overrides the ArcGIS project location query endpoint.
// An empty string disables the lookup.
func WithLocationURL(u string) Option {
	return func(c *Collector) { c.locationURL = u }
}

// WithTabs sets which project tabs are visited, in priority order
func WithTabs(tabs []string) Option {
	return func(c *Collector) {
		if len(tabs) > 0 {
			c.tabs = tabs
		}
	}
}

// WithClock fixes the last-checked timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New creates a BLM collector
func New(f *scraper.Fetcher, opts ...Option) *Collector {
	c := &Collector{
		fetcher:     f,
		baseURL:     BaseURL,
		locationURL: LocationURL,
		tabs:        DefaultTabs,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchFilter struct {
	States       []string `json:"states"`
	Offices      []string `json:"offices"`
	ProjectTypes []string `json:"projectTypes"`
	Programs     []string `json:"programs"`
	Years        []string `json:"years"`
	Open         bool     `json:"open"`
	Active       bool     `json:"active"`
}

// SearchURL builds the ePlanning search page URL for a state
func (c *Collector) SearchURL(state string, active, openOnly bool) string {
	filter, _ := json.Marshal(searchFilter{
		States: []string{strings.ToUpper(state)},
		Open:   openOnly,
		Active: active,
	})
	return c.baseURL + "/eplanning-ui/search?filterSearch=" + url.QueryEscape(string(filter))
}

// ProjectURL returns the URL of one project tab
func (c *Collector) ProjectURL(projectID, tab string) string {
	return fmt.Sprintf("%s/eplanning-ui/project/%s/%s", c.baseURL, projectID, tab)
}

// DiscoverProjectIDs returns the unique project IDs linked from the search page, sorted
func (c *Collector) DiscoverProjectIDs(ctx context.Context, state string) ([]string, error) {
	searchURL := c.SearchURL(state, true, false)
	doc, err := c.fetcher.Document(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("loading search page: %w", err)
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if m := projectLinkPattern.FindStringSubmatch(href); m != nil {
			seen[m[1]] = true
		}
	})

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// TabPage is the text captured from one project tab
type TabPage struct {
	Tab    string
	URL    string
	Title  string
	Text   string
	Loaded bool
}

// FetchTabs loads every configured tab for a project. A tab that fails is
// returned with Loaded false; it never aborts the others.
func (c *Collector) FetchTabs(ctx context.Context, projectID string) []TabPage {
	pages := make([]TabPage, 0, len(c.tabs))
	for _, tab := range c.tabs {
		page := TabPage{Tab: tab, URL: c.ProjectURL(projectID, tab)}

		doc, err := c.fetcher.Document(ctx, page.URL)
		if err != nil {
			logger.Debug("Tab not available", logger.Fields{"project_id": projectID, "tab": tab, "error": err.Error()})
			pages = append(pages, page)
			continue
		}

		page.Loaded = true
		page.Title = pageTitle(doc)
		page.Text = scraper.CleanText(doc.Find("body").Text())
		pages = append(pages, page)
	}
	return pages
}

func pageTitle(doc *goquery.Document) string {
	if h1 := scraper.CleanText(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return scraper.CleanText(doc.Find("title").First().Text())
}

// Project is the merged result of scraping one ePlanning project
type Project struct {
	ID           string
	State        string
	Title        string
	Description  string
	Office       string
	CommentStart time.Time
	CommentEnd   time.Time
	SourceURL    string
	Longitude    string
	Latitude     string
	GeomSource   opportunity.GeomSource
	Confidence   float64
	NotesTabs    string
	Text         string
	CheckedAt    time.Time
}

// MentionsComment reports whether any tab talks about public comment
func (p *Project) MentionsComment() bool {
	return scraper.MentionsComment(p.Text)
}

// ScrapeProject visits a project's tabs and merges what they say.
// The primary tab supplies title and URL when it loaded; dates merge to the
// earliest start and latest end seen on any tab.
func (c *Collector) ScrapeProject(ctx context.Context, projectID, state string) (*Project, error) {
	pages := c.FetchTabs(ctx, projectID)

	p := &Project{
		ID:         projectID,
		State:      strings.ToUpper(state),
		GeomSource: opportunity.GeomNone,
		CheckedAt:  c.now(),
	}

	var primary *TabPage
	var texts, notes []string
	for i := range pages {
		page := &pages[i]
		notes = append(notes, page.Tab+":"+strconv.FormatBool(page.Loaded))
		if !page.Loaded {
			continue
		}
		if primary == nil || (page.Tab == PrimaryTab && primary.Tab != PrimaryTab) {
			primary = page
		}
		texts = append(texts, page.Text)

		start, end := scraper.ExtractDateRange(page.Text)
		if !start.IsZero() && (p.CommentStart.IsZero() || start.Before(p.CommentStart)) {
			p.CommentStart = start
		}
		if !end.IsZero() && end.After(p.CommentEnd) {
			p.CommentEnd = end
		}
	}
	p.NotesTabs = strings.Join(notes, ";")

	if primary == nil {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNoTabs)
	}

	p.SourceURL = primary.URL
	p.Title = primary.Title
	p.Text = strings.Join(texts, "\n")
	p.Description = summarize(primary.Text, 500)
	if m := officePattern.FindStringSubmatch(primary.Text); m != nil {
		p.Office = strings.TrimSpace(m[1])
	}

	switch {
	case !p.CommentStart.IsZero() || !p.CommentEnd.IsZero():
		p.Confidence = 0.8
	case p.Text != "":
		p.Confidence = 0.5
	}

	return p, nil
}

func summarize(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := strings.LastIndex(text[:limit], " ")
	if cut <= 0 {
		cut = limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	return text[:cut]
}

type locationResponse struct {
	Features []struct {
		Attributes map[string]interface{} `json:"attributes"`
	} `json:"features"`
}

// LookupLocation asks the ArcGIS project-location layer for a project's point.
// Returns empty strings when the layer has no match.
func (c *Collector) LookupLocation(ctx context.Context, projectID string) (lon, lat string, err error) {
	if c.locationURL == "" {
		return "", "", nil
	}

	params := url.Values{}
	params.Set("f", "json")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "false")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("where", "projectID="+projectID)

	body, err := c.fetcher.Get(ctx, c.locationURL+"?"+params.Encode())
	if err != nil {
		return "", "", err
	}

	var resp locationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", fmt.Errorf("parsing location response: %w", err)
	}
	if len(resp.Features) == 0 {
		return "", "", nil
	}

	attrs := resp.Features[0].Attributes
	x, okX := number(attrs["X_match"])
	y, okY := number(attrs["Y_match"])
	if !okX || !okY {
		return "", "", nil
	}
	return opportunity.FormatCoord(x), opportunity.FormatCoord(y), nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, n != 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && f != 0
	}
	return 0, false
}

// Collect discovers and scrapes every project for state, keeping only those
// that mention public comment. Failures for one project are logged and skipped.
func (c *Collector) Collect(ctx context.Context, state string) ([]interim.Row, error) {
	ids, err := c.DiscoverProjectIDs(ctx, state)
	if err != nil {
		return nil, err
	}
	logger.Info("Discovered BLM projects", logger.Fields{"state": state, "count": len(ids)})
	return c.CollectProjects(ctx, ids, state)
}

// CollectProjects scrapes an explicit list of project IDs
func (c *Collector) CollectProjects(ctx context.Context, ids []string, state string) ([]interim.Row, error) {
	rows := make([]interim.Row, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		p, err := c.ScrapeProject(ctx, id, state)
		if err != nil {
			logger.Warn("Skipping BLM project", logger.Fields{"project_id": id}, err)
			metrics.IncFailure(stage, "fetch")
			continue
		}
		if !p.MentionsComment() {
			logger.Debug("No public comment language", logger.Fields{"project_id": id})
			continue
		}

		lon, lat, err := c.LookupLocation(ctx, id)
		if err != nil {
			logger.Warn("ArcGIS location lookup failed", logger.Fields{"project_id": id}, err)
			metrics.IncFailure(stage, "location")
		}
		if lon != "" && lat != "" {
			p.Longitude, p.Latitude = lon, lat
			p.GeomSource = opportunity.GeomDirect
		}

		rows = append(rows, p.Row())
	}

	metrics.AddRecords(stage, string(opportunity.AgencyBLM), len(rows))
	return rows, nil
}

// Row renders the project as a BLM interim row
func (p *Project) Row() interim.Row {
	return interim.Row{
		"project_id":         p.ID,
		"agency":             string(opportunity.AgencyBLM),
		"title":              p.Title,
		"description":        p.Description,
		"office_or_unit":     p.Office,
		"comment_start_date": opportunity.FormatDate(p.CommentStart),
		"comment_end_date":   opportunity.FormatDate(p.CommentEnd),
		"source_url":         p.SourceURL,
		"state":              p.State,
		"latitude":           p.Latitude,
		"longitude":          p.Longitude,
		"geom_source":        string(p.GeomSource),
		"scrape_confidence":  strconv.FormatFloat(p.Confidence, 'f', -1, 64),
		"notes_tabs":         p.NotesTabs,
		"last_checked_utc":   opportunity.FormatTimestamp(p.CheckedAt),
	}
}
