// Package sopa collects public comment notices from the USFS Schedule of
// Proposed Actions (SOPA) reports.
package sopa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/logger"
	"github.com/pfrederiksen/comment-map/internal/metrics"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
	"github.com/pfrederiksen/comment-map/internal/scraper"
)

const (
	BaseURL = "https://www.fs.usda.gov/sopa/"

	// UnknownID marks rows whose listing has no project link
	UnknownID = "unknown"

	listingConfidence = 0.7
	pdfConfidence     = 0.6
	snippetLength     = 500
	noticeWindowDays  = 30

	stage = "collect_usfs"
)

// ErrNotPDF is returned when a report download lacks the PDF magic bytes
var ErrNotPDF = errors.New("not a PDF document")

var (
	unitLinkPattern   = regexp.MustCompile(`forest-level\.php\?(\d+)`)
	projectIDPattern  = regexp.MustCompile(`project=(\d+)`)
	unitLabelPattern  = regexp.MustCompile(`\bUNIT\s*-\s*(.+?)(?:\.\s|\.$|\s+STATE\s*-|$)`)
	rangerDistPattern = regexp.MustCompile(`\b((?:[A-Z][\w.'/-]*\s+){1,5}Ranger Districts?)\b`)
)

// Unit is one SOPA administrative unit (a forest or grassland)
type Unit struct {
	ID   string
	Name string
	URL  string
}

// Collector scrapes SOPA listings and reports
type Collector struct {
	fetcher    *scraper.Fetcher
	baseURL    string
	cycle      string
	scanPDF    bool
	windowDays int
	now        func() time.Time
}

// Option configures a Collector
type Option func(*Collector)

// WithBaseURL points the collector at a different SOPA root
func WithBaseURL(u string) Option {
	return func(c *Collector) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/") + "/"
		}
	}
}

// WithCycle pins the monthly report cycle (YYYY-MM)
func WithCycle(cycle string) Option {
	return func(c *Collector) { c.cycle = cycle }
}

// WithPDFScan enables the monthly PDF fallback scan
func WithPDFScan(enabled bool) Option {
	return func(c *Collector) { c.scanPDF = enabled }
}

// WithNoticeWindow sets the expected length of a noticed comment period
func WithNoticeWindow(days int) Option {
	return func(c *Collector) {
		if days > 0 {
			c.windowDays = days
		}
	}
}

// WithClock fixes the last-checked timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New creates a SOPA collector
func New(f *scraper.Fetcher, opts ...Option) *Collector {
	c := &Collector{
		fetcher:    f,
		baseURL:    BaseURL,
		windowDays: noticeWindowDays,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cycle == "" {
		c.cycle = c.now().Format("2006-01")
	}
	return c
}

// StateURL returns the state-level SOPA index
func (c *Collector) StateURL(state string) string {
	return c.baseURL + "state-level.php?" + strings.ToLower(state)
}

// ReportURL returns the monthly report for a unit, ext is "html" or "pdf"
func (c *Collector) ReportURL(unitID, ext string) string {
	return fmt.Sprintf("%scomponents/reports/sopa-%s-%s.%s", c.baseURL, unitID, c.cycle, ext)
}

// DiscoverUnits lists the units linked from a state index page, in page
// order without duplicates. Links are resolved against stateURL.
func (c *Collector) DiscoverUnits(ctx context.Context, stateURL string) ([]Unit, error) {
	doc, err := c.fetcher.Document(ctx, stateURL)
	if err != nil {
		return nil, fmt.Errorf("loading state index: %w", err)
	}
	base, err := url.Parse(stateURL)
	if err != nil {
		return nil, fmt.Errorf("parsing state URL: %w", err)
	}

	var units []Unit
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := unitLinkPattern.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		seen[m[1]] = true
		units = append(units, Unit{
			ID:   m[1],
			Name: scraper.CleanText(a.Text()),
			URL:  base.ResolveReference(ref).String(),
		})
	})
	return units, nil
}

// ScrapeListing parses a SOPA table and returns one row per table row that
// mentions comment. Rows without a project link get the "unknown" ID.
func (c *Collector) ScrapeListing(ctx context.Context, listingURL, state, officeLabel string) ([]interim.Row, error) {
	doc, err := c.fetcher.Document(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(listingURL)
	checked := opportunity.FormatTimestamp(c.now())

	var rows []interim.Row
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}

		var texts []string
		mentions := false
		cells.Each(func(_ int, td *goquery.Selection) {
			text := scraper.CleanText(td.Text())
			texts = append(texts, text)
			if scraper.MentionsComment(text) {
				mentions = true
			}
		})
		if !mentions {
			return
		}
		rowText := strings.Join(texts, " ")

		title := scraper.CleanText(tr.Find("a").First().Text())
		if title == "" {
			title, _, _ = strings.Cut(texts[0], " - ")
			title = strings.TrimSpace(title)
		}

		projectID, sourceURL := UnknownID, listingURL
		tr.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			m := projectIDPattern.FindStringSubmatch(href)
			if m == nil {
				return true
			}
			projectID = m[1]
			if ref, err := url.Parse(href); err == nil && base != nil {
				sourceURL = base.ResolveReference(ref).String()
			}
			return false
		})

		start, end := scraper.ExtractDateRange(rowText)
		expStart, expEnd := scraper.ExtractNoticeWindow(rowText, c.windowDays)

		rows = append(rows, interim.Row{
			"project_id":             projectID,
			"agency":                 string(opportunity.AgencyUSFS),
			"title":                  title,
			"description":            truncate(rowText, snippetLength),
			"unit":                   unitName(texts, rowText),
			"office_or_unit":         officeLabel,
			"comment_start_date":     opportunity.FormatDate(start),
			"comment_end_date":       opportunity.FormatDate(end),
			"expected_comment_start": opportunity.FormatDate(expStart),
			"expected_comment_end":   opportunity.FormatDate(expEnd),
			"source_url":             sourceURL,
			"state":                  strings.ToUpper(state),
			"scrape_confidence":      strconv.FormatFloat(listingConfidence, 'f', -1, 64),
			"last_checked_utc":       checked,
		})
	})
	return rows, nil
}

// unitName finds the ranger district a listing row belongs to
func unitName(cells []string, rowText string) string {
	for _, cell := range cells {
		if m := unitLabelPattern.FindStringSubmatch(cell); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if m := rangerDistPattern.FindStringSubmatch(rowText); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ScanPDF downloads a monthly report and emits a single low-confidence row
// when its text mentions public comment.
func (c *Collector) ScanPDF(ctx context.Context, pdfURL, state, officeLabel string) ([]interim.Row, error) {
	body, err := c.fetcher.Get(ctx, pdfURL)
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(body[:min(len(body), 1024)], []byte("%PDF")) {
		return nil, ErrNotPDF
	}

	text, err := extractPDFText(body)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", pdfURL, err)
	}
	return c.pdfRows(text, pdfURL, state, officeLabel), nil
}

func (c *Collector) pdfRows(text, pdfURL, state, officeLabel string) []interim.Row {
	idx := strings.Index(strings.ToLower(text), "public comment")
	if idx < 0 {
		return nil
	}

	start, end := scraper.ExtractDateRange(text)
	expStart, expEnd := scraper.ExtractNoticeWindow(text, c.windowDays)

	return []interim.Row{{
		"project_id":             UnknownID,
		"agency":                 string(opportunity.AgencyUSFS),
		"title":                  "Schedule of Proposed Actions - " + officeLabel,
		"description":            truncate(scraper.CleanText(text[idx:]), snippetLength),
		"unit":                   "",
		"office_or_unit":         officeLabel,
		"comment_start_date":     opportunity.FormatDate(start),
		"comment_end_date":       opportunity.FormatDate(end),
		"expected_comment_start": opportunity.FormatDate(expStart),
		"expected_comment_end":   opportunity.FormatDate(expEnd),
		"source_url":             pdfURL,
		"state":                  strings.ToUpper(state),
		"scrape_confidence":      strconv.FormatFloat(pdfConfidence, 'f', -1, 64),
		"last_checked_utc":       opportunity.FormatTimestamp(c.now()),
	}}
}

// extractPDFText returns the plain text of every page. The PDF reader
// panics on some malformed files, which is reported as an error.
func extractPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Units returns the units to visit for state: discovered from the state
// index, or the built-in list when discovery fails or finds nothing.
func (c *Collector) Units(ctx context.Context, state string) ([]Unit, error) {
	units, err := c.DiscoverUnits(ctx, c.StateURL(state))
	if err == nil && len(units) > 0 {
		return units, nil
	}

	known := KnownUnits[strings.ToUpper(state)]
	if len(known) == 0 {
		if err == nil {
			err = fmt.Errorf("no SOPA units found for %s", state)
		}
		return nil, err
	}
	if err != nil {
		logger.Warn("SOPA unit discovery failed, using built-in list", logger.Fields{"state": state}, err)
	}

	units = make([]Unit, len(known))
	for i, u := range known {
		u.URL = c.baseURL + "forest-level.php?" + u.ID
		units[i] = u
	}
	return units, nil
}

// Collect scrapes every unit's monthly report, then its PDF when enabled.
// A unit that fails is logged and skipped.
func (c *Collector) Collect(ctx context.Context, state string) ([]interim.Row, error) {
	units, err := c.Units(ctx, state)
	if err != nil {
		return nil, err
	}
	logger.Info("Scraping SOPA units", logger.Fields{"state": state, "units": len(units), "cycle": c.cycle})
	return c.CollectUnits(ctx, units, state)
}

// CollectUnits scrapes an explicit list of units
func (c *Collector) CollectUnits(ctx context.Context, units []Unit, state string) ([]interim.Row, error) {
	var all []interim.Row
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		rows, err := c.ScrapeListing(ctx, c.ReportURL(unit.ID, "html"), state, unit.Name)
		if err != nil {
			logger.Warn("Skipping SOPA listing", logger.Fields{"unit": unit.Name, "unit_id": unit.ID}, err)
			metrics.IncFailure(stage, "listing")
		}
		all = append(all, rows...)

		if !c.scanPDF {
			continue
		}
		rows, err = c.ScanPDF(ctx, c.ReportURL(unit.ID, "pdf"), state, unit.Name)
		if err != nil {
			logger.Warn("Skipping SOPA PDF", logger.Fields{"unit": unit.Name, "unit_id": unit.ID}, err)
			metrics.IncFailure(stage, "pdf")
		}
		all = append(all, rows...)
	}

	metrics.AddRecords(stage, string(opportunity.AgencyUSFS), len(all))
	return all, nil
}
