package opportunity

import (
	"crypto/sha1"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Agency identifies the publishing land-management agency
type Agency string

const (
	AgencyBLM  Agency = "BLM"
	AgencyUSFS Agency = "USFS"
)

// ParseAgency maps free text to an Agency. Returns "" for anything else.
func ParseAgency(s string) Agency {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BLM":
		return AgencyBLM
	case "USFS", "FS":
		return AgencyUSFS
	}
	return ""
}

// GeomSource records which stage produced the coordinate
type GeomSource string

const (
	GeomDirect  GeomSource = "direct"
	GeomDerived GeomSource = "derived"
	GeomNone    GeomSource = "none"
)

// LocationStatus marks whether a record carries a resolvable location
type LocationStatus string

const (
	LocationOK      LocationStatus = "ok"
	LocationUnknown LocationStatus = "unknown"
)

// Columns is the fixed canonical column order for tabular output
var Columns = []string{
	"project_id",
	"agency",
	"title",
	"description",
	"office_or_unit",
	"district",
	"comment_status",
	"comment_start_date",
	"comment_end_date",
	"source_url",
	"state",
	"longitude",
	"latitude",
	"geom_source",
	"location_status",
	"scrape_confidence",
	"last_checked_utc",
}

// Opportunity is one public comment event in canonical form
type Opportunity struct {
	ProjectID      string         `json:"project_id"`
	Agency         Agency         `json:"agency"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	OfficeOrUnit   string         `json:"office_or_unit,omitempty"`
	District       string         `json:"district,omitempty"`
	Status         Status         `json:"comment_status"`
	CommentStart   time.Time      `json:"comment_start_date"`
	CommentEnd     time.Time      `json:"comment_end_date"`
	SourceURL      string         `json:"source_url"`
	State          string         `json:"state,omitempty"`
	Longitude      float64        `json:"longitude"`
	Latitude       float64        `json:"latitude"`
	GeomSource     GeomSource     `json:"geom_source"`
	LocationStatus LocationStatus `json:"location_status"`
	Confidence     float64        `json:"scrape_confidence"`
	LastChecked    time.Time      `json:"last_checked_utc"`
}

// Key returns the uniqueness key used for deduplication
func (o *Opportunity) Key() string {
	return Key(o.Agency, o.ProjectID)
}

// HasLocation reports whether the record can be placed on a map
func (o *Opportunity) HasLocation() bool {
	return o.LocationStatus == LocationOK
}

// Fields renders every canonical column as the string written to disk.
// Tabular and GeoJSON writers both read from here, so values are forced to
// valid UTF-8 before either sees them.
func (o *Opportunity) Fields() map[string]string {
	fields := map[string]string{
		"project_id":         o.ProjectID,
		"agency":             string(o.Agency),
		"title":              o.Title,
		"description":        o.Description,
		"office_or_unit":     o.OfficeOrUnit,
		"district":           o.District,
		"comment_status":     string(o.Status),
		"comment_start_date": FormatDate(o.CommentStart),
		"comment_end_date":   FormatDate(o.CommentEnd),
		"source_url":         o.SourceURL,
		"state":              o.State,
		"longitude":          FormatCoord(o.Longitude),
		"latitude":           FormatCoord(o.Latitude),
		"geom_source":        string(o.GeomSource),
		"location_status":    string(o.LocationStatus),
		"scrape_confidence":  strconv.FormatFloat(o.Confidence, 'f', -1, 64),
		"last_checked_utc":   FormatTimestamp(o.LastChecked),
	}
	for col, v := range fields {
		fields[col] = strings.ToValidUTF8(v, "")
	}
	return fields
}

// Record returns the fields in Columns order
func (o *Opportunity) Record() []string {
	fields := o.Fields()
	rec := make([]string, len(Columns))
	for i, col := range Columns {
		rec[i] = fields[col]
	}
	return rec
}

// FormatCoord writes a coordinate with the shortest exact representation
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatTimestamp returns an RFC3339 UTC timestamp or "" for the zero time
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Key joins agency and identifier into a dedup key
func Key(agency Agency, projectID string) string {
	return string(agency) + "|" + strings.TrimSpace(projectID)
}

// SyntheticID derives a stable identifier for rows that arrive without one.
// The ID stays the same across runs as long as title and URL do.
func SyntheticID(agency Agency, title, sourceURL string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(title), " "))
	h := sha1.New()
	h.Write([]byte(string(agency) + "|" + normalized + "|" + strings.TrimSpace(sourceURL)))
	return fmt.Sprintf("%s-%x", agency, h.Sum(nil)[:6])
}

// IsUnknownID reports whether a scraped identifier is a placeholder
func IsUnknownID(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	return id == "" || id == "unknown" || id == "none" || id == "nan"
}
