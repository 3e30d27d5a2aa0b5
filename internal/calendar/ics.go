// Package calendar renders comment deadlines as an iCalendar feed.
package calendar

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

const prodID = "-//comment-map//public comment deadlines//EN"

// GenerateICS generates an iCalendar (.ics) feed with one all-day event on
// the comment end date of each opportunity. Opportunities without a known
// end date are left out.
func GenerateICS(opps []*opportunity.Opportunity, stamp time.Time) string {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	writeLine(&ics, "PRODID:"+prodID)
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	writeLine(&ics, "X-WR-CALNAME:Public comment deadlines")

	for _, o := range opps {
		if o.CommentEnd.IsZero() {
			continue
		}
		writeEvent(&ics, o, stamp)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeEvent(ics *strings.Builder, o *opportunity.Opportunity, stamp time.Time) {
	end := o.CommentEnd.UTC()
	ics.WriteString("BEGIN:VEVENT\r\n")
	writeLine(ics, "UID:"+uid(o))
	writeLine(ics, "DTSTAMP:"+formatICSTime(stamp))
	writeLine(ics, "DTSTART;VALUE=DATE:"+end.Format("20060102"))
	writeLine(ics, "DTEND;VALUE=DATE:"+end.AddDate(0, 0, 1).Format("20060102"))
	writeLine(ics, "SUMMARY:"+escapeICS(fmt.Sprintf("%s comments due: %s", o.Agency, o.Title)))

	desc := []string{fmt.Sprintf("%s project %s", o.Agency, o.ProjectID)}
	if !o.CommentStart.IsZero() {
		desc = append(desc, "Comment period opened "+opportunity.FormatDate(o.CommentStart))
	}
	if o.OfficeOrUnit != "" {
		desc = append(desc, "Office: "+o.OfficeOrUnit)
	}
	if o.District != "" {
		desc = append(desc, "District: "+o.District)
	}
	if o.SourceURL != "" {
		desc = append(desc, "Details: "+o.SourceURL)
	}
	writeLine(ics, "DESCRIPTION:"+escapeICS(strings.Join(desc, "\n")))

	if loc := location(o); loc != "" {
		writeLine(ics, "LOCATION:"+escapeICS(loc))
	}
	if o.HasLocation() {
		writeLine(ics, fmt.Sprintf("GEO:%s;%s", opportunity.FormatCoord(o.Latitude), opportunity.FormatCoord(o.Longitude)))
	}
	if o.SourceURL != "" {
		writeLine(ics, "URL:"+o.SourceURL)
	}
	ics.WriteString("TRANSP:TRANSPARENT\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

func location(o *opportunity.Opportunity) string {
	switch {
	case o.District != "" && o.OfficeOrUnit != "":
		return o.District + ", " + o.OfficeOrUnit
	case o.District != "":
		return o.District
	}
	return o.OfficeOrUnit
}

// uid is stable for an opportunity across feeds
func uid(o *opportunity.Opportunity) string {
	sum := sha1.Sum([]byte(o.Key()))
	return fmt.Sprintf("%x@comment-map", sum[:10])
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\r\n", "\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// writeLine writes one content line, folded at 75 octets without splitting
// a UTF-8 sequence
func writeLine(ics *strings.Builder, line string) {
	// continuation lines spend one octet on the leading space
	limit := 75
	for len(line) > limit {
		cut := limit
		for cut > 0 && !isRuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
		limit = 74
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
