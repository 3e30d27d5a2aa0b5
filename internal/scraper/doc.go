// Package scraper provides the HTTP fetching and date extraction shared by
// the agency collectors.
//
// The Fetcher sets a descriptive User-Agent, applies a request timeout and
// rate-limits requests per host so that walking dozens of project pages stays
// polite. Date extraction turns free agency prose ("Comments are due by
// September 15, 2025") into a best-effort comment window.
package scraper
