// Package opportunity defines the canonical public comment record shared by
// every pipeline stage.
//
// An Opportunity is one public-comment event published by BLM or USFS. The
// package owns the canonical column set, comment status classification,
// best-effort date parsing, stable identity keys, and snapshot diffing
// between two published sets.
package opportunity
