// Package cli implements the comment-map command-line interface.
//
// The cli package provides the Cobra-based CLI with one command per pipeline
// stage (collect, enrich, standardize, publish, stage), a build command that
// reruns only stale stages from the pipeline manifest, and a diff command
// that reports new, changed and removed opportunities in text or JSON. Stage
// commands and build share the same stage functions, so a stage run by hand
// and a stage run by build write identical files.
package cli
