// Package storage provides JSON-based persistence for published snapshots.
//
// Each publish leaves a snapshot of the opportunities it wrote so the next
// run can report what is new, changed, or gone. Snapshots are stored per
// state (snapshot_STATE.json) with a combined file for all states
// (snapshot.json) under the pipeline data directory.
package storage
