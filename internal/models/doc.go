// Package models defines the value types shared by every stage of a download run.
//
//   - [VideoEntry] and [Snapshot] : the ordered playlist captured at fetch time
//   - [Quality] and [ResolutionConstraint] : quality tiers and the acceptable range for a run
//   - [Outcome] : the terminal result of one entry
//   - [RunSummary] : outcome counts plus the outcomes in completion order
//   - [PlaylistInfo] : playlist metadata for listing
//
// Entries are immutable once fetched. Outcomes are produced by download tasks and only
// aggregated by the orchestrator.
package models
