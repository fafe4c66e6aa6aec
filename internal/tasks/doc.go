// Package tasks downloads a playlist snapshot with a bounded pool of workers.
//
// # Core Operations
//
//  1. [DownloadTask.Execute] : one video
//     - Skips videos already in the ledger without touching the network
//     - Fetches with the run's resolution constraint, retrying transient and unknown failures
//     - Stops at once on permanently unavailable videos or when no stream fits the constraint
//
//  2. [Orchestrator.Run] : the whole snapshot
//     - Dispatches entries in playlist order to at most five workers
//     - Records each success in the ledger before the worker takes its next entry
//     - Stops dispatching on cancellation; entries never started are counted as remaining
//
//  3. [AutoClean] : removes downloaded videos from the remote playlist, after a run only
//
// # Progress Reporting
//
// [ProgressUpdate] values are sent on an optional channel with select/default, so a slow
// or absent reader never stalls a worker.
package tasks
