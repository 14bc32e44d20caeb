// Package tasks runs download jobs in the background and tracks their progress.
//
// # Pipeline
//
// [Engine] runs one job strictly in order:
//
//  1. status becomes downloading, current resets to 0
//  2. the job's working directory is recreated and any earlier archive for the job id removed
//  3. the link is resolved into songs, unless the caller supplied them; total is set
//  4. each song is fetched in turn; a failed fetch is recorded as a [models.ItemResult] and skipped
//  5. if anything was fetched the working directory is zipped and the job is done, otherwise it ends in error
//
// Any fault outside a single fetch (resolution, directory setup, archiving, a panic) ends the job in error
// with the message "Job failed: <reason>". A job never stays in downloading after its goroutine exits.
//
// # Job Controller
//
// [Manager] owns a map of job id to live state. Every mutation goes through the state's methods, and
// readers get copies ([models.Job], [models.Report]), so pollers never observe a half-written update.
// Jobs run on an [errgroup.Group] limited to ManagerOpts.MaxJobs; each job gets its own working directory
// and archive, so concurrent jobs never clobber each other. Each job keeps its cancel func and a done
// channel, which back [Manager.Cancel], [Manager.Wait] and [Manager.Shutdown].
//
// The legacy single-job HTTP routes read [Manager.Latest], the most recently started job.
//
// # Progress Reporting
//
// Besides the polled snapshots, the engine emits [ProgressUpdate] values on an optional channel.
// Updates use select with default so a slow consumer never stalls a job.
//
// # History
//
// When a [HistoryRecorder] is configured, every finished job is persisted together with its item results.
package tasks
