// Package schedule is the wall-clock glue: it registers every periodic job
// of the pipeline on a cron runner in local time.
//
// Jobs run in parallel with one another, but each job id is serial with
// itself: a tick that would overlap a still-running instance of the same job
// is skipped. Panics inside a job are recovered and logged so one bad cycle
// never takes the scheduler down.
package schedule
