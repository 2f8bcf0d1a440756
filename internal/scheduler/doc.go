// Package scheduler turns a stream of commit requests into debounced,
// strictly serialized commits.
//
// The scheduler has two observable states. Idle means nothing is queued or
// running. Busy starts synchronously inside Submit, so two requests racing
// from different goroutines can never both start a cycle, and ends when a
// commit finishes with no follow-up request waiting.
//
// Exit status decides the outcome: a clean tree is NothingToCommit, any other
// failure is Failed. Both output streams are kept on the Result, and
// non-empty stderr on a successful commit is logged as a warning.
package scheduler
