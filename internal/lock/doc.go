// Package lock keeps two autogit watchers from committing to the same
// working tree.
//
// The lock is a file in the system temp directory named after a hash of the
// working tree path. The owner holds an exclusive flock(2) on it and records
// its PID inside. A lock file left behind by a process that exited is taken
// over; a lock held by a live process yields a LockError wrapping
// ErrAlreadyRunning.
//
// Only Unix-like systems are supported.
package lock
