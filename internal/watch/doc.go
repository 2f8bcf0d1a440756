// Package watch turns fsnotify notifications for a directory tree into a
// stream of Events.
//
// fsnotify watches single directories, so the Watcher walks the tree at
// startup and again for every directory created while it runs. Files found in
// a freshly created directory are reported as Created, since they may have
// been written before the new watch was in place.
//
// Chmod-only notifications are dropped. Removal or rename of the root itself
// ends Run with an error wrapping errors.ErrWatchSourceLost; a kernel queue
// overflow is only logged.
package watch
