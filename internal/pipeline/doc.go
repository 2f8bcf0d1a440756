// Package pipeline connects a filesystem watch to the commit scheduler and
// the push counter.
//
// A Pipeline optionally commits whatever was left uncommitted before it
// started, then reads events from its Source. Changes to the ignore rules
// file reload the matcher before the event is classified. Directory events
// and ignored paths are dropped; every other change becomes a commit request
// for the scheduler. Commit results flow into the push counter, which pushes
// once enough commits have accumulated.
//
// Run returns when its context is cancelled or the watch is lost. Before it
// returns the scheduler commits any request still waiting for its debounce
// window and in-flight pushes are allowed to finish.
package pipeline
