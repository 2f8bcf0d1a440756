package watch

import "github.com/fsnotify/fsnotify"

// Op is the kind of change a filesystem event reports.
type Op int

const (
	Created Op = iota + 1
	Modified
	Removed
	Renamed
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is one change under the watched root. Path is absolute.
type Event struct {
	Path  string
	IsDir bool
	Op    Op
}

// opFromNotify maps an fsnotify operation to an Op. Chmod-only events report
// false and are dropped.
func opFromNotify(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Created, true
	case op.Has(fsnotify.Remove):
		return Removed, true
	case op.Has(fsnotify.Rename):
		return Renamed, true
	case op.Has(fsnotify.Write):
		return Modified, true
	default:
		return 0, false
	}
}
