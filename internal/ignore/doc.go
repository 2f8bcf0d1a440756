// Package ignore decides which changed paths are worth committing.
//
// Rules use gitignore syntax and are parsed with go-git's
// plumbing/format/gitignore package. A Matcher owns the rule set currently in
// effect behind an atomic pointer: Reload builds a complete new RuleSet and
// swaps it in, and a reload that fails leaves the previous set untouched.
//
// Paths are relativized against the watched root with filepath.Rel rather
// than by string prefix, so "/repo-other/x" is never mistaken for a path under
// "/repo". Paths outside the root and anything under .git are always ignored.
package ignore
