package ignore

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/bashhack/autogit/internal/errors"
)

const (
	commentPrefix = "#"
	utf8BOM       = "\uFEFF"
)

// RuleSet is an immutable, parsed rules file. Later patterns take precedence
// over earlier ones, so a "!" pattern can re-include a path.
type RuleSet struct {
	// Source is the file the rules were read from. Empty for the built-in empty set.
	Source string

	// Lines holds the pattern text in file order, comments and blanks removed.
	Lines []string

	matcher gitignore.Matcher
}

// Empty returns a rule set that matches nothing.
func Empty() *RuleSet {
	return &RuleSet{matcher: gitignore.NewMatcher(nil)}
}

// Len returns the number of patterns.
func (r *RuleSet) Len() int {
	return len(r.Lines)
}

// Match reports whether the slash-separated relative path is excluded.
func (r *RuleSet) Match(relPath string, isDir bool) bool {
	if relPath == "" || relPath == "." {
		return false
	}
	return r.matcher.Match(strings.Split(relPath, "/"), isDir)
}

// Load reads and parses the rules file at path.
//
// The file must be UTF-8 text without NUL bytes; anything else is reported
// as a RulesError wrapping ErrMalformedRules. Read failures, including a
// missing file, are returned as a RulesError wrapping the os error.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewRulesError(path, 0, err)
	}
	return Parse(path, data)
}

// Parse builds a RuleSet from the contents of a rules file. source is only
// used for error messages and RuleSet.Source.
func Parse(source string, data []byte) (*RuleSet, error) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		line := bytes.Count(data[:i], []byte("\n")) + 1
		return nil, errors.NewRulesError(source, line, errors.Wrap(errors.ErrMalformedRules, "contains a NUL byte"))
	}

	text := strings.TrimPrefix(string(data), utf8BOM)
	lines := strings.Split(text, "\n")

	var (
		kept     []string
		patterns []gitignore.Pattern
	)
	for i, line := range lines {
		if !utf8.ValidString(line) {
			return nil, errors.NewRulesError(source, i+1, errors.Wrap(errors.ErrMalformedRules, "invalid UTF-8"))
		}

		line = trimTrailingSpace(strings.TrimSuffix(line, "\r"))
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		kept = append(kept, line)
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	return &RuleSet{
		Source:  source,
		Lines:   kept,
		matcher: gitignore.NewMatcher(patterns),
	}, nil
}

// trimTrailingSpace removes trailing blanks unless the last one is escaped
// with a backslash.
func trimTrailingSpace(line string) string {
	if strings.HasSuffix(line, `\ `) {
		return line
	}
	return strings.TrimRight(line, " \t")
}
