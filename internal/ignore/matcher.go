package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bashhack/autogit/internal/errors"
	"github.com/bashhack/autogit/internal/logger"
)

// gitDir is never tracked regardless of the rules.
const gitDir = ".git"

// Matcher classifies paths under a root against the current RuleSet.
// The rule set is replaced atomically by Reload, so IsIgnored may be called
// from any goroutine while a reload is in progress.
type Matcher struct {
	root      string
	rulesPath string
	rules     atomic.Pointer[RuleSet]
	logger    logger.Logger
}

// NewMatcher loads the rules at rulesPath for paths under root. A missing
// rules file yields an empty rule set and a warning. A malformed or
// unreadable file is returned as an error.
func NewMatcher(root, rulesPath string, log logger.Logger) (*Matcher, error) {
	m := &Matcher{
		root:      filepath.Clean(root),
		rulesPath: filepath.Clean(rulesPath),
		logger:    log,
	}

	rs, err := Load(m.rulesPath)
	switch {
	case err == nil:
		m.rules.Store(rs)
		m.logger.Info("Loaded %d ignore rules from %s", rs.Len(), m.rulesPath)
	case errors.Is(err, os.ErrNotExist):
		m.rules.Store(Empty())
		m.logger.Warning("Ignore rules file %s not found, tracking every path", m.rulesPath)
	default:
		return nil, err
	}
	return m, nil
}

// RulesPath returns the absolute path of the rules file.
func (m *Matcher) RulesPath() string {
	return m.rulesPath
}

// Rules returns the rule set currently in effect.
func (m *Matcher) Rules() *RuleSet {
	return m.rules.Load()
}

// Reload re-reads the rules file and swaps it in. On failure the previous
// rule set stays in effect and the error is returned.
func (m *Matcher) Reload() error {
	rs, err := Load(m.rulesPath)
	if err != nil {
		m.logger.Warning("Keeping previous ignore rules: %v", err)
		return err
	}

	m.rules.Store(rs)
	m.logger.Info("Reloaded %d ignore rules from %s", rs.Len(), m.rulesPath)
	return nil
}

// IsIgnored reports whether a change at path should be dropped. The path is
// relativized against the root structurally; paths outside the root and
// paths inside the .git directory are always ignored.
func (m *Matcher) IsIgnored(path string) bool {
	rel, ok := m.relative(path)
	if !ok {
		m.logger.Info("Ignoring changes outside the watched tree: %s", path)
		return true
	}

	if isGitPath(rel) || m.rules.Load().Match(rel, false) {
		m.logger.Info("Ignoring changes in: %s", rel)
		return true
	}

	m.logger.Info("Tracking changes in: %s", rel)
	return false
}

// Relative returns path relative to the root in slash form, or false when it
// does not lie under the root.
func (m *Matcher) Relative(path string) (string, bool) {
	return m.relative(path)
}

func (m *Matcher) relative(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.root, path)
	}

	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func isGitPath(rel string) bool {
	first, _, _ := strings.Cut(rel, "/")
	return first == gitDir
}
