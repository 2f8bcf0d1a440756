package ignore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bashhack/autogit/internal/errors"
	"github.com/bashhack/autogit/internal/logger"
)

func quietLogger() logger.Logger {
	return logger.NewWithOutput(false, "", false, io.Discard, io.Discard)
}

func writeRules(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMatcherIsIgnored(t *testing.T) {
	root := t.TempDir()
	rulesPath := filepath.Join(root, ".gitignore")
	writeRules(t, rulesPath, "*.log\nnode_modules/\n")

	m, err := NewMatcher(root, rulesPath, quietLogger())
	require.NoError(t, err)

	tests := map[string]struct {
		path string
		want bool
	}{
		"tracked file":        {path: filepath.Join(root, "main.go"), want: false},
		"ignored by glob":     {path: filepath.Join(root, "logs", "build.log"), want: true},
		"ignored by dir rule": {path: filepath.Join(root, "node_modules", "x", "index.js"), want: true},
		"git internals":       {path: filepath.Join(root, ".git", "index"), want: true},
		"git dir itself":      {path: filepath.Join(root, ".git"), want: true},
		"gitignore tracked":   {path: rulesPath, want: false},
		"relative input":      {path: "src/app.go", want: false},
		"outside root":        {path: filepath.Join(filepath.Dir(root), "elsewhere.txt"), want: true},
		"sibling with prefix": {path: root + "-other" + string(filepath.Separator) + "file.txt", want: true},
		"dotgit-like name":    {path: filepath.Join(root, ".github", "ci.yml"), want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.IsIgnored(tc.path))
		})
	}
}

func TestMatcherLogsDecisions(t *testing.T) {
	root := t.TempDir()
	rulesPath := filepath.Join(root, ".gitignore")
	writeRules(t, rulesPath, "*.log\n")

	var out bytes.Buffer
	m, err := NewMatcher(root, rulesPath, logger.NewWithOutput(false, "", true, &out, io.Discard))
	require.NoError(t, err)

	m.IsIgnored(filepath.Join(root, "a.log"))
	m.IsIgnored(filepath.Join(root, "b.txt"))

	assert.Contains(t, out.String(), "Ignoring changes in: a.log")
	assert.Contains(t, out.String(), "Tracking changes in: b.txt")
}

func TestMatcherMissingRulesFile(t *testing.T) {
	root := t.TempDir()

	var out bytes.Buffer
	m, err := NewMatcher(root, filepath.Join(root, ".gitignore"), logger.NewWithOutput(false, "", true, &out, io.Discard))
	require.NoError(t, err)

	assert.Equal(t, 0, m.Rules().Len())
	assert.False(t, m.IsIgnored(filepath.Join(root, "a.log")))
	assert.Contains(t, out.String(), "not found")
}

func TestMatcherMalformedAtStartup(t *testing.T) {
	root := t.TempDir()
	rulesPath := filepath.Join(root, ".gitignore")
	writeRules(t, rulesPath, "\x00")

	_, err := NewMatcher(root, rulesPath, quietLogger())
	assert.True(t, errors.Is(err, errors.ErrMalformedRules))
}

func TestMatcherReload(t *testing.T) {
	root := t.TempDir()
	rulesPath := filepath.Join(root, ".gitignore")
	writeRules(t, rulesPath, "*.log\n")

	m, err := NewMatcher(root, rulesPath, quietLogger())
	require.NoError(t, err)
	require.True(t, m.IsIgnored(filepath.Join(root, "a.log")))

	writeRules(t, rulesPath, "*.tmp\n")
	require.NoError(t, m.Reload())

	assert.False(t, m.IsIgnored(filepath.Join(root, "a.log")))
	assert.True(t, m.IsIgnored(filepath.Join(root, "a.tmp")))
}

func TestMatcherReloadFailureKeepsPrevious(t *testing.T) {
	root := t.TempDir()
	rulesPath := filepath.Join(root, ".gitignore")
	writeRules(t, rulesPath, "*.log\n")

	m, err := NewMatcher(root, rulesPath, quietLogger())
	require.NoError(t, err)
	before := m.Rules()

	writeRules(t, rulesPath, "*.tmp\n\xff\n")
	err = m.Reload()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedRules))
	assert.Same(t, before, m.Rules())
	assert.True(t, m.IsIgnored(filepath.Join(root, "a.log")))

	require.NoError(t, os.Remove(rulesPath))
	require.Error(t, m.Reload())
	assert.Same(t, before, m.Rules())
}

func TestMatcherConcurrentReload(t *testing.T) {
	root := t.TempDir()
	rulesPath := filepath.Join(root, ".gitignore")
	writeRules(t, rulesPath, "*.log\n")

	m, err := NewMatcher(root, rulesPath, quietLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = m.Reload()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.True(t, m.IsIgnored(filepath.Join(root, "x.log")))
			}
		}()
	}
	wg.Wait()
}

func TestRelative(t *testing.T) {
	root := t.TempDir()
	m, err := NewMatcher(root, filepath.Join(root, ".gitignore"), quietLogger())
	require.NoError(t, err)

	rel, ok := m.Relative(filepath.Join(root, "a", "b.txt"))
	assert.True(t, ok)
	assert.Equal(t, "a/b.txt", rel)

	_, ok = m.Relative(filepath.Dir(root))
	assert.False(t, ok)
}
