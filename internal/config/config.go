package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	autogitErrors "github.com/bashhack/autogit/internal/errors"
)

const (
	// FileName is the optional per-tree configuration file, read from the
	// watched root.
	FileName = ".autogit.yaml"

	// DefaultRulesFile is the ignore rules file, relative to the watched root.
	DefaultRulesFile = ".gitignore"

	// DefaultDebounce is how long the scheduler waits after the first change
	// of a burst before committing. Every change arriving inside this window is
	// folded into the same commit.
	DefaultDebounce = 2 * time.Second

	// DefaultPushThreshold is the number of successful commits between pushes.
	// Zero disables count-triggered pushes.
	DefaultPushThreshold = 10

	// DefaultPushCommand is run in the working tree when a push is due.
	// The tokens {branch} and {root} are substituted before execution.
	DefaultPushCommand = "git push origin"

	// DefaultCommitPrefix starts every commit message autogit writes:
	// "<prefix> changes in <path>".
	DefaultCommitPrefix = "auto:"

	// DefaultEventBuffer is the capacity of the channel between the
	// filesystem watcher and the pipeline.
	DefaultEventBuffer = 256

	envPrefix = "AUTOGIT_"
)

// Config holds all autogit settings.
// Values are layered: defaults, then the YAML file in the watched root, then
// AUTOGIT_* environment variables, then command-line flags.
type Config struct {
	// RepoPath is the absolute, symlink-resolved working tree being watched.
	RepoPath string `yaml:"-"`

	// RulesFile is the gitignore-style rules file. Relative paths are resolved
	// against RepoPath.
	RulesFile string `yaml:"rules_file"`

	// Debounce is the commit delay after the first change of a burst.
	Debounce time.Duration `yaml:"debounce"`

	// PushThreshold is the number of commits between pushes; 0 disables.
	PushThreshold int `yaml:"push_threshold"`

	// PushCommand is the command line used to push.
	PushCommand string `yaml:"push_command"`

	// PushSchedule is an optional standard cron expression. When set, pending
	// commits are also pushed on this schedule.
	PushSchedule string `yaml:"push_schedule"`

	// CommitPrefix starts every commit message.
	CommitPrefix string `yaml:"commit_prefix"`

	// CatchUp commits changes made while no watcher was running.
	CatchUp bool `yaml:"catch_up"`

	// EventBuffer is the watcher channel capacity.
	EventBuffer int `yaml:"event_buffer"`

	// Verbose echoes path classification and warnings to stdout.
	Verbose bool `yaml:"verbose"`

	// Debug enables the structured debug log file.
	Debug bool `yaml:"debug"`

	// LogFile is the debug log path. Defaults to a per-repository file under
	// the XDG data directory.
	LogFile string `yaml:"log_file"`

	// MetricsAddr, when set, serves Prometheus metrics on /metrics.
	MetricsAddr string `yaml:"metrics_addr"`

	// VersionInfo is injected at build time.
	VersionInfo VersionInfo `yaml:"-"`
}

// VersionInfo contains build-time version metadata.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		RulesFile:     DefaultRulesFile,
		Debounce:      DefaultDebounce,
		PushThreshold: DefaultPushThreshold,
		PushCommand:   DefaultPushCommand,
		CommitPrefix:  DefaultCommitPrefix,
		CatchUp:       true,
		EventBuffer:   DefaultEventBuffer,
		Verbose:       true,

		VersionInfo: VersionInfo{
			Version: "dev",
			Commit:  "unknown",
			Date:    "unknown",
		},
	}
}

// Load builds the configuration for the working tree at path, applying every
// layer in order and finalizing the result. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	c := New()

	root, err := ResolveRepoPath(path)
	if err != nil {
		return nil, err
	}
	c.RepoPath = root

	if err := c.LoadFile(filepath.Join(root, FileName)); err != nil {
		return nil, err
	}
	c.LoadFromEnvironment()

	if fs != nil {
		if err := c.ApplyFlags(fs); err != nil {
			return nil, err
		}
	}

	if err := c.Finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveRepoPath expands a leading ~, makes path absolute and resolves
// symlinks. A path that does not exist yet is returned in absolute form.
func ResolveRepoPath(path string) (string, error) {
	if path == "" {
		path = "."
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", autogitErrors.NewConfigError("path", path,
				autogitErrors.Wrap(autogitErrors.ErrInvalidConfiguration, "cannot expand home directory"))
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", autogitErrors.NewConfigError("path", path,
			autogitErrors.Wrap(autogitErrors.ErrInvalidConfiguration, fmt.Sprintf("failed to resolve absolute path: %v", err)))
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// LoadFile overlays the YAML file at path. Keys absent from the file keep
// their current values. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return autogitErrors.NewConfigError("file", path,
			autogitErrors.Wrap(autogitErrors.ErrInvalidConfiguration, fmt.Sprintf("failed to read configuration file: %v", err)))
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return autogitErrors.NewConfigError("file", path,
			autogitErrors.Wrap(autogitErrors.ErrInvalidConfiguration, fmt.Sprintf("failed to parse configuration file: %v", err)))
	}
	return nil
}

// LoadFromEnvironment updates config from AUTOGIT_* environment variables
func (c *Config) LoadFromEnvironment() {
	c.RulesFile = getEnvString("RULES_FILE", c.RulesFile)
	c.Debounce = getEnvDuration("DEBOUNCE", c.Debounce)
	c.PushThreshold = getEnvInt("PUSH_THRESHOLD", c.PushThreshold)
	c.PushCommand = getEnvString("PUSH_COMMAND", c.PushCommand)
	c.PushSchedule = getEnvString("PUSH_SCHEDULE", c.PushSchedule)
	c.CommitPrefix = getEnvString("COMMIT_PREFIX", c.CommitPrefix)
	c.CatchUp = getEnvBool("CATCH_UP", c.CatchUp)
	c.EventBuffer = getEnvInt("EVENT_BUFFER", c.EventBuffer)
	c.Verbose = getEnvBool("VERBOSE", c.Verbose)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.LogFile = getEnvString("LOG_FILE", c.LogFile)
	c.MetricsAddr = getEnvString("METRICS_ADDR", c.MetricsAddr)
}

// RegisterFlags defines the watch flags on fs. Values are only applied by
// ApplyFlags, and only for flags the user actually set, so flags keep the
// highest precedence without masking the file and environment layers.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("rules-file", DefaultRulesFile, "Ignore rules file, relative to the watched root")
	fs.Duration("debounce", DefaultDebounce, "Delay after the first change before committing")
	fs.Int("push-threshold", DefaultPushThreshold, "Commits between pushes (0 = never push on count)")
	fs.String("push-command", DefaultPushCommand, "Push command line; {branch} and {root} are substituted")
	fs.String("push-schedule", "", "Cron expression for periodic pushes of pending commits")
	fs.String("prefix", DefaultCommitPrefix, "Commit message prefix")
	fs.Bool("no-catch-up", false, "Skip the startup commit of pre-existing changes")
	fs.Int("event-buffer", DefaultEventBuffer, "Capacity of the filesystem event queue")
	fs.BoolP("quiet", "q", false, "Hide per-path classification messages")
	fs.Bool("debug", false, "Enable debug logging")
	fs.String("log-file", "", "Path to log file (default: ~/.local/share/autogit/logs/autogit-{repo-hash}.log)")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

// ApplyFlags copies every flag the user changed on fs into the config.
// Inverted flags (--no-catch-up, --quiet) are translated here.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	stringFlag := func(name string, dst *string) {
		if fs.Changed(name) {
			v, err := fs.GetString(name)
			collect(err)
			*dst = v
		}
	}
	intFlag := func(name string, dst *int) {
		if fs.Changed(name) {
			v, err := fs.GetInt(name)
			collect(err)
			*dst = v
		}
	}
	invertedBoolFlag := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, err := fs.GetBool(name)
			collect(err)
			*dst = !v
		}
	}

	stringFlag("rules-file", &c.RulesFile)
	if fs.Changed("debounce") {
		v, err := fs.GetDuration("debounce")
		collect(err)
		c.Debounce = v
	}
	intFlag("push-threshold", &c.PushThreshold)
	stringFlag("push-command", &c.PushCommand)
	stringFlag("push-schedule", &c.PushSchedule)
	stringFlag("prefix", &c.CommitPrefix)
	invertedBoolFlag("no-catch-up", &c.CatchUp)
	intFlag("event-buffer", &c.EventBuffer)
	invertedBoolFlag("quiet", &c.Verbose)
	if fs.Changed("debug") {
		v, err := fs.GetBool("debug")
		collect(err)
		c.Debug = v
	}
	stringFlag("log-file", &c.LogFile)
	stringFlag("metrics-addr", &c.MetricsAddr)

	if len(errs) > 0 {
		return autogitErrors.NewConfigError("flags", nil,
			autogitErrors.Wrap(autogitErrors.ErrInvalidFlag, autogitErrors.Join(errs...).Error()))
	}
	return nil
}

// RulesPath returns the absolute path of the ignore rules file
func (c *Config) RulesPath() string {
	if filepath.IsAbs(c.RulesFile) {
		return filepath.Clean(c.RulesFile)
	}
	return filepath.Join(c.RepoPath, c.RulesFile)
}

// Finalize validates and finalizes the configuration
func (c *Config) Finalize() error {
	if c.RepoPath == "" {
		root, err := ResolveRepoPath(".")
		if err != nil {
			return err
		}
		c.RepoPath = root
	}

	if c.Debounce < 0 {
		return invalid("debounce", c.Debounce, "must not be negative")
	}
	if c.PushThreshold < 0 {
		return invalid("push_threshold", c.PushThreshold, "must be 0 (disabled) or greater")
	}
	if c.EventBuffer < 1 {
		return invalid("event_buffer", c.EventBuffer, "must be at least 1")
	}
	if strings.TrimSpace(c.RulesFile) == "" {
		return invalid("rules_file", c.RulesFile, "must not be empty")
	}
	if strings.TrimSpace(c.CommitPrefix) == "" {
		return invalid("commit_prefix", c.CommitPrefix, "must not be empty")
	}
	if (c.PushThreshold > 0 || c.PushSchedule != "") && strings.TrimSpace(c.PushCommand) == "" {
		return invalid("push_command", c.PushCommand, "must be set when pushes are enabled")
	}
	if c.PushSchedule != "" {
		if _, err := cron.ParseStandard(c.PushSchedule); err != nil {
			return invalid("push_schedule", c.PushSchedule, err.Error())
		}
	}

	if c.LogFile == "" {
		// Follow XDG Base Directory Specification
		logDir := os.Getenv("XDG_DATA_HOME")
		if logDir == "" {
			homeDir, err := os.UserHomeDir()
			if err == nil {
				logDir = filepath.Join(homeDir, ".local", "share")
			} else {
				logDir = os.TempDir()
			}
		}

		c.LogFile = filepath.Join(logDir, "autogit", "logs", fmt.Sprintf("autogit-%s.log", RepoHash(c.RepoPath)))
	}

	return nil
}

// RepoHash returns a short stable identifier for a working tree path. It
// names the per-tree log and lock files.
func RepoHash(repoPath string) string {
	return fmt.Sprintf("%x", sha256OfString(repoPath)[:8])
}

func invalid(parameter string, value interface{}, reason string) error {
	return autogitErrors.NewConfigError(parameter, value,
		autogitErrors.Wrap(autogitErrors.ErrInvalidConfiguration, reason))
}

// getEnvString returns an environment variable string or a default value
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as int or a default value
func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(envPrefix + key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvDuration returns an environment variable as a duration or a default value.
// Bare integers are read as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(envPrefix + key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
		if secs, err := strconv.Atoi(valueStr); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvBool returns an environment variable as bool or a default value
func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(envPrefix + key); exists {
		valueLower := strings.ToLower(valueStr)
		if valueLower == "true" || valueLower == "1" || valueLower == "yes" {
			return true
		}
		if valueLower == "false" || valueLower == "0" || valueLower == "no" {
			return false
		}
	}
	return defaultValue
}

// sha256OfString returns the SHA256 hash of a string
func sha256OfString(input string) []byte {
	hash := sha256.Sum256([]byte(input))
	return hash[:]
}
