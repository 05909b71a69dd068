package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"owacal/internal/deliver"
)

// NOTE: YAML is the primary format. Paths ending in .toml are read and
// written with go-toml so existing config.toml files keep working.

const (
	DefaultListen      = "127.0.0.1:8080"
	DefaultRefreshCron = "*/30 * * * *"
	DefaultDays        = 14
	DefaultCalendarURL = "https://outlook.office.com/calendar/view/month"
	DefaultProfileDir  = "~/.local/share/owacal/profiles"
	DefaultTimeoutSec  = 120
	DefaultMTLSDir     = "~/.config/cauth"

	maxDays = 62
)

// BrowserConfig controls the headless Chromium used for scraping.
type BrowserConfig struct {
	// CalendarURL is the page whose rendered entries are harvested.
	CalendarURL string `yaml:"calendar_url" toml:"calendar_url" json:"calendar_url"`
	// ProfileDir holds one persistent browser profile per target. Profiles
	// must already be signed in; owacal does not drive the login flow.
	ProfileDir string `yaml:"profile_dir" toml:"profile_dir" json:"profile_dir"`
	// Headful shows the browser window, e.g. to sign in once by hand.
	Headful bool `yaml:"headful" toml:"headful" json:"headful"`
	// TimeoutSeconds bounds one scrape, navigation included.
	TimeoutSeconds int `yaml:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds"`
	// ExecPath optionally points at a specific Chromium binary.
	ExecPath string `yaml:"exec_path,omitempty" toml:"exec_path,omitempty" json:"exec_path,omitempty"`
}

// TargetConfig describes one calendar account.
type TargetConfig struct {
	// Username is informational (shown by `owacal targets`).
	Username string `yaml:"username" toml:"username" json:"username"`
	// Profile is the profile directory name under Browser.ProfileDir.
	// Defaults to the target name.
	Profile string `yaml:"profile,omitempty" toml:"profile,omitempty" json:"profile,omitempty"`
}

// PostConfig is the delivery endpoint for --post and the daemon.
type PostConfig struct {
	URL string `yaml:"url" toml:"url" json:"url"`
}

// MTLSConfig holds the PEM paths for mutual TLS delivery.
type MTLSConfig struct {
	CA   string `yaml:"ca" toml:"ca" json:"ca"`
	Cert string `yaml:"cert" toml:"cert" json:"cert"`
	Key  string `yaml:"key" toml:"key" json:"key"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the daemon's HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of `owacal serve`.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// RefreshCron is the standard 5-field cron schedule for `owacal serve`.
	RefreshCron string `yaml:"refresh" toml:"refresh" json:"refresh"`

	// Days is the look-ahead window from today; scraped events outside it
	// are dropped.
	Days int `yaml:"days" toml:"days" json:"days"`

	// DefaultTarget is used when no --target is given.
	DefaultTarget string `yaml:"default_target,omitempty" toml:"default_target,omitempty" json:"default_target,omitempty"`

	Browser BrowserConfig           `yaml:"browser" toml:"browser" json:"browser"`
	Targets map[string]TargetConfig `yaml:"targets" toml:"targets" json:"targets"`
	Post    PostConfig              `yaml:"post" toml:"post" json:"post"`
	MTLS    MTLSConfig              `yaml:"mtls" toml:"mtls" json:"mtls"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		RefreshCron: DefaultRefreshCron,
		Days:        DefaultDays,
		Browser: BrowserConfig{
			CalendarURL:    DefaultCalendarURL,
			ProfileDir:     DefaultProfileDir,
			TimeoutSeconds: DefaultTimeoutSec,
		},
		Targets: map[string]TargetConfig{},
		MTLS: MTLSConfig{
			CA:   DefaultMTLSDir + "/ca.pem",
			Cert: DefaultMTLSDir + "/crt.pem",
			Key:  DefaultMTLSDir + "/key.pem",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.Days <= 0 {
		c.Days = d.Days
	}
	if c.Browser.CalendarURL == "" {
		c.Browser.CalendarURL = d.Browser.CalendarURL
	}
	if c.Browser.ProfileDir == "" {
		c.Browser.ProfileDir = d.Browser.ProfileDir
	}
	if c.Browser.TimeoutSeconds <= 0 {
		c.Browser.TimeoutSeconds = d.Browser.TimeoutSeconds
	}
	if c.Targets == nil {
		c.Targets = map[string]TargetConfig{}
	}
	if c.MTLS.CA == "" {
		c.MTLS.CA = d.MTLS.CA
	}
	if c.MTLS.Cert == "" {
		c.MTLS.Cert = d.MTLS.Cert
	}
	if c.MTLS.Key == "" {
		c.MTLS.Key = d.MTLS.Key
	}
	// Empty credentials mean "disabled".
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Validate checks values that cannot be defaulted. It is called once by
// Load; the rest of the program trusts the result.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen %q: %w", c.Listen, err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	if c.Days > maxDays {
		errs = append(errs, fmt.Errorf("days %d: must be at most %d", c.Days, maxDays))
	}
	if u, err := url.Parse(c.Browser.CalendarURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("browser.calendar_url %q is not an absolute URL", c.Browser.CalendarURL))
	}
	if c.Post.URL != "" {
		u, err := url.Parse(c.Post.URL)
		if err != nil || u.Host == "" || u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("post.url %q must be an https URL", c.Post.URL))
		}
	}
	for name := range c.Targets {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("targets: empty target name"))
		}
	}
	if c.DefaultTarget != "" {
		if _, ok := c.Targets[c.DefaultTarget]; !ok {
			errs = append(errs, fmt.Errorf("default_target %q is not a configured target", c.DefaultTarget))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// Target returns the named target.
func (c *Config) Target(name string) (TargetConfig, bool) {
	t, ok := c.Targets[name]
	return t, ok
}

// TargetNames returns the configured target names in sorted order.
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProfilePath is the browser profile directory for target. An empty target
// uses the "default" profile.
func (c *Config) ProfilePath(target string) string {
	name := "default"
	if target != "" {
		name = target
		if t, ok := c.Targets[target]; ok && t.Profile != "" {
			name = t.Profile
		}
	}
	return filepath.Join(ExpandHome(c.Browser.ProfileDir), name)
}

// Trust returns the mTLS material with ~ expanded.
func (c *Config) Trust() deliver.Trust {
	return deliver.Trust{
		CA:   ExpandHome(c.MTLS.CA),
		Cert: ExpandHome(c.MTLS.Cert),
		Key:  ExpandHome(c.MTLS.Key),
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Load loads configuration from the given path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the file is decoded (YAML, or TOML for *.toml), normalized
//     and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := unmarshal(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func marshal(path string, cfg *Config) ([]byte, error) {
	if isTOML(path) {
		return toml.Marshal(cfg)
	}
	return yaml.Marshal(cfg)
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (the file may hold
//     credentials).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := marshal(path, cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".owacal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
