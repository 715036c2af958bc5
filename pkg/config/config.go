package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/samogod/blockforge/pkg/render"

	"gopkg.in/yaml.v3"
)

var DebugLog func(string, ...interface{})

const (
	DefaultTimeout    = 30
	DefaultRetries    = 3
	DefaultRetryDelay = 2
	DefaultTimezone   = "Asia/Karachi"
	DefaultOutputDir  = "lists"
	DefaultLogFile    = "logs/blockforge.log"
	DefaultChunkSize  = 5000
)

// Source failure policies. Input errors on local files are fatal under
// either policy.
const (
	PolicySkip  = "skip"
	PolicyAbort = "abort"
)

// Source formats.
const (
	SourceText  = "text"
	SourceJSONL = "jsonl"
)

var DefaultFormats = []string{"hosts", "adblock"}

type Config struct {
	DefaultSettings DefaultSettings `yaml:"default_settings"`
	Cache           Cache           `yaml:"cache"`
	Database        Database        `yaml:"database"`
	Elasticsearch   Elasticsearch   `yaml:"elasticsearch"`
	Lists           []ListConfig    `yaml:"lists"`
}

type DefaultSettings struct {
	// Timeout is the per-attempt fetch timeout in seconds.
	Timeout    int      `yaml:"timeout"`
	Retries    int      `yaml:"retries"`
	RetryDelay int      `yaml:"retry_delay"`
	Timezone   string   `yaml:"timezone"`
	OutputDir  string   `yaml:"output_dir"`
	LogFile    string   `yaml:"log_file"`
	Workers    int      `yaml:"workers"`
	ChunkSize  int      `yaml:"chunk_size"`
	Formats    []string `yaml:"formats"`
}

type Cache struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Database struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type Elasticsearch struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"`
}

// ListConfig describes one generated blocklist. Zero-valued fields inherit
// from DefaultSettings when the config is loaded.
type ListConfig struct {
	Name               string         `yaml:"name"`
	Title              string         `yaml:"title"`
	Description        string         `yaml:"description"`
	Homepage           string         `yaml:"homepage"`
	Expires            string         `yaml:"expires"`
	Formats            []string       `yaml:"formats"`
	Keywords           []string       `yaml:"keywords"`
	KeywordsIgnoreCase bool           `yaml:"keywords_ignore_case"`
	MergePrevious      bool           `yaml:"merge_previous"`
	AllowEmpty         bool           `yaml:"allow_empty"`
	OnSourceFailure    string         `yaml:"on_source_failure"`
	Sources            []SourceConfig `yaml:"sources"`
}

type SourceConfig struct {
	Name   string            `yaml:"name"`
	URL    string            `yaml:"url"`
	Path   string            `yaml:"path"`
	Format string            `yaml:"format"`
	Field  string            `yaml:"field"`
	Match  map[string]string `yaml:"match"`
}

// Location returns where the source is read from, for headers and logs.
func (s SourceConfig) Location() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

func (s SourceConfig) IsRemote() bool {
	return s.URL != ""
}

// Default returns a configuration holding only default settings.
func Default() *Config {
	return &Config{
		DefaultSettings: DefaultSettings{
			Timeout:    DefaultTimeout,
			Retries:    DefaultRetries,
			RetryDelay: DefaultRetryDelay,
			Timezone:   DefaultTimezone,
			OutputDir:  DefaultOutputDir,
			LogFile:    DefaultLogFile,
			ChunkSize:  DefaultChunkSize,
			Formats:    append([]string(nil), DefaultFormats...),
		},
	}
}

type Manager struct {
	config     *Config
	configPath string
}

func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
	}
}

func (m *Manager) LoadConfig() error {
	if m.configPath == "" {
		m.configPath = m.findConfigFile()
	}

	if DebugLog != nil {
		DebugLog("loading config from %s", m.configPath)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found at %s. Please create one based on config.yaml.example", m.configPath)
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return err
	}

	if DebugLog != nil {
		for _, l := range cfg.Lists {
			DebugLog("list %s: %d source(s), formats %s", l.Name, len(l.Sources), strings.Join(l.Formats, ","))
		}
	}

	m.config = cfg
	return nil
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

func (m *Manager) Path() string {
	return m.configPath
}

func (m *Manager) findConfigFile() string {
	candidates := []string{
		"blockforge.yaml",
		"config.yaml",
		filepath.Join("config", "config.yaml"),
		GetDefaultConfigPath(),
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return filepath.Join("config", "config.yaml")
}

// Parse decodes a YAML document on top of the defaults, fills per-list
// defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Finalize fills per-list defaults and validates. It is safe to call again
// after flag overrides.
func (c *Config) Finalize() error {
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if len(c.DefaultSettings.Formats) == 0 {
		c.DefaultSettings.Formats = append([]string(nil), DefaultFormats...)
	}
	if c.DefaultSettings.Timezone == "" {
		c.DefaultSettings.Timezone = DefaultTimezone
	}
	if c.DefaultSettings.OutputDir == "" {
		c.DefaultSettings.OutputDir = DefaultOutputDir
	}
	if c.DefaultSettings.ChunkSize <= 0 {
		c.DefaultSettings.ChunkSize = DefaultChunkSize
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		c.Cache.Path = GetDefaultCachePath()
	}

	for i := range c.Lists {
		l := &c.Lists[i]
		if len(l.Formats) == 0 {
			l.Formats = append([]string(nil), c.DefaultSettings.Formats...)
		}
		for j, f := range l.Formats {
			l.Formats[j] = strings.ToLower(strings.TrimSpace(f))
		}
		if l.Title == "" {
			l.Title = l.Name
		}
		if l.OnSourceFailure == "" {
			l.OnSourceFailure = PolicySkip
		}
		for j := range l.Sources {
			s := &l.Sources[j]
			if s.Format == "" {
				s.Format = SourceText
			}
			if s.Name == "" {
				s.Name = s.Location()
			}
		}
	}
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if c.DefaultSettings.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.DefaultSettings.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	if c.DefaultSettings.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative")
	}
	if _, err := time.LoadLocation(c.DefaultSettings.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", c.DefaultSettings.Timezone, err)
	}
	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("database host is required when the database is enabled")
	}
	if c.Elasticsearch.Enabled && c.Elasticsearch.URL == "" {
		return fmt.Errorf("elasticsearch url is required when export is enabled")
	}

	seen := make(map[string]bool)
	for _, l := range c.Lists {
		if err := l.Validate(); err != nil {
			return err
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate list name %q", l.Name)
		}
		seen[l.Name] = true
	}

	return nil
}

func (l ListConfig) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("list name is required")
	}
	if strings.ContainsAny(l.Name, `/\`) {
		return fmt.Errorf("list %q: name must not contain path separators", l.Name)
	}
	if len(l.Sources) == 0 {
		return fmt.Errorf("list %q: at least one source is required", l.Name)
	}
	if l.OnSourceFailure != PolicySkip && l.OnSourceFailure != PolicyAbort {
		return fmt.Errorf("list %q: on_source_failure must be %q or %q", l.Name, PolicySkip, PolicyAbort)
	}
	for _, f := range l.Formats {
		if _, ok := render.Lookup(f); !ok {
			return fmt.Errorf("list %q: unknown format %q", l.Name, f)
		}
	}
	for _, s := range l.Sources {
		if (s.URL == "") == (s.Path == "") {
			return fmt.Errorf("list %q: source %q needs exactly one of url or path", l.Name, s.Name)
		}
		switch s.Format {
		case SourceText:
		case SourceJSONL:
			if s.IsRemote() {
				return fmt.Errorf("list %q: source %q: jsonl sources must be local files", l.Name, s.Name)
			}
		default:
			return fmt.Errorf("list %q: source %q: unknown source format %q", l.Name, s.Name, s.Format)
		}
	}
	return nil
}

// SelectLists returns the lists whose names appear in the comma-separated
// selection, or every list when selection is empty.
func (c *Config) SelectLists(selection string) ([]ListConfig, error) {
	if strings.TrimSpace(selection) == "" {
		return c.Lists, nil
	}

	byName := make(map[string]ListConfig, len(c.Lists))
	for _, l := range c.Lists {
		byName[l.Name] = l
	}

	var selected []ListConfig
	for _, name := range strings.Split(selection, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		l, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown list: %s", name)
		}
		selected = append(selected, l)
	}
	return selected, nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.DefaultSettings.Timezone)
}

// FetchTimeout is the per-attempt timeout for remote sources.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.DefaultSettings.Timeout) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.DefaultSettings.RetryDelay) * time.Second
}
