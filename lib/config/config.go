package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	"github.com/steinarvk/recquery/lib/dexapi"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/record"
	"github.com/steinarvk/recquery/lib/store"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

const (
	EnvConfigPath     = "RECQ_CONFIG"
	defaultConfigPath = "~/.config/recquery/recquery.yaml"
)

type Config struct {
	LogLevel   string                      `yaml:"log_level" env:"RECQ_LOG_LEVEL,overwrite"`
	DataDir    string                      `yaml:"data_dir" env:"RECQ_DATA_DIR,overwrite"`
	Limits     Limits                      `yaml:"limits"`
	Namespaces map[string]*NamespaceConfig `yaml:"namespaces"`
}

func (c *Config) setDefaults(baseDir string) error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}

	expanded, err := homedir.Expand(c.DataDir)
	if err != nil {
		return fmt.Errorf("error expanding data_dir %q: %w", c.DataDir, err)
	}
	if !filepath.IsAbs(expanded) && baseDir != "" {
		expanded = filepath.Join(baseDir, expanded)
	}
	c.DataDir = expanded

	if err := c.Limits.setDefaults(); err != nil {
		return fmt.Errorf("error setting defaults for limits: %w", err)
	}

	for name, ns := range c.Namespaces {
		if ns == nil {
			ns = &NamespaceConfig{}
			c.Namespaces[name] = ns
		}
		if ns.File == "" {
			ns.File = name + ".jsonl"
		}
	}

	return nil
}

type Limits struct {
	MaxLineBytes    int `yaml:"max_line_bytes"`
	DefaultPageSize int `yaml:"default_page_size" env:"RECQ_DEFAULT_PAGE_SIZE,overwrite"`
	MaxPageSize     int `yaml:"max_page_size" env:"RECQ_MAX_PAGE_SIZE,overwrite"`
}

func (l *Limits) setDefaults() error {
	if l.MaxLineBytes == 0 {
		l.MaxLineBytes = 1024 * 1024
	}
	if l.DefaultPageSize == 0 {
		l.DefaultPageSize = 20
	}
	if l.MaxPageSize == 0 {
		l.MaxPageSize = 1000
	}

	return nil
}

// FieldConfig declares a field type. In YAML it is either a bare type name
// ("date") or a mapping with type and namespace for references.
type FieldConfig struct {
	Type      string `yaml:"type"`
	Namespace string `yaml:"namespace"`
}

func (f *FieldConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var short string
	if err := unmarshal(&short); err == nil {
		f.Type = short
		return nil
	}

	type plain FieldConfig
	var long plain
	if err := unmarshal(&long); err != nil {
		return err
	}
	*f = FieldConfig(long)
	return nil
}

type DerivedConfig struct {
	Field  string `yaml:"field"`
	From   string `yaml:"from"`
	Layout string `yaml:"layout"`
}

type NamespaceConfig struct {
	// File is the JSONL file under the data directory; defaults to
	// "<namespace>.jsonl".
	File     string                 `yaml:"file"`
	Fields   map[string]FieldConfig `yaml:"fields"`
	Derived  []DerivedConfig        `yaml:"derived"`
	Ordering *dexapi.OrderBy        `yaml:"ordering"`
}

func (n *NamespaceConfig) Schema() *record.Schema {
	if len(n.Fields) == 0 && len(n.Derived) == 0 {
		return nil
	}

	schema := &record.Schema{
		Fields: map[string]record.FieldSpec{},
	}
	for name, field := range n.Fields {
		schema.Fields[name] = record.FieldSpec{
			Type:         record.FieldType(field.Type),
			RefNamespace: field.Namespace,
		}
	}
	for _, d := range n.Derived {
		schema.Derived = append(schema.Derived, record.Derivation{
			Field:  d.Field,
			From:   d.From,
			Layout: d.Layout,
		})
	}
	return schema
}

func (n *NamespaceConfig) CollectionOptions() store.CollectionOptions {
	opts := store.CollectionOptions{
		Schema: n.Schema(),
	}
	if n.Ordering != nil {
		direction := store.Ascending
		if n.Ordering.Descending {
			direction = store.Descending
		}
		opts.DefaultOrdering = &store.OrderSpec{
			Field:     n.Ordering.Field,
			Direction: direction,
		}
	}
	return opts
}

// NamespaceNames returns the configured namespaces in sorted order.
func (c *Config) NamespaceNames() []string {
	names := make([]string, 0, len(c.Namespaces))
	for name := range c.Namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DataFile is the absolute-or-relative path of the namespace's JSONL file.
func (c *Config) DataFile(namespace string) string {
	file := namespace + ".jsonl"
	if ns, ok := c.Namespaces[namespace]; ok && ns != nil && ns.File != "" {
		file = ns.File
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.DataDir, file)
}

func (c *Config) StoreOptions() []store.Option {
	var rv []store.Option
	for _, name := range c.NamespaceNames() {
		rv = append(rv, store.WithCollection(name, c.Namespaces[name].CollectionOptions()))
	}
	return rv
}

// NewStore builds an empty store with every configured namespace.
func (c *Config) NewStore() (*store.Store, error) {
	s, err := store.New(c.StoreOptions()...)
	if err != nil {
		return nil, err
	}
	for _, name := range c.NamespaceNames() {
		s.Collection(name)
	}
	return s, nil
}

func (c Config) Validate() error {
	var result *multierror.Error

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
	}

	if c.Limits.MaxLineBytes < 0 {
		result = multierror.Append(result, errors.New("max_line_bytes cannot be negative"))
	}
	if c.Limits.DefaultPageSize <= 0 {
		result = multierror.Append(result, errors.New("default_page_size must be positive"))
	}
	if c.Limits.DefaultPageSize > c.Limits.MaxPageSize {
		result = multierror.Append(result, fmt.Errorf("default_page_size %d exceeds max_page_size %d", c.Limits.DefaultPageSize, c.Limits.MaxPageSize))
	}

	files := map[string]string{}
	for _, name := range c.NamespaceNames() {
		ns := c.Namespaces[name]

		if strings.TrimSpace(name) == "" {
			result = multierror.Append(result, errors.New("namespace name cannot be empty"))
		}

		if err := ns.Schema().Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("namespace %q: %w", name, err))
		}

		for field, fc := range ns.Fields {
			if fc.Type == string(record.TypeRef) {
				if _, ok := c.Namespaces[fc.Namespace]; !ok {
					result = multierror.Append(result, fmt.Errorf("namespace %q: field %q references unknown namespace %q", name, field, fc.Namespace))
				}
			}
		}

		path := c.DataFile(name)
		if other, ok := files[path]; ok {
			result = multierror.Append(result, fmt.Errorf("namespaces %q and %q share file %q", other, name, path))
		}
		files[path] = name
	}

	return result.ErrorOrNil()
}

func invalidConfig(err error) error {
	return dexerror.New(
		dexerror.WithKind(dexerror.KindInvalidConfig),
		dexerror.WithPublicMessage("invalid configuration"),
		dexerror.WithCause(err),
	)
}

// parse resolves a relative data_dir against baseDir, or the working
// directory when baseDir is empty.
func parse(ctx context.Context, data []byte, baseDir string) (*Config, error) {
	var config Config

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, invalidConfig(fmt.Errorf("error unmarshaling config: %w", err))
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, invalidConfig(fmt.Errorf("error reading environment: %w", err))
	}

	if err := config.setDefaults(baseDir); err != nil {
		return nil, invalidConfig(fmt.Errorf("error setting defaults: %w", err))
	}

	if err := config.Validate(); err != nil {
		return nil, invalidConfig(fmt.Errorf("validation error: %w", err))
	}

	return &config, nil
}

// Load reads a config file, or inline YAML when the argument starts with
// "{". Environment variables override file values. A relative data_dir in
// a file is taken relative to the file.
func Load(ctx context.Context, filenameOrData string) (*Config, error) {
	if strings.HasPrefix(filenameOrData, "{") {
		return parse(ctx, []byte(filenameOrData), "")
	}

	data, err := os.ReadFile(filenameOrData)
	if err != nil {
		return nil, err
	}

	return parse(ctx, data, filepath.Dir(filenameOrData))
}

// DefaultPath is $RECQ_CONFIG if set, otherwise the per-user config file.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return homedir.Expand(p)
	}
	return homedir.Expand(defaultConfigPath)
}

// LoadDefault loads the file at DefaultPath. A missing file yields the
// defaults with environment overrides applied.
func LoadDefault(ctx context.Context) (*Config, string, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, "", err
	}

	cfg, err := Load(ctx, path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = parse(ctx, []byte("{}"), "")
	}
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
