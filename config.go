package schemadrift

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the .schemadrift.yaml configuration file.
type Config struct {
	// Schema is the path to the generated type file (or a YAML model snapshot).
	// Relative paths resolve against the config file's directory.
	Schema string `yaml:"schema,omitempty"`

	// Root is the source tree to scan. Defaults to the config directory.
	Root string `yaml:"root,omitempty"`

	// Extensions limits scanned files (without the leading dot).
	Extensions []string `yaml:"extensions,omitempty" validate:"dive,required,excludesall=./"`

	// SkipDirs are directory names never descended into.
	SkipDirs []string `yaml:"skip_dirs,omitempty" validate:"dive,required"`

	// Receivers are variable names whose property accesses are checked.
	Receivers []string `yaml:"receivers,omitempty" validate:"dive,required"`

	// Strict reports missing RPC functions as critical instead of high.
	Strict bool `yaml:"strict,omitempty"`

	// RequireViews reports .from() calls that resolve only to a base table.
	RequireViews bool `yaml:"require_views,omitempty"`

	// Ignore holds boolean expressions; matching mismatches are dropped.
	// Example: type == "property_possibly_not_found" && file startsWith "tests/"
	Ignore []string `yaml:"ignore,omitempty" validate:"dive,required"`

	// Format is the default report format.
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=text json markdown html"`

	// Output is the report destination. Empty means stdout.
	Output string `yaml:"output,omitempty"`

	// FailOn is the lowest severity that makes the scan exit non-zero.
	FailOn string `yaml:"fail_on,omitempty" validate:"omitempty,oneof=critical high medium low none"`

	// Workers bounds concurrent file reads. Zero picks a default.
	Workers int `yaml:"workers,omitempty" validate:"gte=0,lte=256"`

	// dir is the directory the config was loaded from.
	dir string
}

// Dir returns the directory the config was loaded from, or empty for defaults.
func (c *Config) Dir() string {
	return c.dir
}

// SchemaPath returns the absolute type-file path, falling back to DefaultSchemaPath.
func (c *Config) SchemaPath() string {
	path := c.Schema
	if path == "" {
		path = DefaultSchemaPath
	}

	return c.resolve(path)
}

// RootPath returns the absolute source root.
func (c *Config) RootPath() string {
	if c.Root == "" {
		if c.dir != "" {
			return c.dir
		}

		return "."
	}

	return c.resolve(c.Root)
}

// OutputPath returns the absolute report path, or empty for stdout.
func (c *Config) OutputPath() string {
	if c.Output == "" {
		return ""
	}

	return c.resolve(c.Output)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.dir == "" {
		return filepath.Clean(path)
	}

	return filepath.Join(c.dir, path)
}

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".schemadrift.yaml", ".schemadrift.yml", "schemadrift.yaml", "schemadrift.yml"}

// LoadConfig finds and loads the nearest .schemadrift.yaml walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// LoadConfigOrDefault behaves like LoadConfig but returns an empty config rooted
// at dir when no config file exists.
func LoadConfigOrDefault(dir string) (*Config, error) {
	cfg, err := LoadConfig(dir)
	if errors.Is(err, ErrConfigNotFound) {
		absDir, absErr := filepath.Abs(dir)
		if absErr != nil {
			return nil, absErr
		}

		return &Config{dir: absDir}, nil
	}

	return cfg, err
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads and validates a config from a specific path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	cfg.dir = filepath.Dir(absPath)

	return &cfg, nil
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]

		return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, fe.Namespace(), fe.Tag())
	}

	return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
}
