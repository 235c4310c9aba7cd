// Package config reads the sources and log level sqlpipe starts with.
package config

import (
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

type Config struct {
	Sources  []SourceConfig `yaml:"sources"`
	LogLevel string         `yaml:"log_level"`
}

// SourceConfig names a source and says where its rows come from. See
// source.ParseURI for the accepted URIs.
type SourceConfig struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
}

// Load reads a YAML config file.
func Load(path string) (*Config, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var conf Config
	if err := yaml.UnmarshalStrict(b, &conf); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	seen := make(map[string]bool)
	for i, s := range conf.Sources {
		if s.URI == "" {
			return nil, errors.Errorf("source %d (%q) has no uri", i, s.Name)
		}
		if s.Name != "" && seen[s.Name] {
			return nil, errors.Errorf("source %q listed twice", s.Name)
		}
		seen[s.Name] = true
	}
	return &conf, nil
}

// Merge adds the sources of other and takes its log level when set. A source
// in other replaces one of the same name.
func (c *Config) Merge(other *Config) {
	for _, s := range other.Sources {
		replaced := false
		for i := range c.Sources {
			if s.Name != "" && c.Sources[i].Name == s.Name {
				c.Sources[i] = s
				replaced = true
			}
		}
		if !replaced {
			c.Sources = append(c.Sources, s)
		}
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// Open builds a source for every configured entry.
func (c *Config) Open() ([]source.Source, error) {
	srcs := make([]source.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		cfg, err := source.ParseURI(s.Name, s.URI)
		if err != nil {
			return nil, err
		}
		src, err := source.NewSource(cfg)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}
	return srcs, nil
}

// SourceFlags collects repeated -source name=uri flags. A value without a
// name is a bare uri.
type SourceFlags []SourceConfig

func (f *SourceFlags) String() string {
	parts := make([]string, len(*f))
	for i, s := range *f {
		if s.Name == "" {
			parts[i] = s.URI
		} else {
			parts[i] = s.Name + "=" + s.URI
		}
	}
	return strings.Join(parts, ",")
}

func (f *SourceFlags) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("empty source")
	}
	var s SourceConfig
	if i := strings.IndexByte(value, '='); i > 0 && !strings.Contains(value[:i], "/") {
		s.Name, s.URI = value[:i], value[i+1:]
	} else {
		s.URI = value
	}
	if s.URI == "" {
		return errors.Errorf("source %q has no uri", s.Name)
	}
	*f = append(*f, s)
	return nil
}
