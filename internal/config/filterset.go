package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Keys of the filter configuration library. They are also the YAML keys.
const (
	SavedConfigsKey   = "savedConfigs"
	LogDateFormatsKey = "logDateFormats"
	FilterAliasesKey  = "filterAliases"
)

// DateFormat pairs a regex locating a timestamp (first capture group) with
// the date format that parses it
type DateFormat struct {
	Regex string `yaml:"regex,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// SavedConfig is a named set of parameters for one kind of log
type SavedConfig struct {
	// Starter is a regex matching the beginning of an entry
	Starter string `yaml:"starter,omitempty"`
	// DateFormat locates and parses entry timestamps
	DateFormat *DateFormat `yaml:"dateFormat,omitempty"`
}

// Source is the read side of a filter configuration library
type Source interface {
	// SavedConfig looks up savedConfigs.<id>
	SavedConfig(id string) (*SavedConfig, bool)
	// LogDateFormat looks up logDateFormats.<id>
	LogDateFormat(id string) (*DateFormat, bool)
	// FilterAlias looks up filterAliases.<id>
	FilterAlias(id string) (string, bool)
}

// FilterSet is the filter configuration library: saved configs, date formats
// and pattern aliases, each keyed by config id
type FilterSet struct {
	SavedConfigs   map[string]*SavedConfig `yaml:"savedConfigs,omitempty"`
	LogDateFormats map[string]*DateFormat  `yaml:"logDateFormats,omitempty"`
	FilterAliases  map[string]string       `yaml:"filterAliases,omitempty"`
}

// NewFilterSet creates an empty filter set
func NewFilterSet() *FilterSet {
	return &FilterSet{
		SavedConfigs:   make(map[string]*SavedConfig),
		LogDateFormats: make(map[string]*DateFormat),
		FilterAliases:  make(map[string]string),
	}
}

// LoadFilterSet reads a filter set from a YAML file
func LoadFilterSet(path string) (*FilterSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter set %s: %w", path, err)
	}

	fs, err := ParseFilterSet(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse filter set %s: %w", path, err)
	}
	return fs, nil
}

// ParseFilterSet decodes a filter set from YAML
func ParseFilterSet(data []byte) (*FilterSet, error) {
	fs := NewFilterSet()
	if err := yaml.Unmarshal(data, fs); err != nil {
		return nil, err
	}
	fs.ensureMaps()
	return fs, nil
}

// Marshal encodes the filter set as YAML in the same shape it is loaded from
func (fs *FilterSet) Marshal() ([]byte, error) {
	return yaml.Marshal(fs)
}

// SavedConfig implements Source
func (fs *FilterSet) SavedConfig(id string) (*SavedConfig, bool) {
	if fs == nil {
		return nil, false
	}
	sc, ok := fs.SavedConfigs[id]
	return sc, ok && sc != nil
}

// LogDateFormat implements Source
func (fs *FilterSet) LogDateFormat(id string) (*DateFormat, bool) {
	if fs == nil {
		return nil, false
	}
	df, ok := fs.LogDateFormats[id]
	return df, ok && df != nil
}

// FilterAlias implements Source
func (fs *FilterSet) FilterAlias(id string) (string, bool) {
	if fs == nil {
		return "", false
	}
	alias, ok := fs.FilterAliases[id]
	return alias, ok
}

// SavedConfigFor returns savedConfigs.<id>, creating it if needed
func (fs *FilterSet) SavedConfigFor(id string) *SavedConfig {
	fs.ensureMaps()
	sc, ok := fs.SavedConfigs[id]
	if !ok || sc == nil {
		sc = &SavedConfig{}
		fs.SavedConfigs[id] = sc
	}
	return sc
}

// Merge copies every entry of other into fs. Saved configs are merged field
// by field so exports of different filters combine into one config.
func (fs *FilterSet) Merge(other *FilterSet) *FilterSet {
	if other == nil {
		return fs
	}
	fs.ensureMaps()

	for id, sc := range other.SavedConfigs {
		if sc == nil {
			continue
		}
		dst := fs.SavedConfigFor(id)
		if sc.Starter != "" {
			dst.Starter = sc.Starter
		}
		if sc.DateFormat != nil {
			df := *sc.DateFormat
			dst.DateFormat = &df
		}
	}
	for id, df := range other.LogDateFormats {
		if df == nil {
			continue
		}
		cp := *df
		fs.LogDateFormats[id] = &cp
	}
	for id, alias := range other.FilterAliases {
		fs.FilterAliases[id] = alias
	}
	return fs
}

// IDs returns every config id known to the set, sorted
func (fs *FilterSet) IDs() []string {
	if fs == nil {
		return nil
	}
	seen := make(map[string]bool)
	for id := range fs.SavedConfigs {
		seen[id] = true
	}
	for id := range fs.LogDateFormats {
		seen[id] = true
	}
	for id := range fs.FilterAliases {
		seen[id] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (fs *FilterSet) ensureMaps() {
	if fs.SavedConfigs == nil {
		fs.SavedConfigs = make(map[string]*SavedConfig)
	}
	if fs.LogDateFormats == nil {
		fs.LogDateFormats = make(map[string]*DateFormat)
	}
	if fs.FilterAliases == nil {
		fs.FilterAliases = make(map[string]string)
	}
}
