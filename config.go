package tablekit

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tablekit/tablekit/dialect"
)

// optionsFile is the YAML shape of a service configuration. Runtime handles
// (Driver, Cache) cannot come from a file and are set on the returned
// Options by the caller.
type optionsFile struct {
	Table    string `yaml:"table"`
	IDField  string `yaml:"id_field"`
	Dialect  string `yaml:"dialect"`
	CacheTTL string `yaml:"cache_ttl"`

	Paginate *struct {
		Default int `yaml:"default"`
		Max     int `yaml:"max"`
	} `yaml:"paginate"`

	Multi struct {
		Create bool `yaml:"create"`
		Patch  bool `yaml:"patch"`
		Remove bool `yaml:"remove"`
	} `yaml:"multi"`

	Relations map[string]struct {
		Kind     string `yaml:"kind"`
		KeyHere  string `yaml:"key_here"`
		KeyThere string `yaml:"key_there"`
		Table    string `yaml:"table"`
	} `yaml:"relations"`

	Properties map[string]struct {
		Column string `yaml:"column"`
	} `yaml:"properties"`
}

// OptionsFromYAML decodes a service configuration from YAML. The caller
// attaches the driver (and optionally a cache) before passing the result to
// NewService:
//
//	opts, err := tablekit.OptionsFromYAML(raw)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts.Driver = drv
//	svc, err := tablekit.NewService(opts)
func OptionsFromYAML(data []byte) (Options, error) {
	var f optionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Options{}, &ConfigError{Option: "yaml", Err: err}
	}
	opts := Options{
		Table:   f.Table,
		IDField: f.IDField,
		Dialect: dialect.Dialect(f.Dialect),
		Multi: Multi{
			Create: f.Multi.Create,
			Patch:  f.Multi.Patch,
			Remove: f.Multi.Remove,
		},
	}
	if f.CacheTTL != "" {
		ttl, err := time.ParseDuration(f.CacheTTL)
		if err != nil {
			return Options{}, &ConfigError{Option: "cache_ttl", Err: err}
		}
		opts.CacheTTL = ttl
	}
	if f.Paginate != nil {
		opts.Paginate = &Paginate{Default: f.Paginate.Default, Max: f.Paginate.Max}
	}
	if len(f.Relations) > 0 {
		opts.Relations = make(map[string]Relation, len(f.Relations))
		for name, r := range f.Relations {
			kind, err := relationKind(r.Kind)
			if err != nil {
				return Options{}, &ConfigError{Option: "relations." + name, Err: err}
			}
			opts.Relations[name] = Relation{
				Kind:     kind,
				KeyHere:  r.KeyHere,
				KeyThere: r.KeyThere,
				Table:    r.Table,
			}
		}
	}
	if len(f.Properties) > 0 {
		opts.Properties = make(map[string]Property, len(f.Properties))
		for name, p := range f.Properties {
			opts.Properties[name] = Property{Column: p.Column}
		}
	}
	return opts, nil
}

func relationKind(s string) (RelationKind, error) {
	switch s {
	case "belongs_to":
		return BelongsTo, nil
	case "has_many":
		return HasMany, nil
	}
	return 0, fmt.Errorf("unknown relation kind %q, want belongs_to or has_many", s)
}
