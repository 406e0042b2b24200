package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/AdguardTeam/adblock"
	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// engineConfig is the YAML configuration of the engine.
type engineConfig struct {
	// Resources is the path to the resource bundle.
	Resources string `yaml:"resources"`

	// Filters are the paths to the filter lists.
	Filters []string `yaml:"filters"`

	// Tags are the tags to enable.
	Tags []string `yaml:"tags"`

	// MaxListSize is the maximum size of a filter list, like "64MB".
	MaxListSize datasize.ByteSize `yaml:"max_list_size"`

	// Strict makes the compilation fail on any unparseable rule.
	Strict bool `yaml:"strict"`
}

// readEngineConfig reads the engine configuration from the file at path.  An
// empty path means the empty configuration.
func readEngineConfig(path string) (conf *engineConfig, err error) {
	conf = &engineConfig{}
	if path == "" {
		return conf, nil
	}

	// #nosec G304 -- Trust the path from the command line.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	err = yaml.Unmarshal(data, conf)
	if err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	return conf, nil
}

// loadEngine creates the engine as the common options and the configuration
// file specify.
func loadEngine(l *slog.Logger) (e *adblock.Engine, err error) {
	conf, err := readEngineConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	engineConf := &adblock.Config{
		Logger:          l,
		MaxRuleListSize: conf.MaxListSize,
		Strict:          conf.Strict,
	}

	if opts.Snapshot != "" {
		return loadSnapshot(opts.Snapshot, engineConf)
	}

	e, err = compileLists(append(conf.Filters, opts.FilterLists...), engineConf)
	if err != nil {
		return nil, err
	}

	if conf.Resources != "" {
		var bundle []byte
		// #nosec G304 -- Trust the path from the configuration file.
		bundle, err = os.ReadFile(conf.Resources)
		if err != nil {
			return nil, fmt.Errorf("reading resources: %w", err)
		}

		err = e.AddResources(bundle)
		if err != nil {
			return nil, err
		}
	}

	for _, t := range conf.Tags {
		e.AddTag(t)
	}

	return e, nil
}

// compileLists compiles the filter lists at paths.
func compileLists(paths []string, conf *adblock.Config) (e *adblock.Engine, err error) {
	fs := adblock.NewFilterSet()
	for _, p := range paths {
		var text []byte
		// #nosec G304 -- Trust the path from the configuration.
		text, err = os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading filter list: %w", err)
		}

		var id int
		id, err = fs.AddFilterList(string(text))
		if err != nil {
			// Should never happen, since the set is new.
			panic(err)
		}

		conf.Logger.Debug("added filter list", "id", id, "path", p)
	}

	return adblock.NewEngine(fs, conf)
}

// loadSnapshot restores the engine from the snapshot file at path.
func loadSnapshot(path string, conf *adblock.Config) (e *adblock.Engine, err error) {
	// #nosec G304 -- Trust the path from the command line.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	return adblock.Deserialize(data, conf)
}
