package adblock

import (
	"log/slog"

	"github.com/AdguardTeam/adblock/rules"
	"github.com/c2h5oh/datasize"
)

// DefaultMaxRuleListSize is the default limit of a single filter list size.
const DefaultMaxRuleListSize = 64 * datasize.MB

// Config is the configuration structure for the *Engine.
type Config struct {
	// Logger is used to log the compilation results.  If nil, [slog.Default]
	// is used.
	Logger *slog.Logger

	// DomainResolver returns the registrable domain of a hostname.  It is
	// called on the matching path, so it must never block.  If nil,
	// [rules.DefaultDomainResolver] is used.
	DomainResolver rules.DomainResolver

	// MaxRuleListSize is the maximum size of a single filter list.  If zero,
	// [DefaultMaxRuleListSize] is used.
	MaxRuleListSize datasize.ByteSize

	// Strict, if true, makes the compilation fail if any of the lines cannot
	// be parsed.  Otherwise, such lines are logged and skipped.
	Strict bool
}

// withDefaults returns a copy of c with the empty fields set to their default
// values.  c may be nil.
func (c *Config) withDefaults() (conf *Config) {
	conf = &Config{}
	if c != nil {
		*conf = *c
	}

	if conf.Logger == nil {
		conf.Logger = slog.Default()
	}

	if conf.DomainResolver == nil {
		conf.DomainResolver = rules.DefaultDomainResolver
	}

	if conf.MaxRuleListSize == 0 {
		conf.MaxRuleListSize = DefaultMaxRuleListSize
	}

	return conf
}
