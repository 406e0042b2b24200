// Command adblock compiles filter lists, matches requests against them, and
// runs a filtering MITM proxy.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	goFlags "github.com/jessevdk/go-flags"
)

// options are the options common for all commands.
type options struct {
	// ConfigPath is the path to the YAML engine configuration file.
	ConfigPath string `short:"c" long:"config" description:"Path to the YAML engine configuration file."`

	// Snapshot is the path to a compiled engine snapshot.  If set, the lists
	// from the configuration are not compiled.
	Snapshot string `short:"s" long:"snapshot" description:"Path to a compiled engine snapshot."`

	// FilterLists are the paths to the filter lists in addition to the ones
	// from the configuration file.
	FilterLists []string `short:"f" long:"filter" description:"Path to a filter list. Can be specified multiple times."`

	// Verbose enables the debug-level logging.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output."`
}

// opts are the parsed common options.
var opts = &options{}

// newLogger returns the logger for the commands.
func newLogger() (l *slog.Logger) {
	return slogutil.New(&slogutil.Config{
		Output:       os.Stderr,
		Format:       slogutil.FormatText,
		AddTimestamp: true,
		Verbose:      opts.Verbose,
	})
}

func main() {
	parser := goFlags.NewParser(opts, goFlags.Default)

	for _, c := range []struct {
		cmd   any
		name  string
		short string
	}{{
		cmd:   &compileCommand{},
		name:  "compile",
		short: "Compile the filter lists into an engine snapshot.",
	}, {
		cmd:   &matchCommand{},
		name:  "match",
		short: "Match a network request.",
	}, {
		cmd:   &cosmeticCommand{},
		name:  "cosmetic",
		short: "Print the cosmetic filters for a page.",
	}, {
		cmd:   &listsCommand{},
		name:  "lists",
		short: "Print the catalog of the known filter lists.",
	}, {
		cmd:   &proxyCommand{},
		name:  "proxy",
		short: "Run a filtering MITM proxy.",
	}} {
		_, err := parser.AddCommand(c.name, c.short, c.short, c.cmd)
		if err != nil {
			panic(err)
		}
	}

	_, err := parser.Parse()
	if err == nil {
		return
	}

	if flagsErr, ok := err.(*goFlags.Error); ok {
		// The parser has already printed the error.
		if flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	newLogger().ErrorContext(context.Background(), "running command", slogutil.KeyError, err)

	os.Exit(1)
}
