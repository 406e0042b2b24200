package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AdguardTeam/adblock/catalog"
	"github.com/AdguardTeam/golibs/errors"
	"gopkg.in/yaml.v3"
)

// compileCommand compiles the filter lists into a snapshot file.
type compileCommand struct {
	Output string `short:"o" long:"output" description:"Path to the snapshot file." required:"true"`
}

// Execute implements the [goFlags.Commander] interface for *compileCommand.
func (c *compileCommand) Execute(_ []string) (err error) {
	l := newLogger()

	e, err := loadEngine(l)
	if err != nil {
		return err
	}
	defer func() { err = errors.WithDeferred(err, e.Close()) }()

	data, err := e.Serialize()
	if err != nil {
		return fmt.Errorf("serializing engine: %w", err)
	}

	err = os.WriteFile(c.Output, data, 0o644)
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	network, cosmetic := e.RulesCount()
	l.Info(
		"compiled engine",
		"path", c.Output,
		"size", len(data),
		"network_rules", network,
		"cosmetic_rules", cosmetic,
	)

	return nil
}

// matchOutput is the JSON output of the match command.
type matchOutput struct {
	Rule      string `json:"rule,omitempty"`
	Redirect  string `json:"redirect,omitempty"`
	CSP       string `json:"csp,omitempty"`
	Blocked   bool   `json:"blocked"`
	Exception bool   `json:"exception"`
	Important bool   `json:"important"`
}

// matchCommand matches a single request.
type matchCommand struct {
	URL        string `short:"u" long:"url" description:"URL of the request." required:"true"`
	SourceURL  string `long:"source" description:"URL or hostname of the page that made the request."`
	Type       string `short:"t" long:"type" description:"Type of the request, like \"script\" or \"main_frame\"." default:"other"`
	ThirdParty bool   `long:"third-party" description:"The request is third-party."`
}

// Execute implements the [goFlags.Commander] interface for *matchCommand.
func (c *matchCommand) Execute(_ []string) (err error) {
	e, err := loadEngine(newLogger())
	if err != nil {
		return err
	}
	defer func() { err = errors.WithDeferred(err, e.Close()) }()

	res := e.Match(c.URL, "", c.SourceURL, c.ThirdParty, c.Type)
	out := &matchOutput{
		Redirect:  res.RedirectDataURL(),
		CSP:       e.GetCSPDirectives(c.URL, "", c.SourceURL, c.ThirdParty, c.Type),
		Blocked:   res.Blocked,
		Exception: res.Exception,
		Important: res.Important,
	}

	if res.Rule != nil {
		out.Rule = res.Rule.Text()
	}

	return printJSON(out)
}

// cosmeticCommand prints the cosmetic resources of a page.
type cosmeticCommand struct {
	URL string `short:"u" long:"url" description:"URL of the page." required:"true"`
}

// Execute implements the [goFlags.Commander] interface for *cosmeticCommand.
func (c *cosmeticCommand) Execute(_ []string) (err error) {
	e, err := loadEngine(newLogger())
	if err != nil {
		return err
	}
	defer func() { err = errors.WithDeferred(err, e.Close()) }()

	return printJSON(e.URLCosmeticResources(c.URL))
}

// listsCommand prints the filter list catalog.
type listsCommand struct {
	Lang     string `short:"l" long:"lang" description:"Print only the regional lists for this language."`
	Regional bool   `short:"r" long:"regional" description:"Print the regional lists instead of the default ones."`
}

// Execute implements the [goFlags.Commander] interface for *listsCommand.
func (c *listsCommand) Execute(_ []string) (err error) {
	var lists []catalog.FilterList
	switch {
	case c.Lang != "":
		lists = catalog.ForLanguage(c.Lang)
	case c.Regional:
		lists = catalog.RegionalLists()
	default:
		lists = catalog.DefaultLists()
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer func() { err = errors.WithDeferred(err, enc.Close()) }()

	return enc.Encode(lists)
}

// printJSON prints v to stdout as indented JSON.
func printJSON(v any) (err error) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
