// Command cblaudit runs an audited Couchbase Lite scenario and reports native
// objects that outlive it.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo"
)

// Exit codes
const (
	ExitOK     = 0
	ExitUsage  = 1
	ExitConfig = 2
	ExitLeak   = 3
	ExitNative = 4
)

// GlobalFlags are accepted before the subcommand.
type GlobalFlags struct {
	JSON     bool
	Quiet    bool
	Backend  string
	LibDir   string
	LogLevel string
}

const usage = `Usage: cblaudit [global options] <command> [options]

Commands:
  scenario   Run the audited open/save/read/release scenario
  counts     Print live native instance counts
  dump       Print live native instances
  version    Print the native library version
  init       Write a default cblaudit.yaml

Global options:
  --config string      Config file (default ./cblaudit.yaml)
  --json               Output as JSON
  --quiet              Suppress informational output
  --backend string     memlite or libcblite (overrides config)
  --lib-dir string     Directory containing libcblite (overrides config)
  --log-level string   debug, info, warn or error (overrides config)

`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("cblaudit", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	var globals GlobalFlags
	configPath := fs.String("config", "", "config file")
	fs.BoolVar(&globals.JSON, "json", false, "output as JSON")
	fs.BoolVar(&globals.Quiet, "quiet", false, "suppress informational output")
	fs.StringVar(&globals.Backend, "backend", "", "backend override")
	fs.StringVar(&globals.LibDir, "lib-dir", "", "libcblite directory override")
	fs.StringVar(&globals.LogLevel, "log-level", "", "log level override")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return ExitUsage
	}

	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "init" {
		return runInit(cmdArgs, *configPath, globals)
	}

	cfg, err := LoadConfig(*configPath)
	if err == nil {
		err = globals.apply(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfig
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfig
	}
	defer func() { _ = log.Sync() }()
	cblgo.SetLogger(log)

	switch cmd {
	case "scenario":
		return runScenarioCmd(cmdArgs, cfg, globals, log)
	case "counts":
		return runCounts(cmdArgs, cfg, globals, log)
	case "dump":
		return runDump(cmdArgs, cfg, log)
	case "version":
		return runVersion(cmdArgs, cfg, globals, log)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		fs.Usage()
		return ExitUsage
	}
}

// apply layers command-line overrides on cfg.
func (g GlobalFlags) apply(cfg *Config) error {
	if g.Backend != "" {
		cfg.Backend = g.Backend
	}
	if g.LibDir != "" {
		cfg.LibraryDir = g.LibDir
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	return cfg.Validate()
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func nativeExit(err error, globals GlobalFlags) int {
	if globals.JSON {
		outputJSON(map[string]string{"error": err.Error()})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitNative
}

func runScenarioCmd(args []string, cfg *Config, globals GlobalFlags, log *zap.Logger) int {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cblaudit scenario [options]

Description:
  Open a database, save and read back documents, release everything and
  compare native instance counts taken before and after. Exits with status
  %d when objects leaked.

Options:
  --docs int     Number of documents (default from config)
  --leak         Keep the read-back documents alive until after the audit
  --dir string   Database directory (default from config)

`, ExitLeak)
	}
	docs := fs.Int("docs", cfg.Scenario.Documents, "number of documents")
	leak := fs.Bool("leak", false, "keep read-back documents alive")
	fs.StringVar(&cfg.Directory, "dir", cfg.Directory, "database directory")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if *docs > 0 {
		cfg.Scenario.Documents = *docs
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfig
	}

	lib, err := openBackend(cfg, log)
	if err != nil {
		return nativeExit(err, globals)
	}

	res, err := runScenario(lib, cfg, *leak, log)
	if res == nil {
		return nativeExit(err, globals)
	}

	if globals.JSON {
		outputJSON(res)
	} else if !globals.Quiet || err != nil {
		printScenario(res)
	}

	switch {
	case err == nil:
		return ExitOK
	case res.Leaked():
		return ExitLeak
	default:
		return ExitNative
	}
}

func printScenario(res *ScenarioResult) {
	fmt.Printf("cblaudit scenario (%s)\n\n", res.Backend)
	fmt.Printf("  Directory:  %s\n", res.Directory)
	fmt.Printf("  Documents:  %d\n", res.Documents)
	if res.Forgotten > 0 {
		fmt.Printf("  Forgotten:  %d\n", res.Forgotten)
	}
	fmt.Printf("  Took:       %s\n", res.Duration)
	if len(res.Leaks) == 0 {
		fmt.Println("  Leaks:      none")
	} else {
		fmt.Println("  Leaks:")
		for _, l := range res.Leaks {
			fmt.Printf("    %-12s %+d\n", l.Kind, l.Delta)
		}
	}
	if res.Error != "" && len(res.Leaks) == 0 {
		fmt.Printf("\n  Error: %s\n", res.Error)
	}
}

func runCounts(args []string, cfg *Config, globals GlobalFlags, log *zap.Logger) int {
	fs := flag.NewFlagSet("counts", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	lib, err := openBackend(cfg, log)
	if err != nil {
		return nativeExit(err, globals)
	}
	counts := lib.InstanceCounts()
	if globals.JSON {
		outputJSON(countsMap(counts))
		return ExitOK
	}
	for _, k := range counts.SortedKinds() {
		fmt.Printf("%-12s %d\n", k, counts[k])
	}
	return ExitOK
}

func runDump(args []string, cfg *Config, log *zap.Logger) int {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if _, err := openBackend(cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitNative
	}
	if err := cblgo.DumpInstances(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitNative
	}
	return ExitOK
}

// VersionResult is the version command's JSON output.
type VersionResult struct {
	Library    string `json:"library"`
	Version    string `json:"version"`
	Required   string `json:"required"`
	Compatible bool   `json:"compatible"`
}

func runVersion(args []string, cfg *Config, globals GlobalFlags, log *zap.Logger) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	lib, err := openBackend(cfg, log)
	if err != nil {
		return nativeExit(err, globals)
	}
	v := lib.Version()
	res := VersionResult{
		Library:    lib.Name(),
		Version:    v.String(),
		Required:   cblgo.RequiredVersion.String(),
		Compatible: v.Compatible(cblgo.RequiredVersion),
	}
	if globals.JSON {
		outputJSON(res)
	} else {
		fmt.Printf("%s %s (requires %s)\n", res.Library, res.Version, res.Required)
	}
	if !res.Compatible {
		return ExitNative
	}
	return ExitOK
}

func runInit(args []string, configPath string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	if _, err := os.Stat(configPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", configPath)
		return ExitConfig
	}

	cfg := DefaultConfig()
	if err := globals.apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfig
	}
	if err := SaveConfig(cfg, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfig
	}
	if !globals.Quiet {
		fmt.Printf("Wrote %s\n", configPath)
	}
	return ExitOK
}
