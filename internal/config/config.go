// Package config parses the jsonkv command line and the optional YAML
// server configuration file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	yaml "github.com/goccy/go-yaml"

	"jsonkv/internal/exit"
)

// Defaults for the serve command.
const (
	DefaultListen = "127.0.0.1:7401"
	DefaultDir    = "./jsonkv-data"
)

var (
	ErrNoArguments = errors.New("no arguments provided")
	ErrNoCommand   = errors.New("no command specified")
)

// Config is the parsed command line: one command, its positional
// arguments, and the store/server settings shared by all commands.
type Config struct {
	Command string
	Args    []string

	DataDir  string
	InMemory bool

	// serve settings
	Listen    string
	RateLimit float64 // requests per second, 0 for unlimited
	LogLevel  string
	File      string // optional YAML config file
}

// FileConfig is the YAML shape of the serve configuration file.
// Values present in the file override built-in defaults but not
// explicit command-line flags.
type FileConfig struct {
	Listen    string  `yaml:"listen"`
	DataDir   string  `yaml:"data_dir"`
	RateLimit float64 `yaml:"rate_limit"`
	LogLevel  string  `yaml:"log_level"`
}

// Usage returns the command-line help text.
func Usage() string {
	return `jsonkv - JSON document store over an embedded keyspace

Usage:
  jsonkv [flags] set <key> <json> [path]
  jsonkv [flags] get <key> [path]
  jsonkv [flags] del <key> [path]
  jsonkv [flags] type <key> [path]
  jsonkv [flags] keys [prefix]
  jsonkv [flags] serve

Flags:
  -dir string        data directory (default "` + DefaultDir + `")
  -listen string     serve address (default "` + DefaultListen + `")
  -rate-limit float  serve rate limit in requests per second (0 for unlimited)
  -log-level string  serve log level: debug, info, warn, error (default "info")
  -config string     serve YAML configuration file
`
}

// Parse parses command-line arguments and returns a validated Config.
// On failure or help request it returns a nil config and an exit
// result instead.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Usagef("Error: %v\n\n%s", ErrNoArguments, Usage())
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)

	var (
		dir       = fs.String("dir", DefaultDir, "data directory")
		listen    = fs.String("listen", DefaultListen, "serve address")
		rateLimit = fs.Float64("rate-limit", 0, "serve rate limit in requests per second (0 for unlimited)")
		logLevel  = fs.String("log-level", "info", "serve log level")
		file      = fs.String("config", "", "serve YAML configuration file")
	)

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Usagef("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return nil, exit.Usagef("Error: %v\n\n%s", ErrNoCommand, Usage())
	}

	cfg := &Config{
		Command:   rest[0],
		Args:      rest[1:],
		DataDir:   *dir,
		Listen:    *listen,
		RateLimit: *rateLimit,
		LogLevel:  *logLevel,
		File:      *file,
	}

	if cfg.File != "" {
		if err := cfg.applyFile(fs); err != nil {
			return nil, exit.Errorf("Error: %v\n", err)
		}
	}

	return cfg, nil
}

// applyFile loads the YAML file and fills in every setting whose flag
// was not given explicitly on the command line.
func (c *Config) applyFile(fs *flag.FlagSet) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", c.File, err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if fc.Listen != "" && !set["listen"] {
		c.Listen = fc.Listen
	}
	if fc.DataDir != "" && !set["dir"] {
		c.DataDir = fc.DataDir
	}
	if fc.RateLimit != 0 && !set["rate-limit"] {
		c.RateLimit = fc.RateLimit
	}
	if fc.LogLevel != "" && !set["log-level"] {
		c.LogLevel = fc.LogLevel
	}
	return nil
}
