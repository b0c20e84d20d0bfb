package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// sections: SALESETL_WAREHOUSE__BATCH_SIZE sets warehouse.batch_size.
const EnvPrefix = "SALESETL_"

// DefaultFile is read from the working directory when no file is given.
const DefaultFile = "salesetl.yaml"

// legacyEnv maps the variable names of the original deployment scripts.
var legacyEnv = map[string]string{
	"RAW_DIR":        "paths.raw",
	"VALIDATED_DIR":  "paths.validated",
	"GE_REPORTS_DIR": "paths.reports",
	"CURATED_DIR":    "paths.curated",
	"PG_HOST":        "warehouse.host",
	"PG_PORT":        "warehouse.port",
	"PG_DB":          "warehouse.database",
	"PG_USER":        "warehouse.user",
	"PG_PASSWORD":    "warehouse.password",
	"PG_SCHEMA":      "warehouse.schema",
}

// FlagKeys maps CLI flag names to config keys. Flags not listed here are not
// configuration.
var FlagKeys = map[string]string{
	"job":           "job",
	"raw-dir":       "paths.raw",
	"validated-dir": "paths.validated",
	"reports-dir":   "paths.reports",
	"curated-dir":   "paths.curated",
	"source":        "source.kind",
	"s3-bucket":     "source.s3.bucket",
	"s3-prefix":     "source.s3.prefix",
	"warehouse":     "warehouse.kind",
	"dsn":           "warehouse.dsn",
	"schema":        "warehouse.schema",
	"batch-size":    "warehouse.batch_size",
	"metrics":       "metrics.backend",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"workers":       "runtime.workers",
	"csv-strict":    "csv.strict",
	"dedup-policy":  "enrich.dedup_policy",
}

// Loaded is the result of Load.
type Loaded struct {
	Config
	// File is the config file that was read, or "".
	File string
}

// Load layers, lowest precedence first: defaults, the YAML file (cfgFile, or
// salesetl.yaml when present), legacy environment names, SALESETL_
// environment, then flags that were explicitly set. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Loaded, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			used = DefaultFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("load legacy env: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &Loaded{Config: cfg, File: used}, nil
}
