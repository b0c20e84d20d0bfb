// Package config defines the process configuration of salesetl and loads it
// from defaults, an optional YAML file, the environment and CLI flags.
//
// Every component receives the parts of Config it needs through its
// constructor; nothing reads the environment after Load returns.
package config

import "salesetl/internal/logging"

// Config is the effective configuration of one run.
type Config struct {
	// Job names the pipeline for metrics grouping and logs.
	Job       string         `koanf:"job" yaml:"job" validate:"required"`
	Paths     Paths          `koanf:"paths" yaml:"paths"`
	Source    Source         `koanf:"source" yaml:"source"`
	Files     []string       `koanf:"files" yaml:"files" validate:"min=1,dive,required"`
	CSV       CSV            `koanf:"csv" yaml:"csv"`
	Normalize Normalize      `koanf:"normalize" yaml:"normalize"`
	Enrich    Enrich         `koanf:"enrich" yaml:"enrich"`
	Warehouse Warehouse      `koanf:"warehouse" yaml:"warehouse"`
	Metrics   Metrics        `koanf:"metrics" yaml:"metrics"`
	Log       logging.Config `koanf:"log" yaml:"log"`
	Runtime   Runtime        `koanf:"runtime" yaml:"runtime"`
}

// Paths are the run directories.
type Paths struct {
	Raw       string `koanf:"raw" yaml:"raw" validate:"required"`
	Validated string `koanf:"validated" yaml:"validated" validate:"required"`
	Reports   string `koanf:"reports" yaml:"reports" validate:"required"`
	Curated   string `koanf:"curated" yaml:"curated" validate:"required"`
}

// Source selects where raw extracts are read from. Kind "file" reads
// Paths.Raw; kind "s3" reads S3.Bucket/S3.Prefix.
type Source struct {
	Kind string   `koanf:"kind" yaml:"kind" validate:"oneof=file s3"`
	S3   S3Source `koanf:"s3" yaml:"s3"`
}

// S3Source locates extracts in an S3-compatible bucket.
type S3Source struct {
	Bucket          string `koanf:"bucket" yaml:"bucket"`
	Prefix          string `koanf:"prefix" yaml:"prefix"`
	Region          string `koanf:"region" yaml:"region"`
	Endpoint        string `koanf:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	UsePathStyle    bool   `koanf:"use_path_style" yaml:"use_path_style"`
	AccessKeyID     string `koanf:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key" yaml:"secret_access_key"`
}

// CSV configures how raw extracts are read. Validated extracts are always
// read strictly with a comma delimiter.
type CSV struct {
	// Delimiter is the single field separator character.
	Delimiter string `koanf:"delimiter" yaml:"delimiter" validate:"len=1"`

	// Strict fails a file on its first malformed row. When false, malformed
	// rows are skipped and counted.
	Strict bool `koanf:"strict" yaml:"strict"`

	// TrimSpace trims every cell before normalization.
	TrimSpace bool `koanf:"trim_space" yaml:"trim_space"`
}

// Enrich tunes the dimension joins.
type Enrich struct {
	// DedupPolicy chooses the dimension row kept for a duplicated key.
	DedupPolicy string `koanf:"dedup_policy" yaml:"dedup_policy" validate:"oneof=keep-first keep-last most-complete"`
}

// Normalize tunes the schema normalizer.
type Normalize struct {
	DateLayouts []string          `koanf:"date_layouts" yaml:"date_layouts"`
	Aliases     map[string]string `koanf:"aliases" yaml:"aliases"`
}

// Warehouse configures the load target. Server backends (postgres, mssql,
// mysql) are addressed by DSN or by the discrete Host/Port/Database/User/
// Password fields; sqlite and duckdb use DSN as the database file.
type Warehouse struct {
	Kind      string `koanf:"kind" yaml:"kind" validate:"oneof=postgres sqlite mssql mysql duckdb"`
	DSN       string `koanf:"dsn" yaml:"dsn"`
	Host      string `koanf:"host" yaml:"host"`
	Port      int    `koanf:"port" yaml:"port" validate:"min=0,max=65535"`
	Database  string `koanf:"database" yaml:"database"`
	User      string `koanf:"user" yaml:"user"`
	Password  string `koanf:"password" yaml:"password"`
	SSLMode   string `koanf:"sslmode" yaml:"sslmode"`
	Schema    string `koanf:"schema" yaml:"schema" validate:"required"`
	BatchSize int    `koanf:"batch_size" yaml:"batch_size" validate:"min=1"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string   `koanf:"backend" yaml:"backend" validate:"oneof=none prometheus datadog"`
	PushgatewayURL string   `koanf:"pushgateway_url" yaml:"pushgateway_url" validate:"omitempty,url"`
	DatadogAddr    string   `koanf:"datadog_addr" yaml:"datadog_addr"`
	Namespace      string   `koanf:"namespace" yaml:"namespace"`
	Tags           []string `koanf:"tags" yaml:"tags"`
}

// Runtime bounds concurrency.
type Runtime struct {
	// Workers is the number of extracts validated at once.
	Workers int `koanf:"workers" yaml:"workers" validate:"min=1,max=64"`
}

// DefaultFiles are the raw extracts read by default, in processing order.
var DefaultFiles = []string{
	"sap_customers.csv",
	"sap_products.csv",
	"sap_calendar.csv",
	"sap_sales.csv",
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Job: "salesetl",
		Paths: Paths{
			Raw:       "./data/raw",
			Validated: "./data/validated",
			Reports:   "./ge_reports",
			Curated:   "./data/curated",
		},
		Source: Source{Kind: "file"},
		Files:  append([]string(nil), DefaultFiles...),
		CSV:    CSV{Delimiter: ",", Strict: true},
		Enrich: Enrich{DedupPolicy: "keep-first"},
		Warehouse: Warehouse{
			Kind:      "postgres",
			Host:      "localhost",
			Port:      5432,
			Database:  "bia_dw",
			User:      "bia_user",
			Password:  "bia_password",
			SSLMode:   "disable",
			Schema:    "staging",
			BatchSize: 5000,
		},
		Metrics: Metrics{Backend: "none"},
		Log:     logging.DefaultConfig(),
		Runtime: Runtime{Workers: 1},
	}
}

// defaultsMap flattens Default for the confmap provider.
func defaultsMap() map[string]any {
	d := Default()
	return map[string]any{
		"job":                  d.Job,
		"paths.raw":            d.Paths.Raw,
		"paths.validated":      d.Paths.Validated,
		"paths.reports":        d.Paths.Reports,
		"paths.curated":        d.Paths.Curated,
		"source.kind":          d.Source.Kind,
		"files":                d.Files,
		"csv.delimiter":        d.CSV.Delimiter,
		"csv.strict":           d.CSV.Strict,
		"csv.trim_space":       d.CSV.TrimSpace,
		"enrich.dedup_policy":  d.Enrich.DedupPolicy,
		"warehouse.kind":       d.Warehouse.Kind,
		"warehouse.host":       d.Warehouse.Host,
		"warehouse.port":       d.Warehouse.Port,
		"warehouse.database":   d.Warehouse.Database,
		"warehouse.user":       d.Warehouse.User,
		"warehouse.password":   d.Warehouse.Password,
		"warehouse.sslmode":    d.Warehouse.SSLMode,
		"warehouse.schema":     d.Warehouse.Schema,
		"warehouse.batch_size": d.Warehouse.BatchSize,
		"metrics.backend":      d.Metrics.Backend,
		"log.level":            d.Log.Level,
		"log.format":           d.Log.Format,
		"log.output":           d.Log.Output,
		"runtime.workers":      d.Runtime.Workers,
	}
}
