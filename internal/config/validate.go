package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is the dotted config key (e.g. "warehouse.port"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Err joins the error-severity issues, or returns nil when there are none.
func Err(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report koanf key names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks c without mutating it: struct-tag rules first, then
// cross-field rules that tags cannot express.
func (c *Config) Validate() []Issue {
	var issues []Issue

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
		}
		for _, fe := range verrs {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     issuePath(fe.Namespace()),
				Message:  fieldMessage(fe),
			})
		}
	}

	issues = append(issues, c.validateSource()...)
	issues = append(issues, c.validatePaths()...)
	issues = append(issues, c.validateWarehouse()...)
	issues = append(issues, c.validateMetrics()...)
	return issues
}

// issuePath drops the root struct name: "Config.warehouse.port" -> "warehouse.port".
func issuePath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "len":
		return fmt.Sprintf("must be exactly %s character(s), got %q", fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("must be a URL, got %q", fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func (c *Config) validateSource() []Issue {
	if c.Source.Kind != "s3" {
		return nil
	}
	var issues []Issue
	if strings.TrimSpace(c.Source.S3.Bucket) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.s3.bucket",
			Message:  "s3 source requires a bucket",
		})
	}
	if c.Source.S3.AccessKeyID != "" && c.Source.S3.SecretAccessKey == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.s3.secret_access_key",
			Message:  "access_key_id is set without secret_access_key",
		})
	}
	return issues
}

func (c *Config) validatePaths() []Issue {
	var issues []Issue
	raw := filepath.Clean(c.Paths.Raw)
	for path, dir := range map[string]string{
		"paths.validated": c.Paths.Validated,
		"paths.curated":   c.Paths.Curated,
	} {
		if c.Source.Kind == "file" && dir != "" && filepath.Clean(dir) == raw {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  "must differ from paths.raw; outputs would overwrite the raw extracts",
			})
		}
	}
	if c.Paths.Reports != "" && filepath.Clean(c.Paths.Reports) == filepath.Clean(c.Paths.Curated) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "paths.reports",
			Message:  "reports share the curated directory; warehouse loads ignore them but consumers may not",
		})
	}
	sortIssues(issues)
	return issues
}

func (c *Config) validateWarehouse() []Issue {
	w := c.Warehouse
	var issues []Issue
	switch w.Kind {
	case "postgres", "mssql", "mysql":
		if w.DSN == "" && w.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "warehouse.host",
				Message:  fmt.Sprintf("%s warehouse requires dsn or host", w.Kind),
			})
		}
		if w.DSN == "" && w.Database == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "warehouse.database",
				Message:  fmt.Sprintf("%s warehouse requires dsn or database", w.Kind),
			})
		}
	case "sqlite", "duckdb":
		if w.DSN == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "warehouse.dsn",
				Message:  fmt.Sprintf("%s warehouse requires dsn (database file)", w.Kind),
			})
		}
	}
	if w.BatchSize > 100000 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "warehouse.batch_size",
			Message:  fmt.Sprintf("batch size %d is unusually large", w.BatchSize),
		})
	}
	return issues
}

func (c *Config) validateMetrics() []Issue {
	m := c.Metrics
	switch {
	case m.Backend == "prometheus" && m.PushgatewayURL == "":
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.pushgateway_url",
			Message:  "prometheus backend requires a Pushgateway URL",
		}}
	case m.Backend == "datadog" && m.DatadogAddr == "":
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.datadog_addr",
			Message:  "datadog backend requires a DogStatsD address",
		}}
	}
	return nil
}

func sortIssues(issues []Issue) {
	for i := 1; i < len(issues); i++ {
		for j := i; j > 0 && issues[j].Path < issues[j-1].Path; j-- {
			issues[j], issues[j-1] = issues[j-1], issues[j]
		}
	}
}
