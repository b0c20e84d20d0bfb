package config

import (
	"io"
	"net/url"
	"regexp"

	"gopkg.in/yaml.v3"
)

const redacted = "********"

// Redacted returns a copy of c with secrets masked.
func (c Config) Redacted() Config {
	if c.Warehouse.Password != "" {
		c.Warehouse.Password = redacted
	}
	if c.Source.S3.SecretAccessKey != "" {
		c.Source.S3.SecretAccessKey = redacted
	}
	c.Warehouse.DSN = redactDSN(c.Warehouse.DSN)
	return c
}

// Dump writes the redacted configuration as YAML.
func Dump(w io.Writer, c Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return err
	}
	return enc.Close()
}

var kvPassword = regexp.MustCompile(`(?i)(password|pwd)=([^ ;]*)`)

// redactDSN masks the password of URL DSNs (postgres://u:p@h/db) and of
// key=value DSNs (password=p or pwd=p).
func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	return kvPassword.ReplaceAllString(dsn, "${1}="+redacted)
}
