// Package pg is a lock.Adapter backed by PostgreSQL: a single table with
// an atomic UPSERT implementing tryInsert's three-way admission rule
// (absent, expired, or same-owner), adapted from the teacher's
// schema/table configuration style.
package pg

import "fmt"

// Config names the schema and table an Adapter operates on.
type Config struct {
	Schema string
	Table  string
}

// Option customizes a Config, functional-options style.
type Option func(*Config)

// WithSchema overrides the default "public" schema.
func WithSchema(schema string) Option {
	return func(c *Config) { c.Schema = schema }
}

// WithTable overrides the default "resilientcore_locks" table name.
func WithTable(table string) Option {
	return func(c *Config) { c.Table = table }
}

func defaultConfig() Config {
	return Config{Schema: "public", Table: "resilientcore_locks"}
}

// qualified returns the schema-qualified table name for use in SQL.
func (c Config) qualified() string {
	return fmt.Sprintf("%q.%q", c.Schema, c.Table)
}
