// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema contains the DDL of the order ledger tables.
//
//go:embed migrations/001_schema.sql
var Schema string
