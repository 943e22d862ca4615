// Package db embeds the database schema.
package db

import _ "embed"

// Schema holds the DDL for all application tables and indexes.
//
//go:embed migrations/001_schema.sql
var Schema string
