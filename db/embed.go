// Package db embeds the checkout schema applied on startup.
package db

import _ "embed"

// Schema holds the DDL for the product, cart, order, and payment tables.
//
//go:embed migrations/001_schema.sql
var Schema string
