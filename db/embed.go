// Package db embeds the schema migrations and the demo seed data.
package db

import "embed"

// Migrations holds the ordered DDL files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Seed holds products.json, zones.json and discounts.json under seed/.
//
//go:embed seed/*.json
var Seed embed.FS
