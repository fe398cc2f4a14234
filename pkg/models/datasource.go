package models

import "time"

// DataSource is a producer manager configuration row: "type" selects the
// registered producer factory (or is push-only, e.g. "telegraf"), "config"
// carries factory-specific settings (host, credentials, poll interval...).
//
// Grounded on original_source/app/models/data_source.py, re-keyed to a UUID
// primary key since the Go repository layer has no ORM-managed autoincrement.
type DataSource struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config"`
	Enabled   bool           `json:"enabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
