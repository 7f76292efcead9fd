package storage

import "embed"

// MigrationsFS embeds the schema migrations applied by Pool.Migrate on
// construction: snapshots, segments, blocks, calendar events (with the
// (user_email, google_event_id) uniqueness constraint), calendar sync
// settings, calendar tokens, WBS elements, the outbox queue, command
// metrics, and token usage.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
