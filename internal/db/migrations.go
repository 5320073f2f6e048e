package db

import (
	"context"
	"database/sql"
	"fmt"

	"artizen/internal/logging"
)

// schemaStep is one numbered change to the artizen schema. Steps run in
// order, each in its own transaction together with its schema_version row.
type schemaStep struct {
	version int
	name    string
	ddl     string
}

var schemaSteps = []schemaStep{
	{1, "social_graph", initialSchemaV1},
	{2, "chat", chatSchemaV2},
	{3, "account_indexes", accountIndexesV3},
}

const schemaVersionDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version     INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	applied_at  TEXT NOT NULL
);`

// ApplyMigrations brings database up to the newest schema step. A database
// written by a newer build is refused rather than modified.
func ApplyMigrations(database *sql.DB) error {
	ctx := context.Background()
	if _, err := database.ExecContext(ctx, schemaVersionDDL); err != nil {
		return fmt.Errorf("ensure schema_version table: %w", err)
	}

	applied, err := appliedVersions(ctx, database)
	if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	latest := schemaSteps[len(schemaSteps)-1].version
	for v := range applied {
		if v > latest {
			return fmt.Errorf("database schema version %d is newer than this build (%d)", v, latest)
		}
	}

	for _, step := range schemaSteps {
		if applied[step.version] {
			continue
		}
		err := withTx(ctx, database, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, step.ddl); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)`,
				step.version, step.name, nowString())
			return err
		})
		if err != nil {
			return fmt.Errorf("schema step %d (%s): %w", step.version, step.name, err)
		}
		logging.Log.Info("schema step applied", "version", step.version, "name", step.name)
	}
	return nil
}

func appliedVersions(ctx context.Context, q querier) (map[int]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}
