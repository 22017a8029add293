package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strings"
)

// GetDatabaseSchema returns the CREATE statements for every user table
// and index in the database, keyed by object name. Migration bookkeeping
// and SQLite internals are excluded so schemas produced by migrations
// compare equal to schemas created by hand.
func (db *DB) GetDatabaseSchema() (map[string]string, error) {
	rows, err := db.Query(`
		SELECT name, sql
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		  AND sql IS NOT NULL
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema: %w", err)
	}
	defer rows.Close()

	schema := make(map[string]string)
	for rows.Next() {
		var name, createSQL string
		if err := rows.Scan(&name, &createSQL); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		schema[name] = createSQL
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema rows: %w", err)
	}

	return schema, nil
}

// GetSchemaAtMigration returns the schema a database would have after
// applying migrations up to the given version. The migrations run
// against a scratch database that is removed afterwards.
func (db *DB) GetSchemaAtMigration(migrations fs.FS, version uint) (map[string]string, error) {
	tmpFile, err := os.CreateTemp("", "schema_at_*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary database: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer func() {
		os.Remove(tmpPath)
		os.Remove(tmpPath + "-shm")
		os.Remove(tmpPath + "-wal")
	}()

	tmpDB, err := OpenDB(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary database: %w", err)
	}
	defer tmpDB.Close()

	if err := tmpDB.MigrateTo(migrations, version); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return tmpDB.GetDatabaseSchema()
}

// DetectSchemaVersion compares the live schema against the schema at
// every migration version and reports the closest match along with its
// similarity score and differences. This is how databases created
// before migration tracking get matched to a baseline version.
func (db *DB) DetectSchemaVersion(migrations fs.FS) (uint, int, []string, error) {
	currentSchema, err := db.GetDatabaseSchema()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to get current schema: %w", err)
	}

	latestVersion, err := GetLatestMigrationVersion(migrations)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to get latest version: %w", err)
	}

	var (
		bestVersion uint
		bestScore   = -1
		bestDiffs   []string
	)

	for version := uint(1); version <= latestVersion; version++ {
		expectedSchema, err := db.GetSchemaAtMigration(migrations, version)
		if err != nil {
			log.Printf("Skipping schema comparison at version %d: %v", version, err)
			continue
		}

		score, diffs := CompareSchemas(currentSchema, expectedSchema)
		if score > bestScore {
			bestVersion = version
			bestScore = score
			bestDiffs = diffs
		}

		// Near-perfect match; later versions only add objects the
		// current schema does not have.
		if score >= 98 {
			break
		}
	}

	if bestScore < 0 {
		return 0, 0, nil, fmt.Errorf("could not compare schema against any migration version")
	}

	return bestVersion, bestScore, bestDiffs, nil
}

// CompareSchemas scores how closely two schemas match on a 0-100 scale.
// The score is the percentage of object names, across both schemas,
// whose normalized SQL is identical. One difference is reported per
// mismatched object.
func CompareSchemas(current, expected map[string]string) (int, []string) {
	names := make(map[string]bool)
	for name := range current {
		names[name] = true
	}
	for name := range expected {
		names[name] = true
	}

	if len(names) == 0 {
		return 100, nil
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	matched := 0
	var diffs []string
	for _, name := range sorted {
		currentSQL, inCurrent := current[name]
		expectedSQL, inExpected := expected[name]

		switch {
		case !inExpected:
			diffs = append(diffs, fmt.Sprintf("Extra: %s (not created by any migration)", name))
		case !inCurrent:
			diffs = append(diffs, fmt.Sprintf("Missing: %s", name))
		case normalizeSQLForComparison(currentSQL) != normalizeSQLForComparison(expectedSQL):
			diffs = append(diffs, fmt.Sprintf("Modified: %s", name))
		default:
			matched++
		}
	}

	return matched * 100 / len(names), diffs
}

// normalizeSQLForComparison reduces a CREATE statement to a canonical
// form so cosmetic differences in quoting, case, and whitespace do not
// count as schema changes.
func normalizeSQLForComparison(sql string) string {
	s := strings.ToLower(sql)
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, "`", "")
	s = strings.ReplaceAll(s, "[", "")
	s = strings.ReplaceAll(s, "]", "")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "if not exists ", "")
	s = strings.ReplaceAll(s, "( ", "(")
	s = strings.ReplaceAll(s, " )", ")")
	s = strings.ReplaceAll(s, " ,", ",")
	s = strings.ReplaceAll(s, ", ", ",")
	return strings.TrimSuffix(s, ";")
}
