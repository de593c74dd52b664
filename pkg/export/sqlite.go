package export

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/coolbeans/fieldmap/pkg/fields"
)

const schema = `
DROP TABLE IF EXISTS fields;
CREATE TABLE fields (
	id                INTEGER PRIMARY KEY,
	section           TEXT NOT NULL,
	field_name        TEXT NOT NULL,
	field_description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_fields_section ON fields(section);
`

// WriteSQLite stores records in the "fields" table of the database at
// path, replacing any previous contents. Row ids follow record order.
func WriteSQLite(path string, records []fields.FieldRecord) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO fields (id, section, field_name, field_description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.Exec(i+1, r.Section, r.FieldName, r.FieldDescription); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting %s.%s: %w", r.Section, r.FieldName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
