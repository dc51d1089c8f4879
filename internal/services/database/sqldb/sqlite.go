package sqldb

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/zekurio/hearth/internal/models"
)

// InitSQLite opens the sqlite database file at c.Path. Use ":memory:"
// for a throwaway in-memory database.
func InitSQLite(c models.SQLiteConfig) (*SQL, error) {
	return open("sqlite", c.Path, "sqlite3", func(db *sql.DB) {
		// sqlite does not handle concurrent writers and every
		// connection to ":memory:" opens a database of its own
		db.SetMaxOpenConns(1)
	})
}
