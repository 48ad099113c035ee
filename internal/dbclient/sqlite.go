package dbclient

import (
	"listbind/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteSource creates a source over an external SQLite file.
// Opens with a busy timeout for concurrent access.
func newSQLiteSource(conn *domain.DatabaseConnection) (*sqlSource, error) {
	dsn := conn.Host + "?_pragma=busy_timeout(5000)"
	return newSQLSource("sqlite", dsn)
}
