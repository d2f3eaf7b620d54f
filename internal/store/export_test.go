package store

import "database/sql"

// UnderlyingDB exposes the database handle to tests for schema assertions.
func (s *Store) UnderlyingDB() *sql.DB {
	return s.db
}
