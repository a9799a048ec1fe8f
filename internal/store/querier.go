package store

import "database/sql"

// querier is satisfied by both *sql.DB and *sql.Tx, letting the row-access
// helpers below run either standalone or inside a WithTransaction callback.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func (s *Store) q() querier { return s.db }
func (t *Tx) q() querier    { return t.tx }
