package authority

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

// PostgresSessionFactory leases connections from a shared *sqlx.DB pool,
// standing in for "a non-thread-safe data-access session to an authority
// database" per spec.md §B. The actual EPSG schema/query is a
// collaborator concern; PostgresSession exposes a generic
// QueryRowx/Exec surface the typed Creator callback uses.
type PostgresSessionFactory struct {
	DB *sqlx.DB
}

// NewPostgresSessionFactory opens a connection pool against dsn using the
// lib/pq driver.
func NewPostgresSessionFactory(dsn string) (*PostgresSessionFactory, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresSessionFactory{DB: db}, nil
}

// NewSession leases a dedicated connection from the pool for the
// lifetime of one AuthorityCache session lease.
func (f *PostgresSessionFactory) NewSession() (Session, error) {
	conn, err := f.DB.Connx(context.Background())
	if err != nil {
		return nil, err
	}
	return &PostgresSession{id: uuid.NewString(), conn: conn}, nil
}

// PostgresSession is the concrete Session backing production deployments.
type PostgresSession struct {
	id   string
	conn *sqlx.Conn
}

func (s *PostgresSession) ID() string { return s.id }

// QueryRowx runs query and returns a row the typed Creator callback scans.
func (s *PostgresSession) QueryRowx(query string, args ...interface{}) *sqlx.Row {
	return s.conn.QueryRowxContext(context.Background(), query, args...)
}

// Exec runs a statement with no row result.
func (s *PostgresSession) Exec(query string, args ...interface{}) (sql.Result, error) {
	return s.conn.ExecContext(context.Background(), query, args...)
}

func (s *PostgresSession) Close() error {
	return s.conn.Close()
}
