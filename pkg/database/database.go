package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/samogod/blockforge/pkg/config"

	"github.com/lib/pq"
)

var DebugLog func(string, ...interface{})

// Membership statuses of a domain within a list.
const (
	StatusNew     = "NEW"
	StatusActive  = "ACTIVE"
	StatusRemoved = "REMOVED"
)

type DB struct {
	conn    *sql.DB
	enabled bool
}

type DomainRecord struct {
	List      string
	Domain    string
	Status    string
	FirstSeen time.Time
	LastSeen  time.Time
}

// TrackSummary counts the transitions made by one TrackDomains call.
type TrackSummary struct {
	New     int
	Active  int
	Removed int
}

const DBName = "blockforge_track"

func New(cfg *config.Database) (*DB, error) {
	db := &DB{
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		return db, nil
	}

	postgresConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password)

	postgresConn, err := sql.Open("postgres", postgresConnStr)
	if err != nil {
		return db, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer postgresConn.Close()

	if err := postgresConn.Ping(); err != nil {
		return db, fmt.Errorf("failed to ping postgres: %w", err)
	}

	var exists bool
	err = postgresConn.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", DBName).Scan(&exists)
	if err != nil {
		return db, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if _, err = postgresConn.Exec("CREATE DATABASE " + pq.QuoteIdentifier(DBName)); err != nil {
			return db, fmt.Errorf("failed to create database: %w", err)
		}
		if DebugLog != nil {
			DebugLog("database %s created", DBName)
		}
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, DBName)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return db, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return db, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.attach(conn); err != nil {
		return db, err
	}

	return db, nil
}

// attach takes ownership of conn once the schema is in place. On failure
// conn is closed and the DB stays disabled.
func (db *DB) attach(conn *sql.DB) error {
	db.conn = conn
	if err := db.initSchema(); err != nil {
		conn.Close()
		db.conn = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (db *DB) initSchema() error {
	if !db.IsEnabled() {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS list_domains (
		id SERIAL PRIMARY KEY,
		list VARCHAR(128) NOT NULL,
		domain VARCHAR(253) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'NEW',
		first_seen TIMESTAMP NOT NULL DEFAULT NOW(),
		last_seen TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE(list, domain)
	);

	CREATE INDEX IF NOT EXISTS idx_list_domains_list ON list_domains(list);
	CREATE INDEX IF NOT EXISTS idx_list_domains_status ON list_domains(status);
	`

	_, err := db.conn.Exec(schema)
	return err
}

func (db *DB) Close() error {
	if db != nil && db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) IsEnabled() bool {
	return db != nil && db.enabled && db.conn != nil
}

// TrackDomains records the current membership of list. Domains seen before
// become ACTIVE, unseen ones NEW, and tracked domains missing from the
// current run REMOVED.
func (db *DB) TrackDomains(list string, domains []string) (TrackSummary, error) {
	var summary TrackSummary
	if !db.IsEnabled() {
		return summary, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return summary, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TEMP TABLE current_domains (domain VARCHAR(253) PRIMARY KEY) ON COMMIT DROP`); err != nil {
		return summary, fmt.Errorf("failed to create staging table: %w", err)
	}

	stmt, err := tx.Prepare(pq.CopyIn("current_domains", "domain"))
	if err != nil {
		return summary, fmt.Errorf("failed to prepare copy: %w", err)
	}
	for _, d := range domains {
		if _, err := stmt.Exec(d); err != nil {
			stmt.Close()
			return summary, fmt.Errorf("failed to stage %s: %w", d, err)
		}
	}
	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		return summary, fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return summary, err
	}

	res, err := tx.Exec(`
		UPDATE list_domains l
		SET status = 'ACTIVE', last_seen = NOW()
		FROM current_domains c
		WHERE l.list = $1 AND l.domain = c.domain
	`, list)
	if err != nil {
		return summary, err
	}
	summary.Active = rowsAffected(res)

	res, err = tx.Exec(`
		INSERT INTO list_domains (list, domain, status, first_seen, last_seen)
		SELECT $1, c.domain, 'NEW', NOW(), NOW() FROM current_domains c
		ON CONFLICT (list, domain) DO NOTHING
	`, list)
	if err != nil {
		return summary, err
	}
	summary.New = rowsAffected(res)

	res, err = tx.Exec(`
		UPDATE list_domains l
		SET status = 'REMOVED', last_seen = NOW()
		WHERE l.list = $1 AND l.status != 'REMOVED'
		AND NOT EXISTS (SELECT 1 FROM current_domains c WHERE c.domain = l.domain)
	`, list)
	if err != nil {
		return summary, err
	}
	summary.Removed = rowsAffected(res)

	if DebugLog != nil {
		DebugLog("tracked list %s: %d new, %d active, %d removed", list, summary.New, summary.Active, summary.Removed)
	}

	return summary, tx.Commit()
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func (db *DB) QueryDomains(list string, status string) ([]DomainRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT list, domain, status, first_seen, last_seen
		FROM list_domains
		WHERE list = $1
	`
	args := []interface{}{list}

	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}

	query += " ORDER BY domain"

	return db.queryRecords(query, args...)
}

func (db *DB) QueryAllDomains(status string) ([]DomainRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT list, domain, status, first_seen, last_seen
		FROM list_domains
	`
	var args []interface{}

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}

	query += " ORDER BY list, domain"

	return db.queryRecords(query, args...)
}

func (db *DB) queryRecords(query string, args ...interface{}) ([]DomainRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DomainRecord
	for rows.Next() {
		var r DomainRecord
		if err := rows.Scan(&r.List, &r.Domain, &r.Status, &r.FirstSeen, &r.LastSeen); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
