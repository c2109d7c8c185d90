package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"flightfinder/airports"

	_ "github.com/lib/pq"
)

// ─── Init ─────────────────────────────────────────────────────────────────────

// Open connects to Postgres and makes sure the airports table exists.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Read once at startup, then idle for the life of the process.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	// The database container may still be starting.
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		log.Printf("⏳ Waiting for database... attempt %d/10: %v", i+1, err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database after retries: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ─── Migrations ───────────────────────────────────────────────────────────────

func migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS airports (
			city      TEXT NOT NULL,
			iata_code CHAR(3) NOT NULL,
			position  INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (city, iata_code)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// LoadAirports reads every city/code row, ordered so that each city's codes
// come back in their configured position.
func LoadAirports(ctx context.Context, db *sql.DB) ([]airports.Row, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT city, iata_code
		FROM airports
		ORDER BY lower(city), position, iata_code`)
	if err != nil {
		return nil, fmt.Errorf("query airports: %w", err)
	}
	defer rows.Close()

	out := make([]airports.Row, 0)
	for rows.Next() {
		var r airports.Row
		if err := rows.Scan(&r.City, &r.IATACode); err != nil {
			return nil, fmt.Errorf("scan airport: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadDirectory opens the database, reads the airports table once and closes
// the connection again.
func LoadDirectory(ctx context.Context, dsn string) (*airports.Directory, error) {
	db, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := LoadAirports(ctx, db)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("airports table is empty")
	}
	return airports.FromRows(rows)
}
